package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultMaxSleep caps a single sleep() call.
const DefaultMaxSleep = time.Second

// forbiddenGlobals are base-library globals removed after opening the safe
// libraries. The os and io libraries are never opened at all.
var forbiddenGlobals = []string{
	"dofile", "loadfile", "load", "loadstring",
	"rawget", "rawset", "rawequal", "rawlen",
	"setmetatable", "getmetatable", "collectgarbage",
	"require", "module", "newproxy",
	"getfenv", "setfenv",
}

type sandboxOptions struct {
	maxSleep     time.Duration
	callStack    int
	registrySize int
}

// SandboxOption customizes a Sandbox.
type SandboxOption func(*sandboxOptions)

// WithMaxSleep caps the duration a single sleep() call may block.
func WithMaxSleep(d time.Duration) SandboxOption {
	return func(o *sandboxOptions) {
		if d > 0 {
			o.maxSleep = d
		}
	}
}

// WithCallStackSize sets the interpreter call stack depth.
func WithCallStackSize(n int) SandboxOption {
	return func(o *sandboxOptions) {
		if n > 0 {
			o.callStack = n
		}
	}
}

// Sandbox is a restricted Lua interpreter: only the base, table, string and
// math libraries are open, file/system/code-loading primitives are removed,
// and the host decides every additional global through Register.
//
// A Sandbox is not safe for concurrent use; callers serialize executions.
type Sandbox struct {
	state    *lua.LState
	logger   *slog.Logger
	maxSleep time.Duration

	// baseline maps each sealed global name to its value. After every Eval
	// the global table is restored to exactly this set, so neither globals a
	// script invents nor ones it overwrites survive into the next execution.
	baseline map[string]lua.LValue

	// libSnapshots holds the sealed contents of every global table (string,
	// table, math, _G), restored alongside baseline so field-level
	// overwrites like string.upper do not leak either.
	libSnapshots map[*lua.LTable]map[lua.LValue]lua.LValue

	sealed bool

	// errMeta is the metatable of error values produced by Raise. It lives
	// only host-side; scripts cannot reach it with getmetatable removed.
	errMeta *lua.LTable
}

// NewSandbox builds a sandbox with the safe libraries open and the built-in
// helpers (print, map, filter, reduce, pretty) bound. Host catalogs are added
// with Register, then Seal fixes the baseline.
func NewSandbox(logger *slog.Logger, opts ...SandboxOption) (*Sandbox, error) {
	o := sandboxOptions{
		maxSleep:     DefaultMaxSleep,
		callStack:    128,
		registrySize: 1024 * 20,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	l := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: o.callStack,
		RegistrySize:  o.registrySize,
	})

	s := &Sandbox{
		state:        l,
		logger:       logger,
		maxSleep:     o.maxSleep,
		baseline:     make(map[string]lua.LValue),
		libSnapshots: make(map[*lua.LTable]map[lua.LValue]lua.LValue),
	}

	mt := l.NewTable()
	mt.RawSetString("__tostring", l.NewFunction(errToString))
	mt.RawSetString("__index", l.NewFunction(errIndex))
	s.errMeta = mt

	safeLibs := []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range safeLibs {
		if err := l.CallByParam(lua.P{
			Fn:      l.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			l.Close()
			return nil, fmt.Errorf("open lua library %q: %w", lib.name, err)
		}
	}
	for _, name := range forbiddenGlobals {
		l.SetGlobal(name, lua.LNil)
	}

	s.Register("print", s.luaPrint)
	s.Register("map", s.luaMap)
	s.Register("filter", s.luaFilter)
	s.Register("reduce", s.luaReduce)
	s.Register("pretty", s.luaPretty)

	return s, nil
}

// Close releases the interpreter.
func (s *Sandbox) Close() {
	s.state.Close()
}

// MaxSleep reports the per-call sleep cap.
func (s *Sandbox) MaxSleep() time.Duration {
	return s.maxSleep
}

// Register binds fn as a global. Register panics after Seal; the global
// surface is fixed at construction time.
func (s *Sandbox) Register(name string, fn lua.LGFunction) {
	if s.sealed {
		panic("script: Register after Seal")
	}
	s.state.SetGlobal(name, s.state.NewFunction(fn))
}

// Seal snapshots every global and the contents of every global table. After
// each Eval the interpreter is restored to exactly this state, so one
// script's writes are invisible to the next.
func (s *Sandbox) Seal() {
	globals := s.state.G.Global
	globals.ForEach(func(k, v lua.LValue) {
		s.baseline[k.String()] = v
		if t, ok := v.(*lua.LTable); ok {
			snap := make(map[lua.LValue]lua.LValue)
			t.ForEach(func(tk, tv lua.LValue) { snap[tk] = tv })
			s.libSnapshots[t] = snap
		}
	})
	s.sealed = true
}

// KnownGlobal reports whether name is part of the sealed baseline, i.e. a
// library or host-provided global rather than something a script invented.
func (s *Sandbox) KnownGlobal(name string) bool {
	_, ok := s.baseline[name]
	return ok
}

// Raise surfaces a structured error out of a host binding. The error value
// unwinds like any Lua error, so scripts may catch it with pcall and inspect
// err.kind, err.message and err.suggestion, or tostring() it; if it reaches
// the top uncaught, Eval returns the structured error intact.
func (s *Sandbox) Raise(l *lua.LState, err *RuntimeError) {
	ud := l.NewUserData()
	ud.Value = err
	l.SetMetatable(ud, s.errMeta)
	l.Error(ud, 1)
}

func errToString(l *lua.LState) int {
	ud := l.CheckUserData(1)
	if rerr, ok := ud.Value.(*RuntimeError); ok {
		l.Push(lua.LString(rerr.Error()))
		return 1
	}
	l.Push(lua.LString("runtime error"))
	return 1
}

func errIndex(l *lua.LState) int {
	ud := l.CheckUserData(1)
	field := l.CheckString(2)
	rerr, ok := ud.Value.(*RuntimeError)
	if !ok {
		l.Push(lua.LNil)
		return 1
	}
	switch field {
	case "kind":
		l.Push(lua.LString(string(rerr.Kind)))
	case "message":
		l.Push(lua.LString(rerr.Message))
	case "suggestion":
		l.Push(lua.LString(rerr.Suggestion))
	default:
		l.Push(lua.LNil)
	}
	return 1
}

// Eval runs source and converts its first return value. ctx cancellation or
// deadline aborts the script with a timeout error. The sealed global state
// is restored afterwards regardless of outcome.
func (s *Sandbox) Eval(ctx context.Context, source string) (Value, *RuntimeError) {
	if !s.sealed {
		s.Seal()
	}

	fn, err := s.state.LoadString(source)
	if err != nil {
		return Null(), GenericError(cleanLuaMessage(err.Error()))
	}

	if ctx != nil {
		s.state.SetContext(ctx)
		defer s.state.RemoveContext()
	}

	s.state.SetTop(0)
	s.state.Push(fn)
	callErr := s.state.PCall(0, lua.MultRet, nil)

	ret := lua.LValue(lua.LNil)
	if s.state.GetTop() > 0 {
		ret = s.state.Get(1)
	}
	s.state.SetTop(0)
	defer s.restoreGlobals()

	if callErr != nil {
		return Null(), s.translateCallError(ctx, callErr)
	}

	v, convErr := FromLua(ret)
	if convErr != nil {
		return Null(), GenericError(fmt.Sprintf("script returned an unsupported value: %v", convErr))
	}
	return v, nil
}

func (s *Sandbox) translateCallError(ctx context.Context, callErr error) *RuntimeError {
	if ctx != nil && ctx.Err() != nil {
		return TimeoutError()
	}

	msg := callErr.Error()
	var traceback string
	if apiErr, ok := callErr.(*lua.ApiError); ok {
		traceback = apiErr.StackTrace
		if ud, ok := apiErr.Object.(*lua.LUserData); ok {
			if rerr, ok := ud.Value.(*RuntimeError); ok {
				rerr.Traceback = traceback
				return rerr
			}
		}
		msg = apiErr.Object.String()
	}

	generic := GenericError(cleanLuaMessage(msg))
	generic.Traceback = traceback
	return generic
}

// restoreGlobals rewinds the interpreter to the sealed baseline: globals a
// script added are removed, globals it overwrote are put back, and the
// contents of the library tables are reset entry by entry.
func (s *Sandbox) restoreGlobals() {
	globals := s.state.G.Global
	var extra []lua.LValue
	globals.ForEach(func(k, _ lua.LValue) {
		if _, ok := s.baseline[k.String()]; !ok {
			extra = append(extra, k)
		}
	})
	for _, k := range extra {
		globals.RawSet(k, lua.LNil)
	}
	for name, want := range s.baseline {
		if globals.RawGetString(name) != want {
			globals.RawSetString(name, want)
		}
	}
	for t, snap := range s.libSnapshots {
		restoreTable(t, snap)
	}
}

func restoreTable(t *lua.LTable, snap map[lua.LValue]lua.LValue) {
	var extra []lua.LValue
	t.ForEach(func(k, _ lua.LValue) {
		if _, ok := snap[k]; !ok {
			extra = append(extra, k)
		}
	})
	for _, k := range extra {
		t.RawSet(k, lua.LNil)
	}
	for k, want := range snap {
		if t.RawGet(k) != want {
			t.RawSet(k, want)
		}
	}
}

var chunkPrefixRe = regexp.MustCompile(`<script>:(\d+):\s*`)

func cleanLuaMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if m := chunkPrefixRe.FindStringSubmatch(msg); m != nil {
		msg = chunkPrefixRe.ReplaceAllString(msg, "line "+m[1]+": ")
	}
	return msg
}

// Sleep blocks for the requested duration, clamped to the sandbox maximum,
// and aborts early if the given context ends.
func (s *Sandbox) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if d > s.maxSleep {
		d = s.maxSleep
	}
	if ctx == nil {
		time.Sleep(d)
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sandbox) luaPrint(l *lua.LState) int {
	n := l.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, l.Get(i).String())
	}
	s.logger.Info("script output", slog.String("message", strings.Join(parts, "\t")))
	return 0
}

func (s *Sandbox) luaMap(l *lua.LState) int {
	t := l.CheckTable(1)
	fn := l.CheckFunction(2)
	out := l.CreateTable(t.Len(), 0)
	for i := 1; i <= t.Len(); i++ {
		l.Push(fn)
		l.Push(t.RawGetInt(i))
		l.Call(1, 1)
		out.RawSetInt(i, l.Get(-1))
		l.Pop(1)
	}
	l.Push(out)
	return 1
}

func (s *Sandbox) luaFilter(l *lua.LState) int {
	t := l.CheckTable(1)
	fn := l.CheckFunction(2)
	out := l.CreateTable(0, 0)
	n := 0
	for i := 1; i <= t.Len(); i++ {
		elem := t.RawGetInt(i)
		l.Push(fn)
		l.Push(elem)
		l.Call(1, 1)
		keep := lua.LVAsBool(l.Get(-1))
		l.Pop(1)
		if keep {
			n++
			out.RawSetInt(n, elem)
		}
	}
	l.Push(out)
	return 1
}

func (s *Sandbox) luaReduce(l *lua.LState) int {
	t := l.CheckTable(1)
	fn := l.CheckFunction(2)
	acc := l.Get(3)
	start := 1
	if acc == lua.LNil {
		if t.Len() == 0 {
			l.Push(lua.LNil)
			return 1
		}
		acc = t.RawGetInt(1)
		start = 2
	}
	for i := start; i <= t.Len(); i++ {
		l.Push(fn)
		l.Push(acc)
		l.Push(t.RawGetInt(i))
		l.Call(2, 1)
		acc = l.Get(-1)
		l.Pop(1)
	}
	l.Push(acc)
	return 1
}

func (s *Sandbox) luaPretty(l *lua.LState) int {
	v, err := FromLua(l.Get(1))
	if err != nil {
		s.Raise(l, TypeError("a serializable value", err.Error(), "pretty"))
		return 0
	}
	out, encErr := v.EncodeJSONIndent()
	if encErr != nil {
		s.Raise(l, GenericError(fmt.Sprintf("pretty: %v", encErr)))
		return 0
	}
	l.Push(lua.LString(out))
	return 1
}
