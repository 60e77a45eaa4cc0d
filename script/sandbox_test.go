package script

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func newTestSandbox(t *testing.T, opts ...SandboxOption) *Sandbox {
	t.Helper()
	s, err := NewSandbox(nil, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSandbox_EvalReturnValue(t *testing.T) {
	s := newTestSandbox(t)
	v, rerr := s.Eval(context.Background(), "return 1 + 2")
	require.Nil(t, rerr)
	assert.Equal(t, ValueInt, v.Kind())
	assert.Equal(t, int64(3), v.Int())
}

func TestSandbox_EvalNoReturn(t *testing.T) {
	s := newTestSandbox(t)
	v, rerr := s.Eval(context.Background(), "local x = 1")
	require.Nil(t, rerr)
	assert.True(t, v.IsNull())
}

func TestSandbox_EvalTableReturn(t *testing.T) {
	s := newTestSandbox(t)
	v, rerr := s.Eval(context.Background(), "return {name = 'ada', tags = {'a', 'b'}}")
	require.Nil(t, rerr)
	require.Equal(t, ValueObject, v.Kind())
	assert.Equal(t, "ada", v.Object()["name"].Str())
	assert.Equal(t, ValueArray, v.Object()["tags"].Kind())
}

func TestSandbox_SyntaxErrorIsGeneric(t *testing.T) {
	s := newTestSandbox(t)
	_, rerr := s.Eval(context.Background(), "return 1 +")
	require.NotNil(t, rerr)
	assert.Equal(t, RuntimeGeneric, rerr.Kind)
}

func TestSandbox_ForbiddenGlobalsRemoved(t *testing.T) {
	s := newTestSandbox(t)
	for _, name := range []string{"dofile", "loadstring", "load", "setmetatable", "rawset", "collectgarbage", "setfenv", "getfenv"} {
		v, rerr := s.Eval(context.Background(), "return type("+name+")")
		require.Nil(t, rerr)
		assert.Equal(t, "nil", v.Str(), name)
	}
	// os and io were never opened.
	v, rerr := s.Eval(context.Background(), "return type(os)")
	require.Nil(t, rerr)
	assert.Equal(t, "nil", v.Str())
	v, rerr = s.Eval(context.Background(), "return type(io)")
	require.Nil(t, rerr)
	assert.Equal(t, "nil", v.Str())
}

func TestSandbox_SafeLibsAvailable(t *testing.T) {
	s := newTestSandbox(t)
	v, rerr := s.Eval(context.Background(), "return string.upper('abc') .. tostring(math.floor(2.7)) .. tostring(#({1,2,3}))")
	require.Nil(t, rerr)
	assert.Equal(t, "ABC23", v.Str())
}

func TestSandbox_GlobalsResetBetweenEvals(t *testing.T) {
	s := newTestSandbox(t)
	_, rerr := s.Eval(context.Background(), "leaked = 'yes'; return leaked")
	require.Nil(t, rerr)

	v, rerr := s.Eval(context.Background(), "return type(leaked)")
	require.Nil(t, rerr)
	assert.Equal(t, "nil", v.Str())
}

func TestSandbox_GlobalsResetAfterError(t *testing.T) {
	s := newTestSandbox(t)
	_, rerr := s.Eval(context.Background(), "leaked = 'yes'; error('boom')")
	require.NotNil(t, rerr)

	v, rerr := s.Eval(context.Background(), "return type(leaked)")
	require.Nil(t, rerr)
	assert.Equal(t, "nil", v.Str())
}

func TestSandbox_BaselineOverwriteHealed(t *testing.T) {
	s := newTestSandbox(t)

	// Within the same execution the overwrite is visible; that is ordinary
	// Lua. It must not survive into the next execution.
	v, rerr := s.Eval(context.Background(), "tostring = function() return 'pwned' end; return tostring(1)")
	require.Nil(t, rerr)
	assert.Equal(t, "pwned", v.Str())

	v, rerr = s.Eval(context.Background(), "return tostring(1)")
	require.Nil(t, rerr)
	assert.Equal(t, "1", v.Str())
}

func TestSandbox_LibraryFieldOverwriteHealed(t *testing.T) {
	s := newTestSandbox(t)

	_, rerr := s.Eval(context.Background(), "string.upper = function() return 'pwned' end")
	require.Nil(t, rerr)
	v, rerr := s.Eval(context.Background(), "return string.upper('abc')")
	require.Nil(t, rerr)
	assert.Equal(t, "ABC", v.Str())

	_, rerr = s.Eval(context.Background(), "math.huge = 0; table.concat = nil; string.extra = 1")
	require.Nil(t, rerr)
	v, rerr = s.Eval(context.Background(),
		"return tostring(math.huge == 1/0) .. '/' .. table.concat({'a', 'b'}) .. '/' .. type(string.extra)")
	require.Nil(t, rerr)
	assert.Equal(t, "true/ab/nil", v.Str())
}

func TestSandbox_ReplacedLibraryTableHealed(t *testing.T) {
	s := newTestSandbox(t)

	_, rerr := s.Eval(context.Background(), "string = {upper = function() return 'pwned' end}")
	require.Nil(t, rerr)
	v, rerr := s.Eval(context.Background(), "return string.upper('abc')")
	require.Nil(t, rerr)
	assert.Equal(t, "ABC", v.Str())
}

func TestSandbox_BindingOverwriteHealed(t *testing.T) {
	s := newTestSandbox(t)
	_, rerr := s.Eval(context.Background(), "map = 'broken'; return map")
	require.Nil(t, rerr)

	v, rerr := s.Eval(context.Background(), "return map({1, 2, 3}, function(x) return x * 2 end)")
	require.Nil(t, rerr)
	require.Equal(t, ValueArray, v.Kind())
	assert.Equal(t, int64(6), v.Array()[2].Int())
}

func TestSandbox_RegisteredFunction(t *testing.T) {
	s := newTestSandbox(t)
	s.Register("double", func(l *lua.LState) int {
		l.Push(lua.LNumber(l.CheckNumber(1) * 2))
		return 1
	})
	s.Seal()

	v, rerr := s.Eval(context.Background(), "return double(21)")
	require.Nil(t, rerr)
	assert.Equal(t, int64(42), v.Int())
}

func TestSandbox_RaiseSurfacesStructuredError(t *testing.T) {
	s := newTestSandbox(t)
	s.Register("denied", func(l *lua.LState) int {
		s.Raise(l, UnauthorizedError("denied", "agent-1"))
		return 0
	})
	s.Seal()

	_, rerr := s.Eval(context.Background(), "return denied()")
	require.NotNil(t, rerr)
	assert.Equal(t, RuntimeAuthorizationDenied, rerr.Kind)
	assert.Contains(t, rerr.Message, "agent-1")
	assert.NotEmpty(t, rerr.Suggestion)
}

func TestSandbox_RaisedErrorIsPcallCatchable(t *testing.T) {
	s := newTestSandbox(t)
	s.Register("denied", func(l *lua.LState) int {
		s.Raise(l, UnauthorizedError("denied", "agent-1"))
		return 0
	})
	s.Seal()

	v, rerr := s.Eval(context.Background(), `
		local ok, err = pcall(denied)
		if ok then return 'unexpected' end
		return err.kind .. '|' .. tostring(err)
	`)
	require.Nil(t, rerr)
	assert.Contains(t, v.Str(), "authorization_denied|")
	assert.Contains(t, v.Str(), "agent-1")
}

func TestSandbox_CaughtRaiseDoesNotTagLaterErrors(t *testing.T) {
	s := newTestSandbox(t)
	s.Register("denied", func(l *lua.LState) int {
		s.Raise(l, UnauthorizedError("denied", "agent-1"))
		return 0
	})
	s.Seal()

	// A script error that merely repeats a caught message stays generic.
	_, rerr := s.Eval(context.Background(), `
		local ok, err = pcall(denied)
		error(tostring(err))
	`)
	require.NotNil(t, rerr)
	assert.Equal(t, RuntimeGeneric, rerr.Kind)

	// Rethrowing the caught error value keeps its structured kind.
	_, rerr = s.Eval(context.Background(), `
		local ok, err = pcall(denied)
		error(err)
	`)
	require.NotNil(t, rerr)
	assert.Equal(t, RuntimeAuthorizationDenied, rerr.Kind)
}

func TestSandbox_TimeoutAbortsRunawayLoop(t *testing.T) {
	s := newTestSandbox(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, rerr := s.Eval(ctx, "while true do end")
	require.NotNil(t, rerr)
	assert.Equal(t, RuntimeTimeout, rerr.Kind)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The sandbox stays usable after an aborted execution.
	v, rerr := s.Eval(context.Background(), "return 'alive'")
	require.Nil(t, rerr)
	assert.Equal(t, "alive", v.Str())
}

func TestSandbox_HelperBuiltins(t *testing.T) {
	s := newTestSandbox(t)

	v, rerr := s.Eval(context.Background(), "return filter({1, 2, 3, 4}, function(x) return x % 2 == 0 end)")
	require.Nil(t, rerr)
	require.Equal(t, ValueArray, v.Kind())
	require.Len(t, v.Array(), 2)
	assert.Equal(t, int64(4), v.Array()[1].Int())

	v, rerr = s.Eval(context.Background(), "return reduce({1, 2, 3, 4}, function(a, b) return a + b end, 0)")
	require.Nil(t, rerr)
	assert.Equal(t, int64(10), v.Int())

	v, rerr = s.Eval(context.Background(), "return reduce({5, 6}, function(a, b) return a + b end)")
	require.Nil(t, rerr)
	assert.Equal(t, int64(11), v.Int())

	v, rerr = s.Eval(context.Background(), "return pretty({b = 1})")
	require.Nil(t, rerr)
	assert.Contains(t, v.Str(), "\"b\": 1")
}

func TestSandbox_Sleep(t *testing.T) {
	s := newTestSandbox(t, WithMaxSleep(20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, s.MaxSleep())

	// Requests beyond the cap are clamped.
	start := time.Now()
	require.NoError(t, s.Sleep(context.Background(), time.Hour))
	assert.Less(t, time.Since(start), time.Second)

	// A cancelled context aborts the wait.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Sleep(ctx, 10*time.Millisecond), context.Canceled)
}
