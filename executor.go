package liath

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/liathdb/liath/script"
)

// executor owns the sandbox and serializes script executions. The catalog is
// bound into the interpreter once at construction; the per-call principal
// and context live in fields guarded by mu, so bindings read them without
// rebuilding any closures.
type executor struct {
	mu        sync.Mutex
	db        *DB
	sandbox   *script.Sandbox
	validator *script.Validator

	// current call state, valid only while mu is held by execute
	ctx       context.Context
	principal string

	lastMemoryID uint64
}

// nextMemoryID returns a strictly increasing microsecond-resolution id.
// Microseconds stay exactly representable as Lua numbers.
func (e *executor) nextMemoryID() uint64 {
	id := uint64(time.Now().UnixMicro())
	if id <= e.lastMemoryID {
		id = e.lastMemoryID + 1
	}
	e.lastMemoryID = id
	return id
}

func newExecutor(db *DB, sandboxOpts ...script.SandboxOption) (*executor, error) {
	sandbox, err := script.NewSandbox(db.logger.Logger, sandboxOpts...)
	if err != nil {
		return nil, err
	}
	e := &executor{
		db:        db,
		sandbox:   sandbox,
		validator: script.NewValidator(catalogFunctions()),
	}
	e.bindCatalog()
	sandbox.Seal()
	return e, nil
}

func (e *executor) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sandbox.Close()
}

func (e *executor) execute(ctx context.Context, source, principal string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ctx = ctx
	e.principal = principal
	defer func() {
		e.ctx = nil
		e.principal = ""
	}()

	e.db.logger.Debug("executing script", "principal", principal, "bytes", len(source))

	value, rerr := e.sandbox.Eval(ctx, source)
	if rerr != nil {
		e.enrich(rerr, source)
		e.db.logger.Warn("script failed",
			"principal", principal,
			"kind", string(rerr.Kind),
			"error", rerr.Message)
		return "", rerr
	}

	result, cerr := value.Coerce()
	if cerr != nil {
		e.db.logger.Warn("script failed",
			"principal", principal,
			"kind", string(cerr.Kind),
			"error", cerr.Message)
		return "", cerr
	}
	return result, nil
}

var callSiteRe = regexp.MustCompile(`\b([A-Za-z_]\w*)\s*\(`)

var luaKeywords = map[string]struct{}{
	"and": {}, "break": {}, "do": {}, "else": {}, "elseif": {}, "end": {},
	"false": {}, "for": {}, "function": {}, "if": {}, "in": {}, "local": {},
	"nil": {}, "not": {}, "or": {}, "repeat": {}, "return": {}, "then": {},
	"true": {}, "until": {}, "while": {},
}

// enrich upgrades an opaque nil-call message with a catalog suggestion. The
// interpreter does not name the missing global, so the first called name in
// the source that is neither a keyword nor a known global stands in for it.
func (e *executor) enrich(rerr *script.RuntimeError, source string) {
	if rerr.Kind != script.RuntimeGeneric || !strings.Contains(rerr.Message, "attempt to call") {
		return
	}
	for _, m := range callSiteRe.FindAllStringSubmatch(source, -1) {
		name := m[1]
		if _, keyword := luaKeywords[name]; keyword {
			continue
		}
		if e.sandbox.KnownGlobal(name) {
			continue
		}
		if candidate := e.validator.SuggestFunction(name); candidate != "" {
			rerr.Suggestion = fmt.Sprintf("Did you mean '%s'? Check the function name.", candidate)
		}
		return
	}
}

func vectorMappingKey(id uint64) string {
	return fmt.Sprintf("_vidx:%d", id)
}

func memoryContentKey(id uint64) string {
	return fmt.Sprintf("mem:%d:content", id)
}

func memoryMetaKey(id uint64) string {
	return fmt.Sprintf("mem:%d:meta", id)
}
