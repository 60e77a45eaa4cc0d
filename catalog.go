package liath

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/liathdb/liath/kv"
	"github.com/liathdb/liath/namespace"
	"github.com/liathdb/liath/script"
	"github.com/liathdb/liath/vector"
)

// defaultScanLimit bounds scan() when the script passes no limit.
const defaultScanLimit = 100

// AllPermissions returns every permission-gated catalog function name. Used
// to seed fully-privileged principals.
func AllPermissions() []string {
	gated := make([]string, 0, len(catalogOrder))
	gated = append(gated, catalogOrder...)
	return gated
}

// catalogOrder lists the gated catalog functions. Permission names equal
// function names, so a principal's permission set reads as the exact surface
// it may call.
var catalogOrder = []string{
	"create_namespace", "delete_namespace", "list_namespaces", "namespace_exists",
	"get", "put", "delete", "batch_put", "batch_select", "scan",
	"add_vector", "similarity_search",
	"generate_embedding", "store_document", "semantic_search",
	"json_encode", "json_decode", "insert_json", "select_json",
	"memory_store", "memory_recall",
	"save", "uuid", "timestamp", "sleep",
}

func (e *executor) bindCatalog() {
	bindings := map[string]lua.LGFunction{
		"create_namespace": e.opCreateNamespace,
		"delete_namespace": e.opDeleteNamespace,
		"list_namespaces":  e.opListNamespaces,
		"namespace_exists": e.opNamespaceExists,

		"get":          e.opGet,
		"put":          e.opPut,
		"delete":       e.opDelete,
		"batch_put":    e.opBatchPut,
		"batch_select": e.opBatchSelect,
		"scan":         e.opScan,

		"add_vector":        e.opAddVector,
		"similarity_search": e.opSimilaritySearch,

		"generate_embedding": e.opGenerateEmbedding,
		"store_document":     e.opStoreDocument,
		"semantic_search":    e.opSemanticSearch,

		"json_encode": e.opJSONEncode,
		"json_decode": e.opJSONDecode,
		"insert_json": e.opInsertJSON,
		"select_json": e.opSelectJSON,

		"memory_store":  e.opMemoryStore,
		"memory_recall": e.opMemoryRecall,

		"save":      e.opSave,
		"uuid":      e.opUUID,
		"timestamp": e.opTimestamp,
		"sleep":     e.opSleep,
	}
	for _, name := range catalogOrder {
		e.sandbox.Register(name, e.gated(name, bindings[name]))
	}
}

// gated wraps a catalog function with the per-invocation authorization
// check. The check runs on every call, not once per execution.
func (e *executor) gated(name string, fn lua.LGFunction) lua.LGFunction {
	return func(l *lua.LState) int {
		if !e.db.auth.IsAuthorized(e.principal, name) {
			e.sandbox.Raise(l, script.UnauthorizedError(name, e.principal))
			return 0
		}
		return fn(l)
	}
}

// namespaceOf resolves a namespace or raises with the available names.
func (e *executor) namespaceOf(l *lua.LState, name string) *namespace.Namespace {
	ns, err := e.db.namespaces.Get(name)
	if err != nil {
		e.sandbox.Raise(l, script.NamespaceNotFoundError(name, e.db.namespaces.List()))
	}
	return ns
}

func (e *executor) checkVector(l *lua.LState, pos int) []float32 {
	t := l.CheckTable(pos)
	vec := make([]float32, t.Len())
	for i := 1; i <= t.Len(); i++ {
		n, ok := t.RawGetInt(i).(lua.LNumber)
		if !ok {
			e.sandbox.Raise(l, script.TypeError("number", t.RawGetInt(i).Type().String(), "vector component"))
		}
		vec[i-1] = float32(n)
	}
	return vec
}

func (e *executor) checkStringList(l *lua.LState, pos int) []string {
	t := l.CheckTable(pos)
	out := make([]string, t.Len())
	for i := 1; i <= t.Len(); i++ {
		s, ok := t.RawGetInt(i).(lua.LString)
		if !ok {
			e.sandbox.Raise(l, script.TypeError("string", t.RawGetInt(i).Type().String(), "list element"))
		}
		out[i-1] = string(s)
	}
	return out
}

func (e *executor) checkID(l *lua.LState, pos int) uint64 {
	n := l.CheckNumber(pos)
	if n < 0 || float64(n) != float64(int64(n)) {
		e.sandbox.Raise(l, script.TypeError("non-negative integer id", n.String(), "vector id"))
	}
	return uint64(n)
}

// embed runs the provider under the execution context, mapping a deadline to
// a timeout error.
func (e *executor) embed(l *lua.LState, texts []string) [][]float32 {
	vecs, err := e.db.provider.Generate(e.ctx, texts)
	if err != nil {
		if e.ctx != nil && e.ctx.Err() != nil {
			e.sandbox.Raise(l, script.TimeoutError())
		}
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("generate embedding: %v", err)))
	}
	return vecs
}

// raiseIndexError maps vector index failures onto the runtime error kinds.
func (e *executor) raiseIndexError(l *lua.LState, err error, context string) {
	var dm *vector.ErrDimensionMismatch
	if errors.As(err, &dm) {
		e.sandbox.Raise(l, script.TypeError(
			fmt.Sprintf("%d-dimensional vector", dm.Expected),
			fmt.Sprintf("%d-dimensional vector", dm.Actual),
			context))
	}
	e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("%s: %v", context, err)))
}

// ---- namespace operations ----

func (e *executor) opCreateNamespace(l *lua.LState) int {
	name := l.CheckString(1)
	dims := int(l.CheckNumber(2))
	metric, err := vector.ParseMetric(l.CheckString(3))
	if err != nil {
		e.sandbox.Raise(l, script.GenericError(err.Error()))
	}
	scalar, err := vector.ParseScalar(l.CheckString(4))
	if err != nil {
		e.sandbox.Raise(l, script.GenericError(err.Error()))
	}
	if _, err := e.db.namespaces.Create(name, dims, metric, scalar); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("create namespace: %v", err)))
	}
	return 0
}

func (e *executor) opDeleteNamespace(l *lua.LState) int {
	name := l.CheckString(1)
	if err := e.db.namespaces.Delete(name); err != nil {
		if errors.Is(err, namespace.ErrNotFound) {
			e.sandbox.Raise(l, script.NamespaceNotFoundError(name, e.db.namespaces.List()))
		}
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("delete namespace: %v", err)))
	}
	return 0
}

func (e *executor) opListNamespaces(l *lua.LState) int {
	names := e.db.namespaces.List()
	t := l.CreateTable(len(names), 0)
	for i, name := range names {
		t.RawSetInt(i+1, lua.LString(name))
	}
	l.Push(t)
	return 1
}

func (e *executor) opNamespaceExists(l *lua.LState) int {
	l.Push(lua.LBool(e.db.namespaces.Exists(l.CheckString(1))))
	return 1
}

// ---- key-value operations ----

func (e *executor) opGet(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	key := l.CheckString(2)
	value, err := ns.KV.Get([]byte(key))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			l.Push(lua.LNil)
			return 1
		}
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("get: %v", err)))
	}
	l.Push(lua.LString(value))
	return 1
}

func (e *executor) opPut(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	key := l.CheckString(2)
	value := l.CheckString(3)
	if err := ns.KV.Put([]byte(key), []byte(value)); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("put: %v", err)))
	}
	return 0
}

func (e *executor) opDelete(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	key := l.CheckString(2)
	if err := ns.KV.Delete([]byte(key)); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("delete: %v", err)))
	}
	return 0
}

func (e *executor) opBatchPut(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	itemsTable := l.CheckTable(2)
	items := make([]kv.Item, 0, itemsTable.Len())
	for i := 1; i <= itemsTable.Len(); i++ {
		entry, ok := itemsTable.RawGetInt(i).(*lua.LTable)
		if !ok {
			e.sandbox.Raise(l, script.TypeError("table with key and value fields",
				itemsTable.RawGetInt(i).Type().String(), "batch_put item"))
		}
		key, kok := entry.RawGetString("key").(lua.LString)
		value, vok := entry.RawGetString("value").(lua.LString)
		if !kok || !vok {
			e.sandbox.Raise(l, script.TypeError("string key and value",
				"missing or non-string field", "batch_put item"))
		}
		items = append(items, kv.Item{Key: []byte(key), Value: []byte(value)})
	}
	if err := ns.KV.BatchPut(items); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("batch_put: %v", err)))
	}
	l.Push(lua.LNumber(len(items)))
	return 1
}

func (e *executor) opBatchSelect(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	keys := e.checkStringList(l, 2)
	out := l.CreateTable(0, len(keys))
	for _, key := range keys {
		value, err := ns.KV.Get([]byte(key))
		if err != nil {
			if errors.Is(err, kv.ErrKeyNotFound) {
				continue
			}
			e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("batch_select: %v", err)))
		}
		out.RawSetString(key, lua.LString(value))
	}
	l.Push(out)
	return 1
}

func (e *executor) opScan(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	prefix := l.CheckString(2)
	limit := defaultScanLimit
	if l.GetTop() >= 3 && l.Get(3) != lua.LNil {
		if n := int(l.CheckNumber(3)); n > 0 {
			limit = n
		}
	}
	items, err := ns.KV.ScanPrefix([]byte(prefix), limit)
	if err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("scan: %v", err)))
	}
	out := l.CreateTable(len(items), 0)
	for i, item := range items {
		entry := l.CreateTable(0, 2)
		entry.RawSetString("key", lua.LString(item.Key))
		entry.RawSetString("value", lua.LString(item.Value))
		out.RawSetInt(i+1, entry)
	}
	l.Push(out)
	return 1
}

// ---- vector operations ----

func (e *executor) opAddVector(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	id := e.checkID(l, 2)
	vec := e.checkVector(l, 3)
	if err := ns.Index.Add(id, vec); err != nil {
		e.raiseIndexError(l, err, "add_vector")
	}
	return 0
}

func (e *executor) opSimilaritySearch(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	query := e.checkVector(l, 2)
	k := int(l.CheckNumber(3))
	results, err := ns.Index.Search(query, k)
	if err != nil {
		e.raiseIndexError(l, err, "similarity_search")
	}
	out := l.CreateTable(len(results), 0)
	for i, r := range results {
		entry := l.CreateTable(0, 2)
		entry.RawSetString("id", lua.LNumber(r.ID))
		entry.RawSetString("distance", lua.LNumber(r.Distance))
		out.RawSetInt(i+1, entry)
	}
	l.Push(out)
	return 1
}

// ---- embedding-backed operations ----

func (e *executor) opGenerateEmbedding(l *lua.LState) int {
	texts := e.checkStringList(l, 1)
	vecs := e.embed(l, texts)
	out := l.CreateTable(len(vecs), 0)
	for i, vec := range vecs {
		row := l.CreateTable(len(vec), 0)
		for j, component := range vec {
			row.RawSetInt(j+1, lua.LNumber(component))
		}
		out.RawSetInt(i+1, row)
	}
	l.Push(out)
	return 1
}

func (e *executor) opStoreDocument(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	id := e.checkID(l, 2)
	key := l.CheckString(3)
	text := l.CheckString(4)

	vecs := e.embed(l, []string{text})
	if err := ns.KV.Put([]byte(key), []byte(text)); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("store_document: %v", err)))
	}
	if err := ns.Index.Add(id, vecs[0]); err != nil {
		e.raiseIndexError(l, err, "store_document")
	}
	if err := ns.KV.Put([]byte(vectorMappingKey(id)), []byte(key)); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("store_document: %v", err)))
	}
	l.Push(lua.LNumber(id))
	return 1
}

func (e *executor) opSemanticSearch(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	query := l.CheckString(2)
	k := int(l.CheckNumber(3))

	vecs := e.embed(l, []string{query})
	results, err := ns.Index.Search(vecs[0], k)
	if err != nil {
		e.raiseIndexError(l, err, "semantic_search")
	}

	out := l.CreateTable(len(results), 0)
	for i, r := range results {
		entry := l.CreateTable(0, 4)
		entry.RawSetString("id", lua.LNumber(r.ID))
		entry.RawSetString("distance", lua.LNumber(r.Distance))
		if key, err := ns.KV.Get([]byte(vectorMappingKey(r.ID))); err == nil {
			if content, err := ns.KV.Get(key); err == nil {
				entry.RawSetString("key", lua.LString(key))
				entry.RawSetString("content", lua.LString(content))
			}
		}
		out.RawSetInt(i+1, entry)
	}
	l.Push(out)
	return 1
}

// ---- structured data operations ----

func (e *executor) opJSONEncode(l *lua.LState) int {
	v, err := script.FromLua(l.Get(1))
	if err != nil {
		e.sandbox.Raise(l, script.TypeError("a serializable value", err.Error(), "json_encode"))
	}
	encoded, err := v.EncodeJSON()
	if err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("json_encode: %v", err)))
	}
	l.Push(lua.LString(encoded))
	return 1
}

func (e *executor) opJSONDecode(l *lua.LState) int {
	v, err := script.DecodeJSON(l.CheckString(1))
	if err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("json_decode: %v", err)))
	}
	l.Push(script.ToLua(l, v))
	return 1
}

func (e *executor) opInsertJSON(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	key := l.CheckString(2)
	v, err := script.FromLua(l.Get(3))
	if err != nil {
		e.sandbox.Raise(l, script.TypeError("a serializable value", err.Error(), "insert_json"))
	}
	encoded, err := v.EncodeJSON()
	if err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("insert_json: %v", err)))
	}
	if err := ns.KV.Put([]byte(key), []byte(encoded)); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("insert_json: %v", err)))
	}
	return 0
}

func (e *executor) opSelectJSON(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	key := l.CheckString(2)
	raw, err := ns.KV.Get([]byte(key))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			l.Push(lua.LNil)
			return 1
		}
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("select_json: %v", err)))
	}
	v, err := script.DecodeJSON(string(raw))
	if err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("select_json: %v", err)))
	}
	l.Push(script.ToLua(l, v))
	return 1
}

// ---- agent memory operations ----

type memoryMeta struct {
	ID        uint64   `json:"id"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"created_at"`
}

func (e *executor) opMemoryStore(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	content := l.CheckString(2)
	tags := []string{}
	if l.GetTop() >= 3 && l.Get(3) != lua.LNil {
		tags = e.checkStringList(l, 3)
	}

	id := e.nextMemoryID()
	vecs := e.embed(l, []string{content})

	if err := ns.KV.Put([]byte(memoryContentKey(id)), []byte(content)); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("memory_store: %v", err)))
	}
	meta, err := json.Marshal(memoryMeta{ID: id, Tags: tags, CreatedAt: time.Now().Unix()})
	if err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("memory_store: %v", err)))
	}
	if err := ns.KV.Put([]byte(memoryMetaKey(id)), meta); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("memory_store: %v", err)))
	}
	if err := ns.Index.Add(id, vecs[0]); err != nil {
		e.raiseIndexError(l, err, "memory_store")
	}
	l.Push(lua.LNumber(id))
	return 1
}

func (e *executor) opMemoryRecall(l *lua.LState) int {
	ns := e.namespaceOf(l, l.CheckString(1))
	query := l.CheckString(2)
	k := int(l.CheckNumber(3))

	vecs := e.embed(l, []string{query})
	results, err := ns.Index.Search(vecs[0], k)
	if err != nil {
		e.raiseIndexError(l, err, "memory_recall")
	}

	out := l.CreateTable(len(results), 0)
	for i, r := range results {
		entry := l.CreateTable(0, 5)
		entry.RawSetString("id", lua.LNumber(r.ID))
		entry.RawSetString("distance", lua.LNumber(r.Distance))
		if content, err := ns.KV.Get([]byte(memoryContentKey(r.ID))); err == nil {
			entry.RawSetString("content", lua.LString(content))
		}
		if raw, err := ns.KV.Get([]byte(memoryMetaKey(r.ID))); err == nil {
			var meta memoryMeta
			if json.Unmarshal(raw, &meta) == nil {
				tagsTable := l.CreateTable(len(meta.Tags), 0)
				for j, tag := range meta.Tags {
					tagsTable.RawSetInt(j+1, lua.LString(tag))
				}
				entry.RawSetString("tags", tagsTable)
				entry.RawSetString("created_at", lua.LNumber(meta.CreatedAt))
			}
		}
		out.RawSetInt(i+1, entry)
	}
	l.Push(out)
	return 1
}

// ---- utility operations ----

func (e *executor) opSave(l *lua.LState) int {
	if err := e.db.namespaces.SaveAll(); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("save: %v", err)))
	}
	if err := e.db.auth.Flush(); err != nil {
		e.sandbox.Raise(l, script.GenericError(fmt.Sprintf("save: %v", err)))
	}
	return 0
}

func (e *executor) opUUID(l *lua.LState) int {
	l.Push(lua.LString(uuid.NewString()))
	return 1
}

func (e *executor) opTimestamp(l *lua.LState) int {
	l.Push(lua.LNumber(time.Now().Unix()))
	return 1
}

func (e *executor) opSleep(l *lua.LState) int {
	ms := l.CheckNumber(1)
	if err := e.sandbox.Sleep(e.ctx, time.Duration(float64(ms)*float64(time.Millisecond))); err != nil {
		e.sandbox.Raise(l, script.TimeoutError())
	}
	return 0
}

// catalogFunctions describes the full script-visible surface, attached to
// every validation result.
func catalogFunctions() []script.FunctionInfo {
	return []script.FunctionInfo{
		{Name: "create_namespace", Signature: "create_namespace(name, dimensions, metric, scalar)",
			Description: "Create a namespace with a fixed vector shape; metric is 'cosine' or 'euclidean', scalar is 'f32' or 'f16'",
			Returns:     "nil", Example: "create_namespace('docs', 384, 'cosine', 'f32')"},
		{Name: "delete_namespace", Signature: "delete_namespace(name)",
			Description: "Delete a namespace and all its data", Returns: "nil",
			Example: "delete_namespace('scratch')"},
		{Name: "list_namespaces", Signature: "list_namespaces()",
			Description: "List all namespace names", Returns: "list of string"},
		{Name: "namespace_exists", Signature: "namespace_exists(name)",
			Description: "Check whether a namespace exists", Returns: "boolean"},

		{Name: "put", Signature: "put(namespace, key, value)",
			Description: "Store a value", Returns: "nil",
			Example: "put('config', 'theme', 'dark')"},
		{Name: "get", Signature: "get(namespace, key)",
			Description: "Retrieve a value; nil if the key does not exist", Returns: "string|nil",
			Example: "local theme = get('config', 'theme')"},
		{Name: "delete", Signature: "delete(namespace, key)",
			Description: "Delete a key", Returns: "nil",
			Example: "delete('config', 'old_key')"},
		{Name: "batch_put", Signature: "batch_put(namespace, items)",
			Description: "Store multiple {key=..., value=...} pairs in one batch", Returns: "number of items",
			Example: "batch_put('config', {{key='a', value='1'}, {key='b', value='2'}})"},
		{Name: "batch_select", Signature: "batch_select(namespace, keys)",
			Description: "Retrieve multiple keys; missing keys are absent from the result", Returns: "table key -> value"},
		{Name: "scan", Signature: "scan(namespace, prefix, limit)",
			Description: "List key/value pairs whose key starts with prefix; limit defaults to 100", Returns: "list of {key, value}",
			Example: "local entries = scan('config', 'user:', 50)"},

		{Name: "add_vector", Signature: "add_vector(namespace, id, vector)",
			Description: "Add a vector under a numeric id", Returns: "nil",
			Example: "add_vector('docs', 1, {0.1, 0.2, 0.3})"},
		{Name: "similarity_search", Signature: "similarity_search(namespace, vector, k)",
			Description: "Find the k nearest vectors, ascending by distance", Returns: "list of {id, distance}"},

		{Name: "generate_embedding", Signature: "generate_embedding(texts)",
			Description: "Embed a list of texts", Returns: "list of vector",
			Example: "local vecs = generate_embedding({'hello', 'world'})"},
		{Name: "store_document", Signature: "store_document(namespace, id, key, text)",
			Description: "Store text under key, embed it, and index the vector under id", Returns: "id",
			Example: "store_document('docs', 1, 'doc:1', 'Hello world')"},
		{Name: "semantic_search", Signature: "semantic_search(namespace, query, k)",
			Description: "Embed the query and return the k most similar stored documents", Returns: "list of {id, distance, key, content}",
			Example: "local hits = semantic_search('docs', 'greeting', 5)"},

		{Name: "json_encode", Signature: "json_encode(value)",
			Description: "Encode a value as a JSON string", Returns: "string",
			Example: "return json_encode({name = 'test'})"},
		{Name: "json_decode", Signature: "json_decode(string)",
			Description: "Parse a JSON string", Returns: "value",
			Example: "local data = json_decode('{\"a\": 1}')"},
		{Name: "insert_json", Signature: "insert_json(namespace, key, value)",
			Description: "Store a value as JSON text under key", Returns: "nil"},
		{Name: "select_json", Signature: "select_json(namespace, key)",
			Description: "Load and parse the JSON stored under key; nil if absent", Returns: "value|nil"},

		{Name: "memory_store", Signature: "memory_store(namespace, content, tags)",
			Description: "Store content with an auto-generated id, embedding, and tag metadata", Returns: "id",
			Example: "memory_store('agent', 'user prefers dark mode', {'preference'})"},
		{Name: "memory_recall", Signature: "memory_recall(namespace, query, k)",
			Description: "Recall the k memories most similar to query", Returns: "list of {id, distance, content, tags, created_at}"},

		{Name: "save", Signature: "save()",
			Description: "Snapshot all vector indexes and flush metadata", Returns: "nil"},
		{Name: "uuid", Signature: "uuid()",
			Description: "Generate a random UUID string", Returns: "string"},
		{Name: "timestamp", Signature: "timestamp()",
			Description: "Current Unix timestamp in seconds", Returns: "number"},
		{Name: "sleep", Signature: "sleep(ms)",
			Description: "Pause for up to the configured maximum", Returns: "nil"},

		{Name: "map", Signature: "map(list, fn)",
			Description: "Transform each list element", Returns: "list",
			Example: "map(items, function(x) return x.name end)"},
		{Name: "filter", Signature: "filter(list, fn)",
			Description: "Keep the list elements for which fn returns true", Returns: "list",
			Example: "filter(items, function(x) return x.age > 18 end)"},
		{Name: "reduce", Signature: "reduce(list, fn, initial)",
			Description: "Fold a list into a single value", Returns: "any",
			Example: "reduce(nums, function(a, b) return a + b end, 0)"},
		{Name: "pretty", Signature: "pretty(value)",
			Description: "Render a value as indented JSON", Returns: "string"},
		{Name: "print", Signature: "print(...)",
			Description: "Write arguments to the host log", Returns: "nil"},
	}
}
