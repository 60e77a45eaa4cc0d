// Package liath provides an embeddable scriptable database for AI agents.
//
// Liath pairs a key-value store with a vector similarity index per namespace
// and lets untrusted callers operate on both through sandboxed Lua scripts.
// Scripts run in a restricted interpreter with a fixed catalog of host
// functions; every catalog call is authorized against the calling principal,
// and the script's single return value is coerced to a transport string.
//
// # Quick Start
//
//	db, err := liath.Open("./data")
//	if err != nil {
//		panic(err)
//	}
//	defer db.Close()
//
//	result, err := db.Execute(ctx, `
//		create_namespace('notes', 384, 'cosine', 'f32')
//		put('notes', 'greeting', 'hello world')
//		return get('notes', 'greeting')
//	`, "admin")
//
// Scripts can be validated without running them:
//
//	report := db.Validate("return io.open('/etc/passwd')")
//	// report.Valid == false, with a structured explanation and the
//	// full catalog of functions the script could have used.
//
// # Authorization
//
// Each catalog function checks the calling principal on every invocation.
// Open seeds an "admin" principal with the full permission set; manage other
// principals through Auth():
//
//	db.Auth().AddUser("agent-7", []string{"get", "put", "scan"})
//
// # Durability
//
// Key-value data is durable immediately. Vector indexes live in memory and
// are snapshotted by save() in a script, db.Save(), or db.Close().
package liath
