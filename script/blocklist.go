package script

// BlockedFunction pairs a forbidden Lua pattern with the suggestion shown to
// the caller when it appears in a script.
type BlockedFunction struct {
	Pattern    string
	Suggestion string
}

// Blocklist returns the forbidden function table. The same globals are also
// removed from the sandbox at runtime; the static scan exists so scripts fail
// fast with an actionable message instead of a nil-call error.
func Blocklist() []BlockedFunction {
	return []BlockedFunction{
		{"io.open", "File I/O is not allowed. Store data using put() instead."},
		{"io.read", "File I/O is not allowed. Retrieve data using get() instead."},
		{"io.write", "File I/O is not allowed. Store data using put() instead."},
		{"io.lines", "File I/O is not allowed. Retrieve data using get() or scan() instead."},
		{"os.execute", "System commands are not allowed for security."},
		{"os.remove", "File deletion is not allowed. Use delete() for keys."},
		{"os.rename", "File operations are not allowed."},
		{"os.exit", "Exiting is not allowed."},
		{"os.getenv", "Environment access is not allowed."},
		{"require", "Loading external modules is not allowed."},
		{"loadfile", "Loading files is not allowed."},
		{"dofile", "Executing files is not allowed."},
		{"load", "Loading code strings is not allowed."},
		{"loadstring", "Loading code strings is not allowed."},
		{"debug.getinfo", "Debug functions are not allowed."},
		{"debug.sethook", "Debug functions are not allowed."},
		{"debug.traceback", "Debug functions are not allowed."},
		{"rawget", "Raw table access is not allowed. Use normal indexing."},
		{"rawset", "Raw table access is not allowed. Use normal indexing."},
		{"setmetatable", "Metatable manipulation is not allowed."},
		{"getmetatable", "Metatable access is not allowed."},
		{"setfenv", "Environment manipulation is not allowed."},
		{"getfenv", "Environment access is not allowed."},
		{"collectgarbage", "Garbage collector control is not allowed."},
	}
}
