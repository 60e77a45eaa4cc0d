package liath

import (
	"errors"

	"github.com/liathdb/liath/script"
)

var (
	// ErrClosed is returned by operations on a closed database.
	ErrClosed = errors.New("database is closed")

	// ErrDataDirLocked is returned by Open when another process holds the
	// data directory.
	ErrDataDirLocked = errors.New("data directory is locked by another process")
)

// Re-exported script types so most callers only import this package.
type (
	// RuntimeError is the structured terminal error of Execute.
	RuntimeError = script.RuntimeError

	// ValidationResult is the outcome of Validate.
	ValidationResult = script.ValidationResult

	// FunctionInfo describes one catalog function.
	FunctionInfo = script.FunctionInfo
)
