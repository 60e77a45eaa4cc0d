package script

import (
	"fmt"
	"strings"
)

// ValidationKind is the closed set of validation error kinds.
type ValidationKind string

const (
	KindSyntaxError       ValidationKind = "syntax_error"
	KindForbiddenFunction ValidationKind = "forbidden_function"
	KindUndefinedVariable ValidationKind = "undefined_variable"
	KindTypeMismatch      ValidationKind = "type_mismatch"
	KindMissingReturn     ValidationKind = "missing_return"
)

// ValidationError is one validation finding with machine-caller-friendly
// details. Validation errors are advisory and never abort anything by
// themselves.
type ValidationError struct {
	Kind        ValidationKind `json:"kind"`
	Message     string         `json:"message"`
	Line        int            `json:"line,omitempty"` // 1-indexed, 0 if unknown
	Suggestion  string         `json:"suggestion"`
	CodeSnippet string         `json:"code_snippet,omitempty"`
}

// WarningKind is the closed set of non-fatal warning kinds.
type WarningKind string

const (
	WarnMissingReturn WarningKind = "missing_return"
)

// ValidationWarning is a non-fatal finding.
type ValidationWarning struct {
	Kind       WarningKind `json:"kind"`
	Message    string      `json:"message"`
	Line       int         `json:"line,omitempty"`
	Suggestion string      `json:"suggestion"`
}

func missingReturnWarning() ValidationWarning {
	return ValidationWarning{
		Kind:       WarnMissingReturn,
		Message:    "script has no explicit return statement",
		Suggestion: "Add 'return <value>' at the end to return a result.",
	}
}

// FunctionInfo describes one catalog function, attached to every
// ValidationResult so machine callers can discover the available surface.
type FunctionInfo struct {
	Name        string `json:"name"`
	Signature   string `json:"signature"`
	Description string `json:"description"`
	Returns     string `json:"returns"`
	Example     string `json:"example,omitempty"`
}

// ValidationResult is the outcome of validating a script without executing
// it. Produced fresh per call; never persisted.
type ValidationResult struct {
	Valid              bool                `json:"valid"`
	Errors             []ValidationError   `json:"errors"`
	Warnings           []ValidationWarning `json:"warnings"`
	AvailableFunctions []FunctionInfo      `json:"available_functions"`
}

// RuntimeKind is the closed set of terminal execution error kinds. The kinds
// are distinct enough that a caller can tell "resource absent" apart from
// "not permitted to know".
type RuntimeKind string

const (
	RuntimeNamespaceNotFound   RuntimeKind = "namespace_not_found"
	RuntimeKeyNotFound         RuntimeKind = "key_not_found"
	RuntimeTypeError           RuntimeKind = "type_error"
	RuntimeAuthorizationDenied RuntimeKind = "authorization_denied"
	RuntimeTimeout             RuntimeKind = "timeout"
	RuntimeGeneric             RuntimeKind = "generic"
)

// RuntimeError is the single structured error returned when script
// evaluation aborts. The first error raised anywhere in evaluation is
// terminal; no partial result is returned.
type RuntimeError struct {
	Kind       RuntimeKind `json:"kind"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion"`
	Traceback  string      `json:"traceback,omitempty"`
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NamespaceNotFoundError builds a namespace-not-found error whose suggestion
// names the namespaces that do exist.
func NamespaceNotFoundError(name string, available []string) *RuntimeError {
	suggestion := "No namespaces exist. Create one first with create_namespace()."
	if len(available) > 0 {
		suggestion = fmt.Sprintf("Available namespaces: %s. Use one of these or create %q.",
			strings.Join(available, ", "), name)
	}
	return &RuntimeError{
		Kind:       RuntimeNamespaceNotFound,
		Message:    fmt.Sprintf("namespace %q not found", name),
		Suggestion: suggestion,
	}
}

// KeyNotFoundError builds a key-not-found error.
func KeyNotFoundError(key, namespace string) *RuntimeError {
	return &RuntimeError{
		Kind:       RuntimeKeyNotFound,
		Message:    fmt.Sprintf("key %q not found in namespace %q", key, namespace),
		Suggestion: "Check that the key exists. get() returns nil for missing keys; store a value first with put().",
	}
}

// TypeError builds a type error for a mismatched value in context.
func TypeError(expected, got, context string) *RuntimeError {
	return &RuntimeError{
		Kind:       RuntimeTypeError,
		Message:    fmt.Sprintf("type error in %s: expected %s, got %s", context, expected, got),
		Suggestion: fmt.Sprintf("Convert the value to %s or use a different function.", expected),
	}
}

// UnauthorizedError builds an authorization-denied error naming the denied
// operation.
func UnauthorizedError(function, principal string) *RuntimeError {
	return &RuntimeError{
		Kind:       RuntimeAuthorizationDenied,
		Message:    fmt.Sprintf("principal %q is not authorized to call %q", principal, function),
		Suggestion: "Contact an administrator to grant permission for this operation.",
	}
}

// TimeoutError builds a timeout error.
func TimeoutError() *RuntimeError {
	return &RuntimeError{
		Kind:       RuntimeTimeout,
		Message:    "execution deadline exceeded",
		Suggestion: "Simplify the script or process data in smaller batches.",
	}
}

// GenericError wraps an arbitrary failure as a generic runtime error.
func GenericError(message string) *RuntimeError {
	return &RuntimeError{
		Kind:       RuntimeGeneric,
		Message:    message,
		Suggestion: "Check the script for errors. Ensure all functions are called correctly.",
	}
}
