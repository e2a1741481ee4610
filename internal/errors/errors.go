// Package errors defines the proxy-level error taxonomy and the reserved
// exit codes that go with it. Errors raised by the wrapped tool itself are
// never represented here; they pass through as the tool's own exit code.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies a class of proxy failure.
type Code string

const (
	CodeToolNotFound   Code = "TOOL_NOT_FOUND"  // exit 200
	CodeSpawnFailed    Code = "SPAWN_FAILED"    // exit 201
	CodeUnsafeArgument Code = "UNSAFE_ARGUMENT" // exit 202
	CodeInternal       Code = "INTERNAL"        // exit 202
)

// Reserved exit codes. They sit outside 0-127 and above the 128+signal
// range so they never collide with a wrapped tool's own codes.
const (
	ExitToolNotFound = 200
	ExitSpawnFailed  = 201
	ExitInternal     = 202
)

// ProxyError is a failure of the proxy itself rather than the wrapped tool.
type ProxyError struct {
	Code    Code
	Tool    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ProxyError) Unwrap() error { return e.Err }

// ExitCode maps the error code to its reserved process exit code.
func (e *ProxyError) ExitCode() int {
	switch e.Code {
	case CodeToolNotFound:
		return ExitToolNotFound
	case CodeSpawnFailed:
		return ExitSpawnFailed
	default:
		return ExitInternal
	}
}

// NewToolNotFound reports that tool is not on the search path.
func NewToolNotFound(tool string, err error) *ProxyError {
	return &ProxyError{
		Code:    CodeToolNotFound,
		Tool:    tool,
		Message: fmt.Sprintf("%s: command not found", tool),
		Err:     err,
	}
}

// NewSpawnFailed reports that the child process could not be started.
func NewSpawnFailed(tool string, err error) *ProxyError {
	return &ProxyError{
		Code:    CodeSpawnFailed,
		Tool:    tool,
		Message: fmt.Sprintf("cannot start %s", tool),
		Err:     err,
	}
}

// NewUnsafeArgument reports an argument that cannot be passed safely.
func NewUnsafeArgument(tool string, index int, reason string) *ProxyError {
	return &ProxyError{
		Code:    CodeUnsafeArgument,
		Tool:    tool,
		Message: fmt.Sprintf("argument %d: %s", index, reason),
	}
}

// NewInternal wraps an unexpected proxy failure.
func NewInternal(err error) *ProxyError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ProxyError{Code: CodeInternal, Message: msg, Err: err}
}

// Is reports whether err (or anything it wraps) is a ProxyError with code.
func Is(err error, code Code) bool {
	var pErr *ProxyError
	if stderrors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}

// ExitCode returns the reserved exit code for err, or ExitInternal when err
// is not a ProxyError.
func ExitCode(err error) int {
	var pErr *ProxyError
	if stderrors.As(err, &pErr) {
		return pErr.ExitCode()
	}
	return ExitInternal
}
