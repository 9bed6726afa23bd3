package query

import "fmt"

const (
	CodeInvalidOperator = "INVALID_OPERATOR"
	CodeInvalidValue    = "INVALID_VALUE"
	CodeNoExecutor      = "NO_EXECUTOR"
)

// Error is a structural query-building failure. It is detected at the
// offending builder call and surfaced by Compile and the terminal methods,
// always before any statement executes.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func invalidOperator(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidOperator, Message: fmt.Sprintf(format, args...)}
}

func invalidValue(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidValue, Message: fmt.Sprintf(format, args...)}
}
