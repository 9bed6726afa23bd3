package record

import "fmt"

const (
	CodeInvalidRelationship = "INVALID_RELATIONSHIP"
	CodePersistenceError    = "PERSISTENCE_ERROR"
	CodeNotPersisted        = "NOT_PERSISTED"
	CodeUnknownModel        = "UNKNOWN_MODEL"
	CodeNotFound            = "NOT_FOUND"
)

// Error is a typed engine failure. Validation failures never surface as an
// Error; they come back as a false Save/Delete result plus the record's
// error map. PersistenceError wraps the driver error so callers can still
// errors.Is/As against sentinel and driver types.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidRelationship(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidRelationship, Message: fmt.Sprintf(format, args...)}
}

func persistenceError(op string, err error) *Error {
	return &Error{Code: CodePersistenceError, Message: op, Err: err}
}
