package employees

import (
	"errors"
	"fmt"
	"strings"
)

// Client-facing messages that are not field validation messages.
const (
	MsgNotFound       = "Employee not found"
	MsgServerError    = "Server error"
	MsgDeleted        = "Employee deleted"
	MsgBodyNotObject  = "Request body must be a JSON object."
	MsgBodyUnreadable = "Request body could not be read."
)

// ErrNotFound is returned when no employee has the requested id.
var ErrNotFound = errors.New("employee not found")

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// InvalidIDError is returned when the id path parameter is malformed.
type InvalidIDError struct {
	Message string
}

func (e *InvalidIDError) Error() string {
	return e.Message
}

// StoreError wraps a persistence failure. Its detail is logged, never sent
// to the client.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
