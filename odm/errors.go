package odm

import (
	"errors"
	"fmt"

	"github.com/rainycape/odm/odm/driver"
)

var (
	// ErrNotFound is returned when the document does not exist.
	ErrNotFound = driver.ErrNotFound
	// ErrDuplicate is returned when inserting a document with
	// an id which already exists.
	ErrDuplicate = driver.ErrDuplicate
	// ErrNoID is returned when an operation requires a saved
	// document and the document has no id.
	ErrNoID = errors.New("document has no id")
	// ErrNotRegistered is returned when the document type has not
	// been registered.
	ErrNotRegistered = errors.New("type is not a registered document")
	// ErrClosed is returned when using an ODM after calling Close.
	ErrClosed = errors.New("odm is closed")
	// Stop can be returned from functions passed to ODM.Each to stop
	// the iteration without returning any error from Each.
	Stop = errors.New("stop iteration")
)

// ValidationError is returned when a document field has an
// invalid value. When several fields are invalid, the errors
// are combined with errors.Join. Use errors.As to retrieve them.
type ValidationError struct {
	// Model is the name of the document model.
	Model string
	// Field is the name of the invalid field. It's empty
	// for errors returned by Validator.
	Field string
	// Message describes the error.
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Model, e.Message)
	}
	return fmt.Sprintf("invalid %s.%s: %s", e.Model, e.Field, e.Message)
}
