package odm

import (
	"reflect"
)

var (
	documentType   = reflect.TypeOf(Document{})
	documenterType = reflect.TypeOf((*Documenter)(nil)).Elem()
)

// Document must be embedded in every document type. It holds the
// document id, which is assigned when the document is first saved.
type Document struct {
	ID string
}

// DocumentID returns the document id, or an empty string
// if it hasn't been saved yet.
func (d *Document) DocumentID() string {
	return d.ID
}

// SetDocumentID sets the document id.
func (d *Document) SetDocumentID(id string) {
	d.ID = id
}

// Documenter is implemented by pointers to types which embed
// Document.
type Documenter interface {
	DocumentID() string
	SetDocumentID(id string)
}

// Validator might be implemented by documents which need
// to perform validations which can't be expressed with
// tags. Validate is called after the fields have been
// validated, before a document is written.
type Validator interface {
	Validate() error
}
