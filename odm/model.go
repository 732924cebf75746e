package odm

import (
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/rainycape/odm/odm/codec"
)

type field struct {
	name      string
	goName    string
	index     []int
	typ       reflect.Type
	required  bool
	omitEmpty bool
	// -1 when not set
	maxLength int
	minLength int
	choices   []string
}

func (f *field) length(v reflect.Value) (int, bool) {
	switch v.Kind() {
	case reflect.String:
		return utf8.RuneCountInString(v.String()), true
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len(), true
	}
	return 0, false
}

func (f *field) validate(v reflect.Value) string {
	if isEmpty(v) {
		if f.required {
			return "field is required"
		}
		return ""
	}
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if n, ok := f.length(v); ok {
		if f.maxLength >= 0 && n > f.maxLength {
			return fmt.Sprintf("length %d is greater than %d", n, f.maxLength)
		}
		if f.minLength >= 0 && n < f.minLength {
			return fmt.Sprintf("length %d is lower than %d", n, f.minLength)
		}
	}
	if len(f.choices) > 0 {
		s := v.String()
		for _, c := range f.choices {
			if c == s {
				return ""
			}
		}
		return fmt.Sprintf("%q is not a valid choice %q", s, f.choices)
	}
	return ""
}

// isEmpty reports whether v is missing: an empty string, slice or
// map, or a nil pointer or interface. Other kinds, like numbers,
// booleans and structs, are never missing, so 0 and false satisfy
// required.
func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Model is a registered document type. Models are used as the
// sender of the lifecycle signals.
type Model struct {
	typ        reflect.Type
	collection string
	fields     []*field
	byName     map[string]*field
	// storage is the struct type used for encoding the
	// document fields.
	storage reflect.Type
}

// Collection returns the name of the collection where
// documents of this model are stored.
func (m *Model) Collection() string {
	return m.collection
}

// Type returns the document struct type.
func (m *Model) Type() reflect.Type {
	return m.typ
}

// Name returns the name of the document type.
func (m *Model) Name() string {
	return m.typ.Name()
}

func (m *Model) String() string {
	return m.typ.Name()
}

// Fields returns the names of the document fields, in
// declaration order.
func (m *Model) Fields() []string {
	names := make([]string, len(m.fields))
	for ii, v := range m.fields {
		names[ii] = v.name
	}
	return names
}

// HasField returns true iff the model has a field with
// the given name.
func (m *Model) HasField(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// New returns a pointer to a new empty document of this model.
func (m *Model) New() interface{} {
	return reflect.New(m.typ).Interface()
}

func (m *Model) newDocument() (interface{}, reflect.Value, Documenter) {
	ptr := reflect.New(m.typ)
	doc := ptr.Interface()
	return doc, ptr.Elem(), doc.(Documenter)
}

// validate validates val, which must be a document of this model.
func (m *Model) validate(val reflect.Value, doc interface{}) error {
	var errs []error
	for _, f := range m.fields {
		if msg := f.validate(val.FieldByIndex(f.index)); msg != "" {
			errs = append(errs, &ValidationError{Model: m.Name(), Field: f.name, Message: msg})
		}
	}
	if len(errs) == 0 {
		if v, ok := doc.(Validator); ok {
			if err := v.Validate(); err != nil {
				var verr *ValidationError
				if errors.As(err, &verr) {
					return err
				}
				return &ValidationError{Model: m.Name(), Message: err.Error()}
			}
		}
		return nil
	}
	return errors.Join(errs...)
}

func (m *Model) encode(c codec.Codec, val reflect.Value) ([]byte, error) {
	st := reflect.New(m.storage)
	elem := st.Elem()
	for ii, f := range m.fields {
		elem.Field(ii).Set(val.FieldByIndex(f.index))
	}
	data, err := c.Encode(st.Interface())
	if err != nil {
		return nil, fmt.Errorf("encoding %s with %s: %w", m, c.Name(), err)
	}
	return data, nil
}

// decode sets every field in val from data, including the ones
// missing from data, which are set to their zero value.
func (m *Model) decode(c codec.Codec, data []byte, val reflect.Value) error {
	st := reflect.New(m.storage)
	if err := c.Decode(data, st.Interface()); err != nil {
		return fmt.Errorf("decoding %s with %s: %w", m, c.Name(), err)
	}
	elem := st.Elem()
	for ii, f := range m.fields {
		val.FieldByIndex(f.index).Set(elem.Field(ii))
	}
	return nil
}
