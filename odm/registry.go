package odm

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"sync"

	"github.com/rainycape/odm/internal/stringutil"
	"github.com/rainycape/odm/log"
)

var (
	registry = struct {
		sync.RWMutex
		types       map[reflect.Type]*Model
		collections map[string]*Model
	}{
		types:       make(map[reflect.Type]*Model),
		collections: make(map[string]*Model),
	}
	validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Options are used to specify additional options when registering
// a document type.
type Options struct {
	// Collection is the name of the collection where documents
	// are stored. If empty, the type name in snake case is used
	// (e.g. BlogPost is stored in blog_post).
	Collection string
}

// Register registers a document type, which must be a struct (or a
// pointer to a struct) embedding Document. Fields are stored using
// their name in snake case, unless the odm tag specifies a different
// one. The tag also accepts the following options:
//
//	required        the field can't be empty
//	omitempty       empty values are not stored
//	max_length:N    maximum length for strings, slices and maps
//	min_length:N    minimum length for strings, slices and maps
//	choices:a|b|c   allowed values for string fields
//
// Fields tagged with odm:"-" and unexported fields are ignored,
// while fields of embedded structs are promoted to the document.
// opts might be nil.
func Register(doc interface{}, opts *Options) (*Model, error) {
	typ := reflect.TypeOf(doc)
	if typ == nil {
		return nil, fmt.Errorf("can't register nil as a document")
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("only structs can be registered as documents (tried to register %T)", doc)
	}
	if !reflect.PointerTo(typ).Implements(documenterType) {
		return nil, fmt.Errorf("type %v does not embed odm.Document", typ)
	}
	var collection string
	if opts != nil {
		collection = opts.Collection
	}
	if collection == "" {
		collection = stringutil.CamelCaseToLower(typ.Name(), "_")
	}
	if collection == "" {
		return nil, fmt.Errorf("anonymous type %v requires a collection name", typ)
	}
	m := &Model{
		typ:        typ,
		collection: collection,
		byName:     make(map[string]*field),
	}
	if err := m.makeFields(typ, nil); err != nil {
		return nil, err
	}
	if len(m.fields) == 0 {
		return nil, fmt.Errorf("type %v has no fields", typ)
	}
	m.storage = m.makeStorage()
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.types[typ]; ok {
		return nil, fmt.Errorf("type %v is already registered", typ)
	}
	if prev := registry.collections[collection]; prev != nil {
		return nil, fmt.Errorf("duplicate collection %q (used by %v and %v)", collection, prev.typ, typ)
	}
	registry.types[typ] = m
	registry.collections[collection] = m
	log.Debugf("Registered model %v with collection %q", typ, collection)
	return m, nil
}

// MustRegister works like Register, but panics if there's an
// error.
func MustRegister(doc interface{}, opts *Options) *Model {
	m, err := Register(doc, opts)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Model) makeFields(typ reflect.Type, index []int) error {
	n := typ.NumField()
	for ii := 0; ii < n; ii++ {
		sf := typ.Field(ii)
		idx := make([]int, len(index), len(index)+1)
		copy(idx, index)
		idx = append(idx, ii)
		if sf.Anonymous {
			if sf.Type == documentType {
				continue
			}
			if sf.Type.Kind() == reflect.Struct && sf.Tag.Get("odm") == "" {
				// Embedded struct, promote its fields
				if err := m.makeFields(sf.Type, idx); err != nil {
					return err
				}
				continue
			}
		}
		if sf.PkgPath != "" {
			// Unexported
			continue
		}
		tag, err := ParseTag(sf)
		if err != nil {
			return fmt.Errorf("field %s in struct %v: %w", sf.Name, m.typ, err)
		}
		name := tag.Name()
		if name == "-" {
			continue
		}
		if name == "" {
			name = stringutil.CamelCaseToLower(sf.Name, "_")
		}
		if !validName.MatchString(name) {
			return fmt.Errorf("field %s in struct %v has invalid name %q", sf.Name, m.typ, name)
		}
		if _, ok := m.byName[name]; ok {
			return fmt.Errorf("duplicate field %q in struct %v", name, m.typ)
		}
		switch sf.Type.Kind() {
		case reflect.Chan, reflect.Func, reflect.UnsafePointer:
			return fmt.Errorf("field %s in struct %v has invalid type %v", sf.Name, m.typ, sf.Type)
		}
		f := &field{
			name:      name,
			goName:    sf.Name,
			index:     idx,
			typ:       sf.Type,
			required:  tag.Required(),
			omitEmpty: tag.OmitEmpty(),
			choices:   tag.Choices(),
		}
		if err := f.setLengths(tag); err != nil {
			return fmt.Errorf("field %s in struct %v: %w", sf.Name, m.typ, err)
		}
		base := sf.Type
		for base.Kind() == reflect.Ptr {
			base = base.Elem()
		}
		if (f.maxLength >= 0 || f.minLength >= 0) && !hasLength(base) {
			return fmt.Errorf("field %s in struct %v: length limits can't be used with %v", sf.Name, m.typ, sf.Type)
		}
		if len(f.choices) > 0 && base.Kind() != reflect.String {
			return fmt.Errorf("field %s in struct %v: choices can only be used with strings", sf.Name, m.typ)
		}
		m.fields = append(m.fields, f)
		m.byName[name] = f
	}
	return nil
}

func (f *field) setLengths(tag *Tag) error {
	f.maxLength, f.minLength = -1, -1
	if n, ok, err := tag.IntValue("max_length"); err != nil {
		return err
	} else if ok {
		f.maxLength = n
	}
	if n, ok, err := tag.IntValue("min_length"); err != nil {
		return err
	} else if ok {
		f.minLength = n
	}
	if f.maxLength >= 0 && f.minLength > f.maxLength {
		return fmt.Errorf("min_length %d is greater than max_length %d", f.minLength, f.maxLength)
	}
	return nil
}

func hasLength(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return true
	}
	return false
}

// makeStorage returns the struct type used for encoding documents
// of this model. Its fields are named after the field names, which
// are also used in the tags read by the codecs.
func (m *Model) makeStorage() reflect.Type {
	fields := make([]reflect.StructField, len(m.fields))
	for ii, v := range m.fields {
		opts := ""
		if v.omitEmpty {
			opts = ",omitempty"
		}
		fields[ii] = reflect.StructField{
			Name: "F_" + v.name,
			Type: v.typ,
			Tag:  reflect.StructTag(fmt.Sprintf(`json:"%[1]s%[2]s" codec:"%[1]s%[2]s" bson:"%[1]s%[2]s"`, v.name, opts)),
		}
	}
	return reflect.StructOf(fields)
}

func modelOf(typ reflect.Type) *Model {
	registry.RLock()
	defer registry.RUnlock()
	return registry.types[typ]
}

// ModelOf returns the model for the given document, which might
// be a struct or a pointer to a struct.
func ModelOf(doc interface{}) (*Model, error) {
	typ := reflect.TypeOf(doc)
	if typ == nil {
		return nil, ErrNotRegistered
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if m := modelOf(typ); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("%v: %w", typ, ErrNotRegistered)
}

// Lookup returns the model stored in the given collection,
// or nil if there's no such model.
func Lookup(collection string) *Model {
	registry.RLock()
	defer registry.RUnlock()
	return registry.collections[collection]
}

// Models returns all the registered models, sorted by
// collection name.
func Models() []*Model {
	registry.RLock()
	models := make([]*Model, 0, len(registry.collections))
	for _, v := range registry.collections {
		models = append(models, v)
	}
	registry.RUnlock()
	sort.Slice(models, func(i, j int) bool {
		return models[i].collection < models[j].collection
	})
	return models
}
