package odm

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/rainycape/odm/internal/stringutil"
)

// Tag is a parsed odm struct tag, e.g.
//
//	odm:"name,required,max_length:40,choices:poet|playwright"
type Tag struct {
	name   string
	values map[string]string
}

var tagOptions = map[string]bool{
	"required":   false,
	"omitempty":  false,
	"max_length": true,
	"min_length": true,
	"choices":    true,
}

// ParseTag parses the odm tag from the given struct field.
// It returns an error for unknown options or options
// missing their value.
func ParseTag(field reflect.StructField) (*Tag, error) {
	return parseTag(field.Tag.Get("odm"))
}

func parseTag(tag string) (*Tag, error) {
	fields := stringutil.SplitQuoted(tag, ',')
	t := &Tag{name: fields[0], values: make(map[string]string, len(fields)-1)}
	for _, v := range fields[1:] {
		if v == "" {
			continue
		}
		key, value := v, ""
		hasValue := false
		if idx := strings.IndexByte(v, ':'); idx >= 0 {
			key, value = v[:idx], stringutil.Unquote(v[idx+1:])
			hasValue = true
		}
		needsValue, ok := tagOptions[key]
		if !ok {
			return nil, fmt.Errorf("unknown option %q in tag %q", key, tag)
		}
		if needsValue && (!hasValue || value == "") {
			return nil, fmt.Errorf("option %q in tag %q requires a value", key, tag)
		}
		t.values[key] = value
	}
	return t, nil
}

func (t *Tag) Name() string {
	return t.name
}

func (t *Tag) Has(opt string) bool {
	_, ok := t.values[opt]
	return ok
}

func (t *Tag) Value(key string) string {
	return t.values[key]
}

// IntValue returns the value for the given key as an int. The
// second return value indicates if the key was present.
func (t *Tag) IntValue(key string) (int, bool, error) {
	v, ok := t.values[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, true, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, true, nil
}

func (t *Tag) Required() bool {
	return t.Has("required")
}

func (t *Tag) OmitEmpty() bool {
	return t.Has("omitempty")
}

// Choices returns the allowed values separated by |, or nil.
func (t *Tag) Choices() []string {
	if v := t.Value("choices"); v != "" {
		return strings.Split(v, "|")
	}
	return nil
}

func (t *Tag) IsEmpty() bool {
	return t.name == "" && len(t.values) == 0
}
