package codec

import (
	"encoding/json"
	"reflect"
)

type jsonCodec struct {
}

func (c *jsonCodec) Name() string {
	return "json"
}

func (c *jsonCodec) Binary() bool {
	return false
}

func (c *jsonCodec) Try(typ reflect.Type) error {
	switch typ.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return &json.UnsupportedTypeError{Type: typ}
	case reflect.Ptr, reflect.Slice, reflect.Array:
		return c.Try(typ.Elem())
	case reflect.Map:
		return c.Try(typ.Elem())
	case reflect.Struct:
		for ii := 0; ii < typ.NumField(); ii++ {
			field := typ.Field(ii)
			if field.PkgPath != "" {
				continue
			}
			if err := c.Try(field.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *jsonCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (c *jsonCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func init() {
	Register(&jsonCodec{})
}
