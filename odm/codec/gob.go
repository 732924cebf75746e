package codec

import (
	"bytes"
	"encoding/gob"
	"reflect"
)

type gobCodec struct {
}

func (c *gobCodec) Name() string {
	return "gob"
}

func (c *gobCodec) Binary() bool {
	return true
}

func (c *gobCodec) Try(typ reflect.Type) error {
	return roundTrip(c, typ)
}

func (c *gobCodec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(v)
	return buf.Bytes(), err
}

func (c *gobCodec) Decode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func init() {
	Register(&gobCodec{})
}
