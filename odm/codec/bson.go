package codec

import (
	"reflect"

	"gopkg.in/mgo.v2/bson"
)

func init() {
	Register(&bsonCodec{})
}

// bsonCodec encodes documents as BSON, the format used by MongoDB.
// Times are stored with millisecond precision and decoded in the
// local time zone.
type bsonCodec struct {
}

func (c *bsonCodec) Name() string {
	return "bson"
}

func (c *bsonCodec) Binary() bool {
	return true
}

func (c *bsonCodec) Try(typ reflect.Type) error {
	return roundTrip(c, typ)
}

func (c *bsonCodec) Encode(v interface{}) ([]byte, error) {
	return bson.Marshal(v)
}

func (c *bsonCodec) Decode(data []byte, v interface{}) error {
	return bson.Unmarshal(data, v)
}
