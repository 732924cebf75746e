package codec

import (
	"reflect"

	gocodec "github.com/ugorji/go/codec"
)

var msgpackHandle = &gocodec.MsgpackHandle{}

func init() {
	// Decode raw strings into string, not []byte.
	msgpackHandle.RawToString = true
	msgpackHandle.WriteExt = true
	Register(&msgpackCodec{})
}

type msgpackCodec struct {
}

func (c *msgpackCodec) Name() string {
	return "msgpack"
}

func (c *msgpackCodec) Binary() bool {
	return true
}

func (c *msgpackCodec) Try(typ reflect.Type) error {
	return roundTrip(c, typ)
}

func (c *msgpackCodec) Encode(v interface{}) ([]byte, error) {
	var b []byte
	err := gocodec.NewEncoderBytes(&b, msgpackHandle).Encode(v)
	return b, err
}

func (c *msgpackCodec) Decode(data []byte, v interface{}) error {
	return gocodec.NewDecoderBytes(data, msgpackHandle).Decode(v)
}
