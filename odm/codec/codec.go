package codec

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	mu       sync.RWMutex
	registry = map[string]Codec{}
)

// Codec encodes and decodes documents. Encode receives a pointer to
// a struct and Decode a pointer to a zero struct of the same type.
type Codec interface {
	// Name returns the codec name, used to select it in the
	// codec option of the database URL.
	Name() string
	// Binary returns true iff the encoded data might not be
	// valid UTF-8.
	Binary() bool
	// Try returns an error if values of the given type can't
	// be encoded and decoded.
	Try(typ reflect.Type) error
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// Register adds a new codec. It panics if there's already a codec
// with the same name.
func Register(c Codec) {
	name := c.Name()
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; ok {
		panic(fmt.Errorf("there's already a codec named %q", name))
	}
	registry[name] = c
}

// Get returns the codec with the given name, or nil.
func Get(name string) Codec {
	mu.RLock()
	defer mu.RUnlock()
	return registry[name]
}

// Names returns the names of the registered codecs, sorted.
func Names() []string {
	mu.RLock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	mu.RUnlock()
	sort.Strings(names)
	return names
}

// roundTrip encodes a zero value of typ and decodes it back.
func roundTrip(c Codec, typ reflect.Type) error {
	val := reflect.New(typ)
	b, err := c.Encode(val.Interface())
	if err != nil {
		return fmt.Errorf("%s codec can't encode %v: %w", c.Name(), typ, err)
	}
	if err := c.Decode(b, reflect.New(typ).Interface()); err != nil {
		return fmt.Errorf("%s codec can't decode %v: %w", c.Name(), typ, err)
	}
	return nil
}
