// Package driver defines the interface implemented by ODM storage
// drivers and the registry used to open them by name.
package driver

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rainycape/odm/config"
)

var (
	// ErrNotFound is returned when the requested document does
	// not exist.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned by Insert and InsertMany when a
	// document with the same id already exists in the collection.
	ErrDuplicate = errors.New("duplicate document id")
)

var (
	mu       sync.RWMutex
	registry = map[string]Opener{}
)

// Opener returns a new driver for the given configuration URL. The
// URL scheme is the name the opener was registered with.
type Opener func(url *config.URL) (Driver, error)

// Model is the information about a document model a driver needs.
type Model interface {
	// Collection returns the name of the collection (table) where
	// documents of this model are stored.
	Collection() string
}

// Item is a document as seen by a driver: its id and encoded data.
type Item struct {
	ID   string
	Data []byte
}

// RangeFunc is called by Driver.Range for every document. Returning
// false stops the iteration.
type RangeFunc func(ctx context.Context, id string, data []byte) (bool, error)

// Driver is implemented by the ODM storage backends. Drivers must be
// safe for concurrent use.
type Driver interface {
	// Check verifies that the storage is reachable.
	Check(ctx context.Context) error
	// Initialize prepares the storage for the given models (e.g.
	// creates the tables). It must be idempotent.
	Initialize(ctx context.Context, models []Model) error
	// Get returns the data for the document with the given id or
	// ErrNotFound.
	Get(ctx context.Context, m Model, id string) ([]byte, error)
	// Insert stores a new document. If the id already exists,
	// ErrDuplicate must be returned.
	Insert(ctx context.Context, m Model, id string, data []byte) error
	// InsertMany stores several new documents. Drivers with
	// CAP_TRANSACTION either insert all of them or none.
	InsertMany(ctx context.Context, m Model, items []Item) error
	// Update replaces the data of an existing document. It returns
	// false if the document does not exist.
	Update(ctx context.Context, m Model, id string, data []byte) (bool, error)
	// Delete removes a document, returning false if it did not
	// exist.
	Delete(ctx context.Context, m Model, id string) (bool, error)
	// Count returns the number of documents in the collection.
	Count(ctx context.Context, m Model) (uint64, error)
	// Range calls fn for every document in the collection, sorted
	// by id.
	Range(ctx context.Context, m Model, fn RangeFunc) error
	// Capabilities returns the capabilities of this driver.
	Capabilities() Capability
	Close() error
}

// Register makes a driver available by the provided name. It panics
// if a driver with the same name was already registered.
func Register(name string, opener Opener) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; ok {
		panic("there's already a driver named " + name)
	}
	registry[name] = opener
}

// Get returns the opener registered with the given name, or nil.
func Get(name string) Opener {
	mu.RLock()
	defer mu.RUnlock()
	return registry[name]
}

// Names returns the names of the registered drivers, sorted.
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
