// Package memory implements an in-process ODM driver.
//
// The URL value names the database: every driver opened with the same
// name shares its documents, which outlive the drivers themselves
// (use Drop to remove them). memory:// without a name opens a private
// database. Documents are spread across shards, selected by hashing
// the collection and the document id, so operations on different
// documents rarely contend. The number of shards can be set with the
// shards option e.g. memory://test?shards=64.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/rainycape/odm/config"
	"github.com/rainycape/odm/odm/driver"
)

const defaultShards = 16

var (
	mu        sync.Mutex
	databases = map[string]*database{}
)

type shard struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

type database struct {
	// mu is held exclusively by InsertMany, so bulk inserts are
	// atomic, and shared by every other operation.
	mu     sync.RWMutex
	shards []*shard
}

func newDatabase(shards int) *database {
	db := &database{shards: make([]*shard, shards)}
	for ii := range db.shards {
		db.shards[ii] = &shard{docs: make(map[string][]byte)}
	}
	return db
}

func (db *database) shard(k string) *shard {
	return db.shards[xxhash.Sum64String(k)%uint64(len(db.shards))]
}

// Drop removes the named database and all its documents. Drivers
// already opened with that name keep working on the dropped data.
func Drop(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(databases, name)
}

// Driver is the memory ODM driver.
type Driver struct {
	name string
	db   *database
}

func key(m driver.Model, id string) string {
	return m.Collection() + "\x00" + id
}

func (d *Driver) Check(ctx context.Context) error {
	return nil
}

func (d *Driver) Initialize(ctx context.Context, ms []driver.Model) error {
	return nil
}

func (d *Driver) Get(ctx context.Context, m driver.Model, id string) ([]byte, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()
	k := key(m, id)
	s := d.db.shard(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[k]
	if !ok {
		return nil, driver.ErrNotFound
	}
	return copyBytes(data), nil
}

func (d *Driver) Insert(ctx context.Context, m driver.Model, id string, data []byte) error {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()
	k := key(m, id)
	s := d.db.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[k]; ok {
		return fmt.Errorf("%w: %s", driver.ErrDuplicate, id)
	}
	s.docs[k] = copyBytes(data)
	return nil
}

func (d *Driver) InsertMany(ctx context.Context, m driver.Model, items []driver.Item) error {
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	seen := make(map[string]struct{}, len(items))
	for _, v := range items {
		k := key(m, v.ID)
		if _, ok := seen[k]; ok {
			return fmt.Errorf("%w: %s", driver.ErrDuplicate, v.ID)
		}
		seen[k] = struct{}{}
		if _, ok := d.db.shard(k).docs[k]; ok {
			return fmt.Errorf("%w: %s", driver.ErrDuplicate, v.ID)
		}
	}
	for _, v := range items {
		k := key(m, v.ID)
		d.db.shard(k).docs[k] = copyBytes(v.Data)
	}
	return nil
}

func (d *Driver) Update(ctx context.Context, m driver.Model, id string, data []byte) (bool, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()
	k := key(m, id)
	s := d.db.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[k]; !ok {
		return false, nil
	}
	s.docs[k] = copyBytes(data)
	return true, nil
}

func (d *Driver) Delete(ctx context.Context, m driver.Model, id string) (bool, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()
	k := key(m, id)
	s := d.db.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[k]; !ok {
		return false, nil
	}
	delete(s.docs, k)
	return true, nil
}

// ids returns the sorted ids in the given collection.
func (d *Driver) ids(m driver.Model) []string {
	prefix := m.Collection() + "\x00"
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()
	var ids []string
	for _, s := range d.db.shards {
		s.mu.RLock()
		for k := range s.docs {
			if len(k) > len(prefix) && k[:len(prefix)] == prefix {
				ids = append(ids, k[len(prefix):])
			}
		}
		s.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids
}

func (d *Driver) Count(ctx context.Context, m driver.Model) (uint64, error) {
	return uint64(len(d.ids(m))), nil
}

// Range iterates over the documents present when it was called,
// skipping the ones removed during the iteration.
func (d *Driver) Range(ctx context.Context, m driver.Model, fn driver.RangeFunc) error {
	for _, id := range d.ids(m) {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := d.Get(ctx, m, id)
		if err == driver.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		cont, err := fn(ctx, id, data)
		if err != nil || !cont {
			return err
		}
	}
	return nil
}

func (d *Driver) Capabilities() driver.Capability {
	return driver.CAP_TRANSACTION
}

func (d *Driver) Close() error {
	return nil
}

// Name returns the database name, empty for private databases.
func (d *Driver) Name() string {
	return d.name
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func memoryOpener(url *config.URL) (driver.Driver, error) {
	shards, err := url.Int("shards", defaultShards)
	if err != nil {
		return nil, err
	}
	if shards <= 0 {
		return nil, fmt.Errorf("invalid number of shards %d", shards)
	}
	name := url.Value
	if name == "" {
		return &Driver{db: newDatabase(shards)}, nil
	}
	mu.Lock()
	defer mu.Unlock()
	db := databases[name]
	if db == nil {
		db = newDatabase(shards)
		databases[name] = db
	}
	return &Driver{name: name, db: db}, nil
}

func init() {
	driver.Register("memory", memoryOpener)
}
