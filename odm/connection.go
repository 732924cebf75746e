package odm

import (
	"fmt"
	"sync"

	"github.com/rainycape/odm/config"
)

// DefaultAlias is the alias used by applications which
// only need a single connection.
const DefaultAlias = "default"

var connections = struct {
	sync.RWMutex
	byAlias map[string]*ODM
}{
	byAlias: make(map[string]*ODM),
}

// Connect opens a new ODM (see New) and registers it with the
// given alias, so it can be retrieved from anywhere in the
// process using Connection. It returns an error if there's
// already a connection with the same alias.
func Connect(alias string, url *config.URL, opts ...Option) (*ODM, error) {
	connections.Lock()
	defer connections.Unlock()
	if _, ok := connections.byAlias[alias]; ok {
		return nil, fmt.Errorf("there's already a connection with alias %q", alias)
	}
	o, err := New(url, opts...)
	if err != nil {
		return nil, err
	}
	connections.byAlias[alias] = o
	return o, nil
}

// MustConnect works like Connect, but panics if there's an error.
func MustConnect(alias string, url *config.URL, opts ...Option) *ODM {
	o, err := Connect(alias, url, opts...)
	if err != nil {
		panic(err)
	}
	return o
}

// Connection returns the connection registered with the given
// alias, or nil if there's no such connection.
func Connection(alias string) *ODM {
	connections.RLock()
	defer connections.RUnlock()
	return connections.byAlias[alias]
}

// Disconnect closes the connection registered with the given alias
// and removes it.
func Disconnect(alias string) error {
	connections.Lock()
	o := connections.byAlias[alias]
	delete(connections.byAlias, alias)
	connections.Unlock()
	if o == nil {
		return fmt.Errorf("no connection with alias %q", alias)
	}
	return o.Close()
}
