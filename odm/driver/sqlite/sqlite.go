// Package sqlite implements an ODM driver for SQLite, using the
// cgo-free modernc.org/sqlite.
//
// The driver is registered with the sqlite name. The URL value is the
// database path, e.g. sqlite:///var/lib/app/odm.db. Use
// sqlite://:memory: for a private in-memory database.
package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rainycape/odm/config"
	"github.com/rainycape/odm/odm/driver"
	"github.com/rainycape/odm/odm/driver/sql"
)

const memory = ":memory:"

type Backend struct {
	sql.SqlBackend
	memory bool
}

func (b *Backend) Name() string {
	return "sqlite"
}

func (b *Backend) Capabilities() driver.Capability {
	if b.memory {
		return driver.CAP_TRANSACTION
	}
	return driver.CAP_TRANSACTION | driver.CAP_PERSISTENT
}

func (b *Backend) IsDuplicate(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func sqliteOpener(url *config.URL) (driver.Driver, error) {
	path := url.Value
	if path == "" {
		path = memory
	}
	b := &Backend{memory: path == memory}
	dsn := path
	if !b.memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	drv, err := sql.NewDriver(b, dsn, url)
	if err != nil {
		return nil, err
	}
	if b.memory {
		// Every connection to :memory: opens a different database.
		drv.DB().SetMaxOpenConns(1)
	}
	return drv, nil
}

func init() {
	driver.Register("sqlite", sqliteOpener)
	driver.Register("sqlite3", sqliteOpener)
}
