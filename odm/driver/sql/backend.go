package sql

import (
	"database/sql"
	"strconv"

	"github.com/rainycape/odm/odm/driver"
)

// Backend is the interface implemented by the database/sql
// based drivers.
type Backend interface {
	// Name passed to database/sql.Open
	Name() string
	// Check performs any required sanity checks on the connection.
	Check(*sql.DB) error
	// Capabilities returns the backend capabilities.
	Capabilities() driver.Capability
	// Placeholder returns the placeholder for the n'th parameter,
	// starting at 1.
	Placeholder(n int) string
	// IDType and DataType return the column types used for the
	// document id and its encoded data.
	IDType() string
	DataType() string
	// IsDuplicate returns true iff err was caused by a primary
	// key violation.
	IsDuplicate(err error) bool
}

// SqlBackend implements the parts of Backend shared by most
// databases. Backends should embed it and override what differs.
type SqlBackend struct {
}

func (b *SqlBackend) Check(db *sql.DB) error {
	return db.Ping()
}

func (b *SqlBackend) Capabilities() driver.Capability {
	return driver.CAP_TRANSACTION | driver.CAP_PERSISTENT
}

func (b *SqlBackend) Placeholder(n int) string {
	return "?"
}

func (b *SqlBackend) IDType() string {
	return "TEXT"
}

func (b *SqlBackend) DataType() string {
	return "BLOB"
}

// NumberedPlaceholder returns $n, for backends using numbered
// placeholders.
func NumberedPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}
