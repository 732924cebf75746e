// Package postgres implements an ODM driver for PostgreSQL using
// github.com/lib/pq.
//
// The driver is registered with the postgres name. The URL value is
// passed to lib/pq, either as key=value pairs e.g.
// postgres://dbname=odm user=odm sslmode=disable or in URL form
// e.g. postgres://odm@localhost/odm.
package postgres

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/rainycape/odm/config"
	"github.com/rainycape/odm/odm/driver"
	"github.com/rainycape/odm/odm/driver/sql"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type Backend struct {
	sql.SqlBackend
}

func (b *Backend) Name() string {
	return "postgres"
}

func (b *Backend) Placeholder(n int) string {
	return sql.NumberedPlaceholder(n)
}

func (b *Backend) DataType() string {
	return "BYTEA"
}

func (b *Backend) IsDuplicate(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == uniqueViolation
}

var postgresBackend = &Backend{}

func postgresOpener(url *config.URL) (driver.Driver, error) {
	dsn := url.Value
	if !strings.Contains(dsn, "=") {
		// user:pass@host/dbname form
		dsn = "postgres://" + dsn
	}
	return sql.NewDriver(postgresBackend, dsn, url)
}

func init() {
	driver.Register("postgres", postgresOpener)
	driver.Register("postgresql", postgresOpener)
}
