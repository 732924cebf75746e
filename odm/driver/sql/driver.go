// Package sql implements an ODM driver on top of database/sql. It's
// not used directly, the sqlite and postgres drivers provide a Backend
// and register themselves.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rainycape/odm/config"
	"github.com/rainycape/odm/log"
	"github.com/rainycape/odm/odm/driver"
)

// rangePageSize is the number of documents fetched by each query
// in Range. Rows are closed before calling the RangeFunc, so it can
// use the driver too.
const rangePageSize = 100

// Driver stores each collection in a table with two columns, id
// and data.
type Driver struct {
	db      *sql.DB
	logger  *log.Logger
	backend Backend
}

// NewDriver opens a new database/sql connection using the given Backend.
// dsn is passed verbatim to sql.Open, while the max_conns and
// max_idle_conns URL options tune the connection pool.
func NewDriver(b Backend, dsn string, url *config.URL) (*Driver, error) {
	maxConns, err := url.Int("max_conns", 0)
	if err != nil {
		return nil, err
	}
	maxIdle, err := url.Int("max_idle_conns", -1)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(b.Name(), dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		conn.SetMaxOpenConns(maxConns)
	}
	if maxIdle >= 0 {
		conn.SetMaxIdleConns(maxIdle)
	}
	return &Driver{db: conn, backend: b}, nil
}

func (d *Driver) Check(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return err
	}
	return d.backend.Check(d.db)
}

func (d *Driver) Initialize(ctx context.Context, ms []driver.Model) error {
	for _, v := range ms {
		query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id %s PRIMARY KEY, data %s NOT NULL)",
			quote(v.Collection()), d.backend.IDType(), d.backend.DataType())
		if _, err := d.exec(ctx, d.db, query); err != nil {
			return fmt.Errorf("creating table for collection %s: %w", v.Collection(), err)
		}
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, m driver.Model, id string) ([]byte, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = %s", quote(m.Collection()), d.backend.Placeholder(1))
	d.debugq(query, id)
	var data []byte
	if err := d.db.QueryRowContext(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, driver.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (d *Driver) insertQuery(m driver.Model) string {
	return fmt.Sprintf("INSERT INTO %s (id, data) VALUES (%s, %s)", quote(m.Collection()),
		d.backend.Placeholder(1), d.backend.Placeholder(2))
}

func (d *Driver) Insert(ctx context.Context, m driver.Model, id string, data []byte) error {
	_, err := d.exec(ctx, d.db, d.insertQuery(m), id, data)
	return d.insertError(err)
}

func (d *Driver) InsertMany(ctx context.Context, m driver.Model, items []driver.Item) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	query := d.insertQuery(m)
	for _, v := range items {
		if _, err = d.exec(ctx, tx, query, v.ID, v.Data); err != nil {
			return d.insertError(err)
		}
	}
	return tx.Commit()
}

func (d *Driver) insertError(err error) error {
	if err != nil && d.backend.IsDuplicate(err) {
		return fmt.Errorf("%w: %v", driver.ErrDuplicate, err)
	}
	return err
}

func (d *Driver) Update(ctx context.Context, m driver.Model, id string, data []byte) (bool, error) {
	query := fmt.Sprintf("UPDATE %s SET data = %s WHERE id = %s", quote(m.Collection()),
		d.backend.Placeholder(1), d.backend.Placeholder(2))
	res, err := d.exec(ctx, d.db, query, data, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (d *Driver) Delete(ctx context.Context, m driver.Model, id string) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", quote(m.Collection()), d.backend.Placeholder(1))
	res, err := d.exec(ctx, d.db, query, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (d *Driver) Count(ctx context.Context, m driver.Model) (uint64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quote(m.Collection()))
	d.debugq(query)
	var count uint64
	err := d.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (d *Driver) Range(ctx context.Context, m driver.Model, fn driver.RangeFunc) error {
	query := fmt.Sprintf("SELECT id, data FROM %s WHERE id > %s ORDER BY id LIMIT %d",
		quote(m.Collection()), d.backend.Placeholder(1), rangePageSize)
	last := ""
	for {
		items, err := d.page(ctx, query, last)
		if err != nil {
			return err
		}
		for _, v := range items {
			cont, err := fn(ctx, v.ID, v.Data)
			if err != nil || !cont {
				return err
			}
		}
		if len(items) < rangePageSize {
			return nil
		}
		last = items[len(items)-1].ID
	}
}

func (d *Driver) page(ctx context.Context, query string, after string) ([]driver.Item, error) {
	d.debugq(query, after)
	rows, err := d.db.QueryContext(ctx, query, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []driver.Item
	for rows.Next() {
		var item driver.Item
		if err := rows.Scan(&item.ID, &item.Data); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (d *Driver) Capabilities() driver.Capability {
	return d.backend.Capabilities()
}

func (d *Driver) Close() error {
	return d.db.Close()
}

// DB returns the underlying *sql.DB.
func (d *Driver) DB() *sql.DB {
	return d.db
}

// Backend returns the Backend this driver was created with.
func (d *Driver) Backend() Backend {
	return d.backend
}

// SetLogger sets the logger used for logging queries at
// the debug level. A nil logger disables query logging.
func (d *Driver) SetLogger(logger *log.Logger) {
	d.logger = logger
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (d *Driver) exec(ctx context.Context, e execer, query string, args ...interface{}) (sql.Result, error) {
	d.debugq(query, args...)
	return e.ExecContext(ctx, query, args...)
}

func (d *Driver) debugq(sql string, args ...interface{}) {
	if d.logger != nil {
		if len(args) > 0 {
			d.logger.Debugf("SQL: %s with arguments %v", sql, printable(args))
		} else {
			d.logger.Debugf("SQL: %s", sql)
		}
	}
}

func printable(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for ii, v := range args {
		if b, ok := v.([]byte); ok {
			v = fmt.Sprintf("<%d bytes>", len(b))
		}
		out[ii] = v
	}
	return out
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func quote(name string) string {
	return `"` + strings.Replace(name, `"`, `""`, -1) + `"`
}
