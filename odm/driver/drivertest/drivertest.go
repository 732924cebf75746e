// Package drivertest provides a conformance test suite for ODM drivers.
package drivertest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainycape/odm/odm/driver"
)

// Opener returns a new driver for the test t. The suite closes it
// when the test finishes.
type Opener func(t *testing.T) driver.Driver

// Model is a driver.Model for tests.
type Model string

func (m Model) Collection() string {
	return string(m)
}

var sequence uint64

// NewModel returns a Model with a collection name which is unique
// within the process and very likely unique across test runs, so
// tests can use persistent databases.
func NewModel(name string) Model {
	n := atomic.AddUint64(&sequence, 1)
	return Model(fmt.Sprintf("drivertest_%s_%x_%d", name, time.Now().UnixNano(), n))
}

type env struct {
	ctx    context.Context
	driver driver.Driver
	model  Model
}

func setup(t *testing.T, open Opener) *env {
	t.Helper()
	drv := open(t)
	t.Cleanup(func() {
		assert.NoError(t, drv.Close())
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)
	name := strings.ToLower(t.Name())
	if p := strings.LastIndexByte(name, '/'); p >= 0 {
		name = name[p+1:]
	}
	m := NewModel(name)
	require.NoError(t, drv.Initialize(ctx, []driver.Model{m}))
	return &env{ctx: ctx, driver: drv, model: m}
}

// RunTests runs the conformance tests against the drivers returned
// by open.
func RunTests(t *testing.T, open Opener) {
	t.Run("check", func(t *testing.T) {
		e := setup(t, open)
		require.NoError(t, e.driver.Check(e.ctx))
		// Initialize must be idempotent
		require.NoError(t, e.driver.Initialize(e.ctx, []driver.Model{e.model}))
	})

	t.Run("get", func(t *testing.T) {
		e := setup(t, open)
		_, err := e.driver.Get(e.ctx, e.model, "missing")
		require.ErrorIs(t, err, driver.ErrNotFound)

		require.NoError(t, e.driver.Insert(e.ctx, e.model, "a", []byte("alpha")))
		data, err := e.driver.Get(e.ctx, e.model, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("alpha"), data)
	})

	t.Run("insert", func(t *testing.T) {
		e := setup(t, open)
		buf := []byte("original")
		require.NoError(t, e.driver.Insert(e.ctx, e.model, "a", buf))
		// The driver must not retain the buffer.
		copy(buf, "modified")
		data, err := e.driver.Get(e.ctx, e.model, "a")
		require.NoError(t, err)
		assert.Equal(t, "original", string(data))

		err = e.driver.Insert(e.ctx, e.model, "a", []byte("again"))
		require.ErrorIs(t, err, driver.ErrDuplicate)
		data, err = e.driver.Get(e.ctx, e.model, "a")
		require.NoError(t, err)
		assert.Equal(t, "original", string(data))
	})

	t.Run("insert many", func(t *testing.T) {
		e := setup(t, open)
		var items []driver.Item
		for ii := 0; ii < 250; ii++ {
			items = append(items, driver.Item{
				ID:   fmt.Sprintf("doc-%03d", ii),
				Data: []byte(fmt.Sprintf("data %d", ii)),
			})
		}
		require.NoError(t, e.driver.InsertMany(e.ctx, e.model, items))
		count, err := e.driver.Count(e.ctx, e.model)
		require.NoError(t, err)
		assert.EqualValues(t, len(items), count)

		data, err := e.driver.Get(e.ctx, e.model, "doc-123")
		require.NoError(t, err)
		assert.Equal(t, "data 123", string(data))
	})

	t.Run("insert many duplicate", func(t *testing.T) {
		e := setup(t, open)
		require.NoError(t, e.driver.Insert(e.ctx, e.model, "b", []byte("b")))
		items := []driver.Item{
			{ID: "a", Data: []byte("a")},
			{ID: "b", Data: []byte("b")},
			{ID: "c", Data: []byte("c")},
		}
		err := e.driver.InsertMany(e.ctx, e.model, items)
		require.ErrorIs(t, err, driver.ErrDuplicate)
		if e.driver.Capabilities().Has(driver.CAP_TRANSACTION) {
			count, err := e.driver.Count(e.ctx, e.model)
			require.NoError(t, err)
			assert.EqualValues(t, 1, count, "InsertMany must be atomic")
		}
	})

	t.Run("update", func(t *testing.T) {
		e := setup(t, open)
		updated, err := e.driver.Update(e.ctx, e.model, "a", []byte("alpha"))
		require.NoError(t, err)
		assert.False(t, updated, "updating a missing document must return false")
		_, err = e.driver.Get(e.ctx, e.model, "a")
		require.ErrorIs(t, err, driver.ErrNotFound, "Update must not insert")

		require.NoError(t, e.driver.Insert(e.ctx, e.model, "a", []byte("alpha")))
		updated, err = e.driver.Update(e.ctx, e.model, "a", []byte("beta"))
		require.NoError(t, err)
		assert.True(t, updated)
		data, err := e.driver.Get(e.ctx, e.model, "a")
		require.NoError(t, err)
		assert.Equal(t, "beta", string(data))
	})

	t.Run("delete", func(t *testing.T) {
		e := setup(t, open)
		deleted, err := e.driver.Delete(e.ctx, e.model, "a")
		require.NoError(t, err)
		assert.False(t, deleted)

		require.NoError(t, e.driver.Insert(e.ctx, e.model, "a", []byte("alpha")))
		require.NoError(t, e.driver.Insert(e.ctx, e.model, "b", []byte("beta")))
		deleted, err = e.driver.Delete(e.ctx, e.model, "a")
		require.NoError(t, err)
		assert.True(t, deleted)
		_, err = e.driver.Get(e.ctx, e.model, "a")
		require.ErrorIs(t, err, driver.ErrNotFound)
		count, err := e.driver.Count(e.ctx, e.model)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
		// A deleted id can be inserted again.
		require.NoError(t, e.driver.Insert(e.ctx, e.model, "a", []byte("gamma")))
	})

	t.Run("range", func(t *testing.T) {
		e := setup(t, open)
		ids := []string{"m", "c", "x", "a", "q"}
		for _, id := range ids {
			require.NoError(t, e.driver.Insert(e.ctx, e.model, id, []byte("data "+id)))
		}
		var got []string
		err := e.driver.Range(e.ctx, e.model, func(ctx context.Context, id string, data []byte) (bool, error) {
			assert.Equal(t, "data "+id, string(data))
			got = append(got, id)
			return true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "m", "q", "x"}, got)

		got = nil
		err = e.driver.Range(e.ctx, e.model, func(ctx context.Context, id string, data []byte) (bool, error) {
			got = append(got, id)
			return len(got) < 2, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, got, "returning false must stop the iteration")

		errStop := fmt.Errorf("stop")
		err = e.driver.Range(e.ctx, e.model, func(ctx context.Context, id string, data []byte) (bool, error) {
			return true, errStop
		})
		require.ErrorIs(t, err, errStop)
	})

	t.Run("range and write", func(t *testing.T) {
		e := setup(t, open)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, e.driver.Insert(e.ctx, e.model, id, []byte(id)))
		}
		err := e.driver.Range(e.ctx, e.model, func(ctx context.Context, id string, data []byte) (bool, error) {
			_, err := e.driver.Update(ctx, e.model, id, append(data, '!'))
			return true, err
		})
		require.NoError(t, err)
		data, err := e.driver.Get(e.ctx, e.model, "b")
		require.NoError(t, err)
		assert.Equal(t, "b!", string(data))
	})

	t.Run("collections", func(t *testing.T) {
		e := setup(t, open)
		other := NewModel("other")
		require.NoError(t, e.driver.Initialize(e.ctx, []driver.Model{other}))
		require.NoError(t, e.driver.Insert(e.ctx, e.model, "a", []byte("first")))
		require.NoError(t, e.driver.Insert(e.ctx, other, "a", []byte("second")))
		data, err := e.driver.Get(e.ctx, other, "a")
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
		count, err := e.driver.Count(e.ctx, e.model)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}
