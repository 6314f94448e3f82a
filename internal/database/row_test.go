package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/database/databasetest"
	"github.com/koustreak/sqlstream/internal/errs"
)

const usersQuery = "SELECT id, name FROM users ORDER BY id"

func openCursor(t *testing.T, r databasetest.Result) (*database.Cursor, *databasetest.Session) {
	t.Helper()
	s := databasetest.NewSession().On(usersQuery, r)
	rows, err := s.Query(context.Background(), usersQuery)
	require.NoError(t, err)
	c, err := database.NewCursor(rows)
	require.NoError(t, err)
	return c, s
}

func TestCursor_PositionalAndNamedAccess(t *testing.T) {
	c, s := openCursor(t, databasetest.Result{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "ada"}, {int64(2), "grace"}},
	})

	row, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, row.Columns())

	v, err := row.Value(0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	name, err := row.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "ada", name)

	m, err := row.Map()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "ada"}, m)

	var id int64
	var n string
	require.NoError(t, row.Scan(&id, &n))
	assert.Equal(t, "ada", n)

	row, ok = c.Next()
	require.True(t, ok)
	vals, err := row.Values()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), "grace"}, vals)

	_, ok = c.Next()
	assert.False(t, ok)
	require.NoError(t, c.Err())

	c.Close()
	assert.Equal(t, 0, s.OpenRows())
}

func TestCursor_RowReleasedAfterAdvance(t *testing.T) {
	c, _ := openCursor(t, databasetest.Result{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "ada"}, {int64(2), "grace"}},
	})
	defer c.Close()

	first, ok := c.Next()
	require.True(t, ok)
	_, ok = c.Next()
	require.True(t, ok)

	_, err := first.Values()
	assert.ErrorIs(t, err, database.ErrRowReleased)
	_, err = first.Get("id")
	assert.ErrorIs(t, err, database.ErrRowReleased)
	assert.ErrorIs(t, first.Scan(new(int64), new(string)), database.ErrRowReleased)
	assert.Nil(t, first.Columns())
}

func TestCursor_AccessErrors(t *testing.T) {
	c, _ := openCursor(t, databasetest.Result{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "ada"}},
	})
	defer c.Close()

	row, ok := c.Next()
	require.True(t, ok)

	_, err := row.Value(5)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = row.Get("missing")
	assert.True(t, errs.IsNotFound(err))
}

func TestCursor_FetchError(t *testing.T) {
	fetchErr := errors.New("connection reset")
	c, _ := openCursor(t, databasetest.Result{
		Columns:  []string{"id", "name"},
		Rows:     [][]any{{int64(1), "ada"}, {int64(2), "grace"}},
		FetchErr: fetchErr,
		FailAt:   1,
	})
	defer c.Close()

	_, ok := c.Next()
	require.True(t, ok)
	_, ok = c.Next()
	assert.False(t, ok)
	assert.ErrorIs(t, c.Err(), fetchErr)
}
