package database

import (
	"errors"

	"github.com/koustreak/sqlstream/internal/errs"
)

// ErrRowReleased is returned by a Row accessor used after the callback that
// received it has returned.
var ErrRowReleased = errors.New("row accessor used after release")

// Row is a read-only view over the current result row.
//
// A Row is only valid while the callback that received it runs. Retaining it
// and reading later yields ErrRowReleased.
type Row interface {
	// Columns returns the result column names in positional order.
	Columns() []string

	// Value returns the value at position i (0-based).
	Value(i int) (any, error)

	// Get returns the value of the named column.
	Get(name string) (any, error)

	// Values returns all column values in positional order.
	Values() ([]any, error)

	// Map returns the row as column name -> value.
	Map() (map[string]any, error)

	// Scan copies the row into typed destinations, like database/sql.
	Scan(dest ...any) error
}

// Cursor walks a result set and hands out one Row accessor per row.
// Advancing the cursor releases the previous accessor.
type Cursor struct {
	rows    Rows
	columns []string
	index   map[string]int
	current *rowView
}

// NewCursor reads the column set of rows and returns a Cursor over it.
// On error the rows are closed.
func NewCursor(rows Rows) (*Cursor, error) {
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, dup := index[col]; !dup {
			index[col] = i
		}
	}

	return &Cursor{rows: rows, columns: columns, index: index}, nil
}

// Next releases the current accessor and advances to the next row.
// It returns false at the end of the result set or on error; check Err.
func (c *Cursor) Next() (Row, bool) {
	c.Release()
	if !c.rows.Next() {
		return nil, false
	}
	c.current = &rowView{cursor: c}
	return c.current, true
}

// Err returns the iteration error of the underlying rows, if any.
func (c *Cursor) Err() error {
	return c.rows.Err()
}

// Close releases the current accessor and closes the underlying rows.
func (c *Cursor) Close() {
	c.Release()
	c.rows.Close()
}

// Release invalidates the accessor handed out by the last Next.
func (c *Cursor) Release() {
	if c.current != nil {
		c.current.cursor = nil
		c.current.values = nil
		c.current = nil
	}
}

// rowView implements Row over the cursor's current position.
// values is filled lazily on first positional or named access.
type rowView struct {
	cursor *Cursor
	values []any
}

func (r *rowView) Columns() []string {
	if r.cursor == nil {
		return nil
	}
	return r.cursor.columns
}

func (r *rowView) Value(i int) (any, error) {
	values, err := r.Values()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(values) {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "column index %d out of range [0,%d)", i, len(values))
	}
	return values[i], nil
}

func (r *rowView) Get(name string) (any, error) {
	if r.cursor == nil {
		return nil, ErrRowReleased
	}
	i, ok := r.cursor.index[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no column named %q", name)
	}
	return r.Value(i)
}

func (r *rowView) Values() ([]any, error) {
	if r.cursor == nil {
		return nil, ErrRowReleased
	}
	if r.values != nil {
		return r.values, nil
	}

	// Scan targets are *any so the driver can write any type.
	dest := make([]any, len(r.cursor.columns))
	ptrs := make([]any, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := r.cursor.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	r.values = dest
	return dest, nil
}

func (r *rowView) Map() (map[string]any, error) {
	values, err := r.Values()
	if err != nil {
		return nil, err
	}
	m := make(map[string]any, len(values))
	for i, col := range r.cursor.columns {
		m[col] = values[i]
	}
	return m, nil
}

func (r *rowView) Scan(dest ...any) error {
	if r.cursor == nil {
		return ErrRowReleased
	}
	return r.cursor.rows.Scan(dest...)
}
