package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
)

var _ database.Session = (*Session)(nil)

var errDuplicate = errors.New("duplicate entry")

func classifyDuplicate(err error) (errs.ErrKind, string, bool) {
	if errors.Is(err, errDuplicate) {
		return errs.ErrKindConflict, "duplicate", true
	}
	return errs.ErrKindUnknown, "", false
}

func newMockSession(t *testing.T) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlmock"), classifyDuplicate), mock
}

func TestSession_Query(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectQuery("SELECT id, name FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "a").AddRow(int64(2), "b"))

	rows, err := s.Query(context.Background(), "SELECT id, name FROM t")
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cols)

	var names []string
	for rows.Next() {
		var id int64
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"a", "b"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_QueryRowError(t *testing.T) {
	s, mock := newMockSession(t)
	fetchErr := errors.New("broken pipe")
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1).AddRow(2).RowError(1, fetchErr))

	rows, err := s.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	assert.Equal(t, 1, count)
	assert.ErrorIs(t, rows.Err(), fetchErr)
}

func TestSession_Exec(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectExec("UPDATE t SET n = 1").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.Exec(context.Background(), "UPDATE t SET n = 1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_ExecErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{name: "classified", err: errDuplicate, want: errs.ErrKindConflict},
		{name: "unclassified", err: errors.New("syntax"), want: errs.ErrKindQueryFailed},
		{name: "deadline", err: context.DeadlineExceeded, want: errs.ErrKindTimeout},
		{name: "conn done", err: sql.ErrConnDone, want: errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockSession(t)
			mock.ExpectExec("DELETE FROM t").WillReturnError(tt.err)

			_, err := s.Exec(context.Background(), "DELETE FROM t")
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSession_ExecRowsAffectedUnavailable(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectExec("VACUUM").WillReturnResult(sqlmock.NewErrorResult(errors.New("not supported")))

	_, err := s.Exec(context.Background(), "VACUUM")
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
}

func TestSession_Ping(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err := s.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestConfigurePool_Defaults(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	configurePool(db, &database.Config{})
	assert.Equal(t, defaultMaxOpenConns, db.Stats().MaxOpenConnections)
}
