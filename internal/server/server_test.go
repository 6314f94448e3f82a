package server

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/database/databasetest"
	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/filestore"
	"github.com/koustreak/sqlstream/internal/logger"
)

const usersQuery = "SELECT id, name FROM users"

func newSession() *databasetest.Session {
	return databasetest.NewSession().On(usersQuery, databasetest.Result{
		Columns: []string{"id", "name"},
		Rows: [][]any{
			{int64(1), []byte("ada")},
			{int64(2), "grace"},
		},
	})
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func queryURL(sql string) string {
	return "/query?sql=" + url.QueryEscape(sql)
}

func TestHealthz(t *testing.T) {
	rec := do(t, New(newSession(), Options{}).Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestRequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "abc-123")
	rec := httptest.NewRecorder()
	New(newSession(), Options{}).Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(headerRequestID))
}

func TestQuery_StreamsNDJSON(t *testing.T) {
	s := newSession()
	rec := do(t, New(s, Options{}).Handler(), http.MethodGet, queryURL(usersQuery), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var lines []string
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":1,"name":"ada"}`, lines[0])
	assert.JSONEq(t, `{"id":2,"name":"grace"}`, lines[1])
	assert.Zero(t, s.OpenRows())
}

func TestQuery_RequestLogUsesConfiguredSQLLimit(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "debug", Format: "json", MaxSQL: 10, Output: &buf})

	rec := do(t, New(newSession(), Options{Logger: log}).Handler(), http.MethodGet, queryURL(usersQuery), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var logged []string
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		if sql, ok := entry["sql"].(string); ok {
			logged = append(logged, sql)
			assert.NotEmpty(t, entry["request_id"])
		}
	}
	require.NotEmpty(t, logged)
	for _, sql := range logged {
		assert.Equal(t, "SELECT id,... (+16 bytes)", sql)
	}
}

func TestQuery_Errors(t *testing.T) {
	h := New(newSession(), Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/query", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, queryURL("SELECT * FROM nowhere"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"query_failed"`)
}

func TestQuery_FailureAfterFirstRow(t *testing.T) {
	s := databasetest.NewSession().On(usersQuery, databasetest.Result{
		Columns:  []string{"id", "name"},
		Rows:     [][]any{{int64(1), "ada"}, {int64(2), "grace"}},
		FetchErr: errs.New(errs.ErrKindConnectionFailed, "connection reset"),
		FailAt:   1,
	})
	rec := do(t, New(s, Options{}).Handler(), http.MethodGet, queryURL(usersQuery), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":1,"name":"ada"}`, lines[0])
	assert.Contains(t, lines[1], "connection reset")
}

func TestExec_DisabledByDefault(t *testing.T) {
	s := newSession()
	rec := do(t, New(s, Options{}).Handler(), http.MethodPost, "/exec", strings.NewReader("DELETE FROM t;"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, s.Executed())
}

func TestExec_Script(t *testing.T) {
	s := newSession()
	h := New(s, Options{AllowExec: true, Parallelism: 1}).Handler()

	rec := do(t, h, http.MethodPost, "/exec", strings.NewReader("INSERT INTO t VALUES (1);\n-- two\nINSERT INTO t VALUES (2);\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res execResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(2), res.Statements)
	assert.Equal(t, int64(2), res.RowsAffected)
	assert.Equal(t, []string{"INSERT INTO t VALUES (1)", "-- two\nINSERT INTO t VALUES (2)"}, s.Executed())
}

func TestExec_StatementFailure(t *testing.T) {
	s := newSession()
	s.ExecFunc = func(_ context.Context, sql string) (int64, error) {
		if strings.Contains(sql, "(2)") {
			return 0, errs.New(errs.ErrKindConflict, "duplicate key value")
		}
		return 1, nil
	}
	h := New(s, Options{AllowExec: true}).Handler()

	rec := do(t, h, http.MethodPost, "/exec", strings.NewReader("INSERT INTO t VALUES (1); INSERT INTO t VALUES (2); INSERT INTO t VALUES (3);"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotContains(t, s.Executed(), "INSERT INTO t VALUES (3)")
}

func TestExec_UnterminatedScript(t *testing.T) {
	h := New(newSession(), Options{AllowExec: true}).Handler()
	rec := do(t, h, http.MethodPost, "/exec", strings.NewReader("SELECT 'open"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type oneObjectStore struct {
	filestore.Store
	key, body string
}

func (o oneObjectStore) GetObject(_ context.Context, _, key string) (filestore.Object, error) {
	if key != o.key {
		return nil, errs.Newf(errs.ErrKindNotFound, "no object %s", key)
	}
	return &stringObject{Reader: strings.NewReader(o.body), info: &filestore.ObjectInfo{Key: key}}, nil
}

type stringObject struct {
	io.Reader
	info *filestore.ObjectInfo
}

func (o *stringObject) Close() error { return nil }

func (o *stringObject) Info() *filestore.ObjectInfo { return o.info }

func TestExec_StoredObject(t *testing.T) {
	s := newSession()
	store := oneObjectStore{key: "seed.sql", body: "INSERT INTO t VALUES (1);"}
	h := New(s, Options{AllowExec: true, Store: store, Bucket: "scripts", Dialect: database.DialectPostgres}).Handler()

	rec := do(t, h, http.MethodPost, "/exec?object=seed.sql", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"INSERT INTO t VALUES (1)"}, s.Executed())

	rec = do(t, h, http.MethodPost, "/exec?object=missing.sql", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExec_StoredObjectWithoutStore(t *testing.T) {
	rec := do(t, New(newSession(), Options{AllowExec: true}).Handler(), http.MethodPost, "/exec?object=x.sql", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusOf(errs.New(errs.ErrKindTimeout, "slow")))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(errs.New(errs.ErrKindConnectionFailed, "down")))
	assert.Equal(t, http.StatusForbidden, statusOf(errs.New(errs.ErrKindPermissionDenied, "no")))
	assert.Equal(t, http.StatusInternalServerError, statusOf(io.ErrUnexpectedEOF))
}
