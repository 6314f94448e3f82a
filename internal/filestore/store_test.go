package filestore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/errs"
	"github.com/koustreak/sqlstream/internal/stream"
)

type memObject struct {
	io.Reader
	info   *ObjectInfo
	closed *int
}

func (o *memObject) Close() error {
	*o.closed++
	return nil
}

func (o *memObject) Info() *ObjectInfo { return o.info }

// memStore serves objects of a single bucket from memory.
type memStore struct {
	bucket  string
	objects map[string]string
	gets    int
	closed  int
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

func (m *memStore) ListObjects(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for key, body := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(body))})
		}
	}
	return out, nil
}

func (m *memStore) GetObject(ctx context.Context, bucket, key string) (Object, error) {
	info, err := m.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	m.gets++
	return &memObject{Reader: strings.NewReader(m.objects[key]), info: info, closed: &m.closed}, nil
}

func (m *memStore) StatObject(_ context.Context, bucket, key string) (*ObjectInfo, error) {
	body, ok := m.objects[key]
	if bucket != m.bucket || !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no object %s/%s", bucket, key)
	}
	return &ObjectInfo{Key: key, Size: int64(len(body))}, nil
}

func TestScriptSource(t *testing.T) {
	store := &memStore{bucket: "scripts", objects: map[string]string{
		"seed.sql": "INSERT INTO t VALUES (1);\nINSERT INTO t VALUES (2);\n",
	}}
	src := ScriptSource(store, "scripts", "seed.sql", database.DialectPostgres)
	assert.Zero(t, store.gets)

	got, err := stream.Collect(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"INSERT INTO t VALUES (1)", "INSERT INTO t VALUES (2)"}, got)
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, 1, store.closed)
}

func TestScriptSource_MissingObject(t *testing.T) {
	store := &memStore{bucket: "scripts", objects: map[string]string{}}

	_, err := stream.Collect(context.Background(), ScriptSource(store, "scripts", "nope.sql", database.DialectPostgres))
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestConfig_Validate(t *testing.T) {
	var disabled *Config
	assert.False(t, disabled.Enabled())
	require.NoError(t, (&Config{}).Validate())

	cfg := DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
	require.NoError(t, cfg.Validate())

	cfg.Bucket = ""
	assert.True(t, errs.IsInvalidInput(cfg.Validate()))

	cfg = DefaultConfig("localhost:9000", "a", "b")
	cfg.Provider = "azure"
	assert.True(t, errs.IsInvalidInput(cfg.Validate()))
}
