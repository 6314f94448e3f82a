// Package filestore reads SQL scripts from object storage.
//
// Usage:
//
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	statements := filestore.ScriptSource(store, cfg.Bucket, "nightly/cleanup.sql", database.DialectPostgres)
//	err = sqlstream.ExecuteAll(ctx, session, statements).Wait(ctx)
package filestore

import (
	"context"
	"io"

	"github.com/koustreak/sqlstream/internal/database"
	"github.com/koustreak/sqlstream/internal/script"
	"github.com/koustreak/sqlstream/internal/stream"
)

// Store is the read-only view of a storage backend.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// ListObjects returns the objects in bucket whose key starts with prefix.
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// StatObject returns metadata for the object without downloading it.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
}

// ScriptSource streams the statements of the script stored at key. The
// object is fetched when the source is first pulled and again on every run.
func ScriptSource(store Store, bucket, key string, d database.Dialect) *stream.Source[string] {
	return script.Source(func(ctx context.Context) (io.ReadCloser, error) {
		return store.GetObject(ctx, bucket, key)
	}, d)
}
