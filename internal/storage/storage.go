// Package storage names and fetches the parquet snapshots of the ledger
// tables kept in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"time"
)

const (
	SnapshotFileName    = "snapshot.parquet"
	SnapshotContentType = "application/vnd.apache.parquet"
)

var ErrObjectNotFound = errors.New("object not found")

var keyComponent = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// ResolvedContentType falls back to SnapshotContentType.
func (o PutOptions) ResolvedContentType() string {
	if o.ContentType == "" {
		return SnapshotContentType
	}
	return o.ContentType
}

// ObjectStore is implemented by the s3 package and by in-memory fakes in tests.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// BuildSnapshotPath returns the object key of a table's parquet snapshot,
// e.g. ledger/sales/snapshot.parquet.
func BuildSnapshotPath(dataset, table string) (string, error) {
	if !keyComponent.MatchString(dataset) {
		return "", fmt.Errorf("invalid dataset: %q", dataset)
	}
	if !keyComponent.MatchString(table) {
		return "", fmt.Errorf("invalid table name: %q", table)
	}
	return path.Join(dataset, table, SnapshotFileName), nil
}
