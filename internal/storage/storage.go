package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStorage captures the S3-compatible operations imports need: finding
// sources, streaming one, and archiving uploads.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// ArchiveKey is where an imported source is kept: imports/YYYY/MM/DD/<run>-<name>.
func ArchiveKey(at time.Time, runID, name string) string {
	return fmt.Sprintf("imports/%s/%s-%s", at.UTC().Format("2006/01/02"), runID, path.Base(name))
}
