// Package storage persists generated QR images as flat blobs, keyed by the
// unique filename the generation service produces.
//
// Two backends implement Store: a local directory for single-server
// deployments and an S3-compatible bucket for anything bigger. The service
// layer never knows which one it talks to.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Open and Delete when no blob exists under the
// given name. The service layer uses it to tell "row exists but the backing
// file is gone" (a data-integrity anomaly surfaced as 404) apart from real
// backend failures.
var ErrNotExist = errors.New("storage: object does not exist")

// Store is the blob interface for QR images.
//
// Names are the generated filenames — unique across the whole namespace, so
// concurrent callers never collide. Save must not be used to overwrite.
type Store interface {
	// Save writes the blob under name. contentType is advisory; backends
	// that track it (S3) persist it, the filesystem backend ignores it.
	Save(ctx context.Context, name string, data []byte, contentType string) error

	// Open returns a reader for the blob, or ErrNotExist.
	// The caller owns the reader and must close it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes the blob. Deleting a missing blob returns ErrNotExist
	// where the backend can tell (local); S3 deletes are idempotent and
	// report success either way.
	Delete(ctx context.Context, name string) error
}
