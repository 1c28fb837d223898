// Package storage persists rendered build artifacts. Artifacts are keyed by
// their deterministic output path, with a content hash kept alongside so
// re-publishing identical content is a no-op.
package storage

import (
	"context"
	"time"
)

// Artifact is one persisted build output.
type Artifact struct {
	// Path is relative to the store root, slash-separated.
	Path string

	// Data is the artifact content.
	Data []byte

	// Hash is the SHA256 of Data. Stores compute it on Put when empty.
	Hash string

	// StoredAt is when the artifact was last written.
	StoredAt time.Time
}

// ArtifactStore persists build outputs by path.
//
// Put is idempotent: writing the same content to the same path again does
// not touch the destination. Implementations must make Put atomic with
// respect to readers of the destination path.
type ArtifactStore interface {
	// Put stores an artifact and returns its content hash.
	Put(ctx context.Context, art *Artifact) (hash string, err error)

	// Get retrieves an artifact by path. Returns ErrNotFound when absent.
	Get(ctx context.Context, path string) (*Artifact, error)

	// Exists checks whether an artifact is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the artifact at path. Returns ErrNotFound when absent.
	Delete(ctx context.Context, path string) error

	// List returns all artifact paths, sorted.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// ErrNotFound is returned when no artifact exists at a path.
type ErrNotFound struct {
	Path string
}

func (e ErrNotFound) Error() string {
	return "artifact not found: " + e.Path
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
