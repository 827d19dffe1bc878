// Package storage persists exported artifacts. Paths are forward-slash
// separated and relative to the store root; implementations are safe for
// concurrent use.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Store keeps export output on local disk, in an S3-compatible bucket, or in memory.
type Store interface {
	// Put writes data at name, replacing any previous object, and returns
	// where it landed (a filesystem path or an s3:// URL).
	Put(ctx context.Context, name string, data []byte, meta Metadata) (string, error)

	// Get reads the object at name. Missing objects return ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Exists reports whether name is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Delete removes name. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases any resources held by the store.
	Close() error
}

// Metadata travels with an artifact.
type Metadata struct {
	ContentType string            `json:"contentType,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"createdAt"`
	Custom      map[string]string `json:"custom,omitempty"`
}

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Name string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Name
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// cleanName rejects absolute and parent-escaping names.
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	c := path.Clean(name)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return c, nil
}
