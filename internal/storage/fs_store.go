package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FSStore writes artifacts below a base directory. Each artifact gets a
// sidecar "<name>.meta.json" holding its Metadata.
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates the base directory if needed.
func NewFSStore(basePath string) (*FSStore, error) {
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", basePath, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Put writes through a temp file and rename so readers never see a partial artifact.
func (fs *FSStore) Put(ctx context.Context, name string, data []byte, meta Metadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := fs.objectPath(name)
	if err != nil {
		return "", err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return "", fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("chmod object: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename object: %w", err)
	}

	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	if err := fs.writeMetadata(full, meta); err != nil {
		return full, fmt.Errorf("write metadata: %w", err)
	}
	return full, nil
}

func (fs *FSStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := fs.objectPath(name)
	if err != nil {
		return nil, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// #nosec G304 - full is cleaned and confined to basePath
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Name: name}
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// Stat returns the sidecar metadata for name.
func (fs *FSStore) Stat(ctx context.Context, name string) (Metadata, error) {
	full, err := fs.objectPath(name)
	if err != nil {
		return Metadata{}, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// #nosec G304 - metadata path derives from a confined object path
	data, err := os.ReadFile(full + ".meta.json")
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, ErrNotFound{Name: name}
		}
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return meta, nil
}

func (fs *FSStore) Exists(ctx context.Context, name string) (bool, error) {
	full, err := fs.objectPath(name)
	if err != nil {
		return false, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

func (fs *FSStore) Delete(ctx context.Context, name string) error {
	full, err := fs.objectPath(name)
	if err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	_ = os.Remove(full + ".meta.json") // best effort
	return nil
}

// Close releases resources.
func (fs *FSStore) Close() error {
	return nil
}

func (fs *FSStore) objectPath(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(fs.basePath, filepath.FromSlash(clean)), nil
}

func (fs *FSStore) writeMetadata(full string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return os.WriteFile(full+".meta.json", data, 0600)
}

var _ Store = (*FSStore)(nil)
