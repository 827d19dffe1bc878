package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/docstream/internal/config"
	"git.home.luguber.info/inful/docstream/internal/docmodel"
)

// Cache stores encoded responses for a bounded time.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// CacheKey hashes everything that determines a provider answer: the
// NFC-normalized prompt and its options, the canonical document, the
// provider and the model.
func CacheKey(p Prompt, doc *docmodel.Document, provider, model string) (string, error) {
	body, err := doc.Canonical()
	if err != nil {
		return "", err
	}
	p.Text = norm.NFC.String(p.Text)
	opts, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, part := range [][]byte{opts, body, []byte(provider), []byte(model)} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MemoryCache is a process-local cache with lazy expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Close() error { return nil }

// BadgerCache persists responses in BadgerDB, using its native entry TTL.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens a cache in dir, or in memory when dir is empty.
func NewBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

func (c *BadgerCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *BadgerCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

func (c *BadgerCache) Close() error { return c.db.Close() }

// OpenCache builds the cache selected by cfg, or nil when caching is off.
func OpenCache(cfg config.CacheConfig) (Cache, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(), nil
	case "badger":
		c, err := NewBadgerCache(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// cachedReply is the stored form of a successful enhancement.
type cachedReply struct {
	Document   json.RawMessage `json:"document"`
	Model      string          `json:"model"`
	TokensUsed int             `json:"tokensUsed"`
}
