// Package pdfcache keeps recently fetched route-sheet PDFs in blob storage,
// bounded by an LRU index so the bucket never holds more than max documents.
package pdfcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fedtaxi/hojaruta/internal/storage"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const prefix = "pdf/"

// Cache is safe for concurrent use.
type Cache struct {
	store storage.BlobStore
	max   int
	log   *zap.SugaredLogger

	mu    sync.Mutex
	index *lru.Cache[string, int]
}

// New returns an empty cache holding at most max documents.
func New(store storage.BlobStore, max int, log *zap.SugaredLogger) (*Cache, error) {
	if max <= 0 {
		return nil, fmt.Errorf("pdf cache size must be positive, got %d", max)
	}
	if log == nil {
		log = logger.L("pdfcache")
	}
	// sized one over max: eviction is done by hand so the blob goes with it
	idx, err := lru.New[string, int](max + 1)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, max: max, log: log, index: idx}, nil
}

func key(id string) string { return prefix + id }

// Warm indexes documents already in storage, oldest first, and deletes the
// oldest ones beyond the bound.
func (c *Cache) Warm(ctx context.Context) error {
	objs, err := c.store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list cached pdfs: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range objs {
		c.index.Add(strings.TrimPrefix(o.Key, prefix), int(o.Size))
		if err := c.evictLocked(ctx); err != nil {
			return err
		}
	}
	c.log.Debugw("pdf cache warmed", "documents", c.index.Len())
	return nil
}

func (c *Cache) evictLocked(ctx context.Context) error {
	for c.index.Len() > c.max {
		id, _, ok := c.index.RemoveOldest()
		if !ok {
			return nil
		}
		if err := c.store.Delete(ctx, key(id)); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("evict pdf %s: %w", id, err)
		}
	}
	return nil
}

// Get returns the cached document and marks it recently used.
func (c *Cache) Get(ctx context.Context, id string) ([]byte, bool, error) {
	c.mu.Lock()
	_, ok := c.index.Get(id)
	c.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	data, err := c.store.Get(ctx, key(id))
	if errors.Is(err, storage.ErrNotFound) {
		c.mu.Lock()
		c.index.Remove(id)
		c.mu.Unlock()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put stores data under id, evicting the least recently used document when full.
func (c *Cache) Put(ctx context.Context, id string, data []byte) error {
	if err := c.store.Put(ctx, key(id), data, "application/pdf"); err != nil {
		return fmt.Errorf("store pdf %s: %w", id, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index.Add(id, len(data))
	return c.evictLocked(ctx)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Len()
}

// Purge deletes every cached document; used when the session ends.
func (c *Cache) Purge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, id := range c.index.Keys() {
		if err := c.store.Delete(ctx, key(id)); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	c.index.Purge()
	return errors.Join(errs...)
}
