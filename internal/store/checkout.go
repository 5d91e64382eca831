package store

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Checkout is a refcounted handle over an artifact file, held by the serving
// layer for the duration of a byte stream. While any checkout is live the
// artifact cannot be deleted, TTL or not.
type Checkout struct {
	ID   uuid.UUID
	Path string

	store *Store
	once  sync.Once
}

// Acquire checks out an artifact for reading, bumping its refcount and access
// time. Returns ErrNotFound for unknown or evicted ids.
func (s *Store) Acquire(id uuid.UUID) (*Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	a.RefCount++
	a.LastAccessedAt = time.Now()
	return &Checkout{ID: id, Path: a.Path, store: s}, nil
}

// Open opens the underlying file for streaming.
func (c *Checkout) Open() (*os.File, error) {
	return os.Open(c.Path)
}

// Release returns the checkout. Safe to call more than once; only the first
// call drops the reference.
func (c *Checkout) Release() {
	c.once.Do(func() {
		c.store.mu.Lock()
		defer c.store.mu.Unlock()
		if a, ok := c.store.artifacts[c.ID]; ok && a.RefCount > 0 {
			a.RefCount--
		}
	})
}
