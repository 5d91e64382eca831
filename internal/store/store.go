// Package store owns the on-disk lifecycle of produced artifacts. No other
// component writes into the downloads directory: adapters write into
// store-private staging paths that are atomically promoted on success.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipfetch/clipfetch/pkg/models"
)

var (
	// ErrNotFound is returned for unknown or already-evicted artifact ids.
	ErrNotFound = errors.New("artifact not found")
	// ErrStoreFull is returned by Promote when configured capacity would be
	// exceeded. The caller triggers one eager reaper pass and retries once.
	ErrStoreFull = errors.New("artifact store capacity exceeded")
)

const stagingDirName = ".staging"

// Store is the artifact registry plus the directory it governs. Safe for
// concurrent use; all record mutation happens under one mutex, the files
// themselves are immutable once promoted.
type Store struct {
	root     string
	staging  string
	capacity int64 // bytes; 0 means unbounded

	mu         sync.Mutex
	artifacts  map[uuid.UUID]*models.Artifact
	totalBytes int64
}

// Open prepares dir as the artifact root, creating it and its staging
// subdirectory as needed, and rebuilds artifact records from files that
// survived a previous run. Orphaned staging files are swept unconditionally:
// nothing can be in flight at startup.
func Open(dir string, capacityBytes int64) (*Store, error) {
	s := &Store{
		root:      dir,
		staging:   filepath.Join(dir, stagingDirName),
		capacity:  capacityBytes,
		artifacts: make(map[uuid.UUID]*models.Artifact),
	}
	if err := os.MkdirAll(s.staging, 0o755); err != nil {
		return nil, fmt.Errorf("create store directories: %w", err)
	}
	if err := s.recover(); err != nil {
		return nil, err
	}
	if n := s.SweepStaging(0); n > 0 {
		slog.Info("swept orphaned staging files", "count", n)
	}
	return s, nil
}

// recover rebuilds the artifact table from the addressed namespace:
// <uuid>.<format> files directly under root.
func (s *Store) recover() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("scan store root: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		id, err := uuid.Parse(strings.TrimSuffix(name, ext))
		if err != nil {
			slog.Warn("foreign file in store root, ignoring", "name", name)
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		a := &models.Artifact{
			ID:             id,
			Path:           filepath.Join(s.root, name),
			SizeBytes:      info.Size(),
			Format:         strings.TrimPrefix(ext, "."),
			CreatedAt:      info.ModTime(),
			LastAccessedAt: info.ModTime(),
		}
		s.artifacts[id] = a
		s.totalBytes += a.SizeBytes
	}
	if len(s.artifacts) > 0 {
		slog.Info("recovered artifacts from disk", "count", len(s.artifacts), "total_bytes", s.totalBytes)
	}
	return nil
}

// Stage allocates a private writable path for an adapter. The path does not
// exist yet; the adapter creates it. If promotion never happens the staging
// sweep reclaims it.
func (s *Store) Stage(format string) string {
	return filepath.Join(s.staging, uuid.New().String()+"."+format)
}

// PromoteMeta carries the artifact metadata recorded at promotion time.
type PromoteMeta struct {
	Format string
	Title  string
}

// Promote atomically moves a staged file into the addressed namespace and
// registers it. Fails with ErrStoreFull when configured capacity would be
// exceeded, leaving the staged file in place for the caller to retry or
// discard.
func (s *Store) Promote(stagingPath string, meta PromoteMeta) (*models.Artifact, error) {
	info, err := os.Stat(stagingPath)
	if err != nil {
		return nil, fmt.Errorf("stat staged file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && s.totalBytes+info.Size() > s.capacity {
		return nil, ErrStoreFull
	}

	id := uuid.New()
	dest := filepath.Join(s.root, id.String()+"."+meta.Format)
	if err := os.Rename(stagingPath, dest); err != nil {
		return nil, fmt.Errorf("promote staged file: %w", err)
	}

	now := time.Now()
	a := &models.Artifact{
		ID:             id,
		Path:           dest,
		SizeBytes:      info.Size(),
		Format:         meta.Format,
		Title:          meta.Title,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	s.artifacts[id] = a
	s.totalBytes += a.SizeBytes

	slog.Info("artifact promoted", "artifact_id", id, "format", meta.Format, "size_bytes", a.SizeBytes)
	return snapshot(a), nil
}

// Get returns a copy of the artifact record, or ErrNotFound.
func (s *Store) Get(id uuid.UUID) (*models.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(a), nil
}

// List returns copies of all artifact records.
func (s *Store) List() []*models.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, snapshot(a))
	}
	return out
}

// TotalBytes is the current space accounting for the store.
func (s *Store) TotalBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}

// Capacity is the configured byte limit, 0 for unbounded.
func (s *Store) Capacity() int64 { return s.capacity }

// Delete removes the artifact and its file. A no-op while any checkout holds
// the artifact, and for unknown ids.
func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
}

func (s *Store) deleteLocked(id uuid.UUID) bool {
	a, ok := s.artifacts[id]
	if !ok || a.RefCount > 0 {
		return false
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to remove artifact file", "artifact_id", id, "error", err)
		return false
	}
	delete(s.artifacts, id)
	s.totalBytes -= a.SizeBytes
	slog.Info("artifact deleted", "artifact_id", id, "size_bytes", a.SizeBytes)
	return true
}

func snapshot(a *models.Artifact) *models.Artifact {
	cp := *a
	return &cp
}
