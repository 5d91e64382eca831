package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// EvictExpired deletes artifacts whose last access is older than ttl,
// skipping any with live checkouts. Returns the ids deleted.
func (s *Store) EvictExpired(ttl time.Duration) []uuid.UUID {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []uuid.UUID
	for id, a := range s.artifacts {
		if a.RefCount == 0 && a.LastAccessedAt.Before(cutoff) {
			if s.deleteLocked(id) {
				evicted = append(evicted, id)
			}
		}
	}
	return evicted
}

// EvictToCapacity deletes least-recently-accessed artifacts until total size
// fits goalBytes, skipping any with live checkouts. Returns the ids deleted.
func (s *Store) EvictToCapacity(goalBytes int64) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if goalBytes <= 0 || s.totalBytes <= goalBytes {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(s.artifacts))
	for id := range s.artifacts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.artifacts[ids[i]].LastAccessedAt.Before(s.artifacts[ids[j]].LastAccessedAt)
	})

	var evicted []uuid.UUID
	for _, id := range ids {
		if s.totalBytes <= goalBytes {
			break
		}
		if s.artifacts[id].RefCount > 0 {
			continue
		}
		if s.deleteLocked(id) {
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		slog.Info("evicted artifacts for capacity", "count", len(evicted), "total_bytes", s.totalBytes)
	}
	return evicted
}

// SweepStaging removes staging files that have not been written to for at
// least staleAfter. Zero sweeps everything, which is only safe when no
// adapter can be mid-write (startup).
func (s *Store) SweepStaging(staleAfter time.Duration) int {
	entries, err := os.ReadDir(s.staging)
	if err != nil {
		slog.Error("staging sweep failed", "error", err)
		return 0
	}
	cutoff := time.Now().Add(-staleAfter)

	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if staleAfter > 0 && info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.staging, e.Name())); err == nil {
			removed++
		}
	}
	return removed
}

// DiscardStaged removes a staged file that will never be promoted.
func (s *Store) DiscardStaged(stagingPath string) {
	if err := os.Remove(stagingPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to discard staged file", "error", err)
	}
}
