// Package reaper enforces retention and capacity policy in the background:
// stale job records, expired or over-capacity artifacts, and orphaned staging
// files all go away here, on a fixed interval rather than request-driven.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipfetch/clipfetch/internal/scheduler"
	"github.com/clipfetch/clipfetch/internal/store"
)

// Config holds the retention policy. All durations come from process
// configuration.
type Config struct {
	Interval time.Duration
	// JobRetention keeps terminal job records (and their artifacts)
	// queryable for this long after their last update.
	JobRetention time.Duration
	// UnclaimedGrace is the shorter window for results nobody ever read.
	UnclaimedGrace time.Duration
	// ArtifactTTL evicts artifacts unread for this long.
	ArtifactTTL time.Duration
	// StagingStaleAfter protects in-flight adapter writes from the orphan
	// sweep; anything older is fair game.
	StagingStaleAfter time.Duration
}

// Reaper walks the job registry and artifact store on a timer.
type Reaper struct {
	cfg   Config
	sched *scheduler.Scheduler
	art   *store.Store

	mu sync.Mutex // serializes passes; ReapNow may race the ticker
}

// New builds a Reaper over the given registry and store.
func New(cfg Config, sched *scheduler.Scheduler, art *store.Store) *Reaper {
	return &Reaper{cfg: cfg, sched: sched, art: art}
}

// Run executes passes on the configured interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.Info("reaper started", "interval", r.cfg.Interval, "artifact_ttl", r.cfg.ArtifactTTL)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ReapNow()
		}
	}
}

// ReapNow performs one full pass. Also called eagerly by the scheduler when
// the store reports it is full.
func (r *Reaper) ReapNow() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reapJobs()
	r.reapArtifacts()
	if n := r.art.SweepStaging(r.cfg.StagingStaleAfter); n > 0 {
		slog.Info("swept orphaned staging files", "count", n)
	}
}

// reapJobs destroys terminal job records past retention, or past the
// unclaimed grace window when no caller ever read the result. The job's
// artifact goes with it, checkout refcounts permitting.
func (r *Reaper) reapJobs() {
	now := time.Now()
	destroyed := 0
	for _, snap := range r.sched.Jobs() {
		if !snap.State.Terminal() || snap.Waiters > 0 {
			continue
		}
		age := now.Sub(snap.UpdatedAt)
		expired := age > r.cfg.JobRetention || (!snap.Claimed && age > r.cfg.UnclaimedGrace)
		if !expired {
			continue
		}
		final, ok := r.sched.Destroy(snap.ID)
		if !ok {
			continue
		}
		destroyed++
		if final.ArtifactID != nil {
			r.art.Delete(*final.ArtifactID)
		}
	}
	if destroyed > 0 {
		slog.Info("destroyed stale job records", "count", destroyed)
	}
}

// reapArtifacts applies TTL eviction then LRU capacity eviction, and tells
// the scheduler which succeeded jobs just lost their deliverable.
func (r *Reaper) reapArtifacts() {
	var evicted []uuid.UUID
	evicted = append(evicted, r.art.EvictExpired(r.cfg.ArtifactTTL)...)
	evicted = append(evicted, r.art.EvictToCapacity(r.art.Capacity())...)
	r.sched.MarkArtifactsEvicted(evicted)
	if len(evicted) > 0 {
		slog.Info("evicted artifacts", "count", len(evicted))
	}
}

var _ scheduler.Reclaimer = (*Reaper)(nil)
