// Package scheduler turns submitted (url, profile) requests into executed
// download jobs under bounded concurrency. It owns the job registry: every
// job mutation in the process goes through here.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clipfetch/clipfetch/internal/store"
	"github.com/clipfetch/clipfetch/internal/tool"
	"github.com/clipfetch/clipfetch/pkg/models"
)

var (
	// ErrInvalidInput rejects a malformed URL or profile at submission.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBusy rejects submissions while the admission queue is full.
	ErrBusy = errors.New("job queue is full")
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrAwaitTimeout is returned when Await exceeds its bound. The
	// underlying job keeps running; other waiters are unaffected.
	ErrAwaitTimeout = errors.New("timed out waiting for job")
)

// Extractor resolves a source URL into a raw media file at a staging path.
type Extractor interface {
	Extract(ctx context.Context, url, stagingPath string, profile models.Profile) (*tool.Outcome, error)
}

// Transcoder converts a raw media file into the profile's output format.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath string, profile models.Profile, outputPath string) (*tool.Outcome, error)
}

// RawFormatFunc reports the container the extractor produces for a profile,
// so the scheduler can skip transcoding when it already matches.
type RawFormatFunc func(models.Profile) string

// Reclaimer triggers an eager reaper pass when the store reports it is full.
type Reclaimer interface {
	ReapNow()
}

// Config bounds the scheduler. All values come from process configuration and
// are immutable after construction.
type Config struct {
	Workers            int
	QueueCapacity      int
	PerHostConcurrency int
	PerHostRate        float64 // extraction starts per second per host; 0 disables
	PerHostBurst       int
	RetryLimit         int // additional attempts after the first
	RetryBaseDelay     time.Duration
}

// Stats is a point-in-time counter snapshot for the stats endpoint.
type Stats struct {
	Submitted  int64 `json:"submitted"`
	Coalesced  int64 `json:"coalesced"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
	Evicted    int64 `json:"evicted"`
	Attempts   int64 `json:"attempts"`
	QueueDepth int   `json:"queue_depth"`
	Workers    int   `json:"workers"`
}

// Scheduler owns the job registry and the worker pool executing jobs.
type Scheduler struct {
	cfg        Config
	extractor  Extractor
	transcoder Transcoder
	rawFormat  RawFormatFunc
	artifacts  *store.Store
	gate       *hostGate

	mu    sync.Mutex
	byKey map[string]*job
	byID  map[uuid.UUID]*job

	queue chan *job
	wg    sync.WaitGroup

	reclaimerMu sync.Mutex
	reclaimer   Reclaimer

	submitted atomic.Int64
	coalesced atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	evicted   atomic.Int64
	attempts  atomic.Int64
}

// New builds a Scheduler. Call Start before submitting.
func New(cfg Config, ex Extractor, tr Transcoder, rawFormat RawFormatFunc, artifacts *store.Store) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 64
	}
	return &Scheduler{
		cfg:        cfg,
		extractor:  ex,
		transcoder: tr,
		rawFormat:  rawFormat,
		artifacts:  artifacts,
		gate:       newHostGate(cfg.PerHostConcurrency, cfg.PerHostRate, cfg.PerHostBurst),
		byKey:      make(map[string]*job),
		byID:       make(map[uuid.UUID]*job),
		queue:      make(chan *job, cfg.QueueCapacity),
	}
}

// SetReclaimer wires the reaper in after construction; the two reference each
// other.
func (s *Scheduler) SetReclaimer(r Reclaimer) {
	s.reclaimerMu.Lock()
	defer s.reclaimerMu.Unlock()
	s.reclaimer = r
}

// Start launches the worker pool. Workers exit when ctx is cancelled; Wait
// blocks until they have drained.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j := <-s.queue:
					s.execute(ctx, j)
				}
			}
		}(i)
	}
	slog.Info("scheduler started", "workers", s.cfg.Workers, "queue_capacity", s.cfg.QueueCapacity)
}

// Wait blocks until all workers have exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Handle attaches one waiter to a job. Await or Cancel releases it; both are
// safe to call in either order, the waiter is counted out exactly once.
type Handle struct {
	JobID uuid.UUID

	j       *job
	release sync.Once
}

func (h *Handle) released() {
	h.release.Do(func() { h.j.addWaiter(-1) })
}

// Submit admits or coalesces a request. If an active job exists for the
// normalized key the caller attaches to it; a finished job whose artifact is
// still stored is also reused (attach resolves immediately). Submit never
// blocks on job execution.
func (s *Scheduler) Submit(url string, profile models.Profile) (*Handle, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	key, host, err := NormalizeKey(url, profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	s.mu.Lock()
	if existing, ok := s.byKey[key]; ok && s.reusable(existing) {
		existing.addWaiter(1)
		s.mu.Unlock()
		s.coalesced.Add(1)
		return &Handle{JobID: existing.snapshot().ID, j: existing}, nil
	}

	j := newJob(key, url, host, profile)
	j.addWaiter(1)

	// Enqueue before releasing the lock: once the entry is visible in byKey
	// another Submit may attach to it, and an attached waiter must never be
	// left holding a job that was backed out on a full queue. The send is
	// non-blocking, so holding s.mu here is safe.
	select {
	case s.queue <- j:
	default:
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.byKey[key] = j
	s.byID[j.snapshot().ID] = j
	s.mu.Unlock()

	s.submitted.Add(1)
	snap := j.snapshot()
	slog.Info("job submitted", "job_id", snap.ID, "key", snap.Key, "host", host, "profile", profile.String())
	return &Handle{JobID: snap.ID, j: j}, nil
}

// reusable reports whether new submissions may attach to this registry entry
// instead of creating a fresh job.
func (s *Scheduler) reusable(j *job) bool {
	snap := j.snapshot()
	if snap.State.Active() {
		return true
	}
	if snap.State == models.JobSucceeded && snap.ArtifactID != nil {
		_, err := s.artifacts.Get(*snap.ArtifactID)
		return err == nil
	}
	return false
}

// Await suspends the caller until the job reaches a terminal state or timeout
// elapses. Timeout never cancels the underlying job. The waiter is released
// on return either way.
func (s *Scheduler) Await(ctx context.Context, h *Handle, timeout time.Duration) (*models.Job, error) {
	defer h.released()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.j.done:
		h.j.markClaimed()
		return h.j.snapshot(), nil
	case <-timer.C:
		return nil, ErrAwaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel removes this waiter without touching the job: in-flight external
// work may still serve other waiters or a future identical request.
func (s *Scheduler) Cancel(h *Handle) { h.released() }

// Lookup returns a snapshot of the job. Reading a terminal state marks the
// result claimed; the visible snapshot itself never changes after that.
func (s *Scheduler) Lookup(id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	j, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	snap := j.snapshot()
	if snap.State.Terminal() {
		j.markClaimed()
		snap.Claimed = true
	}
	return snap, nil
}

// Jobs returns snapshots of every registered job, for the reaper.
func (s *Scheduler) Jobs() []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Job, 0, len(s.byID))
	for _, j := range s.byID {
		out = append(out, j.snapshot())
	}
	return out
}

// Destroy removes a job record if it is terminal with no waiters, returning
// its final snapshot. Only the reaper calls this.
func (s *Scheduler) Destroy(id uuid.UUID) (*models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	snap := j.snapshot()
	if !snap.State.Terminal() || snap.Waiters > 0 {
		return nil, false
	}
	delete(s.byID, id)
	if s.byKey[snap.Key] == j {
		delete(s.byKey, snap.Key)
	}
	return snap, true
}

// MarkArtifactsEvicted moves succeeded jobs whose artifact was reclaimed into
// the evicted state, so status queries reflect the loss.
func (s *Scheduler) MarkArtifactsEvicted(ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	gone := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}

	s.mu.Lock()
	jobs := make([]*job, 0, len(s.byID))
	for _, j := range s.byID {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	for _, j := range jobs {
		snap := j.snapshot()
		if snap.State == models.JobSucceeded && snap.ArtifactID != nil && gone[*snap.ArtifactID] {
			if j.transition(models.JobSucceeded, models.JobEvicted) == nil {
				s.evicted.Add(1)
			}
		}
	}
}

// Stats returns the current counter snapshot.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Submitted:  s.submitted.Load(),
		Coalesced:  s.coalesced.Load(),
		Succeeded:  s.succeeded.Load(),
		Failed:     s.failed.Load(),
		Evicted:    s.evicted.Load(),
		Attempts:   s.attempts.Load(),
		QueueDepth: len(s.queue),
		Workers:    s.cfg.Workers,
	}
}

func (s *Scheduler) reclaimNow() {
	s.reclaimerMu.Lock()
	r := s.reclaimer
	s.reclaimerMu.Unlock()
	if r != nil {
		r.ReapNow()
	}
}
