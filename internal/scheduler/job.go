package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipfetch/clipfetch/pkg/models"
)

// job is the registry entry for one logical download. The embedded record is
// only ever mutated under mu; everyone else sees snapshots. The done channel
// is the one-shot completion broadcast: closed exactly once, at the terminal
// transition, so subscribing after completion resolves immediately.
type job struct {
	mu   sync.Mutex
	rec  models.Job
	host string
	done chan struct{}
}

func newJob(key, sourceURL, host string, profile models.Profile) *job {
	now := time.Now()
	return &job{
		rec: models.Job{
			ID:        uuid.New(),
			Key:       key,
			SourceURL: sourceURL,
			Profile:   profile,
			State:     models.JobPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		host: host,
		done: make(chan struct{}),
	}
}

func (j *job) snapshot() *models.Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := j.rec
	return &cp
}

// transition is the compare-and-set state change guarding against double
// execution: it fails unless the job is currently in from, and it enforces
// the legal transition table. Terminal transitions fire the completion
// broadcast.
func (j *job) transition(from, to models.JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.rec.State != from {
		return fmt.Errorf("job %s: expected state %s, found %s", j.rec.ID, from, j.rec.State)
	}
	if !allowedTransition(from, to) {
		return fmt.Errorf("job %s: disallowed transition %s -> %s", j.rec.ID, from, to)
	}
	j.rec.State = to
	j.rec.UpdatedAt = time.Now()
	if to.Terminal() && !from.Terminal() {
		close(j.done)
	}
	return nil
}

func allowedTransition(from, to models.JobState) bool {
	switch from {
	case models.JobPending:
		return to == models.JobRunning
	case models.JobRunning:
		return to == models.JobSucceeded || to == models.JobFailed
	case models.JobSucceeded:
		// Reaper evicted the artifact out from under a completed job.
		return to == models.JobEvicted
	default:
		return false
	}
}

// fail records the classified failure while transitioning to Failed.
func (j *job) fail(kind models.ErrorKind, diagnostic string) {
	j.mu.Lock()
	j.rec.ErrorKind = &kind
	j.rec.Diagnostic = diagnostic
	j.mu.Unlock()
	// transition takes its own lock; errors here mean the job was already
	// terminal, which the CAS makes impossible for a running owner.
	_ = j.transition(models.JobRunning, models.JobFailed)
}

func (j *job) succeed(artifactID uuid.UUID) {
	j.mu.Lock()
	j.rec.ArtifactID = &artifactID
	j.mu.Unlock()
	_ = j.transition(models.JobRunning, models.JobSucceeded)
}

func (j *job) bumpAttempt() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rec.Attempt++
	return j.rec.Attempt
}

func (j *job) addWaiter(delta int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rec.Waiters += delta
	if j.rec.Waiters < 0 {
		j.rec.Waiters = 0
	}
	j.rec.UpdatedAt = time.Now()
}

func (j *job) markClaimed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rec.Claimed = true
}
