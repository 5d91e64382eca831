package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/clipfetch/clipfetch/internal/store"
	"github.com/clipfetch/clipfetch/internal/tool"
	"github.com/clipfetch/clipfetch/pkg/models"
)

// execute runs one job to a terminal state on the calling worker. External
// tool invocations block the worker for their duration; the worker is the
// unit of parallelism.
func (s *Scheduler) execute(ctx context.Context, j *job) {
	if err := j.transition(models.JobPending, models.JobRunning); err != nil {
		// Another owner got here first; the CAS is the guard.
		slog.Warn("skipping job not in pending state", "error", err)
		return
	}
	snap := j.snapshot()
	log := slog.With("job_id", snap.ID, "key", snap.Key)
	log.Info("job running", "attempt_budget", s.cfg.RetryLimit+1)

	outcome, err := s.extractWithRetry(ctx, j)
	if err != nil {
		s.failJob(j, models.ErrInternal, "extractor could not be invoked")
		log.Error("extractor invocation fault", "error", err)
		return
	}
	if outcome.Class != tool.ClassSuccess {
		kind := errorKindFor(outcome.Class, true)
		if kind.Retryable() {
			// extractWithRetry already spent the attempt budget on it.
			kind = models.ErrUpstreamUnavailable
		}
		s.failJob(j, kind, outcome.Diagnostic)
		log.Info("job failed at extraction", "error_kind", kind, "attempts", j.snapshot().Attempt)
		return
	}

	rawPath, rawFormat := outcome.Path, outcome.Format
	title := outcome.Title
	profile := snap.Profile

	deliverablePath, deliverableFormat := rawPath, rawFormat
	if profile.OutputFormat() != rawFormat {
		out, err := s.transcodeRaw(ctx, j, rawPath, profile)
		// The raw file is an intermediate, not the deliverable; it goes away
		// as soon as transcoding has either consumed it or permanently
		// rejected it.
		s.artifacts.DiscardStaged(rawPath)
		if err != nil {
			s.failJob(j, models.ErrInternal, "transcoder could not be invoked")
			log.Error("transcoder invocation fault", "error", err)
			return
		}
		if out.Class != tool.ClassSuccess {
			kind := errorKindFor(out.Class, false)
			s.failJob(j, kind, out.Diagnostic)
			log.Info("job failed at transcode", "error_kind", kind)
			return
		}
		deliverablePath, deliverableFormat = out.Path, out.Format
	}

	artifact, err := s.promote(deliverablePath, store.PromoteMeta{Format: deliverableFormat, Title: title})
	if err != nil {
		s.artifacts.DiscardStaged(deliverablePath)
		if errors.Is(err, store.ErrStoreFull) {
			s.failJob(j, models.ErrStoreFull, "artifact store is full")
		} else {
			s.failJob(j, models.ErrInternal, "failed to store artifact")
			log.Error("artifact promotion fault", "error", err)
		}
		return
	}

	j.succeed(artifact.ID)
	s.succeeded.Add(1)
	log.Info("job succeeded", "artifact_id", artifact.ID, "format", artifact.Format, "size_bytes", artifact.SizeBytes)
}

// extractWithRetry drives the extraction adapter under the retry policy:
// transient outcomes retry with exponential backoff up to the attempt budget,
// everything else short-circuits.
func (s *Scheduler) extractWithRetry(ctx context.Context, j *job) (*tool.Outcome, error) {
	snap := j.snapshot()
	stagingPath := s.artifacts.Stage(s.rawFormat(snap.Profile))

	var last *tool.Outcome
	op := func() error {
		j.bumpAttempt()
		s.attempts.Add(1)

		release, err := s.gate.acquire(ctx, j.host)
		if err != nil {
			return backoff.Permanent(err)
		}
		out, err := s.extractor.Extract(ctx, snap.SourceURL, stagingPath, snap.Profile)
		release()
		if err != nil {
			return backoff.Permanent(err)
		}

		last = out
		switch out.Class {
		case tool.ClassSuccess:
			return nil
		case tool.ClassTransient:
			// A partial file must not leak into the next attempt.
			s.artifacts.DiscardStaged(stagingPath)
			return fmt.Errorf("transient extraction failure: %s", out.Diagnostic)
		default:
			return backoff.Permanent(fmt.Errorf("extraction failed: %s", out.Diagnostic))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.RetryBaseDelay
	bo.MaxInterval = 30 * time.Second

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(s.cfg.RetryLimit)), ctx))
	if err != nil && last == nil {
		s.artifacts.DiscardStaged(stagingPath)
		return nil, err
	}
	if err != nil && last.Class == tool.ClassTransient {
		// Retry budget exhausted on a transient failure.
		s.artifacts.DiscardStaged(stagingPath)
	}
	return last, nil
}

func (s *Scheduler) transcodeRaw(ctx context.Context, j *job, rawPath string, profile models.Profile) (*tool.Outcome, error) {
	outPath := s.artifacts.Stage(profile.OutputFormat())
	out, err := s.transcoder.Transcode(ctx, rawPath, profile, outPath)
	if err != nil || out.Class != tool.ClassSuccess {
		s.artifacts.DiscardStaged(outPath)
	}
	return out, err
}

// promote registers the deliverable, with one eager reclamation retry when
// the store reports it is full.
func (s *Scheduler) promote(path string, meta store.PromoteMeta) (*models.Artifact, error) {
	artifact, err := s.artifacts.Promote(path, meta)
	if !errors.Is(err, store.ErrStoreFull) {
		return artifact, err
	}
	slog.Warn("store full, triggering eager reclamation")
	s.reclaimNow()
	return s.artifacts.Promote(path, meta)
}

func (s *Scheduler) failJob(j *job, kind models.ErrorKind, diagnostic string) {
	j.fail(kind, diagnostic)
	s.failed.Add(1)
}

// errorKindFor maps an adapter classification onto the error taxonomy.
// Transient extraction failures come back as the retryable kind; the caller
// decides whether budget remains or the failure surfaces as
// upstream-unavailable.
func errorKindFor(c tool.Class, extraction bool) models.ErrorKind {
	switch c {
	case tool.ClassTransient:
		if extraction {
			return models.ErrTransientFailure
		}
		return models.ErrInternal
	case tool.ClassPermanent:
		return models.ErrPermanentFailure
	case tool.ClassTimeout:
		return models.ErrTimeout
	default:
		return models.ErrInternal
	}
}
