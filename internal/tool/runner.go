// Package tool runs external command-line programs under the discipline both
// adapters need: a hard per-invocation timeout and bounded capture of whatever
// the tool writes, however chatty it is.
package tool

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"
)

// Result is the ephemeral outcome of one subprocess invocation. It is consumed
// immediately by the adapter that requested the run and never persisted.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
	Duration time.Duration
}

// Runner invokes a single external binary. The zero value is not usable;
// construct with NewRunner.
type Runner struct {
	bin       string
	timeout   time.Duration
	outputCap int
}

// NewRunner returns a Runner for bin. Every Run is bounded by timeout, and
// each captured stream is truncated to outputCap bytes, keeping the tail
// (external tools report the interesting part last).
func NewRunner(bin string, timeout time.Duration, outputCap int) *Runner {
	return &Runner{bin: bin, timeout: timeout, outputCap: outputCap}
}

// Run executes the binary with args and waits for it to exit. A non-zero exit
// is not an error here: callers classify exit codes and diagnostics themselves.
// The returned error is reserved for faults starting the process.
func (r *Runner) Run(ctx context.Context, args ...string) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.bin, args...)
	stdout := newCapBuffer(r.outputCap)
	stderr := newCapBuffer(r.outputCap)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else if res.TimedOut {
			res.ExitCode = -1
		} else {
			return nil, err
		}
	}

	slog.Debug("tool finished",
		"bin", r.bin,
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
