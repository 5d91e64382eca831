// Package extract wraps the external retrieval tool (yt-dlp) behind a typed
// success/failure contract. It writes only into scheduler-provided staging
// paths, never into the public artifact store.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/clipfetch/clipfetch/internal/tool"
	"github.com/clipfetch/clipfetch/pkg/models"
)

const diagnosticLimit = 512

// Config holds the immutable invocation parameters for the extractor.
type Config struct {
	BinPath   string
	Timeout   time.Duration
	OutputCap int
	// RedactDirs are host directories scrubbed from diagnostics.
	RedactDirs []string
}

// Adapter invokes yt-dlp as an isolated subprocess.
type Adapter struct {
	runner *tool.Runner
	cfg    Config
}

// New returns an extraction adapter using the given tool configuration.
func New(cfg Config) *Adapter {
	return &Adapter{
		runner: tool.NewRunner(cfg.BinPath, cfg.Timeout, cfg.OutputCap),
		cfg:    cfg,
	}
}

// RawFormat is the container the extractor is asked to produce for a profile,
// before any transcoding.
func RawFormat(p models.Profile) string {
	if p.AudioOnly {
		return "m4a"
	}
	return "mp4"
}

// Extract resolves url into a raw media file at stagingPath. The outcome is
// always classified; the error return is reserved for faults launching the
// subprocess.
func (a *Adapter) Extract(ctx context.Context, url, stagingPath string, profile models.Profile) (*tool.Outcome, error) {
	args := a.downloadArgs(url, stagingPath, profile)

	res, err := a.runner.Run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("run extractor: %w", err)
	}
	return a.classify(res, stagingPath, RawFormat(profile)), nil
}

func (a *Adapter) downloadArgs(url, stagingPath string, profile models.Profile) []string {
	// --print implies simulation, so --no-simulate keeps the download while
	// the title lands on stdout for the artifact's filename.
	args := []string{"--no-playlist", "--no-warnings", "--no-progress",
		"--print", "after_move:title", "--no-simulate", "-o", stagingPath}
	if profile.AudioOnly {
		args = append(args, "-f", "bestaudio/best")
	} else {
		args = append(args, "--merge-output-format", "mp4")
		if profile.MaxHeight > 0 {
			sel := fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]",
				profile.MaxHeight, profile.MaxHeight)
			args = append(args, "-f", sel)
		} else {
			args = append(args, "-f", "bestvideo+bestaudio/best")
		}
	}
	return append(args, url)
}

func (a *Adapter) classify(res *tool.Result, stagingPath, format string) *tool.Outcome {
	diag := tool.Sanitize(res.Stderr, diagnosticLimit, a.cfg.RedactDirs...)

	if res.TimedOut {
		return &tool.Outcome{Class: tool.ClassTimeout, Diagnostic: "extractor exceeded its time budget"}
	}

	if res.ExitCode == 0 {
		info, err := os.Stat(stagingPath)
		if err != nil || info.Size() == 0 {
			slog.Error("extractor exited 0 but produced no output", "path", stagingPath)
			return &tool.Outcome{Class: tool.ClassInternal, Diagnostic: "extractor produced no output"}
		}
		return &tool.Outcome{
			Class:  tool.ClassSuccess,
			Path:   stagingPath,
			Format: format,
			Title:  printedTitle(res.Stdout),
		}
	}

	return &tool.Outcome{Class: classifyStderr(res.Stderr), Diagnostic: diag}
}

// printedTitle extracts the title the tool printed on stdout. The tool may
// write other lines around it; the first non-empty one is the print output.
func printedTitle(stdout []byte) string {
	for _, line := range strings.Split(string(stdout), "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// Marker tables for yt-dlp's final error line. Unknown failures default to
// transient: a wasted retry is cheaper than failing a recoverable job.
var permanentMarkers = []string{
	"Video unavailable",
	"Private video",
	"This video is not available",
	"This video has been removed",
	"has been terminated",
	"Unsupported URL",
	"is not a valid URL",
	"Requested format is not available",
	"Sign in to confirm",
}

var transientMarkers = []string{
	"HTTP Error 429",
	"HTTP Error 500",
	"HTTP Error 502",
	"HTTP Error 503",
	"timed out",
	"Temporary failure",
	"Connection reset",
	"Connection refused",
	"Unable to download webpage",
	"Unable to download video data",
}

func classifyStderr(stderr []byte) tool.Class {
	s := string(stderr)
	for _, m := range permanentMarkers {
		if strings.Contains(s, m) {
			return tool.ClassPermanent
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(s, m) {
			return tool.ClassTransient
		}
	}
	return tool.ClassTransient
}
