// Package transcode wraps ffmpeg behind the same subprocess discipline as the
// extraction adapter: bounded timeout, bounded output capture, classified
// outcomes.
package transcode

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/clipfetch/clipfetch/internal/tool"
	"github.com/clipfetch/clipfetch/pkg/models"
)

const diagnosticLimit = 512

// Config holds the immutable invocation parameters for the transcoder.
type Config struct {
	BinPath    string
	Timeout    time.Duration
	OutputCap  int
	RedactDirs []string
}

// Adapter invokes ffmpeg as an isolated subprocess.
type Adapter struct {
	runner *tool.Runner
	cfg    Config
}

// New returns a transcode adapter using the given tool configuration.
func New(cfg Config) *Adapter {
	return &Adapter{
		runner: tool.NewRunner(cfg.BinPath, cfg.Timeout, cfg.OutputCap),
		cfg:    cfg,
	}
}

// Transcode converts inputPath into profile's output format at outputPath.
// A missing, empty, or truncated input is a permanent failure and the external
// tool is not invoked on it.
func (a *Adapter) Transcode(ctx context.Context, inputPath string, profile models.Profile, outputPath string) (*tool.Outcome, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return &tool.Outcome{Class: tool.ClassPermanent, Diagnostic: "transcode input missing"}, nil
	}
	if info.Size() == 0 {
		return &tool.Outcome{Class: tool.ClassPermanent, Diagnostic: "transcode input is empty"}, nil
	}

	res, err := a.runner.Run(ctx, buildArgs(inputPath, profile, outputPath)...)
	if err != nil {
		return nil, fmt.Errorf("run transcoder: %w", err)
	}
	return a.classify(res, outputPath, profile.OutputFormat()), nil
}

// buildArgs renders the ffmpeg command line for the requested profile.
func buildArgs(inputPath string, profile models.Profile, outputPath string) []string {
	args := []string{"-y", "-loglevel", "error", "-nostdin", "-i", inputPath}

	if profile.AudioOnly {
		return append(args, "-vn", "-acodec", "libmp3lame", "-ar", "44100", "-b:a", "192k", outputPath)
	}

	if profile.MaxHeight > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:min(%d\\,ih)", profile.MaxHeight))
	}

	switch profile.Container {
	case "webm":
		args = append(args, "-c:v", "libvpx-vp9", "-b:v", "0", "-crf", "33", "-c:a", "libopus")
	default:
		// H.264 + AAC for broad playback compatibility on mp4/mkv.
		args = append(args,
			"-c:v", "libx264", "-preset", "fast", "-crf", "23", "-pix_fmt", "yuv420p",
			"-c:a", "aac", "-b:a", "128k")
		if profile.Container == "mp4" {
			args = append(args, "-movflags", "+faststart")
		}
	}
	return append(args, outputPath)
}

func (a *Adapter) classify(res *tool.Result, outputPath, format string) *tool.Outcome {
	if res.TimedOut {
		return &tool.Outcome{Class: tool.ClassTimeout, Diagnostic: "transcoder exceeded its time budget"}
	}

	if res.ExitCode == 0 {
		info, err := os.Stat(outputPath)
		if err != nil || info.Size() == 0 {
			return &tool.Outcome{Class: tool.ClassInternal, Diagnostic: "transcoder produced no output"}
		}
		return &tool.Outcome{Class: tool.ClassSuccess, Path: outputPath, Format: format}
	}

	// ffmpeg works on local files; its failures do not heal on retry.
	return &tool.Outcome{
		Class:      tool.ClassPermanent,
		Diagnostic: tool.Sanitize(res.Stderr, diagnosticLimit, a.cfg.RedactDirs...),
	}
}
