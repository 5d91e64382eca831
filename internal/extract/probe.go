package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clipfetch/clipfetch/internal/tool"
	"github.com/clipfetch/clipfetch/pkg/models"
)

// ProbeError is a classified probe failure, carrying a sanitized diagnostic
// for the API layer.
type ProbeError struct {
	Class      tool.Class
	Diagnostic string
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe failed (%s): %s", e.Class, e.Diagnostic)
}

// ytdlpJSON mirrors the subset of `yt-dlp -J` output the probe surface needs.
type ytdlpJSON struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail"`
	WebpageURL string  `json:"webpage_url"`
	Formats    []struct {
		FormatID   string `json:"format_id"`
		Ext        string `json:"ext"`
		Height     int    `json:"height"`
		VCodec     string `json:"vcodec"`
		ACodec     string `json:"acodec"`
		FormatNote string `json:"format_note"`
	} `json:"formats"`
}

// Probe fetches extractor metadata for url without downloading media.
func (a *Adapter) Probe(ctx context.Context, url string) (*models.MediaInfo, error) {
	res, err := a.runner.Run(ctx, "-J", "--no-playlist", "--no-warnings", url)
	if err != nil {
		return nil, fmt.Errorf("run extractor probe: %w", err)
	}

	diag := tool.Sanitize(res.Stderr, diagnosticLimit, a.cfg.RedactDirs...)
	if res.TimedOut {
		return nil, &ProbeError{Class: tool.ClassTimeout, Diagnostic: "extractor exceeded its time budget"}
	}
	if res.ExitCode != 0 {
		return nil, &ProbeError{Class: classifyStderr(res.Stderr), Diagnostic: diag}
	}

	var data ytdlpJSON
	if err := json.Unmarshal(res.Stdout, &data); err != nil {
		return nil, &ProbeError{Class: tool.ClassInternal, Diagnostic: "extractor returned unparseable metadata"}
	}

	info := &models.MediaInfo{
		ID:          data.ID,
		Title:       data.Title,
		Uploader:    data.Uploader,
		DurationSec: data.Duration,
		Thumbnail:   data.Thumbnail,
		WebpageURL:  data.WebpageURL,
	}
	for _, f := range data.Formats {
		info.Formats = append(info.Formats, models.MediaFormat{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			Note:     f.FormatNote,
			Height:   f.Height,
			HasVideo: f.VCodec != "" && f.VCodec != "none",
			HasAudio: f.ACodec != "" && f.ACodec != "none",
		})
	}
	return info, nil
}
