package models

// MediaInfo is extractor metadata for a source URL, returned by the probe
// endpoint without downloading anything.
type MediaInfo struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Uploader    string        `json:"uploader,omitempty"`
	DurationSec float64       `json:"duration_sec"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	WebpageURL  string        `json:"webpage_url,omitempty"`
	Formats     []MediaFormat `json:"formats,omitempty"`
}

// MediaFormat is one source stream variant reported by the extractor.
type MediaFormat struct {
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	Note     string `json:"note,omitempty"`
	Height   int    `json:"height,omitempty"`
	HasVideo bool   `json:"has_video"`
	HasAudio bool   `json:"has_audio"`
}
