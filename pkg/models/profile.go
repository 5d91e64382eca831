package models

import "fmt"

// Containers the transcode adapter knows how to produce.
var validContainers = map[string]bool{
	"mp4":  true,
	"mkv":  true,
	"webm": true,
}

// Profile describes the requested output of a download job. It is part of the
// deduplication key: two requests for the same URL with different profiles are
// distinct jobs.
type Profile struct {
	Container string `json:"container"`
	AudioOnly bool   `json:"audio_only"`
	MaxHeight int    `json:"max_height,omitempty"` // 0 means unbounded
}

// Validate checks the profile against the recognized option set.
func (p Profile) Validate() error {
	if p.AudioOnly {
		// Audio-only output is always mp3; a container selection is ignored
		// rather than rejected so callers can send a constant shape.
		return nil
	}
	if !validContainers[p.Container] {
		return fmt.Errorf("unrecognized container %q", p.Container)
	}
	if p.MaxHeight < 0 {
		return fmt.Errorf("max_height must be >= 0, got %d", p.MaxHeight)
	}
	return nil
}

// OutputFormat is the container/extension of the deliverable this profile
// produces.
func (p Profile) OutputFormat() string {
	if p.AudioOnly {
		return "mp3"
	}
	return p.Container
}

// String renders the profile in canonical form for key derivation. The
// rendering is stable: equal profiles always produce equal strings.
func (p Profile) String() string {
	if p.AudioOnly {
		return "audio/mp3"
	}
	if p.MaxHeight > 0 {
		return fmt.Sprintf("video/%s/h%d", p.Container, p.MaxHeight)
	}
	return "video/" + p.Container
}
