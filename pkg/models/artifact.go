package models

import (
	"time"

	"github.com/google/uuid"
)

// Artifact is a materialized file in the store's addressed namespace.
// The Artifact Store exclusively owns the file; refcounted checkouts keep it
// alive while the serving layer streams it to a caller.
type Artifact struct {
	ID             uuid.UUID `json:"id"`
	Path           string    `json:"-"` // host path, never serialized to callers
	SizeBytes      int64     `json:"size_bytes"`
	Format         string    `json:"format"`
	Title          string    `json:"title,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	RefCount       int       `json:"ref_count"`
}

// ContentType maps the artifact's container format to a MIME type for the
// streaming endpoint.
func (a *Artifact) ContentType() string {
	switch a.Format {
	case "mp3":
		return "audio/mpeg"
	case "m4a":
		return "audio/mp4"
	case "mkv":
		return "video/x-matroska"
	case "webm":
		return "video/webm"
	case "mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
