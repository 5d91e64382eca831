// Package handler implements the HTTP handlers over the pipeline. The
// handlers are thin: validation and status mapping only, no job semantics.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clipfetch/clipfetch/internal/api/response"
	"github.com/clipfetch/clipfetch/internal/scheduler"
	"github.com/clipfetch/clipfetch/pkg/models"
)

// Pipeline is the narrow scheduler surface the download handlers consume.
type Pipeline interface {
	Submit(url string, profile models.Profile) (*scheduler.Handle, error)
	Await(ctx context.Context, h *scheduler.Handle, timeout time.Duration) (*models.Job, error)
	Cancel(h *scheduler.Handle)
	Lookup(id uuid.UUID) (*models.Job, error)
	Stats() scheduler.Stats
}

// invalidInputDetails tags submission rejections with their place in the
// error taxonomy, alongside the HTTP-level code.
var invalidInputDetails = map[string]string{"kind": string(models.ErrInvalidInput)}

type submitRequest struct {
	URL    string `json:"url"`
	Format struct {
		Container string `json:"container"`
		AudioOnly bool   `json:"audio_only"`
		MaxHeight int    `json:"max_height"`
	} `json:"format"`
	// WaitSeconds > 0 holds the request open briefly in case the job
	// finishes quickly; polling remains the normal path.
	WaitSeconds int `json:"wait_seconds"`
}

type jobView struct {
	JobID      string  `json:"job_id"`
	State      string  `json:"state"`
	ErrorKind  *string `json:"error_kind,omitempty"`
	Diagnostic string  `json:"diagnostic,omitempty"`
	ArtifactID *string `json:"artifact_id,omitempty"`
	Attempt    int     `json:"attempt"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func viewOf(j *models.Job) jobView {
	v := jobView{
		JobID:      j.ID.String(),
		State:      string(j.State),
		Diagnostic: j.Diagnostic,
		Attempt:    j.Attempt,
		CreatedAt:  j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if j.ErrorKind != nil {
		s := string(*j.ErrorKind)
		v.ErrorKind = &s
	}
	if j.ArtifactID != nil {
		s := j.ArtifactID.String()
		v.ArtifactID = &s
	}
	return v
}

// NewSubmitHandler returns the handler for POST /api/v1/downloads.
func NewSubmitHandler(p Pipeline, maxWait time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.URL == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "url is required", invalidInputDetails)
			return
		}

		profile := models.Profile{
			Container: req.Format.Container,
			AudioOnly: req.Format.AudioOnly,
			MaxHeight: req.Format.MaxHeight,
		}
		if profile.Container == "" && !profile.AudioOnly {
			profile.Container = "mp4"
		}

		h, err := p.Submit(req.URL, profile)
		if err != nil {
			switch {
			case errors.Is(err, scheduler.ErrInvalidInput):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), invalidInputDetails)
			case errors.Is(err, scheduler.ErrBusy):
				response.Error(w, http.StatusServiceUnavailable, "BUSY", "Server busy, try again later", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
			return
		}

		if req.WaitSeconds <= 0 {
			p.Cancel(h)
			response.Accepted(w, acceptedView(p, h.JobID))
			return
		}

		wait := time.Duration(req.WaitSeconds) * time.Second
		if wait > maxWait {
			wait = maxWait
		}
		job, err := p.Await(r.Context(), h, wait)
		if err != nil {
			// Not done yet; the job keeps running and the caller polls.
			response.Accepted(w, acceptedView(p, h.JobID))
			return
		}
		response.JSON(w, viewOf(job))
	}
}

// acceptedView reports the job's current state with the 202: a coalesced
// submission may have attached to a job that is already terminal.
func acceptedView(p Pipeline, id uuid.UUID) map[string]string {
	state := models.JobPending
	if job, err := p.Lookup(id); err == nil {
		state = job.State
	}
	return map[string]string{
		"job_id": id.String(),
		"state":  string(state),
	}
}

// NewStatusHandler returns the handler for GET /api/v1/downloads/{jobID}.
// Repeated calls after a terminal state always return the same result.
func NewStatusHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}
		job, err := p.Lookup(id)
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "No such job", nil)
			return
		}
		response.JSON(w, viewOf(job))
	}
}
