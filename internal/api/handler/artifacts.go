package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clipfetch/clipfetch/internal/api/response"
	"github.com/clipfetch/clipfetch/internal/store"
)

// NewStreamHandler returns the handler for GET /api/v1/artifacts/{artifactID}.
// The artifact is checked out for the duration of the stream so the reaper
// cannot delete it mid-transfer.
func NewStreamHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "artifactID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "artifactID must be a UUID", nil)
			return
		}

		checkout, err := st.Acquire(id)
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "No such artifact", nil)
			return
		}
		defer checkout.Release()

		meta, err := st.Get(id)
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "No such artifact", nil)
			return
		}

		f, err := checkout.Open()
		if err != nil {
			slog.Error("failed to open artifact file", "artifact_id", id, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Artifact unreadable", nil)
			return
		}
		defer f.Close()

		name := meta.Title
		if name == "" {
			name = meta.ID.String()
		}
		w.Header().Set("Content-Type", meta.ContentType())
		w.Header().Set("Content-Length", strconv.FormatInt(meta.SizeBytes, 10))
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", name+"."+meta.Format))
		io.Copy(w, f)
	}
}
