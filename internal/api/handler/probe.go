package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/clipfetch/clipfetch/internal/api/response"
	"github.com/clipfetch/clipfetch/internal/extract"
	"github.com/clipfetch/clipfetch/internal/tool"
	"github.com/clipfetch/clipfetch/pkg/models"
)

// Prober is the metadata surface of the extraction adapter.
type Prober interface {
	Probe(ctx context.Context, url string) (*models.MediaInfo, error)
}

// NewProbeHandler returns the handler for GET /api/v1/probe?url=...
// It fetches extractor metadata without downloading media.
func NewProbeHandler(pr Prober) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "url query parameter is required", nil)
			return
		}

		info, err := pr.Probe(r.Context(), url)
		if err != nil {
			var pe *extract.ProbeError
			if errors.As(err, &pe) {
				switch pe.Class {
				case tool.ClassPermanent:
					response.Error(w, http.StatusNotFound, "CONTENT_UNAVAILABLE", pe.Diagnostic, nil)
				case tool.ClassTimeout:
					response.Error(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", pe.Diagnostic, nil)
				case tool.ClassTransient:
					response.Error(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", pe.Diagnostic, nil)
				default:
					response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
				}
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.JSON(w, info)
	}
}
