package handler

import (
	"net/http"

	"github.com/clipfetch/clipfetch/internal/api/response"
	"github.com/clipfetch/clipfetch/internal/store"
)

// NewStatsHandler returns the handler for GET /api/v1/stats.
func NewStatsHandler(p Pipeline, st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, map[string]any{
			"scheduler": p.Stats(),
			"store": map[string]any{
				"artifacts":      len(st.List()),
				"total_bytes":    st.TotalBytes(),
				"capacity_bytes": st.Capacity(),
			},
		})
	}
}

// NewHealthHandler returns the handler for GET /api/v1/health.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, map[string]string{"status": "ok"})
	}
}
