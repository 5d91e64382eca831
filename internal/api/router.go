// Package api assembles the HTTP surface over the pipeline.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/clipfetch/clipfetch/internal/api/middleware"
)

// Dependencies holds the handlers the router wires up.
type Dependencies struct {
	SubmitHandler http.HandlerFunc
	StatusHandler http.HandlerFunc
	StreamHandler http.HandlerFunc
	ProbeHandler  http.HandlerFunc
	StatsHandler  http.HandlerFunc
	HealthHandler http.HandlerFunc
}

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", deps.HealthHandler)
	r.Get("/api/v1/stats", deps.StatsHandler)

	r.Post("/api/v1/downloads", deps.SubmitHandler)
	r.Get("/api/v1/downloads/{jobID}", deps.StatusHandler)
	r.Get("/api/v1/artifacts/{artifactID}", deps.StreamHandler)
	r.Get("/api/v1/probe", deps.ProbeHandler)

	return r
}
