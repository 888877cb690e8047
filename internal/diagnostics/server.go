// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package diagnostics exposes a read-only local HTTP surface for
// operators: liveness, a prometheus scrape endpoint, and a snapshot of the
// sending state machine. It has no write path into the core and cannot
// influence sending or cache behavior.
package diagnostics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openkit-go/openkit/internal/log"
)

// StatusResponse is the JSON body served at /status.
type StatusResponse struct {
	State     string    `json:"state"`
	CacheSize int64     `json:"cache_bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// Server is the diagnostics HTTP surface. It is entirely optional: a
// process that never calls ListenAndServe on it behaves exactly as if it
// did not exist. stateName and cacheBytes are closures over whatever owns
// the sending context and cache, so this package never imports them
// directly and cannot gain a write path into either.
type Server struct {
	stateName  func() string
	cacheBytes func() int64
	router     chi.Router
}

// NewServer wires /healthz, /metrics, and /status behind a shared 60
// requests/minute per-IP rate limiter.
func NewServer(stateName func() string, cacheBytes func() int64) *Server {
	s := &Server{stateName: stateName, cacheBytes: cacheBytes}

	r := chi.NewRouter()
	r.Use(httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))

	r.Get("/healthz", s.serveHealth)
	r.Get("/status", s.serveStatus)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "diagnostics")

	resp := StatusResponse{Timestamp: time.Now()}
	if s.stateName != nil {
		resp.State = s.stateName()
	}
	if s.cacheBytes != nil {
		resp.CacheSize = s.cacheBytes()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("encode status response")
	}
}
