package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.readOnlyMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/profiles", func(r chi.Router) {
				r.Get("/devices", s.handleListDevices)
				r.Get("/devices/{id}", s.handleGetDevice)
				r.Get("/platforms", s.handleListPlatforms)
				r.Get("/lan", s.handleListLAN)
			})

			r.Route("/stores", func(r chi.Router) {
				r.Get("/", s.handleListStores)
				r.Get("/{key}/records", s.handleListRecords)
			})

			r.Get("/registration", s.handleRegistration)

			if s.hub != nil {
				r.Get(s.hub.cfg.Path, s.handleWebSocket)
			}
		})
	})

	return r
}

// handleHealth returns the server health status and pipeline phase.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"phase":   s.pipeline.Phase(),
		"auth":    s.security.JWT.Secret != "",
		"version": s.version,
	})
}
