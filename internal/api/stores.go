package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// failureResponse is a provisioning failure as returned by the API.
type failureResponse struct {
	Category string `json:"category"`
	ObjectID string `json:"object_id"`
	Key      string `json:"key,omitempty"`
	Error    string `json:"error"`
}

// handleListStores returns the provisioned store handles, the reserved
// keys, and the objects that could not be provisioned.
func (s *Server) handleListStores(w http.ResponseWriter, _ *http.Request) {
	handles := s.pipeline.Handles()
	if handles == nil {
		writeUnavailable(w, "evidence stores not provisioned")
		return
	}

	failures := make([]failureResponse, 0, len(handles.Failures()))
	for _, f := range handles.Failures() {
		failures = append(failures, failureResponse{
			Category: string(f.Category),
			ObjectID: f.ObjectID,
			Key:      f.Key,
			Error:    f.Err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stores":   handles.Handles(),
		"reserved": handles.Reserved(),
		"failures": failures,
		"count":    handles.Len(),
	})
}

// handleListRecords returns the most recent records of one store.
//
// Query parameters:
//   - limit: maximum records to return (default 50, max 1000)
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	handles := s.pipeline.Handles()
	if handles == nil {
		writeUnavailable(w, "evidence stores not provisioned")
		return
	}

	key := chi.URLParam(r, "key")
	h, ok := handles.Get(key)
	if !ok {
		writeNotFound(w, "store not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.Store.Records(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading evidence records", "key", key, "error", err)
		writeInternalError(w, "failed to read records")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"key": key, "records": records, "count": len(records)})
}

// registrationResponse is one collection path's state.
type registrationResponse struct {
	Path           string `json:"path"`
	Active         bool   `json:"active"`
	Reserved       bool   `json:"reserved"`
	Entities       int    `json:"entities"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleRegistration returns the state of every evidence collection path.
func (s *Server) handleRegistration(w http.ResponseWriter, _ *http.Request) {
	results := s.pipeline.RegistrationResults()

	paths := make([]registrationResponse, 0, len(results))
	for _, res := range results {
		resp := registrationResponse{
			Path:           string(res.Path),
			Active:         res.Active,
			Reserved:       res.Reserved,
			Entities:       res.Entities,
			SubscriptionID: res.SubscriptionID,
		}
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
		paths = append(paths, resp)
	}

	writeJSON(w, http.StatusOK, map[string]any{"paths": paths})
}
