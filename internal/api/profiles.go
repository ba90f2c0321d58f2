package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListDevices returns every device profile in the registry.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	reg := s.pipeline.Registry()
	if reg == nil {
		writeUnavailable(w, "inventory not built")
		return
	}

	devices := reg.Snapshot().Devices
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device profile by id.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	reg := s.pipeline.Registry()
	if reg == nil {
		writeUnavailable(w, "inventory not built")
		return
	}

	id := chi.URLParam(r, "id")
	dp, ok := reg.Device(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, dp)
}

// handleListPlatforms returns every platform profile with its device ids.
func (s *Server) handleListPlatforms(w http.ResponseWriter, _ *http.Request) {
	reg := s.pipeline.Registry()
	if reg == nil {
		writeUnavailable(w, "inventory not built")
		return
	}

	platforms := reg.Snapshot().Platforms
	writeJSON(w, http.StatusOK, map[string]any{"platforms": platforms, "count": len(platforms)})
}

// handleListLAN returns every LAN component profile. Credentials appear as
// secret references only.
func (s *Server) handleListLAN(w http.ResponseWriter, _ *http.Request) {
	reg := s.pipeline.Registry()
	if reg == nil {
		writeUnavailable(w, "inventory not built")
		return
	}

	lan := reg.Snapshot().LanComponents
	writeJSON(w, http.StatusOK, map[string]any{"lan_components": lan, "count": len(lan)})
}
