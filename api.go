package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/oszuidwest/zwfm-soundlevel/internal/audio"
)

// DeviceLister enumerates audio input devices.
type DeviceLister interface {
	Devices() ([]audio.Device, error)
}

// API response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// handleAPILevels returns the last closed sampling window.
// GET /api/levels
func (s *Server) handleAPILevels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	msg, ok := s.hub.Last()
	if !ok {
		s.writeError(w, http.StatusNotFound, "No sampling window has closed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

// handleAPIDevices returns available audio input devices.
// GET /api/devices
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.devices == nil {
		s.writeError(w, http.StatusNotFound, "Device listing is not available")
		return
	}

	devices, err := s.devices.Devices()
	if err != nil {
		slog.Error("failed to list audio devices", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list audio devices")
		return
	}
	if devices == nil {
		devices = []audio.Device{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
	})
}
