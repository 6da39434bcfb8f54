package main

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/acousland/MacEaves/internal/eventlog"
	"github.com/acousland/MacEaves/internal/transcribe"
	"github.com/acousland/MacEaves/internal/types"
)

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

// apiKeyAuth returns middleware for API key authentication on the REST
// control API.
func (s *Server) apiKeyAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := s.config.ControlAPIKey()
		if apiKey == "" {
			http.Error(w, "API key not configured", http.StatusServiceUnavailable)
			return
		}

		providedKey := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleAPIHealth handles GET /api/health.
func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

// handleAPIStatus handles GET /api/status.
func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.buildWSStatus())
}

// handleAPIDevices handles GET /api/devices.
func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	inputs, outputs := s.catalog.List()
	s.writeJSON(w, http.StatusOK, map[string][]types.AudioDevice{
		"input_devices":  inputs,
		"output_devices": outputs,
	})
}

// handleAPITranscript handles GET /api/transcript.
func (s *Server) handleAPITranscript(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    s.engine.Status(),
		"lines":     s.engine.Lines(),
		"full_text": s.engine.FullTranscript(),
	})
}

// handleAPISummary handles GET /api/summary.
func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	summary := s.commands.LastSummary()
	if summary == nil {
		s.writeError(w, http.StatusNotFound, "no summary available")
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// handleAPIEvents handles GET /api/events?limit=N&offset=N&filter=monitor.
func (s *Server) handleAPIEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}
	filter := eventlog.TypeFilter(r.URL.Query().Get("filter"))

	events, hasMore, err := eventlog.ReadLast(s.events.Path(), limit, offset, filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"events":   events,
		"has_more": hasMore,
	})
}

// handleAPITranscribeStart handles POST /api/transcribe/start?device_id=xxx.
// With no device_id, the configured input device is used.
func (s *Server) handleAPITranscribeStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.config.Snapshot()
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = cfg.InputDevice
	}
	if deviceID == "" {
		s.writeError(w, http.StatusBadRequest, "no input device selected")
		return
	}

	factory, err := transcribe.NewFactory(cfg.Provider, cfg.APIKey, types.TranscribeSampleRate)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.SetFactory(factory)

	if err := s.engine.Start(deviceID); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	status := s.engine.Status()
	if err := s.events.LogTranscribe(eventlog.TranscribeStarted, status.SessionID, deviceID, 0, ""); err != nil {
		slog.Warn("failed to write event log", "error", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":     "transcription_started",
		"session_id": status.SessionID,
		"device_id":  deviceID,
	})
}

// handleAPITranscribeStop handles POST /api/transcribe/stop.
func (s *Server) handleAPITranscribeStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.engine.Status()
	if err := s.engine.Stop(); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	if err := s.events.LogTranscribe(eventlog.TranscribeStopped, status.SessionID, status.DeviceID, status.Lines, ""); err != nil {
		slog.Warn("failed to write event log", "error", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":     "transcription_stopped",
		"session_id": status.SessionID,
	})
}
