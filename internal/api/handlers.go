// HTTP handlers for the conversation endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

type startConversationRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type respondRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

type submitPhoneRequest struct {
	PhoneNumber string `json:"phone_number"`
	SessionID   string `json:"session_id"`
}

// startConversationHandler allocates a session and returns the first prompt.
func (s *Server) startConversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req startConversationRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("Server.startConversationHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
	}

	result, err := s.orchestrator.StartConversation(req.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrNoFlowConfigured) {
			slog.Error("Server.startConversationHandler: no flow configured")
			writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("No conversation flow configured"))
			return
		}
		slog.Error("Server.startConversationHandler: failed to start conversation", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start conversation"))
		return
	}

	slog.Info("Server.startConversationHandler: conversation started", "sessionID", result.SessionID)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// respondHandler is the main message entry point.
func (s *Server) respondHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.respondHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	platform := models.Platform(req.Platform)
	if platform == "" {
		platform = models.PlatformWeb
	}

	result, err := s.orchestrator.ProcessMessage(r.Context(), req.Message, req.SessionID, platform)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyMessage),
			errors.Is(err, models.ErrMessageTooLong),
			errors.Is(err, models.ErrInvalidPlatform):
			slog.Warn("Server.respondHandler: invalid request", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		case errors.Is(err, models.ErrNoFlowConfigured):
			slog.Error("Server.respondHandler: no flow configured")
			writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("No conversation flow configured"))
		default:
			slog.Error("Server.respondHandler: orchestration failed", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// submitPhoneHandler is the direct phone submission path.
func (s *Server) submitPhoneHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req submitPhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitPhoneHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SessionID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("session_id is required"))
		return
	}

	result, err := s.orchestrator.SubmitPhone(r.Context(), req.PhoneNumber, req.SessionID)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			slog.Warn("Server.submitPhoneHandler: session not found", "sessionID", req.SessionID)
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("Server.submitPhoneHandler: submission failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process phone number"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// sessionStatusHandler returns a read-only view of a session's progress.
func (s *Server) sessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/conversation/status/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid session id"))
		return
	}

	ctxView, err := s.orchestrator.GetSessionContext(sessionID)
	if err != nil {
		slog.Error("Server.sessionStatusHandler: failed to load session", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(ctxView))
}

// flowHandler returns the active flow definition.
func (s *Server) flowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	def, err := s.store.GetFlowDefinition()
	if err != nil {
		slog.Error("Server.flowHandler: failed to load flow", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation flow"))
		return
	}
	if def == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No conversation flow configured"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"flow":       def,
		"step_count": len(def.Steps),
	}))
}

// leadsHandler lists captured leads, most recent first.
func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultLeadsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		limit = parsed
	}

	leads, err := s.store.ListLeads(limit)
	if err != nil {
		slog.Error("Server.leadsHandler: failed to list leads", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list leads"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"leads": leads,
		"count": len(leads),
	}))
}

// statusHandler reports overall service health.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(s.orchestrator.Status()))
}

// healthHandler is the liveness endpoint.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Service is healthy", nil))
}
