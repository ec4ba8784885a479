package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samtale/samtale/internal/api/middleware"
	"github.com/samtale/samtale/internal/service"
)

type PresenceHandler struct {
	svc *service.PresenceService
}

func NewPresenceHandler(svc *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{svc: svc}
}

type heartbeatRequest struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.svc.Heartbeat(chatbot.ID, req.AgentID, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrAgentIDRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *PresenceHandler) Online(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"agents": h.svc.Online(chatbot.ID)})
}

func (h *PresenceHandler) Offline(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agent id is required")
		return
	}

	h.svc.Offline(chatbot.ID, agentID)
	w.WriteHeader(http.StatusNoContent)
}
