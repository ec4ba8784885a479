package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/samtale/samtale/internal/api/middleware"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/service"
)

type RetentionHandler struct {
	svc *service.RetentionService
}

func NewRetentionHandler(svc *service.RetentionService) *RetentionHandler {
	return &RetentionHandler{svc: svc}
}

type retentionSettingsRequest struct {
	RetentionDays int  `json:"retention_days"`
	Enabled       bool `json:"enabled"`
}

type retentionSettingsResponse struct {
	RetentionDays  int        `json:"retention_days"`
	Enabled        bool       `json:"enabled"`
	LastCleanupRun *time.Time `json:"last_cleanup_run,omitempty"`
}

func toRetentionSettingsResponse(p *domain.RetentionPolicy) retentionSettingsResponse {
	return retentionSettingsResponse{
		RetentionDays:  p.RetentionDays,
		Enabled:        p.Enabled,
		LastCleanupRun: p.LastCleanupRun,
	}
}

func (h *RetentionHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.svc.GetSettings(r.Context(), chatbot.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get retention settings")
		return
	}

	writeJSON(w, http.StatusOK, toRetentionSettingsResponse(p))
}

func (h *RetentionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req retentionSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.svc.UpdateSettings(r.Context(), chatbot.ID, req.RetentionDays, req.Enabled)
	if err != nil {
		if errors.Is(err, service.ErrRetentionDaysRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update retention settings")
		return
	}

	writeJSON(w, http.StatusOK, toRetentionSettingsResponse(p))
}

func (h *RetentionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sampleSize := 0
	if raw := r.URL.Query().Get("sample"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid sample parameter")
			return
		}
		sampleSize = n
	}

	// days overrides the stored window for what-if previews.
	retentionDays := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		retentionDays = n
	}

	preview, err := h.svc.Preview(r.Context(), chatbot.ID, retentionDays, sampleSize)
	if err != nil {
		if errors.Is(err, service.ErrRetentionDaysRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build cleanup preview")
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// Execute triggers an immediate cleanup run for the calling chatbot.
func (h *RetentionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := h.svc.Execute(r.Context(), chatbot.ID)
	if err != nil {
		if errors.Is(err, service.ErrRetentionDisabled) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "cleanup run failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}
