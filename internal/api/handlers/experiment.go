package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samtale/samtale/internal/api/middleware"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/service"
)

type ExperimentHandler struct {
	svc *service.ExperimentService
}

func NewExperimentHandler(svc *service.ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{svc: svc}
}

type upsertExperimentRequest struct {
	Name     string           `json:"name"`
	Variants []domain.Variant `json:"variants"`
	Active   bool             `json:"active"`
}

func (h *ExperimentHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req upsertExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e := &domain.Experiment{
		ChatbotID: chatbot.ID,
		Name:      req.Name,
		Variants:  req.Variants,
		Active:    req.Active,
	}

	if err := h.svc.Upsert(r.Context(), e); err != nil {
		switch {
		case errors.Is(err, service.ErrExperimentNameEmpty),
			errors.Is(err, service.ErrVariantsInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to save experiment")
		}
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active parameter")
			return
		}
		activeOnly = v
	}

	experiments, err := h.svc.List(r.Context(), chatbot.ID, activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list experiments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"experiments": experiments})
}

func (h *ExperimentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	name := chi.URLParam(r, "name")
	visitorID := r.URL.Query().Get("visitor_id")

	assignment, err := h.svc.Assign(r.Context(), chatbot.ID, name, visitorID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVisitorIDRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrExperimentNotFound):
			writeError(w, http.StatusNotFound, "experiment not found")
		case errors.Is(err, service.ErrExperimentInactive):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to assign variant")
		}
		return
	}

	writeJSON(w, http.StatusOK, assignment)
}

// Assignments buckets the visitor across every active experiment in one
// request; the widget calls this once per page load.
func (h *ExperimentHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	visitorID := r.URL.Query().Get("visitor_id")

	assignments, err := h.svc.Assignments(r.Context(), chatbot.ID, visitorID)
	if err != nil {
		if errors.Is(err, service.ErrVisitorIDRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to assign variants")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}
