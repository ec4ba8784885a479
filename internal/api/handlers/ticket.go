package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samtale/samtale/internal/api/middleware"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/service"
)

type TicketHandler struct {
	svc *service.TicketQueueService
}

func NewTicketHandler(svc *service.TicketQueueService) *TicketHandler {
	return &TicketHandler{svc: svc}
}

type createTicketRequest struct {
	ConversationID *uuid.UUID `json:"conversation_id"`
	RequesterEmail string     `json:"requester_email"`
	Subject        string     `json:"subject"`
	Description    string     `json:"description"`
}

// Create queues a ticket and returns 202; delivery to the help desk
// happens asynchronously.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticket := &domain.Ticket{
		ChatbotID:      chatbot.ID,
		ConversationID: req.ConversationID,
		RequesterEmail: req.RequesterEmail,
		Subject:        req.Subject,
		Description:    req.Description,
	}

	if err := h.svc.Enqueue(r.Context(), ticket); err != nil {
		switch {
		case errors.Is(err, service.ErrTicketEmailInvalid),
			errors.Is(err, service.ErrTicketSubjectEmpty),
			errors.Is(err, service.ErrTicketBodyEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to queue ticket")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, ticket)
}

func (h *TicketHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	ticket, err := h.svc.Get(r.Context(), chatbot.ID, id)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get ticket")
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var status *domain.TicketStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.TicketStatus(raw)
		if !s.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status parameter")
			return
		}
		status = &s
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	tickets, err := h.svc.List(r.Context(), chatbot.ID, status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}
