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
	"github.com/samtale/samtale/internal/store"
)

type ConversationHandler struct {
	svc *service.ConversationService
}

func NewConversationHandler(svc *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type createConversationRequest struct {
	VisitorID        *string                `json:"visitor_id"`
	Subject          *string                `json:"emne"`
	ConversationData []domain.LegacyMessage `json:"conversation_data"`
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Legacy element validation happens during decode, so the error
		// text tells importers exactly what was malformed.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.svc.Start(r.Context(), chatbot.ID, req.VisitorID, req.Subject, req.ConversationData)
	if err != nil {
		if errors.Is(err, service.ErrLegacyTooLarge) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	opts := domain.ListOpts{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		opts.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		opts.Offset = n
	}

	conversations, err := h.svc.List(r.Context(), chatbot.ID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

func (h *ConversationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	c, err := h.svc.Get(r.Context(), chatbot.ID, id)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get conversation")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

type appendMessageRequest struct {
	IsUser      bool    `json:"is_user"`
	MessageText string  `json:"message_text"`
	ImageData   *string `json:"image_data"`
}

func (h *ConversationHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req appendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.svc.AppendMessage(r.Context(), chatbot.ID, id, req.IsUser, req.MessageText, req.ImageData)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, service.ErrConversationClosed):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrMessageEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "concurrent append, retry")
		default:
			writeError(w, http.StatusInternalServerError, "failed to append message")
		}
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	messages, err := h.svc.Messages(r.Context(), chatbot.ID, id)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type addChunkRequest struct {
	ChunkContent string    `json:"chunk_content"`
	Embedding    []float32 `json:"embedding"`
}

func (h *ConversationHandler) AddChunk(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req addChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ch, err := h.svc.AddChunk(r.Context(), chatbot.ID, id, req.ChunkContent, req.Embedding)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, service.ErrChunkContentRequired), errors.Is(err, service.ErrEmbeddingDim):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to add context chunk")
		}
		return
	}

	writeJSON(w, http.StatusCreated, ch)
}

type searchChunksRequest struct {
	Embedding []float32 `json:"embedding"`
	Limit     int       `json:"limit"`
}

func (h *ConversationHandler) SearchChunks(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req searchChunksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.svc.SearchChunks(r.Context(), chatbot.ID, req.Embedding, req.Limit)
	if err != nil {
		if errors.Is(err, service.ErrEmbeddingDim) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to search context chunks")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *ConversationHandler) RequestHandoff(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(chatbotID, conversationID uuid.UUID) (*domain.Conversation, error) {
		return h.svc.RequestHandoff(r.Context(), chatbotID, conversationID)
	})
}

type claimHandoffRequest struct {
	Agent string `json:"agent"`
}

func (h *ConversationHandler) ClaimHandoff(w http.ResponseWriter, r *http.Request) {
	var req claimHandoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.transition(w, r, func(chatbotID, conversationID uuid.UUID) (*domain.Conversation, error) {
		return h.svc.ClaimHandoff(r.Context(), chatbotID, conversationID, req.Agent)
	})
}

func (h *ConversationHandler) CloseHandoff(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(chatbotID, conversationID uuid.UUID) (*domain.Conversation, error) {
		return h.svc.CloseHandoff(r.Context(), chatbotID, conversationID)
	})
}

func (h *ConversationHandler) HandoffQueue(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	queue, err := h.svc.HandoffQueue(r.Context(), chatbot.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list handoff queue")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pending": queue})
}

func (h *ConversationHandler) transition(w http.ResponseWriter, r *http.Request, fn func(chatbotID, conversationID uuid.UUID) (*domain.Conversation, error)) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	c, err := fn(chatbot.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrAgentNameRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update live status")
		}
		return
	}

	writeJSON(w, http.StatusOK, c)
}
