package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samtale/samtale/internal/api/middleware"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/store"
)

type ChatbotHandler struct {
	store domain.ChatbotStore
}

func NewChatbotHandler(store domain.ChatbotStore) *ChatbotHandler {
	return &ChatbotHandler{store: store}
}

type registerChatbotRequest struct {
	Name string `json:"name"`
}

type registerChatbotResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// Register creates a chatbot account. The plaintext API key appears in this
// response and nowhere else.
func (h *ChatbotHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerChatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	chatbot := &domain.Chatbot{
		Name:       req.Name,
		APIKeyHash: middleware.HashAPIKey(apiKey),
	}

	if err := h.store.Create(r.Context(), chatbot); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "chatbot already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register chatbot")
		return
	}

	writeJSON(w, http.StatusCreated, registerChatbotResponse{
		ID:     chatbot.ID.String(),
		Name:   chatbot.Name,
		APIKey: apiKey,
	})
}

// Me returns the chatbot resolved from the presented API key.
func (h *ChatbotHandler) Me(w http.ResponseWriter, r *http.Request) {
	chatbot := middleware.ChatbotFromContext(r.Context())
	if chatbot == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, chatbot)
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "sb_" + hex.EncodeToString(b), nil
}
