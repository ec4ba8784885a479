package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/store"
	"go.uber.org/zap"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationClosed   = errors.New("conversation is closed")
	ErrMessageEmpty         = errors.New("message needs text or an image")
	ErrEmbeddingDim         = errors.New("embedding has wrong dimension")
	ErrInvalidTransition    = errors.New("live status transition not allowed")
	ErrAgentNameRequired    = errors.New("agent name is required to claim a conversation")
	ErrLegacyTooLarge       = errors.New("legacy payload exceeds import limit")
	ErrChunkContentRequired = errors.New("chunk content is required")
)

const (
	// embeddingDim matches the vector(1536) column; embeddings arrive
	// precomputed from the ingestion pipeline.
	embeddingDim = 1536

	maxLegacyImport = 5000
)

type ConversationService struct {
	conversationStore domain.ConversationStore
	logger            *zap.Logger
}

func NewConversationService(cs domain.ConversationStore, logger *zap.Logger) *ConversationService {
	return &ConversationService{
		conversationStore: cs,
		logger:            logger,
	}
}

// Start opens a conversation. A legacy conversation_data array may be
// attached here, and only here: old exports are imported whole, never
// appended to.
func (s *ConversationService) Start(ctx context.Context, chatbotID uuid.UUID, visitorID, subject *string, legacy []domain.LegacyMessage) (*domain.Conversation, error) {
	if len(legacy) > maxLegacyImport {
		return nil, ErrLegacyTooLarge
	}

	c := &domain.Conversation{
		ChatbotID:  chatbotID,
		VisitorID:  visitorID,
		Subject:    subject,
		LiveStatus: domain.LiveStatusBot,
		LegacyData: legacy,
	}
	if err := s.conversationStore.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ConversationService) Get(ctx context.Context, chatbotID, id uuid.UUID) (*domain.Conversation, error) {
	c, err := s.conversationStore.GetByID(ctx, id, chatbotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ConversationService) List(ctx context.Context, chatbotID uuid.UUID, opts domain.ListOpts) ([]domain.Conversation, error) {
	conversations, err := s.conversationStore.List(ctx, chatbotID, opts)
	if err != nil {
		return nil, err
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return conversations, nil
}

// AppendMessage adds one per-row message. Closed conversations are
// read-only.
func (s *ConversationService) AppendMessage(ctx context.Context, chatbotID, conversationID uuid.UUID, isUser bool, text string, imageData *string) (*domain.ConversationMessage, error) {
	if text == "" && imageData == nil {
		return nil, ErrMessageEmpty
	}

	c, err := s.Get(ctx, chatbotID, conversationID)
	if err != nil {
		return nil, err
	}
	if c.LiveStatus == domain.LiveStatusClosed {
		return nil, ErrConversationClosed
	}

	m := &domain.ConversationMessage{
		ConversationID: conversationID,
		IsUser:         isUser,
		MessageText:    text,
		ImageData:      imageData,
	}
	if err := s.conversationStore.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ConversationService) Messages(ctx context.Context, chatbotID, conversationID uuid.UUID) ([]domain.ConversationMessage, error) {
	if _, err := s.Get(ctx, chatbotID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.conversationStore.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.ConversationMessage{}
	}
	return messages, nil
}

func (s *ConversationService) AddChunk(ctx context.Context, chatbotID, conversationID uuid.UUID, content string, embedding []float32) (*domain.MessageContextChunk, error) {
	if content == "" {
		return nil, ErrChunkContentRequired
	}
	if len(embedding) > 0 && len(embedding) != embeddingDim {
		return nil, ErrEmbeddingDim
	}

	if _, err := s.Get(ctx, chatbotID, conversationID); err != nil {
		return nil, err
	}

	ch := &domain.MessageContextChunk{
		ConversationID: conversationID,
		ChunkContent:   content,
		Embedding:      embedding,
	}
	if err := s.conversationStore.AddChunk(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *ConversationService) SearchChunks(ctx context.Context, chatbotID uuid.UUID, embedding []float32, limit int) ([]domain.ChunkWithScore, error) {
	if len(embedding) != embeddingDim {
		return nil, ErrEmbeddingDim
	}

	results, err := s.conversationStore.SearchChunks(ctx, chatbotID, embedding, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.ChunkWithScore{}
	}
	return results, nil
}

// RequestHandoff flags a bot conversation for a human agent.
func (s *ConversationService) RequestHandoff(ctx context.Context, chatbotID, id uuid.UUID) (*domain.Conversation, error) {
	return s.transition(ctx, chatbotID, id, domain.LiveStatusPending, nil)
}

// ClaimHandoff assigns a pending conversation to the named agent. Two agents
// clicking at once race on the status guard; the loser gets
// ErrInvalidTransition.
func (s *ConversationService) ClaimHandoff(ctx context.Context, chatbotID, id uuid.UUID, agentName string) (*domain.Conversation, error) {
	if agentName == "" {
		return nil, ErrAgentNameRequired
	}
	return s.transition(ctx, chatbotID, id, domain.LiveStatusAgent, &agentName)
}

// CloseHandoff ends the live session from either pending or agent state.
func (s *ConversationService) CloseHandoff(ctx context.Context, chatbotID, id uuid.UUID) (*domain.Conversation, error) {
	return s.transition(ctx, chatbotID, id, domain.LiveStatusClosed, nil)
}

// HandoffQueue returns conversations waiting for an agent, oldest first.
func (s *ConversationService) HandoffQueue(ctx context.Context, chatbotID uuid.UUID) ([]domain.Conversation, error) {
	queue, err := s.conversationStore.ListByLiveStatus(ctx, chatbotID, domain.LiveStatusPending)
	if err != nil {
		return nil, err
	}
	if queue == nil {
		queue = []domain.Conversation{}
	}
	return queue, nil
}

func (s *ConversationService) transition(ctx context.Context, chatbotID, id uuid.UUID, to domain.LiveStatus, agent *string) (*domain.Conversation, error) {
	c, err := s.Get(ctx, chatbotID, id)
	if err != nil {
		return nil, err
	}
	if !c.LiveStatus.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}

	err = s.conversationStore.UpdateLiveStatus(ctx, id, chatbotID, c.LiveStatus, to, agent)
	if err != nil {
		// Zero rows means another writer moved the conversation first.
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.logger.Info("live status changed",
		zap.String("conversation_id", id.String()),
		zap.String("from", string(c.LiveStatus)),
		zap.String("to", string(to)))

	c.LiveStatus = to
	if agent != nil {
		c.AssignedAgent = agent
	}
	return c, nil
}
