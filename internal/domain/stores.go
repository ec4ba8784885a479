package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ChatbotStore interface {
	Create(ctx context.Context, c *Chatbot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Chatbot, error)
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Chatbot, error)
}

type RetentionPolicyStore interface {
	Upsert(ctx context.Context, p *RetentionPolicy) error
	GetByChatbotID(ctx context.Context, chatbotID uuid.UUID) (*RetentionPolicy, error)
	ListEnabled(ctx context.Context) ([]RetentionPolicy, error)
}

// CleanupStore runs the destructive side of retention. AnonymizeBefore must
// be atomic per chatbot: either every table reflects the pass or none does.
type CleanupStore interface {
	Preview(ctx context.Context, chatbotID uuid.UUID, cutoff time.Time, sampleSize int) (*CleanupPreview, error)
	AnonymizeBefore(ctx context.Context, chatbotID uuid.UUID, cutoff time.Time, ranAt time.Time) (*CleanupResult, error)
}

type ListOpts struct {
	Limit  int
	Offset int
}

type ConversationStore interface {
	// Conversations
	Create(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id uuid.UUID, chatbotID uuid.UUID) (*Conversation, error)
	List(ctx context.Context, chatbotID uuid.UUID, opts ListOpts) ([]Conversation, error)
	ListByLiveStatus(ctx context.Context, chatbotID uuid.UUID, status LiveStatus) ([]Conversation, error)
	UpdateLiveStatus(ctx context.Context, id uuid.UUID, chatbotID uuid.UUID, from, to LiveStatus, agent *string) error

	// Per-row messages
	AppendMessage(ctx context.Context, m *ConversationMessage) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]ConversationMessage, error)

	// Context chunks
	AddChunk(ctx context.Context, c *MessageContextChunk) error
	SearchChunks(ctx context.Context, chatbotID uuid.UUID, embedding []float32, limit int) ([]ChunkWithScore, error)
}

type TicketStore interface {
	Enqueue(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id uuid.UUID, chatbotID uuid.UUID) (*Ticket, error)
	ListByChatbot(ctx context.Context, chatbotID uuid.UUID, status *TicketStatus, limit int) ([]Ticket, error)
	ListPending(ctx context.Context, limit int) ([]Ticket, error)
	MarkSent(ctx context.Context, id uuid.UUID, externalID int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type ExperimentStore interface {
	Upsert(ctx context.Context, e *Experiment) error
	GetByName(ctx context.Context, chatbotID uuid.UUID, name string) (*Experiment, error)
	ListByChatbot(ctx context.Context, chatbotID uuid.UUID, activeOnly bool) ([]Experiment, error)
}

// TicketSender delivers one queued ticket to the help desk provider and
// returns the provider's numeric ticket id.
type TicketSender interface {
	CreateTicket(ctx context.Context, t *Ticket) (int64, error)
}
