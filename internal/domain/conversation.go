package domain

import (
	"time"

	"github.com/google/uuid"
)

// LiveStatus tracks where a conversation sits in the human hand-off flow.
type LiveStatus string

const (
	LiveStatusBot     LiveStatus = "bot"
	LiveStatusPending LiveStatus = "pending"
	LiveStatusAgent   LiveStatus = "agent"
	LiveStatusClosed  LiveStatus = "closed"
)

func (s LiveStatus) Valid() bool {
	switch s {
	case LiveStatusBot, LiveStatusPending, LiveStatusAgent, LiveStatusClosed:
		return true
	}
	return false
}

// liveTransitions holds the allowed hand-off moves. Anything absent is
// rejected before the store is touched.
var liveTransitions = map[LiveStatus][]LiveStatus{
	LiveStatusBot:     {LiveStatusPending},
	LiveStatusPending: {LiveStatusAgent, LiveStatusClosed},
	LiveStatusAgent:   {LiveStatusClosed},
}

func (s LiveStatus) CanTransitionTo(next LiveStatus) bool {
	for _, allowed := range liveTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Conversation is one visitor session. LegacyData carries the old
// whole-conversation JSON array; newer traffic appends ConversationMessage
// rows instead. Both shapes coexist on the same row during the migration.
type Conversation struct {
	ID            uuid.UUID       `json:"id"`
	ChatbotID     uuid.UUID       `json:"chatbot_id"`
	VisitorID     *string         `json:"visitor_id,omitempty"`
	Subject       *string         `json:"emne,omitempty"`
	LiveStatus    LiveStatus      `json:"live_status"`
	AssignedAgent *string         `json:"assigned_agent,omitempty"`
	LegacyData    []LegacyMessage `json:"conversation_data,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ConversationMessage is the per-row representation. SequenceNumber is unique
// per conversation and assigned by the store on append.
type ConversationMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SequenceNumber int       `json:"sequence_number"`
	IsUser         bool      `json:"is_user"`
	MessageText    string    `json:"message_text"`
	ImageData      *string   `json:"image_data,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageContextChunk is a retrieval snippet that was shown to the model
// while answering within a conversation. Embeddings are cleared, not kept,
// when the parent conversation is anonymized.
type MessageContextChunk struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	ChunkContent   string    `json:"chunk_content"`
	Embedding      []float32 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChunkWithScore struct {
	MessageContextChunk
	Score float32 `json:"score"`
}
