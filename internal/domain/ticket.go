package domain

import (
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketStatusPending TicketStatus = "pending"
	TicketStatusSent    TicketStatus = "sent"
	TicketStatusFailed  TicketStatus = "failed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusSent, TicketStatusFailed:
		return true
	}
	return false
}

// Ticket is a queued support escalation. Rows are written during request
// handling and delivered to Freshdesk later by the background worker, so a
// provider outage never fails the visitor-facing request.
type Ticket struct {
	ID             uuid.UUID    `json:"id"`
	ChatbotID      uuid.UUID    `json:"chatbot_id"`
	ConversationID *uuid.UUID   `json:"conversation_id,omitempty"`
	RequesterEmail string       `json:"requester_email"`
	Subject        string       `json:"subject"`
	Description    string       `json:"description"`
	Status         TicketStatus `json:"status"`
	ExternalID     *int64       `json:"external_id,omitempty"`
	LastError      *string      `json:"last_error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
}
