package domain

import (
	"time"

	"github.com/google/uuid"
)

// AgentPresence is a support agent's heartbeat for one chatbot's dashboard.
// Presence is held in process memory with a TTL, never persisted; a restart
// simply shows everyone offline until the next heartbeat.
type AgentPresence struct {
	ChatbotID uuid.UUID `json:"chatbot_id"`
	AgentID   string    `json:"agent_id"`
	Name      string    `json:"name"`
	LastSeen  time.Time `json:"last_seen"`
}
