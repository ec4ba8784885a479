package domain

import (
	"time"

	"github.com/google/uuid"
)

// RedactionSentinel replaces message text when a cleanup run anonymizes a
// conversation. The originals are unrecoverable once it is written.
const RedactionSentinel = "[DELETED FOR GDPR COMPLIANCE]"

// DefaultRetentionDays applies to chatbots that never saved a policy row.
// Defaults are never persisted; cleanup only runs for explicitly enabled rows.
const DefaultRetentionDays = 90

const (
	MinRetentionDays = 1
	MaxRetentionDays = 3650
)

type RetentionPolicy struct {
	ID             uuid.UUID  `json:"id"`
	ChatbotID      uuid.UUID  `json:"chatbot_id"`
	RetentionDays  int        `json:"retention_days"`
	Enabled        bool       `json:"enabled"`
	LastCleanupRun *time.Time `json:"last_cleanup_run,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CleanupResult reports one committed anonymization pass for one chatbot.
type CleanupResult struct {
	ChatbotID              uuid.UUID `json:"chatbot_id"`
	Cutoff                 time.Time `json:"cutoff"`
	Conversations          int       `json:"conversations"`
	LegacyMessagesRedacted int       `json:"legacy_messages_redacted"`
	MessagesRedacted       int       `json:"messages_redacted"`
	ChunksRedacted         int       `json:"chunks_redacted"`
}

// CleanupPreview is the dry-run counterpart of CleanupResult. Nothing is
// written while producing it.
type CleanupPreview struct {
	ChatbotID uuid.UUID      `json:"chatbot_id"`
	Cutoff    time.Time      `json:"cutoff"`
	Totals    PreviewTotals  `json:"totals"`
	Sample    []PreviewEntry `json:"sample"`
}

type PreviewTotals struct {
	Conversations  int `json:"conversations"`
	LegacyMessages int `json:"legacy_messages"`
	Messages       int `json:"messages"`
	Chunks         int `json:"chunks"`
}

type PreviewEntry struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Subject        *string   `json:"emne,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LegacyMessages int       `json:"legacy_messages"`
	Messages       int       `json:"messages"`
}

// ChatbotCleanup is one entry in a batch run report. Err is a flattened
// message because the report crosses the HTTP boundary.
type ChatbotCleanup struct {
	ChatbotID uuid.UUID      `json:"chatbot_id"`
	Success   bool           `json:"success"`
	Err       string         `json:"error,omitempty"`
	Result    *CleanupResult `json:"result,omitempty"`
}
