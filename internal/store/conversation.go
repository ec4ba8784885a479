package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samtale/samtale/internal/domain"
)

type ConversationStore struct {
	db *pgxpool.Pool
}

func NewConversationStore(db *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{db: db}
}

func (s *ConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	if c.LiveStatus == "" {
		c.LiveStatus = domain.LiveStatusBot
	}

	var legacyJSON []byte
	if len(c.LegacyData) > 0 {
		b, err := json.Marshal(c.LegacyData)
		if err != nil {
			return fmt.Errorf("marshal conversation_data: %w", err)
		}
		legacyJSON = b
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO conversations (chatbot_id, visitor_id, emne, live_status, conversation_data)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		c.ChatbotID, c.VisitorID, c.Subject, c.LiveStatus, legacyJSON,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (s *ConversationStore) GetByID(ctx context.Context, id uuid.UUID, chatbotID uuid.UUID) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	var legacyJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, chatbot_id, visitor_id, emne, live_status, assigned_agent, conversation_data, created_at, updated_at
		 FROM conversations WHERE id = $1 AND chatbot_id = $2`,
		id, chatbotID,
	).Scan(&c.ID, &c.ChatbotID, &c.VisitorID, &c.Subject, &c.LiveStatus, &c.AssignedAgent, &legacyJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(legacyJSON) > 0 {
		if err := json.Unmarshal(legacyJSON, &c.LegacyData); err != nil {
			return nil, fmt.Errorf("unmarshal conversation_data: %w", err)
		}
	}
	return c, nil
}

// List returns conversations newest first, without the legacy payload. The
// payload can be megabytes per row; callers fetch it via GetByID.
func (s *ConversationStore) List(ctx context.Context, chatbotID uuid.UUID, opts domain.ListOpts) ([]domain.Conversation, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, chatbot_id, visitor_id, emne, live_status, assigned_agent, created_at, updated_at
		 FROM conversations WHERE chatbot_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		chatbotID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.ChatbotID, &c.VisitorID, &c.Subject, &c.LiveStatus, &c.AssignedAgent, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (s *ConversationStore) ListByLiveStatus(ctx context.Context, chatbotID uuid.UUID, status domain.LiveStatus) ([]domain.Conversation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, chatbot_id, visitor_id, emne, live_status, assigned_agent, created_at, updated_at
		 FROM conversations WHERE chatbot_id = $1 AND live_status = $2
		 ORDER BY updated_at ASC`,
		chatbotID, status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.ChatbotID, &c.VisitorID, &c.Subject, &c.LiveStatus, &c.AssignedAgent, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// UpdateLiveStatus moves a conversation between hand-off states. The from
// guard makes concurrent claims race safely: exactly one UPDATE matches.
// A nil agent keeps whatever assigned_agent already holds.
func (s *ConversationStore) UpdateLiveStatus(ctx context.Context, id uuid.UUID, chatbotID uuid.UUID, from, to domain.LiveStatus, agent *string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE conversations
		 SET live_status = $1,
		     assigned_agent = COALESCE($2, assigned_agent),
		     updated_at = NOW()
		 WHERE id = $3 AND chatbot_id = $4 AND live_status = $5`,
		to, agent, id, chatbotID, from,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage inserts the next row for a conversation, assigning the
// sequence number in the same statement. Two racing appends collide on the
// (conversation_id, sequence_number) unique index and the loser gets
// ErrConflict.
func (s *ConversationStore) AppendMessage(ctx context.Context, m *domain.ConversationMessage) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO conversation_messages (conversation_id, sequence_number, is_user, message_text, image_data)
		 SELECT $1, COALESCE(MAX(sequence_number), 0) + 1, $2, $3, $4
		 FROM conversation_messages WHERE conversation_id = $1
		 RETURNING id, sequence_number, created_at`,
		m.ConversationID, m.IsUser, m.MessageText, m.ImageData,
	).Scan(&m.ID, &m.SequenceNumber, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *ConversationStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationMessage, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, conversation_id, sequence_number, is_user, message_text, image_data, created_at
		 FROM conversation_messages WHERE conversation_id = $1
		 ORDER BY sequence_number ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ConversationMessage
	for rows.Next() {
		var m domain.ConversationMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SequenceNumber, &m.IsUser, &m.MessageText, &m.ImageData, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *ConversationStore) AddChunk(ctx context.Context, c *domain.MessageContextChunk) error {
	var embedding *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO message_context_chunks (conversation_id, chunk_content, embedding)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.ConversationID, c.ChunkContent, embedding,
	).Scan(&c.ID, &c.CreatedAt)
}

func (s *ConversationStore) SearchChunks(ctx context.Context, chatbotID uuid.UUID, embedding []float32, limit int) ([]domain.ChunkWithScore, error) {
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT ch.id, ch.conversation_id, ch.chunk_content, ch.created_at,
		        1 - (ch.embedding <=> $1) AS score
		 FROM message_context_chunks ch
		 JOIN conversations c ON c.id = ch.conversation_id
		 WHERE c.chatbot_id = $2 AND ch.embedding IS NOT NULL
		 ORDER BY ch.embedding <=> $1
		 LIMIT $3`,
		vec, chatbotID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks query: %w", err)
	}
	defer rows.Close()

	var results []domain.ChunkWithScore
	for rows.Next() {
		var cs domain.ChunkWithScore
		if err := rows.Scan(&cs.ID, &cs.ConversationID, &cs.ChunkContent, &cs.CreatedAt, &cs.Score); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		results = append(results, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search chunks rows: %w", err)
	}

	return results, nil
}
