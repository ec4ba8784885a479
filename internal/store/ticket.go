package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samtale/samtale/internal/domain"
)

type TicketStore struct {
	db *pgxpool.Pool
}

func NewTicketStore(db *pgxpool.Pool) *TicketStore {
	return &TicketStore{db: db}
}

func (s *TicketStore) Enqueue(ctx context.Context, t *domain.Ticket) error {
	if t.Status == "" {
		t.Status = domain.TicketStatusPending
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO freshdesk_tickets (chatbot_id, conversation_id, requester_email, subject, description, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		t.ChatbotID, t.ConversationID, t.RequesterEmail, t.Subject, t.Description, t.Status,
	).Scan(&t.ID, &t.CreatedAt)
}

func (s *TicketStore) GetByID(ctx context.Context, id uuid.UUID, chatbotID uuid.UUID) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	err := s.db.QueryRow(ctx,
		`SELECT id, chatbot_id, conversation_id, requester_email, subject, description, status, external_id, last_error, created_at, sent_at
		 FROM freshdesk_tickets WHERE id = $1 AND chatbot_id = $2`,
		id, chatbotID,
	).Scan(&t.ID, &t.ChatbotID, &t.ConversationID, &t.RequesterEmail, &t.Subject, &t.Description, &t.Status, &t.ExternalID, &t.LastError, &t.CreatedAt, &t.SentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TicketStore) ListByChatbot(ctx context.Context, chatbotID uuid.UUID, status *domain.TicketStatus, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}

	var conditions []string
	var args []any

	conditions = append(conditions, fmt.Sprintf("chatbot_id = $%d", len(args)+1))
	args = append(args, chatbotID)

	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *status)
	}

	limitParam := len(args) + 1
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, chatbot_id, conversation_id, requester_email, subject, description, status, external_id, last_error, created_at, sent_at
		 FROM freshdesk_tickets
		 WHERE %s
		 ORDER BY created_at DESC
		 LIMIT $%d`,
		strings.Join(conditions, " AND "),
		limitParam,
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTickets(rows)
}

// ListPending returns the oldest undelivered tickets first so the worker
// drains the queue in arrival order.
func (s *TicketStore) ListPending(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, chatbot_id, conversation_id, requester_email, subject, description, status, external_id, last_error, created_at, sent_at
		 FROM freshdesk_tickets WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		domain.TicketStatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTickets(rows)
}

func (s *TicketStore) MarkSent(ctx context.Context, id uuid.UUID, externalID int64, sentAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE freshdesk_tickets
		 SET status = $1, external_id = $2, sent_at = $3, last_error = NULL
		 WHERE id = $4`,
		domain.TicketStatusSent, externalID, sentAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *TicketStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE freshdesk_tickets
		 SET status = $1, last_error = $2
		 WHERE id = $3`,
		domain.TicketStatusFailed, reason, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(&t.ID, &t.ChatbotID, &t.ConversationID, &t.RequesterEmail, &t.Subject, &t.Description, &t.Status, &t.ExternalID, &t.LastError, &t.CreatedAt, &t.SentAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
