package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samtale/samtale/internal/domain"
)

type ChatbotStore struct {
	db *pgxpool.Pool
}

func NewChatbotStore(db *pgxpool.Pool) *ChatbotStore {
	return &ChatbotStore{db: db}
}

func (s *ChatbotStore) Create(ctx context.Context, c *domain.Chatbot) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO chatbots (name, api_key_hash) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		c.Name, c.APIKeyHash,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *ChatbotStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Chatbot, error) {
	c := &domain.Chatbot{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, api_key_hash, created_at, updated_at
		 FROM chatbots WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.APIKeyHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ChatbotStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Chatbot, error) {
	c := &domain.Chatbot{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, api_key_hash, created_at, updated_at
		 FROM chatbots WHERE api_key_hash = $1`,
		apiKeyHash,
	).Scan(&c.ID, &c.Name, &c.APIKeyHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}
