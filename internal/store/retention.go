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

type RetentionPolicyStore struct {
	db *pgxpool.Pool
}

func NewRetentionPolicyStore(db *pgxpool.Pool) *RetentionPolicyStore {
	return &RetentionPolicyStore{db: db}
}

func (s *RetentionPolicyStore) Upsert(ctx context.Context, p *domain.RetentionPolicy) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO retention_policies (chatbot_id, retention_days, enabled)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (chatbot_id)
		 DO UPDATE SET retention_days = EXCLUDED.retention_days,
		               enabled = EXCLUDED.enabled,
		               updated_at = NOW()
		 RETURNING id, last_cleanup_run, created_at, updated_at`,
		p.ChatbotID, p.RetentionDays, p.Enabled,
	).Scan(&p.ID, &p.LastCleanupRun, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return ErrConstraint
		}
		return err
	}
	return nil
}

func (s *RetentionPolicyStore) GetByChatbotID(ctx context.Context, chatbotID uuid.UUID) (*domain.RetentionPolicy, error) {
	p := &domain.RetentionPolicy{}
	err := s.db.QueryRow(ctx,
		`SELECT id, chatbot_id, retention_days, enabled, last_cleanup_run, created_at, updated_at
		 FROM retention_policies WHERE chatbot_id = $1`,
		chatbotID,
	).Scan(&p.ID, &p.ChatbotID, &p.RetentionDays, &p.Enabled, &p.LastCleanupRun, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListEnabled returns every enabled policy ordered by chatbot id so batch
// runs visit tenants in a stable order.
func (s *RetentionPolicyStore) ListEnabled(ctx context.Context) ([]domain.RetentionPolicy, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, chatbot_id, retention_days, enabled, last_cleanup_run, created_at, updated_at
		 FROM retention_policies WHERE enabled
		 ORDER BY chatbot_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []domain.RetentionPolicy
	for rows.Next() {
		var p domain.RetentionPolicy
		if err := rows.Scan(&p.ID, &p.ChatbotID, &p.RetentionDays, &p.Enabled, &p.LastCleanupRun, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}
