package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samtale/samtale/internal/domain"
)

type ExperimentStore struct {
	db *pgxpool.Pool
}

func NewExperimentStore(db *pgxpool.Pool) *ExperimentStore {
	return &ExperimentStore{db: db}
}

func (s *ExperimentStore) Upsert(ctx context.Context, e *domain.Experiment) error {
	variantsJSON, err := json.Marshal(e.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO experiments (chatbot_id, name, variants, active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (chatbot_id, name)
		 DO UPDATE SET variants = EXCLUDED.variants,
		               active = EXCLUDED.active,
		               updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		e.ChatbotID, e.Name, variantsJSON, e.Active,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (s *ExperimentStore) GetByName(ctx context.Context, chatbotID uuid.UUID, name string) (*domain.Experiment, error) {
	e := &domain.Experiment{}
	var variantsJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, chatbot_id, name, variants, active, created_at, updated_at
		 FROM experiments WHERE chatbot_id = $1 AND name = $2`,
		chatbotID, name,
	).Scan(&e.ID, &e.ChatbotID, &e.Name, &variantsJSON, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(variantsJSON) > 0 {
		if err := json.Unmarshal(variantsJSON, &e.Variants); err != nil {
			return nil, fmt.Errorf("unmarshal variants: %w", err)
		}
	}
	return e, nil
}

func (s *ExperimentStore) ListByChatbot(ctx context.Context, chatbotID uuid.UUID, activeOnly bool) ([]domain.Experiment, error) {
	query := `SELECT id, chatbot_id, name, variants, active, created_at, updated_at
	          FROM experiments WHERE chatbot_id = $1
	          ORDER BY name`
	if activeOnly {
		query = `SELECT id, chatbot_id, name, variants, active, created_at, updated_at
		         FROM experiments WHERE chatbot_id = $1 AND active
		         ORDER BY name`
	}

	rows, err := s.db.Query(ctx, query, chatbotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var experiments []domain.Experiment
	for rows.Next() {
		var e domain.Experiment
		var variantsJSON []byte
		if err := rows.Scan(&e.ID, &e.ChatbotID, &e.Name, &variantsJSON, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if len(variantsJSON) > 0 {
			if err := json.Unmarshal(variantsJSON, &e.Variants); err != nil {
				return nil, fmt.Errorf("unmarshal variants: %w", err)
			}
		}
		experiments = append(experiments, e)
	}
	return experiments, rows.Err()
}
