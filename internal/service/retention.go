package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/store"
	"go.uber.org/zap"
)

var (
	ErrRetentionDisabled  = errors.New("retention is not enabled for this chatbot")
	ErrRetentionDaysRange = errors.New("retention_days must be between 1 and 3650")
)

// Cutoff returns the anonymization boundary for a policy: conversations
// created strictly before it are eligible. AddDate keeps wall-clock semantics
// across DST so "90 days" means the same calendar day three months out.
func Cutoff(now time.Time, retentionDays int) time.Time {
	return now.AddDate(0, 0, -retentionDays)
}

type RetentionService struct {
	policyStore  domain.RetentionPolicyStore
	cleanupStore domain.CleanupStore
	logger       *zap.Logger
	now          func() time.Time
}

func NewRetentionService(ps domain.RetentionPolicyStore, cs domain.CleanupStore, logger *zap.Logger) *RetentionService {
	return &RetentionService{
		policyStore:  ps,
		cleanupStore: cs,
		logger:       logger,
		now:          time.Now,
	}
}

// SetNow overrides the clock. Only tests call this.
func (s *RetentionService) SetNow(now func() time.Time) {
	s.now = now
}

// GetSettings returns the stored policy, or the implicit default (90 days,
// disabled) when the chatbot never saved one. The default is not persisted.
func (s *RetentionService) GetSettings(ctx context.Context, chatbotID uuid.UUID) (*domain.RetentionPolicy, error) {
	p, err := s.policyStore.GetByChatbotID(ctx, chatbotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &domain.RetentionPolicy{
				ChatbotID:     chatbotID,
				RetentionDays: domain.DefaultRetentionDays,
				Enabled:       false,
			}, nil
		}
		return nil, err
	}
	return p, nil
}

func (s *RetentionService) UpdateSettings(ctx context.Context, chatbotID uuid.UUID, retentionDays int, enabled bool) (*domain.RetentionPolicy, error) {
	if retentionDays < domain.MinRetentionDays || retentionDays > domain.MaxRetentionDays {
		return nil, ErrRetentionDaysRange
	}

	p := &domain.RetentionPolicy{
		ChatbotID:     chatbotID,
		RetentionDays: retentionDays,
		Enabled:       enabled,
	}
	if err := s.policyStore.Upsert(ctx, p); err != nil {
		if errors.Is(err, store.ErrConstraint) {
			return nil, ErrRetentionDaysRange
		}
		return nil, err
	}

	s.logger.Info("retention settings updated",
		zap.String("chatbot_id", chatbotID.String()),
		zap.Int("retention_days", retentionDays),
		zap.Bool("enabled", enabled))

	return p, nil
}

// Preview reports what a run would anonymize. retentionDays overrides the
// stored window so tenants can inspect the blast radius of new settings or of
// a still-disabled policy before committing to either; 0 means use the stored
// policy (or the implicit default).
func (s *RetentionService) Preview(ctx context.Context, chatbotID uuid.UUID, retentionDays, sampleSize int) (*domain.CleanupPreview, error) {
	if retentionDays == 0 {
		p, err := s.GetSettings(ctx, chatbotID)
		if err != nil {
			return nil, err
		}
		retentionDays = p.RetentionDays
	}
	if retentionDays < domain.MinRetentionDays || retentionDays > domain.MaxRetentionDays {
		return nil, ErrRetentionDaysRange
	}

	cutoff := Cutoff(s.now(), retentionDays)
	return s.cleanupStore.Preview(ctx, chatbotID, cutoff, sampleSize)
}

// Execute runs one anonymization pass for one chatbot. The policy must exist
// and be enabled; a run that matches nothing succeeds with zero counts and
// leaves last_cleanup_run untouched.
func (s *RetentionService) Execute(ctx context.Context, chatbotID uuid.UUID) (*domain.CleanupResult, error) {
	p, err := s.policyStore.GetByChatbotID(ctx, chatbotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRetentionDisabled
		}
		return nil, err
	}
	if !p.Enabled {
		return nil, ErrRetentionDisabled
	}

	return s.executePolicy(ctx, p)
}

func (s *RetentionService) executePolicy(ctx context.Context, p *domain.RetentionPolicy) (*domain.CleanupResult, error) {
	ranAt := s.now()
	cutoff := Cutoff(ranAt, p.RetentionDays)

	res, err := s.cleanupStore.AnonymizeBefore(ctx, p.ChatbotID, cutoff, ranAt)
	if err != nil {
		return nil, fmt.Errorf("anonymize chatbot %s: %w", p.ChatbotID, err)
	}

	s.logger.Info("cleanup run finished",
		zap.String("chatbot_id", p.ChatbotID.String()),
		zap.Time("cutoff", cutoff),
		zap.Int("conversations", res.Conversations),
		zap.Int("legacy_messages", res.LegacyMessagesRedacted),
		zap.Int("messages", res.MessagesRedacted),
		zap.Int("chunks", res.ChunksRedacted))

	return res, nil
}

// ExecuteAll runs cleanup for every enabled policy sequentially. One tenant's
// failure is recorded and the batch moves on; the report always has one entry
// per enabled policy.
func (s *RetentionService) ExecuteAll(ctx context.Context) ([]domain.ChatbotCleanup, error) {
	policies, err := s.policyStore.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled policies: %w", err)
	}

	report := make([]domain.ChatbotCleanup, 0, len(policies))
	for i := range policies {
		p := &policies[i]
		res, err := s.executePolicy(ctx, p)
		if err != nil {
			s.logger.Error("cleanup run failed",
				zap.String("chatbot_id", p.ChatbotID.String()),
				zap.Error(err))
			report = append(report, domain.ChatbotCleanup{
				ChatbotID: p.ChatbotID,
				Success:   false,
				Err:       err.Error(),
			})
			continue
		}
		report = append(report, domain.ChatbotCleanup{
			ChatbotID: p.ChatbotID,
			Success:   true,
			Result:    res,
		})
	}
	return report, nil
}
