package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/samtale/samtale/internal/cache"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/store"
	"go.uber.org/zap"
)

var (
	ErrExperimentNotFound  = errors.New("experiment not found")
	ErrExperimentInactive  = errors.New("experiment is not active")
	ErrExperimentNameEmpty = errors.New("experiment name is required")
	ErrVariantsInvalid     = errors.New("invalid variants")
	ErrVisitorIDRequired   = errors.New("visitor_id is required")
)

const experimentCacheTTL = time.Minute

// AssignVariant buckets a visitor into one of the weighted variants. The
// bucket is FNV-1a over "visitor:experiment" mod the weight sum, walked
// through the cumulative weights. Same inputs, same variant, no stored
// assignment rows.
func AssignVariant(visitorID string, experimentID uuid.UUID, variants []domain.Variant) string {
	total := 0
	for _, v := range variants {
		total += v.Weight
	}
	if total <= 0 {
		return ""
	}

	h := fnv.New32a()
	h.Write([]byte(visitorID))
	h.Write([]byte(":"))
	h.Write([]byte(experimentID.String()))
	bucket := int(h.Sum32() % uint32(total))

	for _, v := range variants {
		bucket -= v.Weight
		if bucket < 0 {
			return v.Name
		}
	}
	return variants[len(variants)-1].Name
}

type ExperimentService struct {
	experimentStore domain.ExperimentStore
	logger          *zap.Logger

	// active caches each chatbot's active experiments for a minute so the
	// widget's per-pageview assignment calls skip the database.
	active *cache.TTL[uuid.UUID, []domain.Experiment]
}

func NewExperimentService(es domain.ExperimentStore, logger *zap.Logger) *ExperimentService {
	return &ExperimentService{
		experimentStore: es,
		logger:          logger,
		active:          cache.NewTTL[uuid.UUID, []domain.Experiment](experimentCacheTTL),
	}
}

func (s *ExperimentService) Upsert(ctx context.Context, e *domain.Experiment) error {
	if e.Name == "" {
		return ErrExperimentNameEmpty
	}
	if err := domain.ValidateVariants(e.Variants); err != nil {
		return fmt.Errorf("%w: %v", ErrVariantsInvalid, err)
	}

	if err := s.experimentStore.Upsert(ctx, e); err != nil {
		return err
	}
	s.active.Delete(e.ChatbotID)
	return nil
}

func (s *ExperimentService) List(ctx context.Context, chatbotID uuid.UUID, activeOnly bool) ([]domain.Experiment, error) {
	experiments, err := s.experimentStore.ListByChatbot(ctx, chatbotID, activeOnly)
	if err != nil {
		return nil, err
	}
	if experiments == nil {
		experiments = []domain.Experiment{}
	}
	return experiments, nil
}

// Assign resolves one experiment by name and buckets the visitor.
func (s *ExperimentService) Assign(ctx context.Context, chatbotID uuid.UUID, name, visitorID string) (*domain.Assignment, error) {
	if visitorID == "" {
		return nil, ErrVisitorIDRequired
	}

	e, err := s.experimentStore.GetByName(ctx, chatbotID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrExperimentNotFound
		}
		return nil, err
	}
	if !e.Active {
		return nil, ErrExperimentInactive
	}

	return &domain.Assignment{
		Experiment: e.Name,
		Variant:    AssignVariant(visitorID, e.ID, e.Variants),
	}, nil
}

// Assignments buckets the visitor across every active experiment, serving
// from the cache when it is warm.
func (s *ExperimentService) Assignments(ctx context.Context, chatbotID uuid.UUID, visitorID string) ([]domain.Assignment, error) {
	if visitorID == "" {
		return nil, ErrVisitorIDRequired
	}

	experiments, ok := s.active.Get(chatbotID)
	if !ok {
		var err error
		experiments, err = s.experimentStore.ListByChatbot(ctx, chatbotID, true)
		if err != nil {
			return nil, err
		}
		s.active.Set(chatbotID, experiments)
	}

	assignments := make([]domain.Assignment, 0, len(experiments))
	for _, e := range experiments {
		assignments = append(assignments, domain.Assignment{
			Experiment: e.Name,
			Variant:    AssignVariant(visitorID, e.ID, e.Variants),
		})
	}
	return assignments, nil
}
