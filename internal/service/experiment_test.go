package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/store"
)

// mockExperimentStore implements domain.ExperimentStore for testing.
type mockExperimentStore struct {
	experiments map[string]*domain.Experiment // key: chatbotID+name
	listCalls   int
}

func newMockExperimentStore() *mockExperimentStore {
	return &mockExperimentStore{experiments: make(map[string]*domain.Experiment)}
}

func experimentKey(chatbotID uuid.UUID, name string) string {
	return chatbotID.String() + ":" + name
}

func (m *mockExperimentStore) Upsert(ctx context.Context, e *domain.Experiment) error {
	key := experimentKey(e.ChatbotID, e.Name)
	if existing, ok := m.experiments[key]; ok {
		e.ID = existing.ID
	} else {
		e.ID = uuid.New()
	}
	m.experiments[key] = e
	return nil
}

func (m *mockExperimentStore) GetByName(ctx context.Context, chatbotID uuid.UUID, name string) (*domain.Experiment, error) {
	e, ok := m.experiments[experimentKey(chatbotID, name)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e, nil
}

func (m *mockExperimentStore) ListByChatbot(ctx context.Context, chatbotID uuid.UUID, activeOnly bool) ([]domain.Experiment, error) {
	m.listCalls++
	var result []domain.Experiment
	for _, e := range m.experiments {
		if e.ChatbotID != chatbotID {
			continue
		}
		if activeOnly && !e.Active {
			continue
		}
		result = append(result, *e)
	}
	return result, nil
}

func setupExperimentTest() (*ExperimentService, *mockExperimentStore, uuid.UUID) {
	experimentStore := newMockExperimentStore()
	svc := NewExperimentService(experimentStore, testLogger())
	return svc, experimentStore, uuid.New()
}

func TestAssignVariant_Deterministic(t *testing.T) {
	experimentID := uuid.New()
	variants := []domain.Variant{
		{Name: "formal", Weight: 50},
		{Name: "casual", Weight: 50},
	}

	first := AssignVariant("visitor-1", experimentID, variants)
	for i := 0; i < 10; i++ {
		if got := AssignVariant("visitor-1", experimentID, variants); got != first {
			t.Fatalf("assignment changed between calls: %s then %s", first, got)
		}
	}
}

func TestAssignVariant_Distribution(t *testing.T) {
	experimentID := uuid.New()
	variants := []domain.Variant{
		{Name: "formal", Weight: 50},
		{Name: "casual", Weight: 50},
	}

	counts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		v := AssignVariant(fmt.Sprintf("visitor-%d", i), experimentID, variants)
		counts[v]++
	}

	// A 50/50 split over 1000 visitors lands well within 350..650 per side.
	for _, name := range []string{"formal", "casual"} {
		if counts[name] < 350 || counts[name] > 650 {
			t.Fatalf("variant %s got %d of 1000 assignments, expected a rough 50/50 split", name, counts[name])
		}
	}
}

func TestAssignVariant_SingleVariant(t *testing.T) {
	variants := []domain.Variant{{Name: "only", Weight: 1}}
	if got := AssignVariant("visitor-1", uuid.New(), variants); got != "only" {
		t.Fatalf("expected only variant, got %s", got)
	}
}

func TestAssignVariant_ZeroTotalWeight(t *testing.T) {
	if got := AssignVariant("visitor-1", uuid.New(), nil); got != "" {
		t.Fatalf("expected empty variant for empty set, got %s", got)
	}
}

func TestExperimentService_Upsert(t *testing.T) {
	svc, experimentStore, chatbotID := setupExperimentTest()
	ctx := context.Background()

	e := &domain.Experiment{
		ChatbotID: chatbotID,
		Name:      "greeting-style",
		Variants:  []domain.Variant{{Name: "formal", Weight: 50}, {Name: "casual", Weight: 50}},
		Active:    true,
	}
	if err := svc.Upsert(ctx, e); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(experimentStore.experiments) != 1 {
		t.Fatalf("expected 1 experiment in store, got %d", len(experimentStore.experiments))
	}
}

func TestExperimentService_Upsert_NameRequired(t *testing.T) {
	svc, _, chatbotID := setupExperimentTest()
	ctx := context.Background()

	e := &domain.Experiment{
		ChatbotID: chatbotID,
		Variants:  []domain.Variant{{Name: "formal", Weight: 50}},
	}
	if err := svc.Upsert(ctx, e); err != ErrExperimentNameEmpty {
		t.Fatalf("expected ErrExperimentNameEmpty, got %v", err)
	}
}

func TestExperimentService_Upsert_InvalidVariants(t *testing.T) {
	svc, _, chatbotID := setupExperimentTest()
	ctx := context.Background()

	e := &domain.Experiment{
		ChatbotID: chatbotID,
		Name:      "greeting-style",
		Variants:  []domain.Variant{{Name: "formal", Weight: 0}},
	}
	err := svc.Upsert(ctx, e)
	if !errors.Is(err, ErrVariantsInvalid) {
		t.Fatalf("expected ErrVariantsInvalid, got %v", err)
	}
}

func TestExperimentService_Assign(t *testing.T) {
	svc, _, chatbotID := setupExperimentTest()
	ctx := context.Background()

	e := &domain.Experiment{
		ChatbotID: chatbotID,
		Name:      "greeting-style",
		Variants:  []domain.Variant{{Name: "formal", Weight: 50}, {Name: "casual", Weight: 50}},
		Active:    true,
	}
	_ = svc.Upsert(ctx, e)

	a, err := svc.Assign(ctx, chatbotID, "greeting-style", "visitor-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a.Experiment != "greeting-style" {
		t.Fatalf("expected experiment greeting-style, got %s", a.Experiment)
	}
	if a.Variant != "formal" && a.Variant != "casual" {
		t.Fatalf("expected a known variant, got %q", a.Variant)
	}
}

func TestExperimentService_Assign_NotFound(t *testing.T) {
	svc, _, chatbotID := setupExperimentTest()
	ctx := context.Background()

	_, err := svc.Assign(ctx, chatbotID, "missing", "visitor-1")
	if err != ErrExperimentNotFound {
		t.Fatalf("expected ErrExperimentNotFound, got %v", err)
	}
}

func TestExperimentService_Assign_Inactive(t *testing.T) {
	svc, _, chatbotID := setupExperimentTest()
	ctx := context.Background()

	e := &domain.Experiment{
		ChatbotID: chatbotID,
		Name:      "greeting-style",
		Variants:  []domain.Variant{{Name: "formal", Weight: 100}},
		Active:    false,
	}
	_ = svc.Upsert(ctx, e)

	_, err := svc.Assign(ctx, chatbotID, "greeting-style", "visitor-1")
	if err != ErrExperimentInactive {
		t.Fatalf("expected ErrExperimentInactive, got %v", err)
	}
}

func TestExperimentService_Assign_VisitorRequired(t *testing.T) {
	svc, _, chatbotID := setupExperimentTest()
	ctx := context.Background()

	_, err := svc.Assign(ctx, chatbotID, "greeting-style", "")
	if err != ErrVisitorIDRequired {
		t.Fatalf("expected ErrVisitorIDRequired, got %v", err)
	}
}

func TestExperimentService_Assignments_CachesActiveSet(t *testing.T) {
	svc, experimentStore, chatbotID := setupExperimentTest()
	ctx := context.Background()

	e := &domain.Experiment{
		ChatbotID: chatbotID,
		Name:      "greeting-style",
		Variants:  []domain.Variant{{Name: "formal", Weight: 50}, {Name: "casual", Weight: 50}},
		Active:    true,
	}
	_ = svc.Upsert(ctx, e)
	experimentStore.listCalls = 0

	for i := 0; i < 5; i++ {
		assignments, err := svc.Assignments(ctx, chatbotID, "visitor-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(assignments) != 1 {
			t.Fatalf("expected 1 assignment, got %d", len(assignments))
		}
	}

	// Only the first call misses the cache.
	if experimentStore.listCalls != 1 {
		t.Fatalf("expected 1 store list call, got %d", experimentStore.listCalls)
	}
}

func TestExperimentService_Upsert_InvalidatesCache(t *testing.T) {
	svc, experimentStore, chatbotID := setupExperimentTest()
	ctx := context.Background()

	e := &domain.Experiment{
		ChatbotID: chatbotID,
		Name:      "greeting-style",
		Variants:  []domain.Variant{{Name: "formal", Weight: 100}},
		Active:    true,
	}
	_ = svc.Upsert(ctx, e)

	// Warm the cache.
	if _, err := svc.Assignments(ctx, chatbotID, "visitor-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	experimentStore.listCalls = 0

	// Upserting drops the cached set; the next read goes to the store.
	e2 := &domain.Experiment{
		ChatbotID: chatbotID,
		Name:      "cta-color",
		Variants:  []domain.Variant{{Name: "green", Weight: 1}, {Name: "blue", Weight: 1}},
		Active:    true,
	}
	_ = svc.Upsert(ctx, e2)

	assignments, err := svc.Assignments(ctx, chatbotID, "visitor-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	if experimentStore.listCalls != 1 {
		t.Fatalf("expected 1 store list call after invalidation, got %d", experimentStore.listCalls)
	}
}

func TestExperimentService_Assignments_VisitorRequired(t *testing.T) {
	svc, _, chatbotID := setupExperimentTest()
	ctx := context.Background()

	_, err := svc.Assignments(ctx, chatbotID, "")
	if err != ErrVisitorIDRequired {
		t.Fatalf("expected ErrVisitorIDRequired, got %v", err)
	}
}
