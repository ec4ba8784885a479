package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samtale/samtale/internal/domain"
)

// mockCleanupRunner implements cleanupRunner for testing.
type mockCleanupRunner struct {
	report []domain.ChatbotCleanup
	err    error
	calls  int
}

func (m *mockCleanupRunner) ExecuteAll(ctx context.Context) ([]domain.ChatbotCleanup, error) {
	m.calls++
	return m.report, m.err
}

func TestNextRun(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "before the hour fires today",
			now:  time.Date(2024, 6, 15, 1, 30, 0, 0, time.UTC),
			hour: 2,
			want: time.Date(2024, 6, 15, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "after the hour fires tomorrow",
			now:  time.Date(2024, 6, 15, 2, 30, 0, 0, time.UTC),
			hour: 2,
			want: time.Date(2024, 6, 16, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at the hour fires tomorrow",
			now:  time.Date(2024, 6, 15, 2, 0, 0, 0, time.UTC),
			hour: 2,
			want: time.Date(2024, 6, 16, 2, 0, 0, 0, time.UTC),
		},
		{
			name: "midnight hour",
			now:  time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC),
			hour: 0,
			want: time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "end of month rolls over",
			now:  time.Date(2024, 6, 30, 5, 0, 0, 0, time.UTC),
			hour: 2,
			want: time.Date(2024, 7, 1, 2, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextRun(tt.now, tt.hour)
			if !got.Equal(tt.want) {
				t.Errorf("nextRun(%v, %d) = %v, want %v", tt.now, tt.hour, got, tt.want)
			}
		})
	}
}

func TestNewCleanupScheduler_HourOutOfRange(t *testing.T) {
	for _, hour := range []int{-1, 24, 100} {
		s := NewCleanupScheduler(&mockCleanupRunner{}, hour, testLogger())
		if s.hour != defaultCleanupHour {
			t.Fatalf("hour=%d: expected fallback to %d, got %d", hour, defaultCleanupHour, s.hour)
		}
	}
}

func TestNewCleanupScheduler_HourKept(t *testing.T) {
	s := NewCleanupScheduler(&mockCleanupRunner{}, 23, testLogger())
	if s.hour != 23 {
		t.Fatalf("expected hour 23, got %d", s.hour)
	}
}

func TestCleanupScheduler_RunBatch(t *testing.T) {
	runner := &mockCleanupRunner{
		report: []domain.ChatbotCleanup{
			{Success: true},
			{Success: false, Err: "boom"},
			{Success: true},
		},
	}
	s := NewCleanupScheduler(runner, 2, testLogger())

	s.runBatch(context.Background())
	if runner.calls != 1 {
		t.Fatalf("expected 1 ExecuteAll call, got %d", runner.calls)
	}
}

func TestCleanupScheduler_RunBatch_BatchError(t *testing.T) {
	runner := &mockCleanupRunner{err: errors.New("db down")}
	s := NewCleanupScheduler(runner, 2, testLogger())

	// Must not panic; the error is logged and the scheduler keeps going.
	s.runBatch(context.Background())
	if runner.calls != 1 {
		t.Fatalf("expected 1 ExecuteAll call, got %d", runner.calls)
	}
}

func TestCleanupScheduler_StartStop(t *testing.T) {
	runner := &mockCleanupRunner{}
	s := NewCleanupScheduler(runner, 2, testLogger())

	s.Start()
	s.Stop()

	// The next run is always in the future, so stopping immediately means no batch ran.
	if runner.calls != 0 {
		t.Fatalf("expected 0 batches, got %d", runner.calls)
	}
}
