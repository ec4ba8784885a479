package service

import (
	"context"
	"sync"
	"time"

	"github.com/samtale/samtale/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultCleanupHour = 2
	cleanupRunTimeout  = 15 * time.Minute
)

type cleanupRunner interface {
	ExecuteAll(ctx context.Context) ([]domain.ChatbotCleanup, error)
}

// nextRun returns the first hour:00 wall-clock instant strictly after now.
// Computing each run from the calendar instead of a 24h ticker keeps the
// schedule aligned across DST changes.
func nextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// CleanupScheduler fires one retention batch per day at a fixed local hour.
type CleanupScheduler struct {
	runner cleanupRunner
	logger *zap.Logger

	hour   int
	now    func() time.Time
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewCleanupScheduler(runner cleanupRunner, hour int, logger *zap.Logger) *CleanupScheduler {
	if hour < 0 || hour > 23 {
		hour = defaultCleanupHour
	}
	return &CleanupScheduler{
		runner: runner,
		logger: logger,
		hour:   hour,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start runs the scheduler in a background goroutine.
func (s *CleanupScheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.logger.Info("cleanup scheduler started", zap.Int("hour", s.hour))

		for {
			next := nextRun(s.now(), s.hour)
			timer := time.NewTimer(next.Sub(s.now()))

			select {
			case <-timer.C:
				ctx, cancel := context.WithTimeout(context.Background(), cleanupRunTimeout)
				s.runBatch(ctx)
				cancel()
			case <-s.stopCh:
				timer.Stop()
				s.logger.Info("cleanup scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler. A batch already in flight finishes.
func (s *CleanupScheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *CleanupScheduler) runBatch(ctx context.Context) {
	report, err := s.runner.ExecuteAll(ctx)
	if err != nil {
		s.logger.Error("nightly cleanup batch failed", zap.Error(err))
		return
	}

	succeeded, failed := 0, 0
	for _, entry := range report {
		if entry.Success {
			succeeded++
		} else {
			failed++
		}
	}

	s.logger.Info("nightly cleanup batch finished",
		zap.Int("chatbots", len(report)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed))
}
