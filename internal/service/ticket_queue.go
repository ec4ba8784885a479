package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/store"
	"go.uber.org/zap"
)

var (
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrTicketEmailInvalid  = errors.New("requester email is invalid")
	ErrTicketSubjectEmpty  = errors.New("ticket subject is required")
	ErrTicketBodyEmpty     = errors.New("ticket description is required")
	ErrSenderNotConfigured = errors.New("ticket sender is not configured")
)

const (
	defaultDrainInterval = 30 * time.Second
	defaultDrainBatch    = 10
	drainTimeout         = 60 * time.Second
)

// TicketQueueService persists escalation tickets and delivers them to the
// help desk in the background. Requests only ever touch the queue table;
// delivery failures mark the row failed and are surfaced via the list
// endpoint, never retried automatically.
type TicketQueueService struct {
	ticketStore domain.TicketStore
	sender      domain.TicketSender
	logger      *zap.Logger

	interval  time.Duration
	batchSize int
	now       func() time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewTicketQueueService(ts domain.TicketStore, sender domain.TicketSender, logger *zap.Logger) *TicketQueueService {
	return &TicketQueueService{
		ticketStore: ts,
		sender:      sender,
		logger:      logger,
		interval:    defaultDrainInterval,
		batchSize:   defaultDrainBatch,
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}
}

func (s *TicketQueueService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *TicketQueueService) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// SetNow overrides the clock. Only tests call this.
func (s *TicketQueueService) SetNow(now func() time.Time) {
	s.now = now
}

func (s *TicketQueueService) Enqueue(ctx context.Context, t *domain.Ticket) error {
	if !strings.Contains(t.RequesterEmail, "@") {
		return ErrTicketEmailInvalid
	}
	if strings.TrimSpace(t.Subject) == "" {
		return ErrTicketSubjectEmpty
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrTicketBodyEmpty
	}

	t.Status = domain.TicketStatusPending
	return s.ticketStore.Enqueue(ctx, t)
}

func (s *TicketQueueService) Get(ctx context.Context, chatbotID, id uuid.UUID) (*domain.Ticket, error) {
	t, err := s.ticketStore.GetByID(ctx, id, chatbotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TicketQueueService) List(ctx context.Context, chatbotID uuid.UUID, status *domain.TicketStatus, limit int) ([]domain.Ticket, error) {
	tickets, err := s.ticketStore.ListByChatbot(ctx, chatbotID, status, limit)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// Start runs the delivery worker in a background goroutine. Without a
// configured sender the worker stays down and tickets accumulate as pending.
func (s *TicketQueueService) Start() {
	if s.sender == nil {
		s.logger.Warn("ticket delivery worker not started, sender not configured")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("ticket delivery worker started",
			zap.Duration("interval", s.interval),
			zap.Int("batch_size", s.batchSize))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
				if _, _, err := s.DrainOnce(ctx); err != nil {
					s.logger.Error("ticket drain failed", zap.Error(err))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("ticket delivery worker stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the worker.
func (s *TicketQueueService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// DrainOnce delivers at most one batch of pending tickets and reports how
// many were sent and how many failed. Each ticket's outcome is written back
// individually so a crash mid-batch loses no state.
func (s *TicketQueueService) DrainOnce(ctx context.Context) (sent, failed int, err error) {
	if s.sender == nil {
		return 0, 0, ErrSenderNotConfigured
	}

	tickets, err := s.ticketStore.ListPending(ctx, s.batchSize)
	if err != nil {
		return 0, 0, err
	}

	for i := range tickets {
		t := &tickets[i]

		externalID, sendErr := s.sender.CreateTicket(ctx, t)
		if sendErr != nil {
			failed++
			s.logger.Warn("ticket delivery failed",
				zap.String("ticket_id", t.ID.String()),
				zap.Error(sendErr))
			if err := s.ticketStore.MarkFailed(ctx, t.ID, sendErr.Error()); err != nil {
				s.logger.Error("failed to mark ticket failed",
					zap.String("ticket_id", t.ID.String()),
					zap.Error(err))
			}
			continue
		}

		if err := s.ticketStore.MarkSent(ctx, t.ID, externalID, s.now()); err != nil {
			s.logger.Error("failed to mark ticket sent",
				zap.String("ticket_id", t.ID.String()),
				zap.Error(err))
			continue
		}
		sent++
	}

	if sent > 0 || failed > 0 {
		s.logger.Info("ticket batch drained", zap.Int("sent", sent), zap.Int("failed", failed))
	}
	return sent, failed, nil
}
