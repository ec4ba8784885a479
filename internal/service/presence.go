package service

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samtale/samtale/internal/cache"
	"github.com/samtale/samtale/internal/domain"
	"go.uber.org/zap"
)

var ErrAgentIDRequired = errors.New("agent_id is required")

const defaultPresenceTTL = 60 * time.Second

type presenceKey struct {
	chatbotID uuid.UUID
	agentID   string
}

// PresenceService tracks which support agents are online per chatbot. State
// lives only in the TTL cache: an agent that stops heartbeating falls off
// the dashboard after one TTL, and a restart drops everyone to offline.
type PresenceService struct {
	agents *cache.TTL[presenceKey, domain.AgentPresence]
	logger *zap.Logger
	now    func() time.Time
}

func NewPresenceService(ttl time.Duration, logger *zap.Logger) *PresenceService {
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	return &PresenceService{
		agents: cache.NewTTL[presenceKey, domain.AgentPresence](ttl),
		logger: logger,
		now:    time.Now,
	}
}

// SetNow overrides the clock for this service and its cache. Only tests
// call this.
func (s *PresenceService) SetNow(now func() time.Time) {
	s.now = now
	s.agents.SetNow(now)
}

// Start runs the cache janitor so long-gone agents get evicted, not just
// hidden.
func (s *PresenceService) Start() {
	s.agents.Start()
	s.logger.Info("presence janitor started")
}

// Stop gracefully stops the janitor.
func (s *PresenceService) Stop() {
	s.agents.Stop()
}

// Heartbeat marks an agent online and refreshes the TTL.
func (s *PresenceService) Heartbeat(chatbotID uuid.UUID, agentID, name string) (*domain.AgentPresence, error) {
	if agentID == "" {
		return nil, ErrAgentIDRequired
	}

	p := domain.AgentPresence{
		ChatbotID: chatbotID,
		AgentID:   agentID,
		Name:      name,
		LastSeen:  s.now(),
	}
	s.agents.Set(presenceKey{chatbotID: chatbotID, agentID: agentID}, p)
	return &p, nil
}

// Offline removes an agent immediately instead of waiting out the TTL.
func (s *PresenceService) Offline(chatbotID uuid.UUID, agentID string) {
	s.agents.Delete(presenceKey{chatbotID: chatbotID, agentID: agentID})
}

// Online lists the chatbot's live agents, most recently seen first.
func (s *PresenceService) Online(chatbotID uuid.UUID) []domain.AgentPresence {
	var online []domain.AgentPresence
	for key, p := range s.agents.Items() {
		if key.chatbotID == chatbotID {
			online = append(online, p)
		}
	}

	sort.Slice(online, func(i, j int) bool {
		return online[i].LastSeen.After(online[j].LastSeen)
	})

	if online == nil {
		online = []domain.AgentPresence{}
	}
	return online
}
