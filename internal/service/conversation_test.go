package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/samtale/samtale/internal/domain"
	"github.com/samtale/samtale/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockConversationStore mocks the ConversationStore interface.
type MockConversationStore struct {
	mock.Mock
}

func (m *MockConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationStore) GetByID(ctx context.Context, id uuid.UUID, chatbotID uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, id, chatbotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) List(ctx context.Context, chatbotID uuid.UUID, opts domain.ListOpts) ([]domain.Conversation, error) {
	args := m.Called(ctx, chatbotID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) ListByLiveStatus(ctx context.Context, chatbotID uuid.UUID, status domain.LiveStatus) ([]domain.Conversation, error) {
	args := m.Called(ctx, chatbotID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) UpdateLiveStatus(ctx context.Context, id uuid.UUID, chatbotID uuid.UUID, from, to domain.LiveStatus, agent *string) error {
	args := m.Called(ctx, id, chatbotID, from, to, agent)
	return args.Error(0)
}

func (m *MockConversationStore) AppendMessage(ctx context.Context, msg *domain.ConversationMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockConversationStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationMessage, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConversationMessage), args.Error(1)
}

func (m *MockConversationStore) AddChunk(ctx context.Context, c *domain.MessageContextChunk) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationStore) SearchChunks(ctx context.Context, chatbotID uuid.UUID, embedding []float32, limit int) ([]domain.ChunkWithScore, error) {
	args := m.Called(ctx, chatbotID, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChunkWithScore), args.Error(1)
}

func TestConversationService_Start(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()
	visitor := "visitor-42"

	convStore.On("Create", ctx, mock.AnythingOfType("*domain.Conversation")).
		Run(func(args mock.Arguments) {
			c := args.Get(1).(*domain.Conversation)
			c.ID = conversationID
		}).
		Return(nil)

	svc := NewConversationService(convStore, zap.NewNop())

	c, err := svc.Start(ctx, chatbotID, &visitor, nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, conversationID, c.ID)
	assert.Equal(t, domain.LiveStatusBot, c.LiveStatus)
	assert.Equal(t, &visitor, c.VisitorID)

	convStore.AssertExpectations(t)
}

func TestConversationService_Start_LegacyTooLarge(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)
	svc := NewConversationService(convStore, zap.NewNop())

	legacy := make([]domain.LegacyMessage, maxLegacyImport+1)

	c, err := svc.Start(ctx, uuid.New(), nil, nil, legacy)

	assert.Equal(t, ErrLegacyTooLarge, err)
	assert.Nil(t, c)

	// The oversized import is rejected before the store is touched.
	convStore.AssertExpectations(t)
}

func TestConversationService_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()

	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(nil, store.ErrNotFound)

	svc := NewConversationService(convStore, zap.NewNop())

	c, err := svc.Get(ctx, chatbotID, conversationID)

	assert.Equal(t, ErrConversationNotFound, err)
	assert.Nil(t, c)

	convStore.AssertExpectations(t)
}

func TestConversationService_List_NormalizesNil(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	opts := domain.ListOpts{Limit: 20}

	convStore.On("List", ctx, chatbotID, opts).Return(nil, nil)

	svc := NewConversationService(convStore, zap.NewNop())

	conversations, err := svc.List(ctx, chatbotID, opts)

	assert.NoError(t, err)
	assert.NotNil(t, conversations)
	assert.Len(t, conversations, 0)

	convStore.AssertExpectations(t)
}

func TestConversationService_AppendMessage(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()

	open := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusBot}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(open, nil)
	convStore.On("AppendMessage", ctx, mock.MatchedBy(func(msg *domain.ConversationMessage) bool {
		return msg.ConversationID == conversationID && msg.MessageText == "hej" && msg.IsUser
	})).Return(nil)

	svc := NewConversationService(convStore, zap.NewNop())

	msg, err := svc.AppendMessage(ctx, chatbotID, conversationID, true, "hej", nil)

	assert.NoError(t, err)
	assert.Equal(t, "hej", msg.MessageText)
	assert.True(t, msg.IsUser)

	convStore.AssertExpectations(t)
}

func TestConversationService_AppendMessage_Closed(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()

	closed := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusClosed}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(closed, nil)

	svc := NewConversationService(convStore, zap.NewNop())

	msg, err := svc.AppendMessage(ctx, chatbotID, conversationID, true, "hej", nil)

	assert.Equal(t, ErrConversationClosed, err)
	assert.Nil(t, msg)

	convStore.AssertExpectations(t)
}

func TestConversationService_AppendMessage_Empty(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)
	svc := NewConversationService(convStore, zap.NewNop())

	msg, err := svc.AppendMessage(ctx, uuid.New(), uuid.New(), true, "", nil)

	assert.Equal(t, ErrMessageEmpty, err)
	assert.Nil(t, msg)

	convStore.AssertExpectations(t)
}

func TestConversationService_AppendMessage_ImageOnly(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()
	image := "data:image/png;base64,iVBORw0KGgo="

	open := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusAgent}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(open, nil)
	convStore.On("AppendMessage", ctx, mock.AnythingOfType("*domain.ConversationMessage")).Return(nil)

	svc := NewConversationService(convStore, zap.NewNop())

	msg, err := svc.AppendMessage(ctx, chatbotID, conversationID, true, "", &image)

	assert.NoError(t, err)
	assert.Equal(t, &image, msg.ImageData)

	convStore.AssertExpectations(t)
}

func TestConversationService_Messages(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()

	open := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusBot}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(open, nil)
	convStore.On("ListMessages", ctx, conversationID).Return([]domain.ConversationMessage{
		{ConversationID: conversationID, SequenceNumber: 1, MessageText: "hej"},
		{ConversationID: conversationID, SequenceNumber: 2, MessageText: "hello"},
	}, nil)

	svc := NewConversationService(convStore, zap.NewNop())

	messages, err := svc.Messages(ctx, chatbotID, conversationID)

	assert.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, 1, messages[0].SequenceNumber)

	convStore.AssertExpectations(t)
}

func TestConversationService_AddChunk(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()

	open := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusBot}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(open, nil)
	convStore.On("AddChunk", ctx, mock.AnythingOfType("*domain.MessageContextChunk")).Return(nil)

	svc := NewConversationService(convStore, zap.NewNop())

	// Embedding is optional on ingest; chunks without one are stored but not searchable.
	chunk, err := svc.AddChunk(ctx, chatbotID, conversationID, "ordering context", nil)

	assert.NoError(t, err)
	assert.Equal(t, "ordering context", chunk.ChunkContent)

	convStore.AssertExpectations(t)
}

func TestConversationService_AddChunk_EmptyContent(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)
	svc := NewConversationService(convStore, zap.NewNop())

	chunk, err := svc.AddChunk(ctx, uuid.New(), uuid.New(), "", nil)

	assert.Equal(t, ErrChunkContentRequired, err)
	assert.Nil(t, chunk)

	convStore.AssertExpectations(t)
}

func TestConversationService_AddChunk_WrongDimension(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)
	svc := NewConversationService(convStore, zap.NewNop())

	chunk, err := svc.AddChunk(ctx, uuid.New(), uuid.New(), "content", make([]float32, 8))

	assert.Equal(t, ErrEmbeddingDim, err)
	assert.Nil(t, chunk)

	convStore.AssertExpectations(t)
}

func TestConversationService_SearchChunks(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	embedding := make([]float32, embeddingDim)

	convStore.On("SearchChunks", ctx, chatbotID, embedding, 5).Return(nil, nil)

	svc := NewConversationService(convStore, zap.NewNop())

	results, err := svc.SearchChunks(ctx, chatbotID, embedding, 5)

	assert.NoError(t, err)
	assert.NotNil(t, results)
	assert.Len(t, results, 0)

	convStore.AssertExpectations(t)
}

func TestConversationService_SearchChunks_WrongDimension(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)
	svc := NewConversationService(convStore, zap.NewNop())

	results, err := svc.SearchChunks(ctx, uuid.New(), make([]float32, 10), 5)

	assert.Equal(t, ErrEmbeddingDim, err)
	assert.Nil(t, results)

	convStore.AssertExpectations(t)
}

func TestConversationService_RequestHandoff(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()

	botOwned := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusBot}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(botOwned, nil)
	convStore.On("UpdateLiveStatus", ctx, conversationID, chatbotID, domain.LiveStatusBot, domain.LiveStatusPending, (*string)(nil)).Return(nil)

	svc := NewConversationService(convStore, zap.NewNop())

	c, err := svc.RequestHandoff(ctx, chatbotID, conversationID)

	assert.NoError(t, err)
	assert.Equal(t, domain.LiveStatusPending, c.LiveStatus)

	convStore.AssertExpectations(t)
}

func TestConversationService_RequestHandoff_InvalidTransition(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()

	// Already with an agent; requesting a handoff again makes no sense.
	agentOwned := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusAgent}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(agentOwned, nil)

	svc := NewConversationService(convStore, zap.NewNop())

	c, err := svc.RequestHandoff(ctx, chatbotID, conversationID)

	assert.Equal(t, ErrInvalidTransition, err)
	assert.Nil(t, c)

	convStore.AssertExpectations(t)
}

func TestConversationService_ClaimHandoff(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()
	agent := "Mette"

	pending := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusPending}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(pending, nil)
	convStore.On("UpdateLiveStatus", ctx, conversationID, chatbotID, domain.LiveStatusPending, domain.LiveStatusAgent, &agent).Return(nil)

	svc := NewConversationService(convStore, zap.NewNop())

	c, err := svc.ClaimHandoff(ctx, chatbotID, conversationID, agent)

	assert.NoError(t, err)
	assert.Equal(t, domain.LiveStatusAgent, c.LiveStatus)
	assert.Equal(t, &agent, c.AssignedAgent)

	convStore.AssertExpectations(t)
}

func TestConversationService_ClaimHandoff_AgentRequired(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)
	svc := NewConversationService(convStore, zap.NewNop())

	c, err := svc.ClaimHandoff(ctx, uuid.New(), uuid.New(), "")

	assert.Equal(t, ErrAgentNameRequired, err)
	assert.Nil(t, c)

	convStore.AssertExpectations(t)
}

func TestConversationService_ClaimHandoff_LostRace(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()
	agent := "Mette"

	// The read sees pending, but another agent claims it before the update lands.
	pending := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusPending}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(pending, nil)
	convStore.On("UpdateLiveStatus", ctx, conversationID, chatbotID, domain.LiveStatusPending, domain.LiveStatusAgent, &agent).Return(store.ErrNotFound)

	svc := NewConversationService(convStore, zap.NewNop())

	c, err := svc.ClaimHandoff(ctx, chatbotID, conversationID, agent)

	assert.Equal(t, ErrInvalidTransition, err)
	assert.Nil(t, c)

	convStore.AssertExpectations(t)
}

func TestConversationService_CloseHandoff(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()
	conversationID := uuid.New()

	agentOwned := &domain.Conversation{ID: conversationID, ChatbotID: chatbotID, LiveStatus: domain.LiveStatusAgent}
	convStore.On("GetByID", ctx, conversationID, chatbotID).Return(agentOwned, nil)
	convStore.On("UpdateLiveStatus", ctx, conversationID, chatbotID, domain.LiveStatusAgent, domain.LiveStatusClosed, (*string)(nil)).Return(nil)

	svc := NewConversationService(convStore, zap.NewNop())

	c, err := svc.CloseHandoff(ctx, chatbotID, conversationID)

	assert.NoError(t, err)
	assert.Equal(t, domain.LiveStatusClosed, c.LiveStatus)

	convStore.AssertExpectations(t)
}

func TestConversationService_HandoffQueue_Empty(t *testing.T) {
	ctx := context.Background()
	convStore := new(MockConversationStore)

	chatbotID := uuid.New()

	convStore.On("ListByLiveStatus", ctx, chatbotID, domain.LiveStatusPending).Return(nil, nil)

	svc := NewConversationService(convStore, zap.NewNop())

	queue, err := svc.HandoffQueue(ctx, chatbotID)

	assert.NoError(t, err)
	assert.NotNil(t, queue)
	assert.Len(t, queue, 0)

	convStore.AssertExpectations(t)
}
