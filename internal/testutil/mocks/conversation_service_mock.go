package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/models"
)

// MockConversationService is a mock implementation of conversation.Service
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) HandleInbound(ctx context.Context, msg conversation.InboundMessage) (*conversation.Outcome, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversation.Outcome), args.Error(1)
}

func (m *MockConversationService) StartDrill(ctx context.Context, userID int64, opts conversation.StartOptions) (*conversation.Outcome, error) {
	args := m.Called(ctx, userID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversation.Outcome), args.Error(1)
}

func (m *MockConversationService) Cancel(ctx context.Context, userID int64, reason string) (*conversation.Outcome, error) {
	args := m.Called(ctx, userID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*conversation.Outcome), args.Error(1)
}

func (m *MockConversationService) Session(ctx context.Context, userID int64) (*models.ConversationState, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationState), args.Error(1)
}
