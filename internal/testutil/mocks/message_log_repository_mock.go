package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/drillbot/internal/models"
)

// MockMessageLogRepository is a mock implementation of repository.MessageLogRepository
type MockMessageLogRepository struct {
	mock.Mock
}

func (m *MockMessageLogRepository) AppendInbound(ctx context.Context, entry models.MessageLogEntry) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageLogRepository) AppendOutbound(ctx context.Context, entry models.MessageLogEntry) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageLogRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]models.MessageLogEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MessageLogEntry), args.Error(1)
}
