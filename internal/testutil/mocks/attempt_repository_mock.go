package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/drillbot/internal/models"
)

// MockAttemptRepository is a mock implementation of repository.AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Append(ctx context.Context, attempt models.DrillAttempt) (int64, error) {
	args := m.Called(ctx, attempt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttemptRepository) RecentQuestionIDs(ctx context.Context, mistakeID int64, limit int) ([]int64, error) {
	args := m.Called(ctx, mistakeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockAttemptRepository) ListForMistake(ctx context.Context, mistakeID int64) ([]models.DrillAttempt, error) {
	args := m.Called(ctx, mistakeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DrillAttempt), args.Error(1)
}
