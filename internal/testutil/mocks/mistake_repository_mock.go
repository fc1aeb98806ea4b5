package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/drillbot/internal/models"
)

// MockMistakeRepository is a mock implementation of repository.MistakeRepository
type MockMistakeRepository struct {
	mock.Mock
}

func (m *MockMistakeRepository) Get(ctx context.Context, id int64) (*models.Mistake, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mistake), args.Error(1)
}

func (m *MockMistakeRepository) Insert(ctx context.Context, mistake models.Mistake) (int64, error) {
	args := m.Called(ctx, mistake)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMistakeRepository) Update(ctx context.Context, mistake models.Mistake) error {
	args := m.Called(ctx, mistake)
	return args.Error(0)
}

func (m *MockMistakeRepository) ListDueForUser(ctx context.Context, userID int64, now time.Time) ([]models.Mistake, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Mistake), args.Error(1)
}

func (m *MockMistakeRepository) ListUnmasteredForUser(ctx context.Context, userID int64) ([]models.Mistake, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Mistake), args.Error(1)
}

func (m *MockMistakeRepository) CountDueForUser(ctx context.Context, userID int64, now time.Time) (int, error) {
	args := m.Called(ctx, userID, now)
	return args.Int(0), args.Error(1)
}

func (m *MockMistakeRepository) UsersWithDue(ctx context.Context, now time.Time) ([]int64, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}
