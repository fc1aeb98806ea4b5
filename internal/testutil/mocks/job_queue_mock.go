package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/vytor/drillbot/internal/conversation"
)

// MockJobQueue is a mock implementation of jobs.JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) EnqueueInbound(msg conversation.InboundMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockJobQueue) EnqueueDueScan() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockJobQueue) EnqueueNudgeScan() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockJobQueue) EnqueueOutboxFlush() error {
	args := m.Called()
	return args.Error(0)
}
