package services_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/services"
	"github.com/vytor/drillbot/internal/testutil/mocks"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+91 98765-43210": "919876543210",
		"9876543210":      "919876543210",
		"(987) 654 3210":  "919876543210",
		"5876543210":      "5876543210",
		"+14155550100":    "14155550100",
		"  ":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, services.NormalizePhone(in), in)
	}
}

func TestUserService_RegisterNormalizesWhatsAppNumbers(t *testing.T) {
	users := new(mocks.MockUserRepository)
	svc := services.NewUserService(users, new(mocks.MockMessageLogRepository))

	want := &models.User{ID: 3, Channel: models.ChannelWhatsApp, ExternalID: "919876543210"}
	users.On("GetOrCreate", mock.Anything, models.ChannelWhatsApp, "919876543210", "Asha", mock.Anything).Return(want, nil)

	got, err := svc.Register(context.Background(), models.ChannelWhatsApp, "+91 98765 43210", " Asha ")
	require.NoError(t, err)
	assert.Same(t, want, got)
	users.AssertExpectations(t)
}

func TestUserService_RegisterValidates(t *testing.T) {
	svc := services.NewUserService(new(mocks.MockUserRepository), new(mocks.MockMessageLogRepository))

	_, err := svc.Register(context.Background(), "sms", "123", "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	_, err = svc.Register(context.Background(), models.ChannelTelegram, "  ", "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestUserService_GetUser(t *testing.T) {
	users := new(mocks.MockUserRepository)
	svc := services.NewUserService(users, new(mocks.MockMessageLogRepository))

	users.On("Get", mock.Anything, int64(1)).Return(nil, nil)
	users.On("Get", mock.Anything, int64(2)).Return(nil, stderrors.New("database is locked"))

	_, err := svc.GetUser(context.Background(), 1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	_, err = svc.GetUser(context.Background(), 2)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorage))
}

func TestUserService_SetActive(t *testing.T) {
	users := new(mocks.MockUserRepository)
	svc := services.NewUserService(users, new(mocks.MockMessageLogRepository))

	users.On("Get", mock.Anything, int64(4)).Return(&models.User{ID: 4}, nil)
	users.On("SetActive", mock.Anything, int64(4), false).Return(nil)

	require.NoError(t, svc.SetActive(context.Background(), 4, false))
	users.AssertExpectations(t)
}

func TestUserService_MessageHistoryClampsLimit(t *testing.T) {
	users := new(mocks.MockUserRepository)
	messages := new(mocks.MockMessageLogRepository)
	svc := services.NewUserService(users, messages)

	entries := []models.MessageLogEntry{{ID: 1, UserID: 7, Direction: models.DirectionInbound, Body: "go"}}
	users.On("Get", mock.Anything, int64(7)).Return(&models.User{ID: 7}, nil)
	messages.On("ListForUser", mock.Anything, int64(7), 50).Return(entries, nil).Once()
	messages.On("ListForUser", mock.Anything, int64(7), 500).Return(entries, nil).Once()

	got, err := svc.MessageHistory(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	_, err = svc.MessageHistory(context.Background(), 7, 10000)
	require.NoError(t, err)
	messages.AssertExpectations(t)
}
