package telegram_test

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository/sqlstore"
	"github.com/vytor/drillbot/internal/telegram"
	"github.com/vytor/drillbot/internal/testutil"
	"github.com/vytor/drillbot/internal/testutil/mocks"
)

type fakeAPI struct {
	sent    []tgbotapi.MessageConfig
	rejects int
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }
func (f *fakeAPI) StopReceivingUpdates()                                        { f.stopped = true }

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if f.rejects > 0 {
		f.rejects--
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestTransport_SendText(t *testing.T) {
	api := &fakeAPI{}
	tr := telegram.NewTransport(api)

	require.NoError(t, tr.SendText(context.Background(), "12345", "*Hint 1/2:* think"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(12345), api.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, api.sent[0].ParseMode)
	assert.Equal(t, "telegram", tr.Name())
}

func TestTransport_FallsBackToPlainText(t *testing.T) {
	api := &fakeAPI{rejects: 1}

	require.NoError(t, telegram.NewTransport(api).SendText(context.Background(), "12345", "a_b*c"))

	require.Len(t, api.sent, 1)
	assert.Empty(t, api.sent[0].ParseMode)
}

func TestTransport_InvalidChatID(t *testing.T) {
	err := telegram.NewTransport(&fakeAPI{}).SendText(context.Background(), "+91 98", "hi")

	assert.Error(t, err)
}

func textUpdate(chatID int64, messageID int, text string, at time.Time) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: messageID,
		Message: &tgbotapi.Message{
			MessageID: messageID,
			From:      &tgbotapi.User{ID: chatID, FirstName: "Asha", LastName: "Rao"},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Date:      int(at.Unix()),
			Text:      text,
		},
	}
}

func TestPoller_HandleUpdateQueuesInbound(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.MustClose(t, db)
	users := sqlstore.NewUserRepository(db)
	queue := new(mocks.MockJobQueue)
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	var got conversation.InboundMessage
	queue.On("EnqueueInbound", mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(0).(conversation.InboundMessage)
	}).Return(nil).Twice()

	p := telegram.NewPoller(&fakeAPI{}, users, queue, 30)
	require.NoError(t, p.HandleUpdate(context.Background(), textUpdate(777, 42, "/start", at)))

	assert.Equal(t, "start", got.Text)
	assert.Equal(t, "tg:777:42", got.MessageID)
	assert.True(t, got.ReceivedAt.Equal(at))

	user, err := users.GetByExternal(context.Background(), models.ChannelTelegram, "777")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "Asha Rao", user.Name)

	require.NoError(t, p.HandleUpdate(context.Background(), textUpdate(777, 43, "b", at)))
	assert.Equal(t, user.ID, got.UserID)
	queue.AssertExpectations(t)
}

func TestPoller_IgnoresNonText(t *testing.T) {
	queue := new(mocks.MockJobQueue)
	p := telegram.NewPoller(&fakeAPI{}, nil, queue, 30)

	assert.NoError(t, p.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 1}))
	assert.NoError(t, p.HandleUpdate(context.Background(), textUpdate(1, 2, "   ", time.Now())))
	queue.AssertNotCalled(t, "EnqueueInbound", mock.Anything)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	p := telegram.NewPoller(api, nil, new(mocks.MockJobQueue), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, p.Run(ctx))
	assert.True(t, api.stopped)
}
