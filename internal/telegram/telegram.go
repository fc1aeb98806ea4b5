// Package telegram connects drillbot to the Telegram Bot API: a long-poll
// inbound adapter and an outbound transport.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/jobs"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

// API is the part of *tgbotapi.BotAPI drillbot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Connect authenticates with the Bot API.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return api, nil
}

// MessageID is the redelivery-stable inbound id of a chat message.
func MessageID(chatID int64, messageID int) string {
	return fmt.Sprintf("tg:%d:%d", chatID, messageID)
}

type Transport struct {
	api API
}

func NewTransport(api API) *Transport {
	return &Transport{api: api}
}

func (t *Transport) Name() string { return models.ChannelTelegram }

// SendText sends text to the chat id in address, falling back to plain text
// when Telegram rejects the markdown.
func (t *Transport) SendText(ctx context.Context, address, text string) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q", address)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err = t.api.Send(msg); err == nil {
		return nil
	}
	logger.FromContext(ctx).WithPrefix("telegram").WithError(err).Debug("markdown rejected, sending plain text")
	msg.ParseMode = ""
	_, err = t.api.Send(msg)
	return err
}

// Poller reads updates with long polling and queues them as inbound messages.
type Poller struct {
	api     API
	users   repository.UserRepository
	queue   jobs.JobQueue
	timeout int
	now     func() time.Time
}

func NewPoller(api API, users repository.UserRepository, queue jobs.JobQueue, timeoutSeconds int) *Poller {
	return &Poller{
		api:     api,
		users:   users,
		queue:   queue,
		timeout: timeoutSeconds,
		now:     time.Now,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).WithPrefix("telegram")
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.api.GetUpdatesChan(cfg)
	log.Info("polling for updates (timeout %ds)", p.timeout)

	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			log.Info("stopped polling")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := p.HandleUpdate(ctx, update); err != nil {
				log.WithError(err).Warn("dropping update %d", update.UpdateID)
			}
		}
	}
}

// HandleUpdate registers the sender if needed and queues the text message.
// Updates without text are ignored.
func (p *Poller) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	m := update.Message
	if m == nil || m.Chat == nil || strings.TrimSpace(m.Text) == "" {
		return nil
	}
	name := ""
	if m.From != nil {
		name = strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
	}
	user, err := p.users.GetOrCreate(ctx, models.ChannelTelegram, strconv.FormatInt(m.Chat.ID, 10), name, p.now().UTC())
	if err != nil {
		return fmt.Errorf("register chat %d: %w", m.Chat.ID, err)
	}

	received := m.Time()
	if m.Date == 0 {
		received = p.now()
	}
	return p.queue.EnqueueInbound(conversation.InboundMessage{
		UserID:     user.ID,
		Text:       strings.TrimPrefix(strings.TrimSpace(m.Text), "/"),
		MessageID:  MessageID(m.Chat.ID, m.MessageID),
		ReceivedAt: received.UTC(),
	})
}
