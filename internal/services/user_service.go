package services

import (
	"context"
	"strings"
	"time"

	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// UserService handles user registration and message history
type UserService interface {
	Register(ctx context.Context, channel, externalID, name string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	MessageHistory(ctx context.Context, userID int64, limit int) ([]models.MessageLogEntry, error)
}

type userService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageLogRepository
	now         func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(userRepo repository.UserRepository, messageRepo repository.MessageLogRepository) UserService {
	return &userService{userRepo: userRepo, messageRepo: messageRepo, now: time.Now}
}

// NormalizePhone strips separators and a leading '+'. Ten-digit Indian mobile
// numbers get the 91 country code.
func NormalizePhone(raw string) string {
	phone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	phone = strings.TrimPrefix(phone, "+")
	if len(phone) == 10 && phone[0] >= '6' && phone[0] <= '9' {
		phone = "91" + phone
	}
	return phone
}

func (s *userService) Register(ctx context.Context, channel, externalID, name string) (*models.User, error) {
	log := logger.FromContext(ctx)
	log.Debug("registering user: channel=%s external_id=%s", channel, externalID)

	switch channel {
	case models.ChannelTelegram, models.ChannelWebhook:
	case models.ChannelWhatsApp:
		externalID = NormalizePhone(externalID)
	default:
		return nil, errors.NewValidationError("channel", "must be telegram, whatsapp or webhook")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, errors.NewValidationError("external_id", "cannot be empty")
	}

	user, err := s.userRepo.GetOrCreate(ctx, channel, externalID, strings.TrimSpace(name), s.now().UTC())
	if err != nil {
		log.Error("failed to register user: %v", err)
		return nil, errors.Storage("register user", err)
	}
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	log := logger.FromContext(ctx)
	log.Debug("getting user: id=%d", id)

	user, err := s.userRepo.Get(ctx, id)
	if err != nil {
		log.Error("failed to get user: %v", err)
		return nil, errors.Storage("get user", err)
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user", id)
	}
	return user, nil
}

func (s *userService) SetActive(ctx context.Context, id int64, active bool) error {
	log := logger.FromContext(ctx)
	log.Debug("setting user active: id=%d active=%t", id, active)

	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		log.Error("failed to set user active: %v", err)
		return errors.Storage("set user active", err)
	}
	return nil
}

func (s *userService) MessageHistory(ctx context.Context, userID int64, limit int) ([]models.MessageLogEntry, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing messages: user_id=%d limit=%d", userID, limit)

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	entries, err := s.messageRepo.ListForUser(ctx, userID, limit)
	if err != nil {
		log.Error("failed to list messages: %v", err)
		return nil, errors.Storage("list messages", err)
	}
	return entries, nil
}
