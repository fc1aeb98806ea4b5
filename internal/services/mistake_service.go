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

// MistakeInput describes a newly identified weak point.
type MistakeInput struct {
	Subject     string `json:"subject"`
	Chapter     string `json:"chapter"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
}

// MistakeService handles mistake-related business logic
type MistakeService interface {
	RecordMistake(ctx context.Context, userID int64, in MistakeInput) (*models.Mistake, error)
	ListPending(ctx context.Context, userID int64) ([]models.Mistake, error)
	CountDue(ctx context.Context, userID int64) (int, error)
}

type mistakeService struct {
	userRepo    repository.UserRepository
	mistakeRepo repository.MistakeRepository
	now         func() time.Time
}

// NewMistakeService creates a new MistakeService
func NewMistakeService(userRepo repository.UserRepository, mistakeRepo repository.MistakeRepository) MistakeService {
	return &mistakeService{userRepo: userRepo, mistakeRepo: mistakeRepo, now: time.Now}
}

func (s *mistakeService) RecordMistake(ctx context.Context, userID int64, in MistakeInput) (*models.Mistake, error) {
	log := logger.FromContext(ctx).WithField("user_id", userID)
	log.Debug("recording mistake: subject=%s topic=%s", in.Subject, in.Topic)

	in.Subject = strings.TrimSpace(in.Subject)
	if in.Subject == "" {
		return nil, errors.NewValidationError("subject", "cannot be empty")
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	m := models.NewMistake(userID, in.Subject, strings.TrimSpace(in.Chapter), strings.TrimSpace(in.Topic),
		strings.TrimSpace(in.Description), s.now().UTC())
	id, err := s.mistakeRepo.Insert(ctx, m)
	if err != nil {
		log.Error("failed to insert mistake: %v", err)
		return nil, errors.Storage("insert mistake", err)
	}
	m.ID = id

	log.Info("mistake recorded: id=%d label=%s", id, m.Label())
	return &m, nil
}

func (s *mistakeService) ListPending(ctx context.Context, userID int64) ([]models.Mistake, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing pending mistakes: user_id=%d", userID)

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	mistakes, err := s.mistakeRepo.ListUnmasteredForUser(ctx, userID)
	if err != nil {
		log.Error("failed to list mistakes: %v", err)
		return nil, errors.Storage("list mistakes", err)
	}
	return mistakes, nil
}

func (s *mistakeService) CountDue(ctx context.Context, userID int64) (int, error) {
	n, err := s.mistakeRepo.CountDueForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, errors.Storage("count due mistakes", err)
	}
	return n, nil
}

func (s *mistakeService) requireUser(ctx context.Context, userID int64) error {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return errors.Storage("get user", err)
	}
	if user == nil {
		return errors.NewNotFoundError("user", userID)
	}
	return nil
}
