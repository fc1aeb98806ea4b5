package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vytor/drillbot/internal/models"
)

// ErrDuplicate is returned when an idempotency key (inbound message id) was already recorded.
var ErrDuplicate = errors.New("duplicate record")

// ErrStaleState is returned when a conversation state was changed by another writer.
var ErrStaleState = errors.New("conversation state version conflict")

// Lookups by id return (nil, nil) when the row does not exist.

// UserRepository handles user data access
type UserRepository interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	GetByExternal(ctx context.Context, channel, externalID string) (*models.User, error)
	GetOrCreate(ctx context.Context, channel, externalID, name string, now time.Time) (*models.User, error)
	TouchActivity(ctx context.Context, id int64, at time.Time) error
	SetActive(ctx context.Context, id int64, active bool) error
	ListInactiveSince(ctx context.Context, cutoff time.Time) ([]models.User, error)
}

// MistakeRepository handles mistake data access
type MistakeRepository interface {
	Get(ctx context.Context, id int64) (*models.Mistake, error)
	Insert(ctx context.Context, mistake models.Mistake) (int64, error)
	Update(ctx context.Context, mistake models.Mistake) error
	ListDueForUser(ctx context.Context, userID int64, now time.Time) ([]models.Mistake, error)
	ListUnmasteredForUser(ctx context.Context, userID int64) ([]models.Mistake, error)
	CountDueForUser(ctx context.Context, userID int64, now time.Time) (int, error)
	UsersWithDue(ctx context.Context, now time.Time) ([]int64, error)
}

// QuestionRepository handles question bank access
type QuestionRepository interface {
	Get(ctx context.Context, id int64) (*models.Question, error)
	Insert(ctx context.Context, question models.Question) (int64, error)
	Find(ctx context.Context, filter models.QuestionFilter) ([]models.Question, error)
	Count(ctx context.Context) (int, error)
}

// AttemptRepository handles drill attempts
type AttemptRepository interface {
	// Append returns ErrDuplicate when an attempt for the same message id exists.
	Append(ctx context.Context, attempt models.DrillAttempt) (int64, error)
	RecentQuestionIDs(ctx context.Context, mistakeID int64, limit int) ([]int64, error)
	ListForMistake(ctx context.Context, mistakeID int64) ([]models.DrillAttempt, error)
}

// ConversationStateRepository handles per-user sessions. Callers hold the user's lock.
type ConversationStateRepository interface {
	GetOrCreate(ctx context.Context, userID int64, now time.Time) (*models.ConversationState, error)
	// Update returns ErrStaleState when state.Version no longer matches the stored row.
	Update(ctx context.Context, state *models.ConversationState) error
	ListStale(ctx context.Context, before time.Time) ([]int64, error)
}

// MessageLogRepository handles the message audit log
type MessageLogRepository interface {
	// AppendInbound returns ErrDuplicate when the user's external message id is already logged.
	AppendInbound(ctx context.Context, entry models.MessageLogEntry) (int64, error)
	AppendOutbound(ctx context.Context, entry models.MessageLogEntry) (int64, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.MessageLogEntry, error)
}

// NudgeLogRepository handles sent nudges
type NudgeLogRepository interface {
	LastNudge(ctx context.Context, userID int64, tier string) (*models.NudgeLogEntry, error)
	Append(ctx context.Context, entry models.NudgeLogEntry) (int64, error)
}

// OutboxRepository handles outbound intents awaiting delivery
type OutboxRepository interface {
	Enqueue(ctx context.Context, entry models.OutboxEntry) error
	Pending(ctx context.Context, createdBefore time.Time, maxAttempts, limit int) ([]models.OutboxEntry, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// Repos groups repositories bound to one connection or transaction.
type Repos struct {
	Users     UserRepository
	Mistakes  MistakeRepository
	Questions QuestionRepository
	Attempts  AttemptRepository
	States    ConversationStateRepository
	Messages  MessageLogRepository
	Nudges    NudgeLogRepository
	Outbox    OutboxRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repos
	WithinTx(ctx context.Context, fn func(Repos) error) error
	Ping(ctx context.Context) error
}
