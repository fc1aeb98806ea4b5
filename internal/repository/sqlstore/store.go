package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/vytor/drillbot/internal/repository"
)

type store struct {
	db *sqlx.DB
}

// NewStore creates a repository.Store backed by db.
func NewStore(db *sqlx.DB) repository.Store {
	return &store{db: db}
}

func (s *store) Repos() repository.Repos {
	return newRepos(s.db)
}

func (s *store) WithinTx(ctx context.Context, fn func(repository.Repos) error) error {
	return tx(ctx, s.db, func(t *sqlx.Tx) error {
		return fn(newRepos(t))
	})
}

func (s *store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func newRepos(q sqlx.ExtContext) repository.Repos {
	return repository.Repos{
		Users:     NewUserRepository(q),
		Mistakes:  NewMistakeRepository(q),
		Questions: NewQuestionRepository(q),
		Attempts:  NewAttemptRepository(q),
		States:    NewConversationStateRepository(q),
		Messages:  NewMessageLogRepository(q),
		Nudges:    NewNudgeLogRepository(q),
		Outbox:    NewOutboxRepository(q),
	}
}
