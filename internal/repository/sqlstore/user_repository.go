package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

const userColumns = `id, channel, external_id, name, is_active, last_active_at, created_at`

type userRepository struct {
	q sqlx.ExtContext
}

// NewUserRepository creates a new UserRepository implementation
func NewUserRepository(q sqlx.ExtContext) repository.UserRepository {
	return &userRepository{q: q}
}

func (r *userRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("getting user: id=%d", id)

	var u models.User
	err := sqlx.GetContext(ctx, r.q, &u, r.q.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("user not found: id=%d", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get user: %v", err)
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByExternal(ctx context.Context, channel, externalID string) (*models.User, error) {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("getting user: channel=%s external_id=%s", channel, externalID)

	var u models.User
	err := sqlx.GetContext(ctx, r.q, &u, r.q.Rebind(`SELECT `+userColumns+` FROM users WHERE channel = ? AND external_id = ?`), channel, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get user by external id: %v", err)
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetOrCreate(ctx context.Context, channel, externalID, name string, now time.Time) (*models.User, error) {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("get or create user: channel=%s external_id=%s", channel, externalID)

	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
INSERT INTO users (channel, external_id, name, is_active, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (channel, external_id) DO NOTHING
`), channel, externalID, name, true, now.UTC())
	if err != nil {
		log.Error("failed to insert user: %v", err)
		return nil, err
	}
	u, err := r.GetByExternal(ctx, channel, externalID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.New("user vanished after insert")
	}
	return u, nil
}

func (r *userRepository) TouchActivity(ctx context.Context, id int64, at time.Time) error {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("touching user activity: id=%d", id)

	res, err := r.q.ExecContext(ctx, r.q.Rebind(`UPDATE users SET last_active_at = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		log.Error("failed to update last_active_at: %v", err)
		return err
	}
	return expectOneRow(res, "user", id)
}

func (r *userRepository) SetActive(ctx context.Context, id int64, active bool) error {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("setting user active: id=%d active=%t", id, active)

	res, err := r.q.ExecContext(ctx, r.q.Rebind(`UPDATE users SET is_active = ? WHERE id = ?`), active, id)
	if err != nil {
		log.Error("failed to update is_active: %v", err)
		return err
	}
	return expectOneRow(res, "user", id)
}

func (r *userRepository) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]models.User, error) {
	log := logger.FromContext(ctx).WithPrefix("user_repo")
	log.Debug("listing users inactive since %s", cutoff.Format(time.RFC3339))

	var users []models.User
	err := sqlx.SelectContext(ctx, r.q, &users, r.q.Rebind(`
SELECT `+userColumns+`
FROM users
WHERE is_active = ? AND COALESCE(last_active_at, created_at) <= ?
ORDER BY id
`), true, cutoff.UTC())
	if err != nil {
		log.Error("failed to list inactive users: %v", err)
		return nil, err
	}
	log.Debug("found %d inactive users", len(users))
	return users, nil
}
