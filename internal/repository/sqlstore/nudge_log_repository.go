package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

type nudgeLogRepository struct {
	q sqlx.ExtContext
}

// NewNudgeLogRepository creates a new NudgeLogRepository implementation
func NewNudgeLogRepository(q sqlx.ExtContext) repository.NudgeLogRepository {
	return &nudgeLogRepository{q: q}
}

func (r *nudgeLogRepository) LastNudge(ctx context.Context, userID int64, tier string) (*models.NudgeLogEntry, error) {
	log := logger.FromContext(ctx).WithPrefix("nudge_repo")
	log.Debug("last nudge: user_id=%d tier=%s", userID, tier)

	var e models.NudgeLogEntry
	err := sqlx.GetContext(ctx, r.q, &e, r.q.Rebind(`
SELECT id, user_id, tier, message, sent_at
FROM nudge_log
WHERE user_id = ? AND tier = ?
ORDER BY sent_at DESC, id DESC
LIMIT 1
`), userID, tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get last nudge: %v", err)
		return nil, err
	}
	return &e, nil
}

func (r *nudgeLogRepository) Append(ctx context.Context, e models.NudgeLogEntry) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("nudge_repo")
	log.Debug("logging nudge: user_id=%d tier=%s", e.UserID, e.Tier)

	var id int64
	err := sqlx.GetContext(ctx, r.q, &id, r.q.Rebind(`
INSERT INTO nudge_log (user_id, tier, message, sent_at)
VALUES (?, ?, ?, ?)
RETURNING id
`), e.UserID, e.Tier, e.Message, e.SentAt.UTC())
	if err != nil {
		log.Error("failed to log nudge: %v", err)
		return 0, err
	}
	return id, nil
}
