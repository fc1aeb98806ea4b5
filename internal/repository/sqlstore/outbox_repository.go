package sqlstore

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

type outboxRepository struct {
	q sqlx.ExtContext
}

// NewOutboxRepository creates a new OutboxRepository implementation
func NewOutboxRepository(q sqlx.ExtContext) repository.OutboxRepository {
	return &outboxRepository{q: q}
}

func (r *outboxRepository) Enqueue(ctx context.Context, e models.OutboxEntry) error {
	log := logger.FromContext(ctx).WithPrefix("outbox_repo")
	log.Debug("enqueueing outbound intent: id=%s kind=%s user_id=%d", e.ID, e.Kind, e.UserID)

	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
INSERT INTO outbox (id, user_id, kind, payload, attempts, last_error, created_at)
VALUES (?, ?, ?, ?, 0, '', ?)
`), e.ID, e.UserID, e.Kind, e.Payload, e.CreatedAt.UTC())
	if err != nil {
		log.Error("failed to enqueue outbound intent: %v", err)
	}
	return err
}

func (r *outboxRepository) Pending(ctx context.Context, createdBefore time.Time, maxAttempts, limit int) ([]models.OutboxEntry, error) {
	log := logger.FromContext(ctx).WithPrefix("outbox_repo")

	query := builder(r.q).
		Select("id", "user_id", "kind", "payload", "attempts", "last_error", "created_at", "delivered_at").
		From("outbox").
		Where(squirrel.Eq{"delivered_at": nil}).
		Where(squirrel.Lt{"attempts": maxAttempts}).
		Where(squirrel.LtOrEq{"created_at": createdBefore.UTC()}).
		OrderBy("created_at ASC", "id ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	var out []models.OutboxEntry
	if err := sqlx.SelectContext(ctx, r.q, &out, sqlStr, args...); err != nil {
		log.Error("failed to list pending outbound intents: %v", err)
		return nil, err
	}
	log.Debug("found %d pending outbound intents", len(out))
	return out, nil
}

func (r *outboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
UPDATE outbox SET delivered_at = ?, attempts = attempts + 1, last_error = '' WHERE id = ?
`), at.UTC(), id)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("outbox_repo").Error("failed to mark %s delivered: %v", id, err)
		return err
	}
	return expectOneRow(res, "outbox entry", id)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?
`), reason, id)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("outbox_repo").Error("failed to mark %s failed: %v", id, err)
		return err
	}
	return expectOneRow(res, "outbox entry", id)
}
