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

type messageLogRepository struct {
	q sqlx.ExtContext
}

// NewMessageLogRepository creates a new MessageLogRepository implementation
func NewMessageLogRepository(q sqlx.ExtContext) repository.MessageLogRepository {
	return &messageLogRepository{q: q}
}

func (r *messageLogRepository) AppendInbound(ctx context.Context, e models.MessageLogEntry) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("message_log_repo")
	log.Debug("logging inbound message: user_id=%d", e.UserID)

	var id int64
	err := sqlx.GetContext(ctx, r.q, &id, r.q.Rebind(`
INSERT INTO message_log (user_id, direction, message_type, body, external_message_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, external_message_id) DO NOTHING
RETURNING id
`), e.UserID, models.DirectionInbound, e.MessageType, e.Body, e.ExternalMessageID, e.CreatedAt.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("inbound message already logged")
		return 0, repository.ErrDuplicate
	}
	if err != nil {
		log.Error("failed to log inbound message: %v", err)
		return 0, err
	}
	return id, nil
}

func (r *messageLogRepository) AppendOutbound(ctx context.Context, e models.MessageLogEntry) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("message_log_repo")
	log.Debug("logging outbound message: user_id=%d type=%s", e.UserID, e.MessageType)

	var id int64
	err := sqlx.GetContext(ctx, r.q, &id, r.q.Rebind(`
INSERT INTO message_log (user_id, direction, message_type, body, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`), e.UserID, models.DirectionOutbound, e.MessageType, e.Body, e.CreatedAt.UTC())
	if err != nil {
		log.Error("failed to log outbound message: %v", err)
		return 0, err
	}
	return id, nil
}

func (r *messageLogRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]models.MessageLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.MessageLogEntry
	err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(`
SELECT id, user_id, direction, message_type, body, external_message_id, created_at
FROM message_log
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`), userID, limit)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("message_log_repo").Error("failed to list messages: %v", err)
		return nil, err
	}
	return out, nil
}
