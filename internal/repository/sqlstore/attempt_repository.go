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

type attemptRepository struct {
	q sqlx.ExtContext
}

// NewAttemptRepository creates a new AttemptRepository implementation
func NewAttemptRepository(q sqlx.ExtContext) repository.AttemptRepository {
	return &attemptRepository{q: q}
}

func (r *attemptRepository) Append(ctx context.Context, a models.DrillAttempt) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("attempt_repo")
	log.Debug("appending attempt: mistake_id=%d question_id=%d message_id=%s", a.MistakeID, a.QuestionID, a.MessageID)

	var id int64
	err := sqlx.GetContext(ctx, r.q, &id, r.q.Rebind(`
INSERT INTO drill_attempts (user_id, mistake_id, question_id, message_id, submitted_answer, correct_answer,
                            is_correct, hints_used, time_taken_seconds, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (message_id) DO NOTHING
RETURNING id
`), a.UserID, a.MistakeID, a.QuestionID, a.MessageID, a.SubmittedAnswer, a.CorrectAnswer,
		a.IsCorrect, a.HintsUsed, a.TimeTakenSeconds, a.CreatedAt.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		log.Warn("attempt already recorded for message %s", a.MessageID)
		return 0, repository.ErrDuplicate
	}
	if err != nil {
		log.Error("failed to append attempt: %v", err)
		return 0, err
	}
	return id, nil
}

func (r *attemptRepository) RecentQuestionIDs(ctx context.Context, mistakeID int64, limit int) ([]int64, error) {
	log := logger.FromContext(ctx).WithPrefix("attempt_repo")
	log.Debug("recent questions: mistake_id=%d limit=%d", mistakeID, limit)

	if limit <= 0 {
		return nil, nil
	}
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids, r.q.Rebind(`
SELECT question_id FROM drill_attempts
WHERE mistake_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`), mistakeID, limit)
	if err != nil {
		log.Error("failed to list recent questions: %v", err)
		return nil, err
	}
	return ids, nil
}

func (r *attemptRepository) ListForMistake(ctx context.Context, mistakeID int64) ([]models.DrillAttempt, error) {
	var out []models.DrillAttempt
	err := sqlx.SelectContext(ctx, r.q, &out, r.q.Rebind(`
SELECT id, user_id, mistake_id, question_id, message_id, submitted_answer, correct_answer, is_correct,
       hints_used, time_taken_seconds, created_at
FROM drill_attempts
WHERE mistake_id = ?
ORDER BY created_at, id
`), mistakeID)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("attempt_repo").Error("failed to list attempts: %v", err)
		return nil, err
	}
	return out, nil
}
