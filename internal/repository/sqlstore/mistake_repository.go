package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

var mistakeColumns = []string{
	"id", "user_id", "description", "subject", "chapter", "topic", "ease_factor", "interval_days",
	"repetitions", "next_review_at", "times_drilled", "times_correct", "is_mastered", "mastered_at",
	"last_drilled_at", "created_at",
}

type mistakeRepository struct {
	q sqlx.ExtContext
}

// NewMistakeRepository creates a new MistakeRepository implementation
func NewMistakeRepository(q sqlx.ExtContext) repository.MistakeRepository {
	return &mistakeRepository{q: q}
}

func (r *mistakeRepository) Get(ctx context.Context, id int64) (*models.Mistake, error) {
	log := logger.FromContext(ctx).WithPrefix("mistake_repo")
	log.Debug("getting mistake: id=%d", id)

	query, args, err := builder(r.q).Select(mistakeColumns...).From("mistakes").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var m models.Mistake
	err = sqlx.GetContext(ctx, r.q, &m, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("mistake not found: id=%d", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get mistake: %v", err)
		return nil, err
	}
	return &m, nil
}

func (r *mistakeRepository) Insert(ctx context.Context, m models.Mistake) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("mistake_repo")
	log.Debug("inserting mistake: user_id=%d subject=%s topic=%s", m.UserID, m.Subject, m.Topic)

	var id int64
	err := sqlx.GetContext(ctx, r.q, &id, r.q.Rebind(`
INSERT INTO mistakes (user_id, description, subject, chapter, topic, ease_factor, interval_days, repetitions,
                      next_review_at, times_drilled, times_correct, is_mastered, mastered_at, last_drilled_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), m.UserID, m.Description, m.Subject, m.Chapter, m.Topic, m.EaseFactor, m.IntervalDays, m.Repetitions,
		m.NextReviewAt.UTC(), m.TimesDrilled, m.TimesCorrect, m.IsMastered, utcPtr(m.MasteredAt), utcPtr(m.LastDrilledAt), m.CreatedAt.UTC())
	if err != nil {
		log.Error("failed to insert mistake: %v", err)
		return 0, err
	}
	log.Debug("mistake inserted: id=%d", id)
	return id, nil
}

func (r *mistakeRepository) Update(ctx context.Context, m models.Mistake) error {
	log := logger.FromContext(ctx).WithPrefix("mistake_repo")
	log.Debug("updating mistake: id=%d, interval=%d, ease=%.2f, reps=%d", m.ID, m.IntervalDays, m.EaseFactor, m.Repetitions)

	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
UPDATE mistakes
SET ease_factor = ?, interval_days = ?, repetitions = ?, next_review_at = ?, times_drilled = ?, times_correct = ?,
    is_mastered = ?, mastered_at = ?, last_drilled_at = ?
WHERE id = ?
`), m.EaseFactor, m.IntervalDays, m.Repetitions, m.NextReviewAt.UTC(), m.TimesDrilled, m.TimesCorrect,
		m.IsMastered, utcPtr(m.MasteredAt), utcPtr(m.LastDrilledAt), m.ID)
	if err != nil {
		log.Error("failed to update mistake: %v", err)
		return err
	}
	return expectOneRow(res, "mistake", m.ID)
}

func (r *mistakeRepository) ListDueForUser(ctx context.Context, userID int64, now time.Time) ([]models.Mistake, error) {
	log := logger.FromContext(ctx).WithPrefix("mistake_repo")
	log.Debug("listing due mistakes: user_id=%d", userID)

	query, args, err := builder(r.q).Select(mistakeColumns...).From("mistakes").
		Where(squirrel.Eq{"user_id": userID, "is_mastered": false}).
		Where(squirrel.LtOrEq{"next_review_at": now.UTC()}).
		OrderBy("next_review_at ASC", "ease_factor ASC", "created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var out []models.Mistake
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		log.Error("failed to list due mistakes: %v", err)
		return nil, err
	}
	log.Debug("found %d due mistakes", len(out))
	return out, nil
}

func (r *mistakeRepository) ListUnmasteredForUser(ctx context.Context, userID int64) ([]models.Mistake, error) {
	log := logger.FromContext(ctx).WithPrefix("mistake_repo")
	log.Debug("listing unmastered mistakes: user_id=%d", userID)

	query, args, err := builder(r.q).Select(mistakeColumns...).From("mistakes").
		Where(squirrel.Eq{"user_id": userID, "is_mastered": false}).
		OrderBy("next_review_at ASC", "ease_factor ASC", "created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var out []models.Mistake
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		log.Error("failed to list unmastered mistakes: %v", err)
		return nil, err
	}
	return out, nil
}

func (r *mistakeRepository) CountDueForUser(ctx context.Context, userID int64, now time.Time) (int, error) {
	query, args, err := builder(r.q).Select("COUNT(*)").From("mistakes").
		Where(squirrel.Eq{"user_id": userID, "is_mastered": false}).
		Where(squirrel.LtOrEq{"next_review_at": now.UTC()}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, query, args...); err != nil {
		logger.FromContext(ctx).WithPrefix("mistake_repo").Error("failed to count due mistakes: %v", err)
		return 0, err
	}
	return n, nil
}

func (r *mistakeRepository) UsersWithDue(ctx context.Context, now time.Time) ([]int64, error) {
	log := logger.FromContext(ctx).WithPrefix("mistake_repo")
	log.Debug("listing users with due mistakes")

	query, args, err := builder(r.q).Select("DISTINCT m.user_id").From("mistakes m").
		Join("users u ON u.id = m.user_id").
		Where(squirrel.Eq{"m.is_mastered": false, "u.is_active": true}).
		Where(squirrel.LtOrEq{"m.next_review_at": now.UTC()}).
		OrderBy("m.user_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.q, &ids, query, args...); err != nil {
		log.Error("failed to list users with due mistakes: %v", err)
		return nil, err
	}
	return ids, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
