package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

var questionColumns = []string{
	"id", "subject", "chapter", "topic", "question_text", "option_a", "option_b", "option_c", "option_d",
	"correct_option", "solution", "hint_1", "hint_2", "hint_3", "difficulty", "source", "created_at",
}

type questionRepository struct {
	q sqlx.ExtContext
}

// NewQuestionRepository creates a new QuestionRepository implementation
func NewQuestionRepository(q sqlx.ExtContext) repository.QuestionRepository {
	return &questionRepository{q: q}
}

func (r *questionRepository) Get(ctx context.Context, id int64) (*models.Question, error) {
	log := logger.FromContext(ctx).WithPrefix("question_repo")
	log.Debug("getting question: id=%d", id)

	query, args, err := builder(r.q).Select(questionColumns...).From("questions").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var qn models.Question
	err = sqlx.GetContext(ctx, r.q, &qn, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("question not found: id=%d", id)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get question: %v", err)
		return nil, err
	}
	return &qn, nil
}

func (r *questionRepository) Insert(ctx context.Context, qn models.Question) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("question_repo")
	log.Debug("inserting question: subject=%s topic=%s difficulty=%d", qn.Subject, qn.Topic, qn.Difficulty)

	var id int64
	err := sqlx.GetContext(ctx, r.q, &id, r.q.Rebind(`
INSERT INTO questions (subject, chapter, topic, question_text, option_a, option_b, option_c, option_d,
                       correct_option, solution, hint_1, hint_2, hint_3, difficulty, source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), qn.Subject, qn.Chapter, qn.Topic, qn.Text, qn.OptionA, qn.OptionB, qn.OptionC, qn.OptionD,
		strings.ToUpper(qn.CorrectOption), qn.Solution, qn.Hint1, qn.Hint2, qn.Hint3, qn.Difficulty, qn.Source, qn.CreatedAt.UTC())
	if err != nil {
		log.Error("failed to insert question: %v", err)
		return 0, err
	}
	log.Debug("question inserted: id=%d", id)
	return id, nil
}

func (r *questionRepository) Find(ctx context.Context, f models.QuestionFilter) ([]models.Question, error) {
	log := logger.FromContext(ctx).WithPrefix("question_repo")
	log.Debug("finding questions: subject=%s chapter=%s topic=%s difficulty=%v exclude=%v",
		f.Subject, f.Chapter, f.Topic, f.Difficulty, f.ExcludeIDs)

	query := builder(r.q).Select(questionColumns...).From("questions")

	// Dynamic WHERE clauses
	if f.Subject != "" {
		query = query.Where("LOWER(subject) = LOWER(?)", f.Subject)
	}
	if f.Chapter != "" {
		query = query.Where("LOWER(chapter) = LOWER(?)", f.Chapter)
	}
	if f.Topic != "" {
		query = query.Where("LOWER(topic) = LOWER(?)", f.Topic)
	}
	if f.Difficulty != nil {
		query = query.Where(squirrel.GtOrEq{"difficulty": f.Difficulty.Min}).
			Where(squirrel.LtOrEq{"difficulty": f.Difficulty.Max})
	}
	if len(f.ExcludeIDs) > 0 {
		query = query.Where(squirrel.NotEq{"id": f.ExcludeIDs})
	}
	query = query.OrderBy("id ASC")
	if f.Limit > 0 {
		query = query.Limit(uint64(f.Limit))
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	var out []models.Question
	if err := sqlx.SelectContext(ctx, r.q, &out, sqlStr, args...); err != nil {
		log.Error("failed to find questions: %v", err)
		return nil, err
	}
	log.Debug("found %d questions", len(out))
	return out, nil
}

func (r *questionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM questions`); err != nil {
		logger.FromContext(ctx).WithPrefix("question_repo").Error("failed to count questions: %v", err)
		return 0, err
	}
	return n, nil
}
