package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

type stateRow struct {
	ID                int64     `db:"id"`
	UserID            int64     `db:"user_id"`
	State             string    `db:"state"`
	Context           string    `db:"context"`
	CurrentMistakeID  *int64    `db:"current_mistake_id"`
	CurrentQuestionID *int64    `db:"current_question_id"`
	HintsGiven        int       `db:"hints_given"`
	Version           int       `db:"version"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (row stateRow) toModel() (*models.ConversationState, error) {
	state := models.SessionState(row.State)
	sessionCtx, err := models.DecodeContext(state, row.Context)
	if err != nil {
		return nil, fmt.Errorf("decode context for user %d: %w", row.UserID, err)
	}
	return &models.ConversationState{
		ID:                row.ID,
		UserID:            row.UserID,
		State:             state,
		Context:           sessionCtx,
		CurrentMistakeID:  row.CurrentMistakeID,
		CurrentQuestionID: row.CurrentQuestionID,
		HintsGiven:        row.HintsGiven,
		Version:           row.Version,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

type conversationStateRepository struct {
	q sqlx.ExtContext
}

// NewConversationStateRepository creates a new ConversationStateRepository implementation
func NewConversationStateRepository(q sqlx.ExtContext) repository.ConversationStateRepository {
	return &conversationStateRepository{q: q}
}

func (r *conversationStateRepository) GetOrCreate(ctx context.Context, userID int64, now time.Time) (*models.ConversationState, error) {
	log := logger.FromContext(ctx).WithPrefix("state_repo")
	log.Debug("get or create conversation state: user_id=%d", userID)

	_, err := r.q.ExecContext(ctx, r.q.Rebind(`
INSERT INTO conversation_states (user_id, state, context, hints_given, version, updated_at)
VALUES (?, ?, ?, 0, 0, ?)
ON CONFLICT (user_id) DO NOTHING
`), userID, string(models.StateIdle), "{}", now.UTC())
	if err != nil {
		log.Error("failed to create conversation state: %v", err)
		return nil, err
	}

	var row stateRow
	err = sqlx.GetContext(ctx, r.q, &row, r.q.Rebind(`
SELECT id, user_id, state, context, current_mistake_id, current_question_id, hints_given, version, updated_at
FROM conversation_states
WHERE user_id = ?
`), userID)
	if err != nil {
		log.Error("failed to load conversation state: %v", err)
		return nil, err
	}
	return row.toModel()
}

func (r *conversationStateRepository) Update(ctx context.Context, s *models.ConversationState) error {
	log := logger.FromContext(ctx).WithPrefix("state_repo")
	log.Debug("updating conversation state: user_id=%d state=%s hints=%d version=%d", s.UserID, s.State, s.HintsGiven, s.Version)

	if err := s.Validate(); err != nil {
		return err
	}
	raw, err := models.EncodeContext(s.Context)
	if err != nil {
		return err
	}

	res, err := r.q.ExecContext(ctx, r.q.Rebind(`
UPDATE conversation_states
SET state = ?, context = ?, current_mistake_id = ?, current_question_id = ?, hints_given = ?,
    version = version + 1, updated_at = ?
WHERE user_id = ? AND version = ?
`), string(s.State), raw, s.CurrentMistakeID, s.CurrentQuestionID, s.HintsGiven, s.UpdatedAt.UTC(), s.UserID, s.Version)
	if err != nil {
		log.Error("failed to update conversation state: %v", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warn("conversation state changed concurrently: user_id=%d", s.UserID)
		return repository.ErrStaleState
	}
	s.Version++
	return nil
}

func (r *conversationStateRepository) ListStale(ctx context.Context, before time.Time) ([]int64, error) {
	log := logger.FromContext(ctx).WithPrefix("state_repo")
	log.Debug("listing stale sessions before %s", before.Format(time.RFC3339))

	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids, r.q.Rebind(`
SELECT user_id FROM conversation_states
WHERE state IN (?, ?) AND updated_at < ?
ORDER BY user_id
`), string(models.StateAwaitingAnswer), string(models.StateHintGiven), before.UTC())
	if err != nil {
		log.Error("failed to list stale sessions: %v", err)
		return nil, err
	}
	return ids, nil
}
