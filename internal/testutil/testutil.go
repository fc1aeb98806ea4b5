package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/vytor/drillbot/internal/db"
	"github.com/vytor/drillbot/internal/models"
)

var dbCounter atomic.Int64

// NewTestDB creates an isolated in-memory SQLite database with all migrations applied.
// Foreign keys are enabled and the pool is limited to one connection like in production.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	name := fmt.Sprintf("file:drillbot_test_%d?mode=memory&cache=shared&_foreign_keys=on", dbCounter.Add(1))
	x, err := sqlx.Open(db.DriverSQLite, name)
	require.NoError(t, err)
	x.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(context.Background(), x), "failed to apply migrations")
	return x
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// Clock is a settable time source for tests.
type Clock struct {
	now atomic.Pointer[time.Time]
}

func NewClock(start time.Time) *Clock {
	c := &Clock{}
	c.Set(start)
	return c
}

func (c *Clock) Now() time.Time { return *c.now.Load() }

func (c *Clock) Set(t time.Time) {
	t = t.UTC()
	c.now.Store(&t)
}

func (c *Clock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

// SeedUser inserts an active user and returns it.
func SeedUser(t *testing.T, x *sqlx.DB, externalID string, createdAt time.Time) models.User {
	t.Helper()
	u := models.User{
		Channel:    models.ChannelWebhook,
		ExternalID: externalID,
		Name:       "Student " + externalID,
		IsActive:   true,
		CreatedAt:  createdAt.UTC(),
	}
	err := x.Get(&u.ID, x.Rebind(`
INSERT INTO users (channel, external_id, name, is_active, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id
`), u.Channel, u.ExternalID, u.Name, u.IsActive, u.CreatedAt)
	require.NoError(t, err)
	return u
}

// SeedMistake inserts m and returns it with its id set.
func SeedMistake(t *testing.T, x *sqlx.DB, m models.Mistake) models.Mistake {
	t.Helper()
	err := x.Get(&m.ID, x.Rebind(`
INSERT INTO mistakes (user_id, description, subject, chapter, topic, ease_factor, interval_days, repetitions,
                      next_review_at, times_drilled, times_correct, is_mastered, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), m.UserID, m.Description, m.Subject, m.Chapter, m.Topic, m.EaseFactor, m.IntervalDays, m.Repetitions,
		m.NextReviewAt.UTC(), m.TimesDrilled, m.TimesCorrect, m.IsMastered, m.CreatedAt.UTC())
	require.NoError(t, err)
	return m
}

// Question returns a valid question for subject/topic with option B correct and two hints.
func Question(subject, chapter, topic string, difficulty int) models.Question {
	return models.Question{
		Subject:       subject,
		Chapter:       chapter,
		Topic:         topic,
		Text:          fmt.Sprintf("Which statement about %s is true?", topic),
		OptionA:       "first",
		OptionB:       "second",
		OptionC:       "third",
		OptionD:       "fourth",
		CorrectOption: "B",
		Solution:      "The second statement follows from the definition.",
		Hint1:         "Recall the definition.",
		Hint2:         "Eliminate the extremes.",
		Difficulty:    difficulty,
		Source:        "test",
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// SeedQuestion inserts q and returns it with its id set.
func SeedQuestion(t *testing.T, x *sqlx.DB, q models.Question) models.Question {
	t.Helper()
	err := x.Get(&q.ID, x.Rebind(`
INSERT INTO questions (subject, chapter, topic, question_text, option_a, option_b, option_c, option_d,
                       correct_option, solution, hint_1, hint_2, hint_3, difficulty, source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), q.Subject, q.Chapter, q.Topic, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
		q.CorrectOption, q.Solution, q.Hint1, q.Hint2, q.Hint3, q.Difficulty, q.Source, q.CreatedAt.UTC())
	require.NoError(t, err)
	return q
}
