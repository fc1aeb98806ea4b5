package models

import "time"

const DefaultEaseFactor = 2.5

// Mistake is a user's tracked weak point together with its SM-2 schedule.
type Mistake struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Description   string     `db:"description" json:"description"`
	Subject       string     `db:"subject" json:"subject"`
	Chapter       string     `db:"chapter" json:"chapter"`
	Topic         string     `db:"topic" json:"topic"`
	EaseFactor    float64    `db:"ease_factor" json:"ease_factor"`
	IntervalDays  int        `db:"interval_days" json:"interval_days"`
	Repetitions   int        `db:"repetitions" json:"repetitions"`
	NextReviewAt  time.Time  `db:"next_review_at" json:"next_review_at"`
	TimesDrilled  int        `db:"times_drilled" json:"times_drilled"`
	TimesCorrect  int        `db:"times_correct" json:"times_correct"`
	IsMastered    bool       `db:"is_mastered" json:"is_mastered"`
	MasteredAt    *time.Time `db:"mastered_at" json:"mastered_at,omitempty"`
	LastDrilledAt *time.Time `db:"last_drilled_at" json:"last_drilled_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// NewMistake returns a mistake due immediately with default scheduling fields.
func NewMistake(userID int64, subject, chapter, topic, description string, now time.Time) Mistake {
	return Mistake{
		UserID:       userID,
		Description:  description,
		Subject:      subject,
		Chapter:      chapter,
		Topic:        topic,
		EaseFactor:   DefaultEaseFactor,
		IntervalDays: 1,
		NextReviewAt: now,
		CreatedAt:    now,
	}
}

// Accuracy returns times_correct/times_drilled and false when never drilled.
func (m Mistake) Accuracy() (float64, bool) {
	if m.TimesDrilled == 0 {
		return 0, false
	}
	return float64(m.TimesCorrect) / float64(m.TimesDrilled), true
}

// IsDue reports whether the mistake should be drilled at now.
func (m Mistake) IsDue(now time.Time) bool {
	return !m.IsMastered && !m.NextReviewAt.After(now)
}

// Label is the most specific classification available, for prompts.
func (m Mistake) Label() string {
	switch {
	case m.Topic != "":
		return m.Topic
	case m.Chapter != "":
		return m.Chapter
	default:
		return m.Subject
	}
}
