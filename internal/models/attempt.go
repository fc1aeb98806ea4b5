package models

import "time"

// DrillAttempt records one answered drill turn. It is written once and never updated.
type DrillAttempt struct {
	ID               int64     `db:"id" json:"id"`
	UserID           int64     `db:"user_id" json:"user_id"`
	MistakeID        int64     `db:"mistake_id" json:"mistake_id"`
	QuestionID       int64     `db:"question_id" json:"question_id"`
	MessageID        string    `db:"message_id" json:"message_id"`
	SubmittedAnswer  string    `db:"submitted_answer" json:"submitted_answer"`
	CorrectAnswer    string    `db:"correct_answer" json:"correct_answer"`
	IsCorrect        bool      `db:"is_correct" json:"is_correct"`
	HintsUsed        int       `db:"hints_used" json:"hints_used"`
	TimeTakenSeconds int       `db:"time_taken_seconds" json:"time_taken_seconds"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
