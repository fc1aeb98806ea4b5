package models

import (
	"fmt"
	"strings"
	"time"
)

// Options are always presented in this order.
var OptionLetters = []string{"A", "B", "C", "D"}

type Question struct {
	ID            int64     `db:"id" json:"id"`
	Subject       string    `db:"subject" json:"subject"`
	Chapter       string    `db:"chapter" json:"chapter"`
	Topic         string    `db:"topic" json:"topic"`
	Text          string    `db:"question_text" json:"question_text"`
	OptionA       string    `db:"option_a" json:"option_a"`
	OptionB       string    `db:"option_b" json:"option_b"`
	OptionC       string    `db:"option_c" json:"option_c"`
	OptionD       string    `db:"option_d" json:"option_d"`
	CorrectOption string    `db:"correct_option" json:"correct_option"`
	Solution      string    `db:"solution" json:"solution"`
	Hint1         string    `db:"hint_1" json:"hint_1,omitempty"`
	Hint2         string    `db:"hint_2" json:"hint_2,omitempty"`
	Hint3         string    `db:"hint_3" json:"hint_3,omitempty"`
	Difficulty    int       `db:"difficulty" json:"difficulty"`
	Source        string    `db:"source" json:"source"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Hints returns the non-empty hints in reveal order.
func (q Question) Hints() []string {
	hints := make([]string, 0, 3)
	for _, h := range []string{q.Hint1, q.Hint2, q.Hint3} {
		if strings.TrimSpace(h) != "" {
			hints = append(hints, h)
		}
	}
	return hints
}

// Option returns the text of the given option letter.
func (q Question) Option(letter string) string {
	switch strings.ToUpper(letter) {
	case "A":
		return q.OptionA
	case "B":
		return q.OptionB
	case "C":
		return q.OptionC
	case "D":
		return q.OptionD
	}
	return ""
}

// Options returns the four option texts in A-D order.
func (q Question) Options() [4]string {
	return [4]string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
}

// IsCorrect compares an option letter with the correct one, ignoring case.
func (q Question) IsCorrect(letter string) bool {
	return strings.EqualFold(strings.TrimSpace(letter), strings.TrimSpace(q.CorrectOption))
}

// DifficultyRange is an inclusive difficulty bound. A nil range means any.
type DifficultyRange struct {
	Min int
	Max int
}

// QuestionFilter drives QuestionRepository.Find. Empty strings are not filtered on.
type QuestionFilter struct {
	Subject    string
	Chapter    string
	Topic      string
	Difficulty *DifficultyRange
	ExcludeIDs []int64
	Limit      int
}

// Validate checks the fields every stored question needs.
func (q Question) Validate() error {
	switch {
	case strings.TrimSpace(q.Subject) == "":
		return fmt.Errorf("subject is required")
	case strings.TrimSpace(q.Text) == "":
		return fmt.Errorf("question text is required")
	}
	for i, opt := range q.Options() {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("option %s is empty", OptionLetters[i])
		}
	}
	if q.Option(q.CorrectOption) == "" {
		return fmt.Errorf("correct option %q must be one of A-D", q.CorrectOption)
	}
	if q.Difficulty < 1 || q.Difficulty > 5 {
		return fmt.Errorf("difficulty %d must be within 1-5", q.Difficulty)
	}
	return nil
}
