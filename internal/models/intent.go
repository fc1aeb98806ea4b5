package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type IntentKind string

const (
	IntentQuestionPrompt IntentKind = "question_prompt"
	IntentHintReveal     IntentKind = "hint_reveal"
	IntentResultFeedback IntentKind = "result_feedback"
	IntentInformational  IntentKind = "informational"
	IntentNudge          IntentKind = "nudge"
)

type InfoReason string

const (
	InfoNothingDue       InfoReason = "nothing_due"
	InfoNoMistakes       InfoReason = "no_mistakes"
	InfoNoContent        InfoReason = "no_content"
	InfoClarification    InfoReason = "clarification"
	InfoNoActiveQuestion InfoReason = "no_active_question"
	InfoHelp             InfoReason = "help"
	InfoSkipped          InfoReason = "skipped"
	InfoCancelled        InfoReason = "cancelled"
	InfoSessionExpired   InfoReason = "session_expired"
	InfoRecovered        InfoReason = "recovered"
	InfoUnsubscribed     InfoReason = "unsubscribed"
	InfoResubscribed     InfoReason = "resubscribed"
)

// Intent is a channel-neutral outbound message. Exactly one payload matches Kind.
type Intent struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	Kind      IntentKind      `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Prompt    *QuestionPrompt `json:"prompt,omitempty"`
	Hint      *HintReveal     `json:"hint,omitempty"`
	Result    *ResultFeedback `json:"result,omitempty"`
	Info      *Informational  `json:"info,omitempty"`
	Nudge     *NudgeMessage   `json:"nudge,omitempty"`
}

type QuestionPrompt struct {
	MistakeID      int64     `json:"mistake_id"`
	QuestionID     int64     `json:"question_id"`
	Label          string    `json:"label"`
	Description    string    `json:"description"`
	Text           string    `json:"text"`
	Options        [4]string `json:"options"`
	HintsAvailable int       `json:"hints_available"`
	HintsGiven     int       `json:"hints_given"`
	Resent         bool      `json:"resent,omitempty"`
	Practice       bool      `json:"practice,omitempty"`
}

type HintReveal struct {
	QuestionID int64  `json:"question_id"`
	Number     int    `json:"number"`
	Total      int    `json:"total"`
	Text       string `json:"text"`
}

type ResultFeedback struct {
	MistakeID     int64     `json:"mistake_id"`
	QuestionID    int64     `json:"question_id"`
	Correct       bool      `json:"correct"`
	Submitted     string    `json:"submitted"`
	CorrectOption string    `json:"correct_option"`
	CorrectText   string    `json:"correct_text"`
	Solution      string    `json:"solution,omitempty"`
	HintsUsed     int       `json:"hints_used"`
	IntervalDays  int       `json:"interval_days"`
	NextReviewAt  time.Time `json:"next_review_at"`
	Mastered      bool      `json:"mastered"`
	DueRemaining  int       `json:"due_remaining"`
}

type Informational struct {
	Reason    InfoReason `json:"reason"`
	Pending   int        `json:"pending,omitempty"`
	NextDueAt *time.Time `json:"next_due_at,omitempty"`
	Detail    string     `json:"detail,omitempty"`
}

type NudgeMessage struct {
	Tier          string `json:"tier"`
	InactiveHours int    `json:"inactive_hours"`
	Pending       int    `json:"pending"`
	Name          string `json:"name,omitempty"`
}

func NewPromptIntent(userID int64, p QuestionPrompt) Intent {
	return Intent{UserID: userID, Kind: IntentQuestionPrompt, Prompt: &p}
}

func NewHintIntent(userID int64, h HintReveal) Intent {
	return Intent{UserID: userID, Kind: IntentHintReveal, Hint: &h}
}

func NewResultIntent(userID int64, r ResultFeedback) Intent {
	return Intent{UserID: userID, Kind: IntentResultFeedback, Result: &r}
}

func NewInfoIntent(userID int64, info Informational) Intent {
	return Intent{UserID: userID, Kind: IntentInformational, Info: &info}
}

func NewNudgeIntent(userID int64, n NudgeMessage) Intent {
	return Intent{UserID: userID, Kind: IntentNudge, Nudge: &n}
}

// Validate checks that the payload matching Kind is present.
func (i Intent) Validate() error {
	ok := false
	switch i.Kind {
	case IntentQuestionPrompt:
		ok = i.Prompt != nil
	case IntentHintReveal:
		ok = i.Hint != nil
	case IntentResultFeedback:
		ok = i.Result != nil
	case IntentInformational:
		ok = i.Info != nil
	case IntentNudge:
		ok = i.Nudge != nil
	default:
		return fmt.Errorf("unknown intent kind %q", i.Kind)
	}
	if !ok {
		return fmt.Errorf("intent %s has no %s payload", i.ID, i.Kind)
	}
	return nil
}

// Summary is the short description stored in the message log.
func (i Intent) Summary() string {
	switch {
	case i.Prompt != nil:
		if i.Prompt.Resent {
			return fmt.Sprintf("question %d re-sent", i.Prompt.QuestionID)
		}
		return fmt.Sprintf("question %d for mistake %d", i.Prompt.QuestionID, i.Prompt.MistakeID)
	case i.Hint != nil:
		return fmt.Sprintf("hint %d/%d for question %d", i.Hint.Number, i.Hint.Total, i.Hint.QuestionID)
	case i.Result != nil:
		verdict := "incorrect"
		if i.Result.Correct {
			verdict = "correct"
		}
		return fmt.Sprintf("result %s for question %d", verdict, i.Result.QuestionID)
	case i.Info != nil:
		return "info " + string(i.Info.Reason)
	case i.Nudge != nil:
		return "nudge " + i.Nudge.Tier
	}
	return string(i.Kind)
}

// MarshalPayload encodes the intent for the outbox.
func (i Intent) MarshalPayload() (string, error) {
	b, err := json.Marshal(i)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalIntent decodes an outbox payload.
func UnmarshalIntent(payload string) (Intent, error) {
	var i Intent
	if err := json.Unmarshal([]byte(payload), &i); err != nil {
		return Intent{}, err
	}
	return i, i.Validate()
}
