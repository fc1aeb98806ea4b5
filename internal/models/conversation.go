package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type SessionState string

const (
	StateIdle            SessionState = "IDLE"
	StateAwaitingAnswer  SessionState = "AWAITING_ANSWER"
	StateHintGiven       SessionState = "HINT_GIVEN"
	StateReviewingResult SessionState = "REVIEWING_RESULT"
)

func (s SessionState) Valid() bool {
	switch s {
	case StateIdle, StateAwaitingAnswer, StateHintGiven, StateReviewingResult:
		return true
	}
	return false
}

// InDrill reports whether a question is outstanding.
func (s SessionState) InDrill() bool {
	return s == StateAwaitingAnswer || s == StateHintGiven
}

// SessionContext is the per-state payload of a ConversationState. Each state
// has exactly one concrete context type.
type SessionContext interface {
	contextState() SessionState
}

type ResultSummary struct {
	MistakeID  int64     `json:"mistake_id"`
	QuestionID int64     `json:"question_id"`
	Correct    bool      `json:"correct"`
	At         time.Time `json:"at"`
}

type IdleContext struct {
	LastResult   *ResultSummary `json:"last_result,omitempty"`
	CancelReason string         `json:"cancel_reason,omitempty"`
}

type AwaitingContext struct {
	PromptedAt time.Time `json:"prompted_at"`
}

type HintContext struct {
	PromptedAt time.Time `json:"prompted_at"`
	Revealed   []string  `json:"revealed"`
}

// ReviewContext only exists inside a single transition and is never stored.
type ReviewContext struct {
	Submitted string `json:"submitted"`
	Correct   bool   `json:"correct"`
}

func (IdleContext) contextState() SessionState     { return StateIdle }
func (AwaitingContext) contextState() SessionState { return StateAwaitingAnswer }
func (HintContext) contextState() SessionState     { return StateHintGiven }
func (ReviewContext) contextState() SessionState   { return StateReviewingResult }

// ConversationState is the single drilling session of a user.
type ConversationState struct {
	ID                int64          `json:"id"`
	UserID            int64          `json:"user_id"`
	State             SessionState   `json:"state"`
	Context           SessionContext `json:"context"`
	CurrentMistakeID  *int64         `json:"current_mistake_id,omitempty"`
	CurrentQuestionID *int64         `json:"current_question_id,omitempty"`
	HintsGiven        int            `json:"hints_given"`
	Version           int            `json:"version"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// NewConversationState returns the initial IDLE session for a user.
func NewConversationState(userID int64, now time.Time) ConversationState {
	return ConversationState{
		UserID:    userID,
		State:     StateIdle,
		Context:   IdleContext{},
		UpdatedAt: now,
	}
}

// Begin moves the session to AWAITING_ANSWER for a freshly sent question.
func (c *ConversationState) Begin(mistakeID, questionID int64, now time.Time) {
	c.State = StateAwaitingAnswer
	c.CurrentMistakeID = &mistakeID
	c.CurrentQuestionID = &questionID
	c.HintsGiven = 0
	c.Context = AwaitingContext{PromptedAt: now}
	c.UpdatedAt = now
}

// RevealHint records one more revealed hint and moves to HINT_GIVEN.
func (c *ConversationState) RevealHint(hint string, now time.Time) {
	revealed := c.RevealedHints()
	c.HintsGiven++
	c.State = StateHintGiven
	c.Context = HintContext{
		PromptedAt: c.PromptedAt(),
		Revealed:   append(revealed, hint),
	}
	c.UpdatedAt = now
}

// Review enters the transient REVIEWING_RESULT state.
func (c *ConversationState) Review(submitted string, correct bool, now time.Time) {
	c.State = StateReviewingResult
	c.Context = ReviewContext{Submitted: submitted, Correct: correct}
	c.UpdatedAt = now
}

// Reset returns to IDLE and clears the current mistake and question together.
func (c *ConversationState) Reset(idle IdleContext, now time.Time) {
	c.State = StateIdle
	c.CurrentMistakeID = nil
	c.CurrentQuestionID = nil
	c.HintsGiven = 0
	c.Context = idle
	c.UpdatedAt = now
}

// PromptedAt is when the outstanding question was sent, zero if none.
func (c ConversationState) PromptedAt() time.Time {
	switch ctx := c.Context.(type) {
	case AwaitingContext:
		return ctx.PromptedAt
	case HintContext:
		return ctx.PromptedAt
	}
	return time.Time{}
}

// RevealedHints returns a copy of the hints already shown for the current question.
func (c ConversationState) RevealedHints() []string {
	if ctx, ok := c.Context.(HintContext); ok {
		return append([]string(nil), ctx.Revealed...)
	}
	return nil
}

// Validate checks the structural invariants of a session.
func (c ConversationState) Validate() error {
	if !c.State.Valid() {
		return fmt.Errorf("unknown session state %q", c.State)
	}
	if c.Context == nil || c.Context.contextState() != c.State {
		return fmt.Errorf("context does not match state %s", c.State)
	}
	if (c.CurrentMistakeID == nil) != (c.CurrentQuestionID == nil) {
		return fmt.Errorf("current mistake and question must be set together")
	}
	if c.State.InDrill() && c.CurrentMistakeID == nil {
		return fmt.Errorf("state %s requires a current question", c.State)
	}
	if c.State == StateIdle && c.CurrentMistakeID != nil {
		return fmt.Errorf("idle session cannot hold a current question")
	}
	return nil
}

// EncodeContext serializes a context for storage.
func EncodeContext(ctx SessionContext) (string, error) {
	if ctx == nil {
		return "{}", nil
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeContext restores the context belonging to state.
func DecodeContext(state SessionState, raw string) (SessionContext, error) {
	if raw == "" {
		raw = "{}"
	}
	var err error
	switch state {
	case StateIdle:
		var c IdleContext
		err = json.Unmarshal([]byte(raw), &c)
		return c, err
	case StateAwaitingAnswer:
		var c AwaitingContext
		err = json.Unmarshal([]byte(raw), &c)
		return c, err
	case StateHintGiven:
		var c HintContext
		err = json.Unmarshal([]byte(raw), &c)
		return c, err
	case StateReviewingResult:
		var c ReviewContext
		err = json.Unmarshal([]byte(raw), &c)
		return c, err
	}
	return nil, fmt.Errorf("unknown session state %q", state)
}
