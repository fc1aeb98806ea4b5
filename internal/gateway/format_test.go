package gateway_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/vytor/drillbot/internal/gateway"
	"github.com/vytor/drillbot/internal/models"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"fits", "short", 10, []string{"short"}},
		{"disabled", "no limit at all", 0, []string{"no limit at all"}},
		{"word boundary", "aaaa bbbb cccc", 9, []string{"aaaa", "bbbb cccc"}},
		{"paragraph first", "one\n\ntwo three", 10, []string{"one", "two three"}},
		{"line break", "first line\nsecond", 12, []string{"first line", "second"}},
		{"hard cut", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"multibyte", "ééééé", 2, []string{"éé", "éé", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gateway.Split(tt.text, tt.size))
		})
	}
}

func TestSplit_ChunksRespectSize(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 40)

	chunks := gateway.Split(text, 50)

	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 50)
		assert.NotEmpty(t, c)
	}
}

func TestFormat_Prompt(t *testing.T) {
	intent := models.NewPromptIntent(1, models.QuestionPrompt{
		Label:          "lenses",
		Description:    "sign convention",
		Text:           "Which sign does a virtual image distance take?",
		Options:        [4]string{"positive", "negative", "zero", "depends"},
		HintsAvailable: 2,
		HintsGiven:     1,
	})

	text := gateway.Format(intent, "")

	assert.Contains(t, text, "*Drilling:* lenses")
	assert.Contains(t, text, "_sign convention_")
	assert.Contains(t, text, "*B)* negative")
	assert.Contains(t, text, "(1 left)")
	assert.NotContains(t, text, "Still waiting")
}

func TestFormat_ResentPromptWithoutHints(t *testing.T) {
	intent := models.NewPromptIntent(1, models.QuestionPrompt{Label: "optics", Resent: true, HintsAvailable: 1, HintsGiven: 1})

	text := gateway.Format(intent, "")

	assert.True(t, strings.HasPrefix(text, "Still waiting"))
	assert.NotContains(t, text, "HINT")
}

func TestFormat_Result(t *testing.T) {
	correct := gateway.Format(models.NewResultIntent(1, models.ResultFeedback{
		Correct: true, CorrectOption: "B", CorrectText: "negative", IntervalDays: 6, DueRemaining: 2,
	}), "")
	assert.Contains(t, correct, "Correct!")
	assert.Contains(t, correct, "Next review in 6 days.")
	assert.Contains(t, correct, "2 more still due")

	wrong := gateway.Format(models.NewResultIntent(1, models.ResultFeedback{
		Submitted: "A", CorrectOption: "B", CorrectText: "negative", Solution: "Use the convention.", IntervalDays: 1,
	}), "")
	assert.Contains(t, wrong, "You chose A")
	assert.Contains(t, wrong, "*Solution:* Use the convention.")
	assert.Contains(t, wrong, "Next review in 1 day.")
	assert.Contains(t, wrong, "All caught up")

	mastered := gateway.Format(models.NewResultIntent(1, models.ResultFeedback{Correct: true, Mastered: true}), "")
	assert.Contains(t, mastered, "Mastered!")
}

func TestFormat_Info(t *testing.T) {
	next := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)
	text := gateway.Format(models.NewInfoIntent(1, models.Informational{
		Reason: models.InfoNothingDue, Pending: 3, NextDueAt: &next,
	}), "")
	assert.Contains(t, text, "You have 3 pending mistakes")
	assert.Contains(t, text, "Mar 4 09:30")

	awaiting := gateway.Format(models.NewInfoIntent(1, models.Informational{Reason: models.InfoClarification, Detail: "awaiting_answer"}), "")
	assert.Contains(t, awaiting, "*SKIP*")

	for _, reason := range []models.InfoReason{
		models.InfoNoMistakes, models.InfoNoContent, models.InfoClarification, models.InfoNoActiveQuestion,
		models.InfoHelp, models.InfoSkipped, models.InfoCancelled, models.InfoSessionExpired,
		models.InfoRecovered, models.InfoUnsubscribed, models.InfoResubscribed,
	} {
		text := gateway.Format(models.NewInfoIntent(1, models.Informational{Reason: reason}), "")
		assert.NotEqual(t, string(reason), text, reason)
	}
}

func TestFormat_NudgeTiers(t *testing.T) {
	gentle := gateway.Format(models.NewNudgeIntent(1, models.NudgeMessage{Tier: "gentle", Pending: 2}), "Asha")
	assert.True(t, strings.HasPrefix(gentle, "Hi Asha"))

	strong := gateway.Format(models.NewNudgeIntent(1, models.NudgeMessage{Tier: "strong", Pending: 4, InactiveHours: 80}), "")
	assert.Contains(t, strong, "there, it has been 3 days")

	final := gateway.Format(models.NewNudgeIntent(1, models.NudgeMessage{Tier: "final", Pending: 4, InactiveHours: 30}), "Ravi")
	assert.Contains(t, final, "after 30 hours")
	assert.Contains(t, final, "*STOP*")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{"short ascii untouched", "abc", 10, "abc"},
		{"ascii cut", "abcdef", 4, "abcd"},
		{"devanagari backs off to rune start", "नमस्ते", 4, "न"},
		{"emoji never split", "ok👍", 5, "ok"},
		{"limit inside first rune", "👍", 2, ""},
		{"negative limit", "abc", -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gateway.Truncate(tt.input, tt.limit)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncate_LongMultiByteText(t *testing.T) {
	text := strings.Repeat("गलती ", 400)

	got := gateway.Truncate(text, 1000)

	assert.LessOrEqual(t, len(got), 1000)
	assert.GreaterOrEqual(t, len(got), 997)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasPrefix(text, got))
}
