package gateway

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vytor/drillbot/internal/models"
)

// Format renders an intent as channel-neutral text. name may be empty.
func Format(intent models.Intent, name string) string {
	switch {
	case intent.Prompt != nil:
		return formatPrompt(*intent.Prompt)
	case intent.Hint != nil:
		h := intent.Hint
		return fmt.Sprintf("*Hint %d/%d:* %s\n\nReply with *A*, *B*, *C* or *D*.", h.Number, h.Total, h.Text)
	case intent.Result != nil:
		return formatResult(*intent.Result)
	case intent.Info != nil:
		return formatInfo(*intent.Info)
	case intent.Nudge != nil:
		return formatNudge(*intent.Nudge, name)
	}
	return ""
}

func formatPrompt(p models.QuestionPrompt) string {
	var b strings.Builder
	switch {
	case p.Resent:
		b.WriteString("Still waiting on this one.\n\n")
	case p.Practice:
		b.WriteString("Nothing is due right now, so here is a practice question.\n\n")
	}
	fmt.Fprintf(&b, "*Drilling:* %s\n", p.Label)
	if p.Description != "" {
		fmt.Fprintf(&b, "_%s_\n", p.Description)
	}
	fmt.Fprintf(&b, "\n*Question:*\n%s\n\n", p.Text)
	for i, letter := range models.OptionLetters {
		fmt.Fprintf(&b, "*%s)* %s\n", letter, p.Options[i])
	}
	b.WriteString("\nReply with *A*, *B*, *C* or *D*.")
	if left := p.HintsAvailable - p.HintsGiven; left > 0 {
		fmt.Fprintf(&b, " Send *HINT* for a hint (%d left).", left)
	}
	return b.String()
}

func formatResult(r models.ResultFeedback) string {
	var b strings.Builder
	if r.Correct {
		fmt.Fprintf(&b, "Correct! The answer is *%s)* %s.", r.CorrectOption, r.CorrectText)
	} else {
		fmt.Fprintf(&b, "Not quite. You chose %s, the answer is *%s)* %s.", r.Submitted, r.CorrectOption, r.CorrectText)
	}
	if r.Solution != "" {
		fmt.Fprintf(&b, "\n\n*Solution:* %s", r.Solution)
	}
	if r.Mastered {
		b.WriteString("\n\nMastered! This one will not come back.")
	} else {
		fmt.Fprintf(&b, "\n\nNext review in %s.", days(r.IntervalDays))
	}
	if r.DueRemaining > 0 {
		fmt.Fprintf(&b, "\n\n%d more still due. Reply *GO* to continue!", r.DueRemaining)
	} else {
		b.WriteString("\n\nAll caught up for now.")
	}
	return b.String()
}

func formatInfo(info models.Informational) string {
	switch info.Reason {
	case models.InfoNothingDue:
		msg := fmt.Sprintf("You have %d pending mistakes, but none are due for review yet.", info.Pending)
		if info.NextDueAt != nil {
			msg += fmt.Sprintf(" The next one is due %s UTC.", info.NextDueAt.UTC().Format("Jan 2 15:04"))
		}
		return msg
	case models.InfoNoMistakes:
		return "No mistakes to drill! Record a mistake from your last test to get started."
	case models.InfoNoContent:
		return "I could not find a question for your next mistake yet. Please try again later."
	case models.InfoClarification:
		if info.Detail == "awaiting_answer" {
			return "Please reply with *A*, *B*, *C* or *D*. Send *HINT* for a hint or *SKIP* to skip."
		}
		return "I did not get that. Reply *GO* to start drilling or *HELP* for commands."
	case models.InfoNoActiveQuestion:
		return "No active question. Reply *GO* to start drilling!"
	case models.InfoHelp:
		return "*GO* starts a drill\n*A*-*D* answers\n*HINT* reveals a hint\n*SKIP* skips the question\n*STOP* pauses reminders"
	case models.InfoSkipped:
		return "Skipped. Reply *GO* when you are ready for the next one."
	case models.InfoCancelled:
		return "Your current question was cancelled. Reply *GO* to start again."
	case models.InfoSessionExpired:
		return "Your last question timed out. Let's try a fresh one."
	case models.InfoRecovered:
		return "Something went wrong with your last question. Reply *GO* to start again."
	case models.InfoUnsubscribed:
		return "Reminders paused. Send *START* whenever you want to continue."
	case models.InfoResubscribed:
		if info.Pending > 0 {
			return fmt.Sprintf("Welcome back! You have %d mistakes waiting. Reply *GO* to start.", info.Pending)
		}
		return "Welcome back! Reply *GO* to start."
	}
	return string(info.Reason)
}

func formatNudge(n models.NudgeMessage, name string) string {
	if name == "" {
		name = "there"
	}
	switch n.Tier {
	case "gentle":
		return fmt.Sprintf("Hi %s, you have %d mistakes waiting. A quick drill keeps them from coming back. Reply *GO*!", name, n.Pending)
	case "strong":
		return fmt.Sprintf("%s, it has been %s since your last drill and %d mistakes are piling up. Reply *GO* to fix them.", name, hours(n.InactiveHours), n.Pending)
	}
	return fmt.Sprintf("%s, your %d mistakes are still waiting after %s. Reply *GO* to get back on track, or *STOP* to pause reminders.", name, n.Pending, hours(n.InactiveHours))
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func hours(h int) string {
	if h >= 48 {
		return days(h / 24)
	}
	return fmt.Sprintf("%d hours", h)
}

// Split breaks text into chunks of at most size runes, preferring paragraph,
// line and word boundaries.
func Split(text string, size int) []string {
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	var parts []string
	rest := text
	for utf8.RuneCountInString(rest) > size {
		cut := cutPoint(rest, size)
		if part := strings.TrimRight(rest[:cut], " \n"); part != "" {
			parts = append(parts, part)
		}
		rest = strings.TrimLeft(rest[cut:], " \n")
	}
	if rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func cutPoint(s string, size int) int {
	limit := byteOffset(s, size)
	window := s[:limit]
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i > 0 {
			return i
		}
	}
	return limit
}

func byteOffset(s string, runes int) int {
	n := 0
	for pos := range s {
		if n == runes {
			return pos
		}
		n++
	}
	return len(s)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
