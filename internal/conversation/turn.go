package conversation

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/gateway"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
	"github.com/vytor/drillbot/internal/selector"
)

const maxLoggedBody = 1000

// turn is one transition of one user's session inside a transaction.
type turn struct {
	m     *Machine
	ctx   context.Context
	log   *logger.Logger
	repos repository.Repos
	user  *models.User
	state *models.ConversationState
	now   time.Time
	out   *Outcome
	dirty bool
}

func (t *turn) selector() *selector.Selector {
	opts := []selector.Option{selector.WithRecentWindow(t.m.opts.RecentWindow)}
	if t.m.pick != nil {
		opts = append(opts, selector.WithPicker(t.m.pick))
	}
	return selector.New(t.repos, opts...)
}

func (t *turn) enter(s models.SessionState) {
	t.out.Path = append(t.out.Path, s)
	t.out.To = s
	t.dirty = true
}

func (t *turn) emit(i models.Intent) {
	t.out.Intents = append(t.out.Intents, i)
}

func (t *turn) info(reason models.InfoReason) {
	t.emit(models.NewInfoIntent(t.user.ID, models.Informational{Reason: reason}))
}

func (t *turn) reset(reason string) {
	t.state.Reset(models.IdleContext{CancelReason: reason}, t.now)
	t.enter(models.StateIdle)
}

func (t *turn) logInbound(msg InboundMessage, cmd Command) error {
	body := gateway.Truncate(msg.Text, maxLoggedBody)
	id := msg.MessageID
	_, err := t.repos.Messages.AppendInbound(t.ctx, models.MessageLogEntry{
		UserID:            t.user.ID,
		Direction:         models.DirectionInbound,
		MessageType:       cmd.Kind.String(),
		Body:              body,
		ExternalMessageID: &id,
		CreatedAt:         msg.ReceivedAt,
	})
	if stderrors.Is(err, repository.ErrDuplicate) {
		return errors.NewDuplicateMessageError(msg.MessageID)
	}
	if err != nil {
		return err
	}
	return t.repos.Users.TouchActivity(t.ctx, t.user.ID, msg.ReceivedAt)
}

// commit persists the session and queues every intent for delivery.
func (t *turn) commit() error {
	if t.dirty {
		if err := t.repos.States.Update(t.ctx, t.state); err != nil {
			return err
		}
	}
	for i := range t.out.Intents {
		intent := &t.out.Intents[i]
		intent.ID = t.m.newID()
		intent.UserID = t.user.ID
		intent.CreatedAt = t.now
		if err := gateway.Enqueue(t.ctx, t.repos, *intent); err != nil {
			return err
		}
	}
	return nil
}

func (t *turn) handle(cmd Command, msg InboundMessage) error {
	if !t.user.IsActive {
		if cmd.Kind == CmdResume {
			return t.resume()
		}
		t.log.Debug("ignoring %s from inactive user", cmd.Kind)
		return nil
	}

	switch cmd.Kind {
	case CmdHelp:
		t.info(models.InfoHelp)
		return nil
	case CmdStop:
		return t.stop()
	case CmdResume:
		cmd.Kind = CmdStart
	}

	if t.state.State.InDrill() {
		return t.handleInDrill(cmd, msg)
	}
	return t.handleIdle(cmd)
}

func (t *turn) handleIdle(cmd Command) error {
	switch cmd.Kind {
	case CmdStart:
		return t.startDrill(false)
	case CmdOption, CmdHint, CmdSkip:
		t.info(models.InfoNoActiveQuestion)
	default:
		t.info(models.InfoClarification)
	}
	return nil
}

func (t *turn) handleInDrill(cmd Command, msg InboundMessage) error {
	switch cmd.Kind {
	case CmdHint:
		return t.revealHint()
	case CmdOption:
		return t.answer(cmd.Option, msg.MessageID)
	case CmdStart:
		return t.resendPrompt()
	case CmdSkip:
		t.reset(string(models.InfoSkipped))
		t.info(models.InfoSkipped)
		return nil
	}
	t.emit(models.NewInfoIntent(t.user.ID, models.Informational{
		Reason: models.InfoClarification,
		Detail: "awaiting_answer",
	}))
	return nil
}

// current loads the outstanding mistake and question.
func (t *turn) current() (*models.Mistake, *models.Question, error) {
	if t.state.CurrentMistakeID == nil || t.state.CurrentQuestionID == nil {
		return nil, nil, errors.NewNotFoundError("current question", t.user.ID)
	}
	mistake, err := t.repos.Mistakes.Get(t.ctx, *t.state.CurrentMistakeID)
	if err != nil {
		return nil, nil, err
	}
	if mistake == nil {
		return nil, nil, errors.NewNotFoundError("mistake", *t.state.CurrentMistakeID)
	}
	question, err := t.repos.Questions.Get(t.ctx, *t.state.CurrentQuestionID)
	if err != nil {
		return nil, nil, err
	}
	if question == nil {
		return nil, nil, errors.NewNotFoundError("question", *t.state.CurrentQuestionID)
	}
	return mistake, question, nil
}

func prompt(m models.Mistake, q models.Question, hintsGiven int) models.QuestionPrompt {
	return models.QuestionPrompt{
		MistakeID:      m.ID,
		QuestionID:     q.ID,
		Label:          m.Label(),
		Description:    m.Description,
		Text:           q.Text,
		Options:        q.Options(),
		HintsAvailable: len(q.Hints()),
		HintsGiven:     hintsGiven,
	}
}

func (t *turn) begin(m models.Mistake, q models.Question, practice bool) {
	t.state.Begin(m.ID, q.ID, t.now)
	t.enter(models.StateAwaitingAnswer)
	p := prompt(m, q, 0)
	p.Practice = practice
	t.emit(models.NewPromptIntent(t.user.ID, p))
}

func (t *turn) resendPrompt() error {
	mistake, question, err := t.current()
	if err != nil {
		return err
	}
	p := prompt(*mistake, *question, t.state.HintsGiven)
	p.Resent = true
	t.emit(models.NewPromptIntent(t.user.ID, p))
	return nil
}

func (t *turn) revealHint() error {
	mistake, question, err := t.current()
	if err != nil {
		return err
	}
	hints := question.Hints()
	if t.state.HintsGiven >= len(hints) {
		t.log.Debug("hints exhausted for question %d", question.ID)
		p := prompt(*mistake, *question, t.state.HintsGiven)
		p.Resent = true
		t.emit(models.NewPromptIntent(t.user.ID, p))
		return nil
	}

	text := hints[t.state.HintsGiven]
	t.state.RevealHint(text, t.now)
	t.enter(models.StateHintGiven)
	t.emit(models.NewHintIntent(t.user.ID, models.HintReveal{
		QuestionID: question.ID,
		Number:     t.state.HintsGiven,
		Total:      len(hints),
		Text:       text,
	}))
	return nil
}

func (t *turn) answer(letter, messageID string) error {
	mistake, question, err := t.current()
	if err != nil {
		return err
	}
	correct := question.IsCorrect(letter)
	hintsUsed := t.state.HintsGiven

	elapsed := 0
	if prompted := t.state.PromptedAt(); !prompted.IsZero() && t.now.After(prompted) {
		elapsed = int(t.now.Sub(prompted).Seconds())
	}

	t.state.Review(letter, correct, t.now)
	t.enter(models.StateReviewingResult)

	attempt := models.DrillAttempt{
		UserID:           t.user.ID,
		MistakeID:        mistake.ID,
		QuestionID:       question.ID,
		MessageID:        messageID,
		SubmittedAnswer:  letter,
		CorrectAnswer:    question.CorrectOption,
		IsCorrect:        correct,
		HintsUsed:        hintsUsed,
		TimeTakenSeconds: elapsed,
		CreatedAt:        t.now,
	}
	id, err := t.repos.Attempts.Append(t.ctx, attempt)
	if stderrors.Is(err, repository.ErrDuplicate) {
		return errors.NewDuplicateMessageError(messageID)
	}
	if err != nil {
		return err
	}
	attempt.ID = id
	t.out.Attempt = &attempt

	updated := *mistake
	if !mistake.IsMastered {
		updated = t.m.opts.Policy.ApplyOutcome(*mistake, correct, hintsUsed, t.now)
		if err := t.repos.Mistakes.Update(t.ctx, updated); err != nil {
			return err
		}
	}

	dueRemaining, err := t.repos.Mistakes.CountDueForUser(t.ctx, t.user.ID, t.now)
	if err != nil {
		return err
	}

	t.emit(models.NewResultIntent(t.user.ID, models.ResultFeedback{
		MistakeID:     mistake.ID,
		QuestionID:    question.ID,
		Correct:       correct,
		Submitted:     letter,
		CorrectOption: question.CorrectOption,
		CorrectText:   question.Option(question.CorrectOption),
		Solution:      question.Solution,
		HintsUsed:     hintsUsed,
		IntervalDays:  updated.IntervalDays,
		NextReviewAt:  updated.NextReviewAt,
		Mastered:      updated.IsMastered && !mistake.IsMastered,
		DueRemaining:  dueRemaining,
	}))

	t.state.Reset(models.IdleContext{LastResult: &models.ResultSummary{
		MistakeID:  mistake.ID,
		QuestionID: question.ID,
		Correct:    correct,
		At:         t.now,
	}}, t.now)
	t.enter(models.StateIdle)
	t.log.Info("answer %s to question %d: correct=%t hints=%d next_review=%s",
		letter, question.ID, correct, hintsUsed, updated.NextReviewAt.Format(time.RFC3339))
	return nil
}

// startDrill runs the selector for an IDLE session. Proactive starts stay
// silent when there is nothing to ask.
func (t *turn) startDrill(proactive bool) error {
	sel := t.selector()
	pick, err := sel.NextDrillFor(t.ctx, t.user.ID, t.now)
	if errors.IsCode(err, errors.ErrCodeContentExhausted) {
		t.log.WithError(err).Warn("due mistake has no question")
		if proactive {
			t.out.Skipped = "no_content"
			return nil
		}
		t.emit(models.NewInfoIntent(t.user.ID, models.Informational{Reason: models.InfoNoContent, Detail: contentDetail(err)}))
		return nil
	}
	if err != nil {
		return err
	}
	if pick != nil {
		t.begin(pick.Mistake, pick.Question, false)
		return nil
	}

	if proactive {
		t.out.Skipped = "nothing_due"
		return nil
	}

	unmastered, err := sel.AnyUnmastered(t.ctx, t.user.ID)
	if err != nil {
		return err
	}
	if len(unmastered) == 0 {
		t.info(models.InfoNoMistakes)
		return nil
	}
	if t.m.opts.PracticeWhenIdle {
		q, err := sel.QuestionFor(t.ctx, unmastered[0])
		if err == nil {
			t.begin(unmastered[0], *q, true)
			return nil
		}
		if !errors.IsCode(err, errors.ErrCodeContentExhausted) {
			return err
		}
	}
	next := unmastered[0].NextReviewAt
	t.emit(models.NewInfoIntent(t.user.ID, models.Informational{
		Reason:    models.InfoNothingDue,
		Pending:   len(unmastered),
		NextDueAt: &next,
	}))
	return nil
}

func contentDetail(err error) string {
	if appErr, ok := errors.As(err); ok {
		return appErr.Message
	}
	return ""
}

// requestedStart handles a start asked for by the user's operator or API.
func (t *turn) requestedStart(force bool) error {
	if !t.user.IsActive {
		t.out.Skipped = "inactive"
		return nil
	}
	if t.state.State.InDrill() {
		if !force {
			return t.resendPrompt()
		}
		t.reset("restarted")
	}
	return t.startDrill(false)
}

// proactiveStart handles a scan-triggered start. It only interrupts sessions
// that have gone stale and never starts during quiet hours.
func (t *turn) proactiveStart() error {
	switch {
	case !t.user.IsActive:
		t.out.Skipped = "inactive"
		return nil
	case t.m.inQuietHours(t.now):
		t.out.Skipped = "quiet_hours"
		return nil
	}

	if t.state.State.InDrill() {
		if t.now.Sub(t.state.UpdatedAt) < t.m.opts.SessionTimeout {
			t.out.Skipped = "in_drill"
			return nil
		}
		t.log.Info("session idle since %s, expiring", t.state.UpdatedAt.Format(time.RFC3339))
		t.reset(string(models.InfoSessionExpired))
		t.info(models.InfoSessionExpired)
	} else if last := t.lastInteraction(); !last.IsZero() && t.now.Sub(last) < t.m.opts.ProactiveCooldown {
		t.out.Skipped = "cooldown"
		return nil
	}
	return t.startDrill(true)
}

// lastInteraction is the later of the user's last message and the last session change.
func (t *turn) lastInteraction() time.Time {
	var last time.Time
	if t.user.LastActiveAt != nil {
		last = *t.user.LastActiveAt
	}
	if t.state.Version > 0 && t.state.UpdatedAt.After(last) {
		last = t.state.UpdatedAt
	}
	return last
}

func (t *turn) stop() error {
	if t.state.State.InDrill() {
		t.reset(string(models.InfoUnsubscribed))
	}
	if err := t.repos.Users.SetActive(t.ctx, t.user.ID, false); err != nil {
		return err
	}
	t.user.IsActive = false
	t.info(models.InfoUnsubscribed)
	return nil
}

func (t *turn) resume() error {
	if err := t.repos.Users.SetActive(t.ctx, t.user.ID, true); err != nil {
		return err
	}
	t.user.IsActive = true
	due, err := t.repos.Mistakes.CountDueForUser(t.ctx, t.user.ID, t.now)
	if err != nil {
		return err
	}
	t.emit(models.NewInfoIntent(t.user.ID, models.Informational{Reason: models.InfoResubscribed, Pending: due}))
	return nil
}

func (m *Machine) inQuietHours(now time.Time) bool {
	start, end := m.opts.QuietHoursStart, m.opts.QuietHoursEnd
	if start == end {
		return false
	}
	h := now.In(m.opts.Location).Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}
