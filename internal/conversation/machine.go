// Package conversation drives the one-question-at-a-time drilling dialogue of each user.
package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/locker"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
	"github.com/vytor/drillbot/internal/selector"
	"github.com/vytor/drillbot/internal/srs"
)

// InboundMessage is one message from a user. MessageID must be stable across redeliveries.
type InboundMessage struct {
	UserID     int64
	Text       string
	MessageID  string
	ReceivedAt time.Time
}

type Trigger string

const (
	TriggerUser Trigger = "user"
	TriggerAPI  Trigger = "api"
	TriggerScan Trigger = "scan"
)

// StartOptions controls an externally requested drill start.
type StartOptions struct {
	Trigger Trigger
	// Force abandons an outstanding question instead of re-sending it.
	Force bool
}

// Outcome describes what one operation did to a user's session.
type Outcome struct {
	UserID    int64                 `json:"user_id"`
	From      models.SessionState   `json:"from"`
	To        models.SessionState   `json:"to"`
	Path      []models.SessionState `json:"path"`
	Intents   []models.Intent       `json:"intents"`
	Attempt   *models.DrillAttempt  `json:"attempt,omitempty"`
	Duplicate bool                  `json:"duplicate,omitempty"`
	Skipped   string                `json:"skipped,omitempty"`
}

// Changed reports whether the session moved to another state.
func (o *Outcome) Changed() bool {
	return o != nil && len(o.Path) > 1
}

// Prompted reports whether a question was sent.
func (o *Outcome) Prompted() bool {
	if o == nil {
		return false
	}
	for _, i := range o.Intents {
		if i.Kind == models.IntentQuestionPrompt {
			return true
		}
	}
	return false
}

// Dispatcher hands committed intents to the messaging gateway.
type Dispatcher interface {
	Deliver(ctx context.Context, intents []models.Intent)
}

// Service is the conversation API used by transports, scans and HTTP handlers.
type Service interface {
	HandleInbound(ctx context.Context, msg InboundMessage) (*Outcome, error)
	StartDrill(ctx context.Context, userID int64, opts StartOptions) (*Outcome, error)
	Cancel(ctx context.Context, userID int64, reason string) (*Outcome, error)
	Session(ctx context.Context, userID int64) (*models.ConversationState, error)
}

type Options struct {
	Policy            srs.Policy
	RecentWindow      int
	PracticeWhenIdle  bool
	SessionTimeout    time.Duration
	ProactiveCooldown time.Duration
	QuietHoursStart   int
	QuietHoursEnd     int
	Location          *time.Location
	ScanConcurrency   int
}

func DefaultOptions() Options {
	return Options{
		Policy:            srs.DefaultPolicy(),
		RecentWindow:      selector.DefaultRecentWindow,
		SessionTimeout:    12 * time.Hour,
		ProactiveCooldown: 2 * time.Hour,
		Location:          time.UTC,
		ScanConcurrency:   8,
	}
}

// Machine implements Service. Every operation runs under the user's lock and
// inside one transaction; intents are delivered only after commit.
type Machine struct {
	store      repository.Store
	locks      locker.Locker
	dispatcher Dispatcher
	opts       Options
	now        func() time.Time
	newID      func() string
	pick       func(n int) int
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(m *Machine) { m.newID = newID }
}

func WithPicker(pick func(n int) int) Option {
	return func(m *Machine) { m.pick = pick }
}

func NewMachine(store repository.Store, locks locker.Locker, dispatcher Dispatcher, opts Options, options ...Option) *Machine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ScanConcurrency <= 0 {
		opts.ScanConcurrency = 1
	}
	m := &Machine{
		store:      store,
		locks:      locks,
		dispatcher: dispatcher,
		opts:       opts,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, o := range options {
		o(m)
	}
	return m
}

func (m *Machine) clock() time.Time {
	return m.now().UTC()
}

func (m *Machine) HandleInbound(ctx context.Context, msg InboundMessage) (*Outcome, error) {
	log := logger.FromContext(ctx).WithPrefix("machine").WithFields(map[string]any{
		"user_id":    msg.UserID,
		"message_id": msg.MessageID,
	})
	ctx = logger.NewContext(ctx, log)

	if msg.MessageID == "" {
		return nil, errors.NewValidationError("message_id", "required for deduplication")
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = m.clock()
	}
	msg.ReceivedAt = msg.ReceivedAt.UTC()

	unlock, err := m.locks.Lock(ctx, msg.UserID)
	if err != nil {
		return nil, errors.Storage("acquire user lock", err)
	}
	defer unlock()

	var out *Outcome
	err = m.store.WithinTx(ctx, func(r repository.Repos) error {
		t, err := m.open(ctx, r, msg.UserID)
		if err != nil {
			return err
		}
		cmd := ParseCommand(msg.Text, t.user.IsActive)
		if err := t.logInbound(msg, cmd); err != nil {
			return err
		}
		if err := t.handle(cmd, msg); err != nil {
			return err
		}
		if err := t.commit(); err != nil {
			return err
		}
		out = t.out
		return nil
	})
	switch {
	case err == nil:
	case errors.IsCode(err, errors.ErrCodeDuplicateMessage):
		log.Info("duplicate inbound message ignored")
		return &Outcome{UserID: msg.UserID, Duplicate: true}, nil
	case errors.IsCode(err, errors.ErrCodeNotFound):
		log.WithError(err).Warn("transition aborted, resetting session")
		return m.recover(ctx, msg.UserID, &msg, err)
	default:
		log.WithError(err).Error("failed to handle inbound message")
		return nil, errors.Storage("handle inbound message", err)
	}

	log.Info("handled inbound: %s -> %s (%d intents)", out.From, out.To, len(out.Intents))
	m.deliver(ctx, out)
	return out, nil
}

func (m *Machine) StartDrill(ctx context.Context, userID int64, opts StartOptions) (*Outcome, error) {
	log := logger.FromContext(ctx).WithPrefix("machine").WithFields(map[string]any{
		"user_id": userID,
		"trigger": string(opts.Trigger),
	})
	ctx = logger.NewContext(ctx, log)

	unlock, err := m.locks.Lock(ctx, userID)
	if err != nil {
		return nil, errors.Storage("acquire user lock", err)
	}
	defer unlock()

	var out *Outcome
	err = m.store.WithinTx(ctx, func(r repository.Repos) error {
		t, err := m.open(ctx, r, userID)
		if err != nil {
			return err
		}
		if opts.Trigger == TriggerScan {
			err = t.proactiveStart()
		} else {
			err = t.requestedStart(opts.Force)
		}
		if err != nil {
			return err
		}
		if err := t.commit(); err != nil {
			return err
		}
		out = t.out
		return nil
	})
	switch {
	case err == nil:
	case errors.IsCode(err, errors.ErrCodeNotFound):
		log.WithError(err).Warn("drill start aborted, resetting session")
		return m.recover(ctx, userID, nil, err)
	default:
		log.WithError(err).Error("failed to start drill")
		return nil, errors.Storage("start drill", err)
	}

	if out.Skipped != "" {
		log.Debug("drill start skipped: %s", out.Skipped)
	} else {
		log.Info("drill start: %s -> %s", out.From, out.To)
	}
	m.deliver(ctx, out)
	return out, nil
}

func (m *Machine) Cancel(ctx context.Context, userID int64, reason string) (*Outcome, error) {
	log := logger.FromContext(ctx).WithPrefix("machine").WithField("user_id", userID)
	ctx = logger.NewContext(ctx, log)
	if reason == "" {
		reason = string(models.InfoCancelled)
	}

	unlock, err := m.locks.Lock(ctx, userID)
	if err != nil {
		return nil, errors.Storage("acquire user lock", err)
	}
	defer unlock()

	var out *Outcome
	err = m.store.WithinTx(ctx, func(r repository.Repos) error {
		t, err := m.open(ctx, r, userID)
		if err != nil {
			return err
		}
		if t.state.State.InDrill() {
			t.reset(reason)
			t.emit(models.NewInfoIntent(userID, models.Informational{Reason: models.InfoCancelled, Detail: reason}))
		}
		if err := t.commit(); err != nil {
			return err
		}
		out = t.out
		return nil
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return nil, err
		}
		log.WithError(err).Error("failed to cancel session")
		return nil, errors.Storage("cancel session", err)
	}
	log.Info("cancel (%s): %s -> %s", reason, out.From, out.To)
	m.deliver(ctx, out)
	return out, nil
}

func (m *Machine) Session(ctx context.Context, userID int64) (*models.ConversationState, error) {
	r := m.store.Repos()
	user, err := r.Users.Get(ctx, userID)
	if err != nil {
		return nil, errors.Storage("get user", err)
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user", userID)
	}
	state, err := r.States.GetOrCreate(ctx, userID, m.clock())
	if err != nil {
		return nil, errors.Storage("get session", err)
	}
	return state, nil
}

// recover resets the session to IDLE after a transition referenced missing data.
// The original error is returned alongside the recovery outcome.
func (m *Machine) recover(ctx context.Context, userID int64, msg *InboundMessage, cause error) (*Outcome, error) {
	log := logger.FromContext(ctx)

	var out *Outcome
	err := m.store.WithinTx(ctx, func(r repository.Repos) error {
		t, err := m.open(ctx, r, userID)
		if err != nil {
			return err
		}
		if msg != nil {
			if err := t.logInbound(*msg, ParseCommand(msg.Text, t.user.IsActive)); err != nil {
				return err
			}
		}
		t.reset(string(models.InfoRecovered))
		t.emit(models.NewInfoIntent(userID, models.Informational{Reason: models.InfoRecovered}))
		if err := t.commit(); err != nil {
			return err
		}
		out = t.out
		return nil
	})
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeDuplicateMessage) {
			log.WithError(err).Error("session recovery failed")
		}
		return nil, cause
	}
	m.deliver(ctx, out)
	return out, cause
}

func (m *Machine) deliver(ctx context.Context, out *Outcome) {
	if m.dispatcher == nil || out == nil || len(out.Intents) == 0 {
		return
	}
	m.dispatcher.Deliver(ctx, out.Intents)
}

// open loads the user and session for one transition.
func (m *Machine) open(ctx context.Context, r repository.Repos, userID int64) (*turn, error) {
	user, err := r.Users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user", userID)
	}
	now := m.clock()
	state, err := r.States.GetOrCreate(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	t := &turn{
		m:     m,
		ctx:   ctx,
		log:   logger.FromContext(ctx),
		repos: r,
		user:  user,
		state: state,
		now:   now,
		out: &Outcome{
			UserID: userID,
			From:   state.State,
			To:     state.State,
			Path:   []models.SessionState{state.State},
		},
	}
	if state.State == models.StateReviewingResult {
		// never stored by this package; treat a leftover as an interrupted review
		t.reset(string(models.InfoRecovered))
	}
	return t, nil
}
