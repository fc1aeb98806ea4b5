// Package nudge reminds inactive users that mistakes are waiting.
package nudge

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vytor/drillbot/internal/config"
	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/gateway"
	"github.com/vytor/drillbot/internal/locker"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
	"golang.org/x/sync/errgroup"
)

const maxLoggedMessage = 500

// Dispatcher hands committed intents to the messaging gateway.
type Dispatcher interface {
	Deliver(ctx context.Context, intents []models.Intent)
}

type Scanner struct {
	store       repository.Store
	locks       locker.Locker
	dispatcher  Dispatcher
	tiers       []config.NudgeTier
	concurrency int
	newID       func() string
}

type Option func(*Scanner)

func WithIDGenerator(newID func() string) Option {
	return func(s *Scanner) { s.newID = newID }
}

func WithConcurrency(n int) Option {
	return func(s *Scanner) { s.concurrency = n }
}

// NewScanner expects tiers ordered by threshold, as returned by config.ParseNudgeTiers.
func NewScanner(store repository.Store, locks locker.Locker, dispatcher Dispatcher, tiers []config.NudgeTier, opts ...Option) *Scanner {
	s := &Scanner{
		store:       store,
		locks:       locks,
		dispatcher:  dispatcher,
		tiers:       tiers,
		concurrency: 4,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	return s
}

// TierFor returns the highest tier whose threshold inactive has reached.
func TierFor(tiers []config.NudgeTier, inactive time.Duration) (config.NudgeTier, bool) {
	for i := len(tiers) - 1; i >= 0; i-- {
		if inactive >= tiers[i].After {
			return tiers[i], true
		}
	}
	return config.NudgeTier{}, false
}

// Scan sends at most one nudge per eligible user and returns the committed intents.
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]models.Intent, error) {
	log := logger.FromContext(ctx).WithPrefix("nudge")
	now = now.UTC()
	if len(s.tiers) == 0 {
		return nil, nil
	}

	candidates, err := s.store.Repos().Users.ListInactiveSince(ctx, now.Add(-s.tiers[0].After))
	if err != nil {
		log.Error("failed to list inactive users: %v", err)
		return nil, errors.Storage("list inactive users", err)
	}
	log.Debug("nudge scan: %d candidates", len(candidates))

	var (
		mu      sync.Mutex
		sent    []models.Intent
		failed  int
		g, gctx = errgroup.WithContext(ctx)
	)
	g.SetLimit(s.concurrency)
	for _, u := range candidates {
		userID := u.ID
		g.Go(func() error {
			intent, err := s.nudgeUser(gctx, userID, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return nil
			}
			if intent != nil {
				sent = append(sent, *intent)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(sent, func(i, j int) bool { return sent[i].UserID < sent[j].UserID })
	log.Info("nudge scan done: candidates=%d sent=%d failed=%d", len(candidates), len(sent), failed)
	return sent, ctx.Err()
}

// nudgeUser decides and records one user's nudge under that user's lock.
func (s *Scanner) nudgeUser(ctx context.Context, userID int64, now time.Time) (*models.Intent, error) {
	log := logger.FromContext(ctx).WithPrefix("nudge").WithField("user_id", userID)

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out *models.Intent
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		user, err := r.Users.Get(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil || !user.IsActive {
			return nil
		}
		inactive := now.Sub(user.LastSeen())
		tier, ok := TierFor(s.tiers, inactive)
		if !ok {
			return nil
		}

		pending, err := r.Mistakes.ListUnmasteredForUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			log.Debug("no pending mistakes, skipping")
			return nil
		}

		last, err := r.Nudges.LastNudge(ctx, userID, tier.Name)
		if err != nil {
			return err
		}
		if last != nil && now.Sub(last.SentAt) < tier.Cooldown {
			log.Debug("tier %s nudged at %s, still cooling down", tier.Name, last.SentAt.Format(time.RFC3339))
			return nil
		}

		intent := models.NewNudgeIntent(userID, models.NudgeMessage{
			Tier:          tier.Name,
			InactiveHours: int(inactive.Hours()),
			Pending:       len(pending),
			Name:          user.Name,
		})
		intent.ID = s.newID()
		intent.CreatedAt = now

		message := gateway.Truncate(gateway.Format(intent, user.Name), maxLoggedMessage)
		if _, err := r.Nudges.Append(ctx, models.NudgeLogEntry{
			UserID:  userID,
			Tier:    tier.Name,
			Message: message,
			SentAt:  now,
		}); err != nil {
			return err
		}
		if err := gateway.Enqueue(ctx, r, intent); err != nil {
			return err
		}
		out = &intent
		return nil
	})
	if err != nil {
		log.WithError(err).Error("nudge failed")
		return nil, err
	}
	if out == nil {
		return nil, nil
	}

	log.Info("sent %s nudge (%d pending)", out.Nudge.Tier, out.Nudge.Pending)
	if s.dispatcher != nil {
		s.dispatcher.Deliver(ctx, []models.Intent{*out})
	}
	return out, nil
}
