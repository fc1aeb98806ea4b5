// Package gateway turns message intents into text and delivers them over
// the user's channel.
package gateway

import (
	"context"
	"fmt"

	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

// Sender delivers one intent to one user.
type Sender interface {
	Send(ctx context.Context, userID int64, intent models.Intent) error
}

type Gateway struct {
	users      repository.UserRepository
	transports map[string]Transport
	fallback   Transport
	limiter    *Limiter
	maxLength  int
}

type Option func(*Gateway)

// WithTransport routes users of channel through t.
func WithTransport(channel string, t Transport) Option {
	return func(g *Gateway) { g.transports[channel] = t }
}

// WithFallback is used for channels without a dedicated transport.
func WithFallback(t Transport) Option {
	return func(g *Gateway) { g.fallback = t }
}

func WithLimiter(l *Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

func New(users repository.UserRepository, maxLength int, opts ...Option) *Gateway {
	g := &Gateway{
		users:      users,
		transports: make(map[string]Transport),
		fallback:   LogTransport{},
		maxLength:  maxLength,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) transportFor(channel string) Transport {
	if t, ok := g.transports[channel]; ok {
		return t
	}
	return g.fallback
}

func (g *Gateway) Send(ctx context.Context, userID int64, intent models.Intent) error {
	log := logger.FromContext(ctx).WithPrefix("gateway").WithFields(map[string]any{
		"user_id":   userID,
		"intent_id": intent.ID,
		"kind":      string(intent.Kind),
	})

	if err := intent.Validate(); err != nil {
		return errors.NewValidationError("intent", err.Error())
	}
	user, err := g.users.Get(ctx, userID)
	if err != nil {
		return errors.Storage("get user", err)
	}
	if user == nil {
		return errors.NewNotFoundError("user", userID)
	}
	t := g.transportFor(user.Channel)
	if t == nil {
		return fmt.Errorf("no transport for channel %q", user.Channel)
	}

	chunks := Split(Format(intent, user.Name), g.maxLength)
	for i, chunk := range chunks {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx, userID); err != nil {
				return err
			}
		}
		if err := t.SendText(ctx, user.ExternalID, chunk); err != nil {
			log.WithError(err).Warn("send via %s failed at chunk %d/%d", t.Name(), i+1, len(chunks))
			return err
		}
	}
	log.Debug("sent via %s in %d chunk(s)", t.Name(), len(chunks))
	return nil
}
