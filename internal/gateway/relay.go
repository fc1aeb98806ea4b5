package gateway

import (
	"context"
	"time"

	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

// Relay moves committed outbox entries to a Sender. Deliver is the fast path
// right after a transition commits; Flush retries whatever is still pending.
type Relay struct {
	sender      Sender
	outbox      repository.OutboxRepository
	now         func() time.Time
	grace       time.Duration
	maxAttempts int
	batchSize   int
}

type RelayOption func(*Relay)

func WithRelayClock(now func() time.Time) RelayOption {
	return func(r *Relay) { r.now = now }
}

// WithGrace leaves entries younger than d to the fast path.
func WithGrace(d time.Duration) RelayOption {
	return func(r *Relay) { r.grace = d }
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batchSize = n }
}

func NewRelay(sender Sender, outbox repository.OutboxRepository, maxAttempts int, opts ...RelayOption) *Relay {
	r := &Relay{
		sender:      sender,
		outbox:      outbox,
		now:         time.Now,
		grace:       30 * time.Second,
		maxAttempts: maxAttempts,
		batchSize:   100,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// FlushResult counts one Flush run.
type FlushResult struct {
	Pending   int `json:"pending"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Deliver sends intents that were just committed. Failures stay in the outbox.
func (r *Relay) Deliver(ctx context.Context, intents []models.Intent) {
	for _, intent := range intents {
		_ = r.deliver(ctx, intent)
	}
}

// Flush re-sends pending entries older than the grace period.
func (r *Relay) Flush(ctx context.Context) (FlushResult, error) {
	log := logger.FromContext(ctx).WithPrefix("relay")
	var res FlushResult

	entries, err := r.outbox.Pending(ctx, r.now().UTC().Add(-r.grace), r.maxAttempts, r.batchSize)
	if err != nil {
		log.Error("failed to list pending outbox entries: %v", err)
		return res, err
	}
	res.Pending = len(entries)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		intent, err := models.UnmarshalIntent(entry.Payload)
		if err != nil {
			log.WithError(err).Warn("outbox entry %s is not a valid intent", entry.ID)
			if err := r.outbox.MarkFailed(ctx, entry.ID, "decode: "+err.Error()); err != nil {
				return res, err
			}
			res.Failed++
			continue
		}
		intent.ID = entry.ID
		if err := r.deliver(ctx, intent); err != nil {
			res.Failed++
			continue
		}
		res.Delivered++
	}

	if res.Pending > 0 {
		log.Info("outbox flush: pending=%d delivered=%d failed=%d", res.Pending, res.Delivered, res.Failed)
	}
	return res, nil
}

func (r *Relay) deliver(ctx context.Context, intent models.Intent) error {
	log := logger.FromContext(ctx).WithPrefix("relay").WithField("intent_id", intent.ID)

	if err := r.sender.Send(ctx, intent.UserID, intent); err != nil {
		log.WithError(err).Warn("delivery failed")
		if markErr := r.outbox.MarkFailed(ctx, intent.ID, err.Error()); markErr != nil {
			log.WithError(markErr).Error("failed to record delivery failure")
		}
		return err
	}
	if err := r.outbox.MarkDelivered(ctx, intent.ID, r.now().UTC()); err != nil {
		log.WithError(err).Error("failed to mark intent delivered")
		return err
	}
	return nil
}
