package worker

import (
	"context"
	"time"

	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/logger"
)

const (
	defaultInboundAttempts = 3
	defaultInboundBackoff  = 200 * time.Millisecond
)

// InboundMessageJob applies one inbound message to the user's session.
// Storage failures are retried with doubling backoff; the message id makes a
// retry of an already committed transition a no-op.
type InboundMessageJob struct {
	Conversation conversation.Service
	Message      conversation.InboundMessage
	// Attempts caps HandleInbound calls. Zero means 3.
	Attempts     int
	// Backoff is the wait before the first retry. Zero means 200ms.
	Backoff      time.Duration
}

func (j *InboundMessageJob) Name() string { return "inbound_message" }

func (j *InboundMessageJob) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).WithFields(map[string]any{
		"user_id":    j.Message.UserID,
		"message_id": j.Message.MessageID,
	})
	attempts := j.Attempts
	if attempts <= 0 {
		attempts = defaultInboundAttempts
	}
	backoff := j.Backoff
	if backoff <= 0 {
		backoff = defaultInboundBackoff
	}

	var (
		out *conversation.Outcome
		err error
	)
	for attempt := 1; ; attempt++ {
		out, err = j.Conversation.HandleInbound(ctx, j.Message)
		if !errors.IsCode(err, errors.ErrCodeStorage) || attempt >= attempts {
			break
		}
		log.WithError(err).Warn("inbound attempt %d/%d failed, retrying in %v", attempt, attempts, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) && out != nil {
			log.Warn("session recovered: %v", err)
			return nil
		}
		return err
	}
	if out.Duplicate {
		log.Debug("duplicate delivery ignored")
	}
	return nil
}

type DueScanJob struct {
	Scanner DueScanner
}

func (j *DueScanJob) Name() string { return "due_scan" }

func (j *DueScanJob) Run(ctx context.Context) error {
	res, err := j.Scanner.ScanDue(ctx)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("due scan: candidates=%d started=%d failed=%d", res.Candidates, res.Started, res.Failed)
	return nil
}

type NudgeScanJob struct {
	Scanner NudgeScanner
	Now     func() time.Time
}

func (j *NudgeScanJob) Name() string { return "nudge_scan" }

func (j *NudgeScanJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	_, err := j.Scanner.Scan(ctx, now())
	return err
}

type FlushOutboxJob struct {
	Flusher OutboxFlusher
}

func (j *FlushOutboxJob) Name() string { return "flush_outbox" }

func (j *FlushOutboxJob) Run(ctx context.Context) error {
	_, err := j.Flusher.Flush(ctx)
	return err
}
