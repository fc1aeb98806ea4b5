package gateway

import (
	"context"

	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/repository"
)

// Enqueue stores a stamped intent in the outbox and the message log. It runs
// inside the transaction that produced the intent.
func Enqueue(ctx context.Context, r repository.Repos, intent models.Intent) error {
	payload, err := intent.MarshalPayload()
	if err != nil {
		return err
	}
	if err := r.Outbox.Enqueue(ctx, models.OutboxEntry{
		ID:        intent.ID,
		UserID:    intent.UserID,
		Kind:      string(intent.Kind),
		Payload:   payload,
		CreatedAt: intent.CreatedAt,
	}); err != nil {
		return err
	}
	_, err = r.Messages.AppendOutbound(ctx, models.MessageLogEntry{
		UserID:      intent.UserID,
		Direction:   models.DirectionOutbound,
		MessageType: string(intent.Kind),
		Body:        intent.Summary(),
		CreatedAt:   intent.CreatedAt,
	})
	return err
}
