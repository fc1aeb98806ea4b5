package worker

import (
	"context"
	"time"

	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/gateway"
	"github.com/vytor/drillbot/internal/models"
)

// DueScanner starts drills for users with due mistakes.
type DueScanner interface {
	ScanDue(ctx context.Context) (conversation.ScanResult, error)
}

// NudgeScanner sends inactivity reminders.
type NudgeScanner interface {
	Scan(ctx context.Context, now time.Time) ([]models.Intent, error)
}

// OutboxFlusher re-sends undelivered intents.
type OutboxFlusher interface {
	Flush(ctx context.Context) (gateway.FlushResult, error)
}
