package jobs

import "github.com/vytor/drillbot/internal/conversation"

// JobQueue provides an abstraction for enqueueing background jobs
type JobQueue interface {
	EnqueueInbound(msg conversation.InboundMessage) error
	EnqueueDueScan() error
	EnqueueNudgeScan() error
	EnqueueOutboxFlush() error
}
