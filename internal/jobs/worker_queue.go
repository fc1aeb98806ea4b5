package jobs

import (
	"time"

	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/worker"
)

// WorkerQueue implements JobQueue using worker pools. Inbound messages and
// scans use separate pools so a long scan never delays replies.
type WorkerQueue struct {
	inboundPool  *worker.Pool
	scanPool     *worker.Pool
	conversation conversation.Service
	dueScanner   worker.DueScanner
	nudgeScanner worker.NudgeScanner
	flusher      worker.OutboxFlusher
	now          func() time.Time
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(
	inboundPool *worker.Pool,
	scanPool *worker.Pool,
	conv conversation.Service,
	dueScanner worker.DueScanner,
	nudgeScanner worker.NudgeScanner,
	flusher worker.OutboxFlusher,
	now func() time.Time,
) JobQueue {
	if now == nil {
		now = time.Now
	}
	return &WorkerQueue{
		inboundPool:  inboundPool,
		scanPool:     scanPool,
		conversation: conv,
		dueScanner:   dueScanner,
		nudgeScanner: nudgeScanner,
		flusher:      flusher,
		now:          now,
	}
}

func (q *WorkerQueue) EnqueueInbound(msg conversation.InboundMessage) error {
	return q.inboundPool.Submit(&worker.InboundMessageJob{
		Conversation: q.conversation,
		Message:      msg,
	})
}

func (q *WorkerQueue) EnqueueDueScan() error {
	return q.scanPool.Submit(&worker.DueScanJob{Scanner: q.dueScanner})
}

func (q *WorkerQueue) EnqueueNudgeScan() error {
	return q.scanPool.Submit(&worker.NudgeScanJob{Scanner: q.nudgeScanner, Now: q.now})
}

func (q *WorkerQueue) EnqueueOutboxFlush() error {
	return q.scanPool.Submit(&worker.FlushOutboxJob{Flusher: q.flusher})
}
