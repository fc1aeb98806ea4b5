package gateway

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces outbound messages per user.
type Limiter struct {
	mu     sync.Mutex
	limits map[int64]*rate.Limiter
	every  rate.Limit
	burst  int
}

func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limits: make(map[int64]*rate.Limiter),
		every:  rate.Limit(perSecond),
		burst:  burst,
	}
}

func (l *Limiter) get(userID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limits[userID]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.every, l.burst)
	l.limits[userID] = limiter
	return limiter
}

// Wait blocks until userID may send another message or ctx is done.
func (l *Limiter) Wait(ctx context.Context, userID int64) error {
	return l.get(userID).Wait(ctx)
}

// Allow reports whether userID may send right now without waiting.
func (l *Limiter) Allow(userID int64) bool {
	return l.get(userID).Allow()
}
