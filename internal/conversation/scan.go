package conversation

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/vytor/drillbot/internal/errors"
	"github.com/vytor/drillbot/internal/logger"
	"golang.org/x/sync/errgroup"
)

// ScanResult summarizes one due scan.
type ScanResult struct {
	Candidates int `json:"candidates"`
	Started    int `json:"started"`
	Failed     int `json:"failed"`
}

// ScanDue offers a drill to every active user with due mistakes and expires
// sessions left unanswered longer than the session timeout.
func (m *Machine) ScanDue(ctx context.Context) (ScanResult, error) {
	log := logger.FromContext(ctx).WithPrefix("due_scan")
	now := m.clock()
	r := m.store.Repos()

	due, err := r.Mistakes.UsersWithDue(ctx, now)
	if err != nil {
		return ScanResult{}, errors.Storage("list users with due mistakes", err)
	}
	stale, err := r.States.ListStale(ctx, now.Add(-m.opts.SessionTimeout))
	if err != nil {
		return ScanResult{}, errors.Storage("list stale sessions", err)
	}
	users := mergeIDs(due, stale)
	log.Info("due scan: %d users with due mistakes, %d stale sessions", len(due), len(stale))

	var started, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.ScanConcurrency)
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			out, err := m.StartDrill(gctx, userID, StartOptions{Trigger: TriggerScan})
			if err != nil {
				failed.Add(1)
				log.WithField("user_id", userID).WithError(err).Warn("proactive start failed")
				return nil
			}
			if out.Prompted() {
				started.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := ScanResult{Candidates: len(users), Started: int(started.Load()), Failed: int(failed.Load())}
	log.Info("due scan finished: started=%d failed=%d", res.Started, res.Failed)
	return res, ctx.Err()
}

func mergeIDs(a, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, ids := range [][]int64{a, b} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
