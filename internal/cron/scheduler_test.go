package cron_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/drillbot/internal/cron"
)

func TestScheduler_RejectsInvalidTasks(t *testing.T) {
	s := cron.New(nil)
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Add(context.Background(), cron.Task{Every: time.Minute, Run: noop}))
	assert.Error(t, s.Add(context.Background(), cron.Task{Name: "due_scan", Run: noop}))
	assert.Error(t, s.Add(context.Background(), cron.Task{Name: "due_scan", Every: time.Minute}))
	assert.Empty(t, s.Tasks())
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	s := cron.New(time.UTC)
	var runs atomic.Int32
	require.NoError(t, s.Add(context.Background(), cron.Task{
		Name:  "outbox_flush",
		Every: 20 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("transport down")
		},
	}))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := cron.New(time.UTC)
	var runs atomic.Int32
	for _, name := range []string{"due_scan", "nudge_scan"} {
		require.NoError(t, s.Add(context.Background(), cron.Task{
			Name:  name,
			Every: time.Hour,
			Run: func(context.Context) error {
				runs.Add(1)
				return nil
			},
		}))
	}
	s.Start()
	defer s.Stop()

	require.NoError(t, s.RunNow("nudge_scan"))

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"due_scan", "nudge_scan"}, s.Tasks())
	assert.Error(t, s.RunNow("missing"))
}
