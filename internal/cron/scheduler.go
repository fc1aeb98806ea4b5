// Package cron runs the periodic scans on fixed intervals.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/vytor/drillbot/internal/logger"
)

// Task is one periodic job. Runs of the same task never overlap.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(context.Context) error
}

type Scheduler struct {
	sched *gocron.Scheduler
	tasks []string
}

func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	s.WaitForScheduleAll()
	return &Scheduler{sched: s}
}

// Add registers task; ctx is handed to every run.
func (s *Scheduler) Add(ctx context.Context, task Task) error {
	if task.Name == "" || task.Run == nil {
		return fmt.Errorf("task needs a name and a run function")
	}
	if task.Every <= 0 {
		return fmt.Errorf("task %s: interval must be positive", task.Name)
	}
	log := logger.FromContext(ctx).WithPrefix("cron").WithField("task", task.Name)

	_, err := s.sched.Every(task.Every).Tag(task.Name).Do(func() {
		start := time.Now()
		runCtx := logger.NewContext(ctx, log)
		if err := task.Run(runCtx); err != nil {
			log.Error("task failed after %v: %v", time.Since(start), err)
			return
		}
		log.Debug("task completed in %v", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", task.Name, err)
	}
	s.tasks = append(s.tasks, task.Name)
	log.Info("scheduled every %s", task.Every)
	return nil
}

// Tasks lists registered task names in registration order.
func (s *Scheduler) Tasks() []string {
	return append([]string(nil), s.tasks...)
}

// RunNow triggers a registered task immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	return s.sched.RunByTag(name)
}

func (s *Scheduler) Start() {
	s.sched.StartAsync()
}

func (s *Scheduler) Stop() {
	s.sched.Stop()
}
