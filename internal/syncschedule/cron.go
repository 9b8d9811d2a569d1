// Package syncschedule is the periodic sync-trigger glue (SPEC_FULL §2):
// it tracks one cron schedule per sync and fires a trigger callback when due,
// the same registered-triggers-plus-ticker-loop shape as
// services/automation's checkAndExecuteTriggers, but parsing schedules with
// an actual cron library instead of that file's hand-rolled single-field
// parser.
package syncschedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Trigger is invoked when a sync's schedule comes due. It must not block
// the scheduler loop for long; long-running work should hand off to its own
// goroutine.
type Trigger func(ctx context.Context, syncID string)

type entry struct {
	schedule cron.Schedule
	expr     string
	nextRun  time.Time
}

// Scheduler fires Trigger for every registered sync whose cron schedule has
// come due. One Scheduler serves every sync in the process; it holds no
// per-sync goroutines.
type Scheduler struct {
	Interval time.Duration
	Trigger  Trigger
	Log      *logrus.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns a Scheduler that checks due schedules every interval (or every
// 30s if interval is <= 0) and invokes trigger for each due sync.
func New(interval time.Duration, trigger Trigger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		Interval: interval,
		Trigger:  trigger,
		entries:  make(map[string]*entry),
	}
}

// AddOrUpdate registers or replaces a sync's cron schedule (standard 5-field
// cron syntax, minute-granularity). The sync's next run is computed from now.
func (s *Scheduler) AddOrUpdate(syncID, cronExpr string) error {
	sched, err := parser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("syncschedule: invalid cron expression %q: %w", cronExpr, err)
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[syncID] = &entry{schedule: sched, expr: cronExpr, nextRun: sched.Next(now)}
	return nil
}

// Remove unregisters a sync's schedule. Idempotent.
func (s *Scheduler) Remove(syncID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, syncID)
}

// NextRun reports the next scheduled run time for syncID, if registered.
func (s *Scheduler) NextRun(syncID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[syncID]
	if !ok {
		return time.Time{}, false
	}
	return e.nextRun, true
}

// Run ticks every Interval until ctx is cancelled, firing Trigger for every
// sync whose schedule has come due and advancing its next run time.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.fireDue(ctx, now)
		}
	}
}

func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	var due []string

	s.mu.Lock()
	for syncID, e := range s.entries {
		if !now.Before(e.nextRun) {
			due = append(due, syncID)
			e.nextRun = e.schedule.Next(now)
		}
	}
	s.mu.Unlock()

	for _, syncID := range due {
		go s.runTrigger(ctx, syncID)
	}
}

func (s *Scheduler) runTrigger(ctx context.Context, syncID string) {
	defer func() {
		if r := recover(); r != nil {
			s.log().WithField("sync_id", syncID).Errorf("syncschedule: trigger panicked: %v", r)
		}
	}()
	s.Trigger(ctx, syncID)
}

func (s *Scheduler) log() *logrus.Logger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
