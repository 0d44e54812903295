// Package trigger models the time-based invocation trigger and provides an
// optional in-process cron loop for deployments without an external
// scheduler.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Trigger is one scheduled invocation. Late is consumed only for logging.
type Trigger struct {
	FiredAt     time.Time
	ScheduledAt time.Time
	Late        bool
}

// Now returns a one-shot trigger for manual invocations.
func Now() Trigger {
	t := time.Now().UTC()
	return Trigger{FiredAt: t, ScheduledAt: t}
}

// Handler runs one invocation for a trigger.
type Handler func(ctx context.Context, t Trigger) error

// Scheduler fires a handler on a cron expression (UTC).
type Scheduler struct {
	c         *cron.Cron
	entry     cron.EntryID
	tolerance time.Duration
	handler   Handler
}

// NewScheduler validates the expression and registers the handler. Handler
// errors are logged, never retried: retry policy belongs to the schedule
// itself (the next firing).
func NewScheduler(expr string, tolerance time.Duration, h Handler) (*Scheduler, error) {
	s := &Scheduler{
		c:         cron.New(cron.WithLocation(time.UTC)),
		tolerance: tolerance,
		handler:   h,
	}
	id, err := s.c.AddFunc(expr, s.fire)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) fire() {
	fired := time.Now().UTC()
	scheduled := s.c.Entry(s.entry).Prev
	if scheduled.IsZero() {
		scheduled = fired
	}
	trig := Trigger{
		FiredAt:     fired,
		ScheduledAt: scheduled,
		Late:        fired.Sub(scheduled) > s.tolerance,
	}
	if err := s.handler(context.Background(), trig); err != nil {
		log.Error().
			Err(err).
			Str("action", "scheduled_run").
			Time("fired_at", trig.FiredAt).
			Msg("scheduled run failed")
	}
}

// Run starts the cron loop and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.c.Start()
	<-ctx.Done()
	stop := s.c.Stop()
	<-stop.Done()
}
