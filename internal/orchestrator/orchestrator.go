// Package orchestrator sequences one backup invocation: rotate+snapshot the
// source, plan, dispatch, rotate+snapshot the target.
package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/dispatch"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/plan"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/snapshot"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/trigger"
)

// State tracks the per-invocation state machine. Any step's failure moves the
// run to Failed, which is terminal: no further steps execute and retry is the
// external scheduler's job.
type State int

const (
	Idle State = iota
	SourceRotated
	SourceSnapshotted
	Planned
	Dispatched
	TargetRotated
	TargetSnapshotted
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SourceRotated:
		return "source_rotated"
	case SourceSnapshotted:
		return "source_snapshotted"
	case Planned:
		return "planned"
	case Dispatched:
		return "dispatched"
	case TargetRotated:
		return "target_rotated"
	case TargetSnapshotted:
		return "target_snapshotted"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Orchestrator owns both endpoints for the duration of a run and holds no
// mutable state across invocations. Cross-invocation overlap is not
// serialized here; unique job naming is the only collision guard.
type Orchestrator struct {
	cfg        config.Config
	snapshots  *snapshot.Manager
	planner    *plan.Planner
	dispatcher *dispatch.Dispatcher

	last State
}

func New(cfg config.Config, b backend.Backend) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		snapshots:  snapshot.New(b, cfg.Retention),
		planner:    plan.New(b, cfg.SASExpiry, cfg.Sandbox.Tool),
		dispatcher: dispatch.New(b, cfg.Sandbox),
	}
}

// LastState returns the final state of the most recent run.
func (o *Orchestrator) LastState() State { return o.last }

// Run executes one invocation end to end. Control flow is strictly linear
// and single-threaded; every control-plane call blocks, only the dispatched
// copy job runs un-awaited.
func (o *Orchestrator) Run(ctx context.Context, trig trigger.Trigger) error {
	start := time.Now()
	state := Idle
	o.last = state

	log.Info().
		Str("action", "run").
		Time("fired_at", trig.FiredAt).
		Bool("late", trig.Late).
		Msg("backup invocation triggered")

	step := func(next State) {
		log.Debug().
			Str("action", "transition").
			Str("from", state.String()).
			Str("to", next.String()).
			Msg("state transition")
		state = next
		o.last = next
	}
	fail := func(err error) error {
		step(Failed)
		log.Error().
			Err(err).
			Str("action", "run").
			Str("state", Failed.String()).
			Dur("elapsed_ms", time.Since(start)).
			Msg("backup invocation failed")
		return err
	}

	// 1) Rotate and snapshot the source share.
	if err := o.snapshots.EnforceRetention(ctx, config.Source, o.cfg.Retention.Buffer(config.Source)); err != nil {
		return fail(err)
	}
	step(SourceRotated)

	snap, err := o.snapshots.Create(ctx, config.Source)
	if err != nil {
		return fail(err)
	}
	step(SourceSnapshotted)

	// 2) Plan the replication from that snapshot.
	p, err := o.planner.Build(ctx, snap, trig.FiredAt)
	if err != nil {
		return fail(err)
	}
	step(Planned)

	// 3) Dispatch the copy job. Does not block for completion.
	job := o.dispatcher.NewJob(trig.FiredAt, p)
	ack, err := o.dispatcher.Dispatch(ctx, job)
	if err != nil {
		return fail(err)
	}
	step(Dispatched)

	// 4) Rotate and snapshot the target share. Taken immediately after
	// dispatch, so it captures target state prior to this run's copy
	// completing (pre-sync bookend).
	if err := o.snapshots.EnforceRetention(ctx, config.Target, o.cfg.Retention.Buffer(config.Target)); err != nil {
		return fail(err)
	}
	step(TargetRotated)

	targetSnap, err := o.snapshots.Create(ctx, config.Target)
	if err != nil {
		return fail(err)
	}
	log.Info().
		Str("action", "target_snapshot").
		Str("snapshot", targetSnap.ID).
		Msg("pre-sync target snapshot taken")
	step(TargetSnapshotted)

	step(Done)
	log.Info().
		Str("action", "run").
		Str("state", Done.String()).
		Str("mode", string(p.Mode)).
		Str("job", ack.Name).
		Str("correlation_id", ack.CorrelationID).
		Dur("elapsed_ms", time.Since(start)).
		Msg("backup invocation complete")
	return nil
}
