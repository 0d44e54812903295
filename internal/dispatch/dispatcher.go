// Package dispatch launches the external copy tool in an isolated sandbox,
// fire-and-forget.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/plan"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/util"
)

// Job is a transient replication job descriptor. It exists only for the
// duration of dispatch; no result is retained by this system.
type Job struct {
	// Name is unique per invocation. Two overlapping runs would collide at
	// dispatch time on a fixed name, so it derives from the trigger time.
	Name string
	// CorrelationID lets external monitoring tie the dispatched sandbox back
	// to this run's outcome, which we never observe ourselves.
	CorrelationID string
	Mode          plan.Mode
	Command       []string
	CPU           float64
	MemoryGB      float64
	Region        string
	SubnetID      string
	Image         string
}

// Ack acknowledges that the sandbox was scheduled. It says nothing about the
// copy's eventual outcome.
type Ack struct {
	Name          string
	CorrelationID string
	DispatchedAt  time.Time
}

// Dispatcher builds and launches jobs through a backend.
type Dispatcher struct {
	b   backend.Backend
	cfg config.SandboxConfig
}

func New(b backend.Backend, cfg config.SandboxConfig) *Dispatcher {
	return &Dispatcher{b: b, cfg: cfg}
}

// NewJob builds a job descriptor for one invocation. The name embeds the
// trigger timestamp plus a short hash of its full-precision form, keeping
// names unique even under overlapping triggers.
func (d *Dispatcher) NewJob(firedAt time.Time, p plan.Plan) Job {
	stamp := firedAt.UTC()
	name := fmt.Sprintf("%s-%s-%s",
		d.cfg.NamePrefix,
		stamp.Format("20060102-150405"),
		util.ShortHash(stamp.Format(time.RFC3339Nano), 8),
	)
	return Job{
		Name:          name,
		CorrelationID: uuid.NewString(),
		Mode:          p.Mode,
		Command:       p.Command.Tokens(),
		CPU:           d.cfg.CPU,
		MemoryGB:      d.cfg.MemoryGB,
		Region:        d.cfg.Region,
		SubnetID:      d.cfg.SubnetID,
		Image:         d.cfg.Image,
	}
}

// Dispatch schedules the job's sandbox and returns as soon as the backend
// accepts it. The copy executes un-awaited; no timeout, cancellation or
// completion callback is wired back into this system.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) (Ack, error) {
	spec := backend.SandboxSpec{
		Name:     job.Name,
		Image:    job.Image,
		Command:  job.Command,
		CPU:      job.CPU,
		MemoryGB: job.MemoryGB,
		Region:   job.Region,
		SubnetID: job.SubnetID,
		Tags: map[string]string{
			"correlation-id": job.CorrelationID,
			"mode":           string(job.Mode),
		},
	}
	if err := d.b.Launch(ctx, spec); err != nil {
		return Ack{}, err
	}

	ack := Ack{
		Name:          job.Name,
		CorrelationID: job.CorrelationID,
		DispatchedAt:  time.Now().UTC(),
	}
	log.Info().
		Str("action", "dispatch").
		Str("job", ack.Name).
		Str("correlation_id", ack.CorrelationID).
		Str("mode", string(job.Mode)).
		Msg("copy job dispatched, not awaiting completion")
	return ack, nil
}
