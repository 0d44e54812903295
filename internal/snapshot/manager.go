// Package snapshot rotates and creates point-in-time views of a file share
// under a platform-imposed ceiling.
package snapshot

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/errs"
)

// Manager enforces the retention policy and creates snapshots through a
// backend. It holds no state across invocations; the snapshot set itself is
// the only persisted state, owned by the storage service.
type Manager struct {
	b      backend.Backend
	policy config.RetentionPolicy
}

func New(b backend.Backend, policy config.RetentionPolicy) *Manager {
	return &Manager{b: b, policy: policy}
}

// List returns the side's snapshots sorted by creation time ascending.
// Ordering is imposed here: eviction correctness depends on "oldest first"
// and backend listing order is not a contract.
func (m *Manager) List(ctx context.Context, side config.Side) ([]backend.Snapshot, error) {
	snaps, err := m.b.ListSnapshots(ctx, side)
	if err != nil {
		return nil, err
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].ID < snaps[j].ID
		}
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	return snaps, nil
}

// Protected reports whether a snapshot is owned by a separate backup
// subsystem. Presence of the metadata key alone marks it protected; the value
// is deliberately ignored (a subsystem that wrote the key owns the snapshot's
// lifecycle whatever the value says).
func (m *Manager) Protected(s backend.Snapshot) bool {
	_, ok := s.Metadata[m.policy.ProtectionKey]
	return ok
}

// EnforceRetention guarantees room under the ceiling before a snapshot is
// created: when count+buffer reaches the ceiling it deletes exactly one
// snapshot, the oldest one lacking the protection flag. If every snapshot is
// protected the run must fail — continuing could exceed the platform ceiling
// on the next create.
func (m *Manager) EnforceRetention(ctx context.Context, side config.Side, buffer int) error {
	snaps, err := m.List(ctx, side)
	if err != nil {
		return err
	}

	if len(snaps)+buffer < m.policy.Ceiling {
		log.Debug().
			Str("action", "retention").
			Str("side", string(side)).
			Int("count", len(snaps)).
			Int("buffer", buffer).
			Int("ceiling", m.policy.Ceiling).
			Msg("under ceiling, nothing to evict")
		return nil
	}

	var victim *backend.Snapshot
	for i := range snaps {
		if !m.Protected(snaps[i]) {
			victim = &snaps[i]
			break
		}
	}
	if victim == nil {
		return errs.Errorf(errs.RetentionViolation, "retention.enforce",
			"share %s: %d snapshots with buffer %d reach ceiling %d and all are protected",
			m.b.Name()+"/"+string(side), len(snaps), buffer, m.policy.Ceiling)
	}

	if err := m.b.DeleteSnapshot(ctx, side, *victim); err != nil {
		return err
	}
	log.Info().
		Str("action", "retention").
		Str("side", string(side)).
		Str("snapshot", victim.ID).
		Time("created_at", victim.CreatedAt).
		Int("count", len(snaps)).
		Int("ceiling", m.policy.Ceiling).
		Msg("evicted oldest unprotected snapshot")
	return nil
}

// Create takes a new snapshot of the side's share. Callers must run
// EnforceRetention for the same side first.
func (m *Manager) Create(ctx context.Context, side config.Side) (backend.Snapshot, error) {
	return m.b.CreateSnapshot(ctx, side)
}
