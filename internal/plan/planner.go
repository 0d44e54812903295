// Package plan decides replication mode, mints scoped access credentials and
// builds the external copy tool's command line.
package plan

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/errs"
)

// Mode is the replication mode handed to the copy tool.
type Mode string

const (
	// ModeSync mirrors incrementally: changed content is copied and target
	// files absent from the source view are removed.
	ModeSync Mode = "sync"
	// ModeCopy seeds an empty target: one-directional, nothing to reconcile.
	ModeCopy Mode = "copy"
)

// Minimum-necessary permission sets. The source side reads a snapshot, which
// is read-only by nature; write permission must never appear there.
var (
	SourcePermissions = backend.Permissions{Read: true, List: true}
	TargetPermissions = backend.Permissions{Read: true, Write: true, List: true}
)

// Command is the copy tool invocation: tool name plus argument tokens.
type Command struct {
	Tool string
	Args []string
}

// Tokens returns the full command line, tool name first.
func (c Command) Tokens() []string {
	return append([]string{c.Tool}, c.Args...)
}

// Plan is a fully resolved replication decision for one run.
type Plan struct {
	Mode      Mode
	SourceURI string
	TargetURI string
	Command   Command
	ExpiresAt time.Time
}

// Planner builds replication plans against a backend.
type Planner struct {
	b      backend.Backend
	expiry time.Duration
	tool   string
}

func New(b backend.Backend, expiry time.Duration, tool string) *Planner {
	return &Planner{b: b, expiry: expiry, tool: tool}
}

// SelectMode picks sync when the target share already holds entries and copy
// when it is empty (a seed transfer has nothing to reconcile).
func (p *Planner) SelectMode(ctx context.Context) (Mode, error) {
	hasFiles, err := p.b.TargetHasFiles(ctx)
	if err != nil {
		if errs.KindOf(err) != errs.Unknown {
			return "", err
		}
		return "", errs.E(errs.SASGenerationFailure, "plan.select_mode", err)
	}
	if hasFiles {
		return ModeSync, nil
	}
	return ModeCopy, nil
}

// GenerateAccess mints the side's scoped, time-limited credential. Expiry is
// fixed at trigger time plus the configured window; this is a single-shot
// credential with no refresh path.
func (p *Planner) GenerateAccess(side config.Side, triggeredAt time.Time) (backend.ShareAccess, error) {
	perms := SourcePermissions
	if side == config.Target {
		perms = TargetPermissions
	}
	access, err := p.b.ShareSAS(side, perms, triggeredAt.Add(p.expiry))
	if err != nil {
		if errs.KindOf(err) != errs.Unknown {
			return backend.ShareAccess{}, err
		}
		return backend.ShareAccess{}, errs.E(errs.SASGenerationFailure, "plan.access", err)
	}
	return access, nil
}

// SnapshotAccessURI combines a snapshot's qualified URI with the share-level
// credential's query component, granting time-limited read access scoped to
// that specific point-in-time view.
func SnapshotAccessURI(snap backend.Snapshot, access backend.ShareAccess) string {
	return access.ShareURL + "?sharesnapshot=" + snap.ID + "&" + access.SAS
}

// shareAccessURI is the mutable share URI with its credential attached.
func shareAccessURI(access backend.ShareAccess) string {
	return access.ShareURL + "?" + access.SAS
}

// BuildCommand produces the deterministic token sequence for the copy tool.
// The flag set is identical regardless of mode.
func (p *Planner) BuildCommand(mode Mode, sourceURI, targetURI string) Command {
	return Command{
		Tool: p.tool,
		Args: []string{
			string(mode),
			sourceURI,
			targetURI,
			"--preserve-smb-info",
			"--preserve-smb-permissions",
			"--recursive",
		},
	}
}

// Build resolves a complete plan for the given source snapshot: mode, both
// credentials, URIs and the command line.
func (p *Planner) Build(ctx context.Context, snap backend.Snapshot, triggeredAt time.Time) (Plan, error) {
	mode, err := p.SelectMode(ctx)
	if err != nil {
		return Plan{}, err
	}

	sourceAccess, err := p.GenerateAccess(config.Source, triggeredAt)
	if err != nil {
		return Plan{}, err
	}
	targetAccess, err := p.GenerateAccess(config.Target, triggeredAt)
	if err != nil {
		return Plan{}, err
	}

	sourceURI := SnapshotAccessURI(snap, sourceAccess)
	targetURI := shareAccessURI(targetAccess)

	log.Info().
		Str("action", "plan").
		Str("mode", string(mode)).
		Str("snapshot", snap.ID).
		Time("sas_expires_at", sourceAccess.ExpiresAt).
		Msg("replication plan built")

	return Plan{
		Mode:      mode,
		SourceURI: sourceURI,
		TargetURI: targetURI,
		Command:   p.BuildCommand(mode, sourceURI, targetURI),
		ExpiresAt: sourceAccess.ExpiresAt,
	}, nil
}
