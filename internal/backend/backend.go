// Package backend defines the storage/runtime surface the orchestrator
// drives, plus a registry so backends can self-register like providers do.
package backend

import (
	"context"
	"time"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
)

// Snapshot is an immutable point-in-time view of a file share.
type Snapshot struct {
	// Share is the parent share name.
	Share string
	// ID is the backend snapshot identifier (the sharesnapshot value).
	ID string
	// CreatedAt is the snapshot creation time.
	CreatedAt time.Time
	// Metadata carries backend metadata; may include a protection flag key
	// written by a separate backup subsystem.
	Metadata map[string]string
}

// Permissions is the scoped permission set minted into an access credential.
type Permissions struct {
	Read  bool
	Write bool
	List  bool
}

// ShareAccess is a time-limited, share-scoped credential.
type ShareAccess struct {
	// ShareURL is the qualified share URL without any query component.
	ShareURL string
	// SAS is the raw signed query string, without a leading "?".
	SAS string
	// ExpiresAt is when the credential stops working. Single-shot: there is
	// no refresh path.
	ExpiresAt time.Time
}

// SandboxSpec describes one isolated, resource-bounded execution of the
// external copy tool.
type SandboxSpec struct {
	Name     string
	Image    string
	Command  []string
	CPU      float64
	MemoryGB float64
	Region   string
	SubnetID string
	// Tags carry the correlation identifier for external monitoring.
	Tags map[string]string
}

// Backend is the contract a storage/runtime implementation fulfils.
type Backend interface {
	// ListSnapshots returns all snapshots of the side's share. Order is
	// backend-defined; callers must not rely on it.
	ListSnapshots(ctx context.Context, side config.Side) ([]Snapshot, error)

	// CreateSnapshot takes a new point-in-time view of the side's share.
	CreateSnapshot(ctx context.Context, side config.Side) (Snapshot, error)

	// DeleteSnapshot force-deletes a single snapshot.
	DeleteSnapshot(ctx context.Context, side config.Side, snap Snapshot) error

	// TargetHasFiles reports whether the target share root holds any entries.
	TargetHasFiles(ctx context.Context) (bool, error)

	// ShareSAS mints a share-scoped credential for the side.
	ShareSAS(side config.Side, perms Permissions, expiry time.Time) (ShareAccess, error)

	// Launch schedules the sandbox and returns without awaiting completion.
	Launch(ctx context.Context, spec SandboxSpec) error

	// Name returns the backend identifier (e.g. "azure").
	Name() string
}
