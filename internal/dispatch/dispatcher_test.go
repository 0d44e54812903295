package dispatch

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/errs"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/plan"
)

/* ------------------------------- test fakes ------------------------------ */

type fakeBackend struct {
	launched  []backend.SandboxSpec
	launchErr error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) ListSnapshots(ctx context.Context, side config.Side) ([]backend.Snapshot, error) {
	return nil, nil
}

func (f *fakeBackend) CreateSnapshot(ctx context.Context, side config.Side) (backend.Snapshot, error) {
	return backend.Snapshot{}, nil
}

func (f *fakeBackend) DeleteSnapshot(ctx context.Context, side config.Side, snap backend.Snapshot) error {
	return nil
}

func (f *fakeBackend) TargetHasFiles(ctx context.Context) (bool, error) { return false, nil }

func (f *fakeBackend) ShareSAS(side config.Side, perms backend.Permissions, expiry time.Time) (backend.ShareAccess, error) {
	return backend.ShareAccess{}, nil
}

func (f *fakeBackend) Launch(ctx context.Context, spec backend.SandboxSpec) error {
	if f.launchErr != nil {
		return f.launchErr
	}
	f.launched = append(f.launched, spec)
	return nil
}

/* ------------------------------- helpers --------------------------------- */

func sandboxCfg() config.SandboxConfig {
	return config.SandboxConfig{
		ResourceGroup: "rg-backup",
		Region:        "westeurope",
		SubnetID:      "/subscriptions/s/resourceGroups/rg/providers/Microsoft.Network/virtualNetworks/vnet/subnets/aci",
		Image:         "mcr.microsoft.com/azure-cli",
		Tool:          "azcopy",
		CPU:           2,
		MemoryGB:      4,
		NamePrefix:    "share-sync",
	}
}

func testPlan() plan.Plan {
	return plan.Plan{
		Mode: plan.ModeSync,
		Command: plan.Command{
			Tool: "azcopy",
			Args: []string{"sync", "S", "T", "--preserve-smb-info", "--preserve-smb-permissions", "--recursive"},
		},
	}
}

/* --------------------------------- tests --------------------------------- */

func TestNewJob_UniqueNamePerInvocation(t *testing.T) {
	d := New(&fakeBackend{}, sandboxCfg())

	t1 := time.Date(2026, 8, 24, 3, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)
	j1 := d.NewJob(t1, testPlan())
	j2 := d.NewJob(t2, testPlan())

	if j1.Name == j2.Name {
		t.Fatalf("overlapping triggers must not collide on job name: %q", j1.Name)
	}
	// Sub-second overlap still yields distinct names via the hash suffix.
	j3 := d.NewJob(t1.Add(time.Millisecond), testPlan())
	if j1.Name == j3.Name {
		t.Fatalf("sub-second triggers must not collide: %q", j1.Name)
	}
}

func TestNewJob_DeterministicForSameTrigger(t *testing.T) {
	d := New(&fakeBackend{}, sandboxCfg())
	fired := time.Date(2026, 8, 24, 3, 0, 0, 0, time.UTC)

	j1 := d.NewJob(fired, testPlan())
	j2 := d.NewJob(fired, testPlan())
	if j1.Name != j2.Name {
		t.Fatalf("name must derive from the trigger timestamp: %q vs %q", j1.Name, j2.Name)
	}
	if j1.CorrelationID == j2.CorrelationID {
		t.Fatal("correlation IDs must be distinct per descriptor")
	}
	if j1.CorrelationID == "" {
		t.Fatal("correlation ID must be set for external monitoring")
	}
}

func TestNewJob_CarriesSandboxConfig(t *testing.T) {
	cfg := sandboxCfg()
	d := New(&fakeBackend{}, cfg)
	j := d.NewJob(time.Now().UTC(), testPlan())

	if j.CPU != cfg.CPU || j.MemoryGB != cfg.MemoryGB {
		t.Fatalf("resource request mismatch: cpu=%v mem=%v", j.CPU, j.MemoryGB)
	}
	if j.SubnetID != cfg.SubnetID || j.Region != cfg.Region || j.Image != cfg.Image {
		t.Fatalf("placement mismatch: %+v", j)
	}
}

func TestDispatch_PassesSpecToBackend(t *testing.T) {
	fb := &fakeBackend{}
	d := New(fb, sandboxCfg())
	job := d.NewJob(time.Now().UTC(), testPlan())

	ack, err := d.Dispatch(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fb.launched) != 1 {
		t.Fatalf("expected one launch, got %d", len(fb.launched))
	}

	spec := fb.launched[0]
	if spec.Name != job.Name {
		t.Fatalf("spec name mismatch: %q vs %q", spec.Name, job.Name)
	}
	if !reflect.DeepEqual(spec.Command, job.Command) {
		t.Fatalf("spec command mismatch: %v", spec.Command)
	}
	if spec.Tags["correlation-id"] != job.CorrelationID {
		t.Fatalf("correlation tag missing: %v", spec.Tags)
	}
	if ack.Name != job.Name || ack.CorrelationID != job.CorrelationID {
		t.Fatalf("ack mismatch: %+v", ack)
	}
	if ack.DispatchedAt.IsZero() {
		t.Fatal("ack must carry the dispatch time")
	}
}

func TestDispatch_FailureIsFatal(t *testing.T) {
	fb := &fakeBackend{launchErr: errs.Errorf(errs.DispatchFailure, "sandbox.create", "name conflict")}
	d := New(fb, sandboxCfg())

	_, err := d.Dispatch(context.Background(), d.NewJob(time.Now().UTC(), testPlan()))
	if !errs.IsKind(err, errs.DispatchFailure) {
		t.Fatalf("expected DispatchFailure, got %v", err)
	}
}
