package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"testing"
	"time"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/orchestrator"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/trigger"
)

/* ----------------------------- test harness ----------------------------- */

type exitPanic struct{ code int }

func patchExit(t *testing.T) func() {
	t.Helper()
	prev := exit
	exit = func(code int) { panic(exitPanic{code}) }
	return func() { exit = prev }
}

func mustExitCode(t *testing.T, fn func()) (code int) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected os.Exit interception, got no panic")
		}
		if ep, ok := r.(exitPanic); ok {
			code = ep.code
			return
		}
		t.Fatalf("unexpected panic: %#v", r)
	}()
	fn()
	return 0
}

func withArgs(t *testing.T, args []string) func() {
	t.Helper()
	prev := os.Args
	os.Args = append([]string{prev[0]}, args...)
	return func() { os.Args = prev }
}

func captureStdout(t *testing.T) func() string {
	t.Helper()
	old := os.Stdout
	var buf bytes.Buffer
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan struct{})
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	return func() string {
		_ = w.Close()
		<-done
		os.Stdout = old
		return buf.String()
	}
}

func resetSeams() {
	loadConfig = config.Load
	newBackend = backend.New
	runOnce = runOrchestrator
	newScheduler = trigger.NewScheduler
}

func stubConfig() config.Config {
	return config.Config{
		Backend:   "azure",
		LogLevel:  "error",
		LogFormat: "json",
		Retention: config.RetentionPolicy{Ceiling: 200, SourceBuffer: 20, TargetBuffer: 10, ProtectionKey: "initiator"},
		Sandbox:   config.SandboxConfig{Tool: "azcopy", NamePrefix: "share-sync"},
		SASExpiry: 24 * time.Hour,
	}
}

/* ------------------------------- test fakes ------------------------------ */

type dummyBackend struct{}

func (dummyBackend) Name() string { return "dummy" }
func (dummyBackend) ListSnapshots(ctx context.Context, side config.Side) ([]backend.Snapshot, error) {
	return nil, nil
}
func (dummyBackend) CreateSnapshot(ctx context.Context, side config.Side) (backend.Snapshot, error) {
	return backend.Snapshot{}, nil
}
func (dummyBackend) DeleteSnapshot(ctx context.Context, side config.Side, snap backend.Snapshot) error {
	return nil
}
func (dummyBackend) TargetHasFiles(ctx context.Context) (bool, error) { return false, nil }
func (dummyBackend) ShareSAS(side config.Side, perms backend.Permissions, expiry time.Time) (backend.ShareAccess, error) {
	return backend.ShareAccess{}, nil
}
func (dummyBackend) Launch(ctx context.Context, spec backend.SandboxSpec) error { return nil }

/* --------------------------------- tests -------------------------------- */

// 1) No args -> prints usage, exit code 2
func TestUsage_NoArgs(t *testing.T) {
	resetSeams()
	defer patchExit(t)()
	defer withArgs(t, []string{})()

	restoreOut := captureStdout(t)
	code := mustExitCode(t, func() { main() })
	out := restoreOut()

	if code != 2 {
		t.Fatalf("want exit 2, got %d", code)
	}
	if !strings.Contains(out, "Usage:") {
		t.Fatalf("expected usage on stdout, got: %q", out)
	}
}

// 2) version -> exit 0 with the binary name on stdout
func TestVersion(t *testing.T) {
	resetSeams()
	defer patchExit(t)()
	defer withArgs(t, []string{"version"})()

	restoreOut := captureStdout(t)
	code := mustExitCode(t, func() { main() })
	out := restoreOut()

	if code != 0 {
		t.Fatalf("want exit 0, got %d", code)
	}
	if !strings.Contains(out, "fileshare-backup-operator") {
		t.Fatalf("expected version line, got: %q", out)
	}
}

// 3) run: config error -> exit 1
func TestRun_ConfigErrorExits1(t *testing.T) {
	resetSeams()
	defer patchExit(t)()
	defer withArgs(t, []string{"run"})()

	loadConfig = func() (config.Config, error) {
		return config.Config{}, errors.New("missing account")
	}

	code := mustExitCode(t, func() { main() })
	if code != 1 {
		t.Fatalf("want exit 1, got %d", code)
	}
}

// 4) run: orchestrator error -> exit 1; the trigger is a manual one
func TestRun_OrchestratorErrorExits1(t *testing.T) {
	resetSeams()
	defer patchExit(t)()
	defer withArgs(t, []string{"run"})()

	loadConfig = func() (config.Config, error) { return stubConfig(), nil }
	newBackend = func(_ string, _ any) (backend.Backend, error) { return dummyBackend{}, nil }

	var got trigger.Trigger
	runOnce = func(ctx context.Context, o *orchestrator.Orchestrator, trig trigger.Trigger) error {
		got = trig
		return errors.New("stop")
	}

	code := mustExitCode(t, func() { main() })
	if code != 1 {
		t.Fatalf("want exit 1 due to injected run error, got %d", code)
	}
	if got.Late {
		t.Fatal("manual trigger must not be late")
	}
	if got.FiredAt.IsZero() {
		t.Fatal("trigger must carry the firing time")
	}
}

// 5) run: success -> main returns without exiting
func TestRun_Success(t *testing.T) {
	resetSeams()
	defer patchExit(t)()
	defer withArgs(t, []string{"run"})()

	loadConfig = func() (config.Config, error) { return stubConfig(), nil }
	newBackend = func(_ string, _ any) (backend.Backend, error) { return dummyBackend{}, nil }

	calls := 0
	runOnce = func(ctx context.Context, o *orchestrator.Orchestrator, trig trigger.Trigger) error {
		calls++
		return nil
	}

	main()
	if calls != 1 {
		t.Fatalf("expected one invocation, got %d", calls)
	}
}

// 6) schedule without SYNC_SCHEDULE -> exit 1
func TestSchedule_MissingExpressionExits1(t *testing.T) {
	resetSeams()
	defer patchExit(t)()
	defer withArgs(t, []string{"schedule"})()

	cfg := stubConfig()
	cfg.Schedule = ""
	loadConfig = func() (config.Config, error) { return cfg, nil }
	newBackend = func(_ string, _ any) (backend.Backend, error) { return dummyBackend{}, nil }

	code := mustExitCode(t, func() { main() })
	if code != 1 {
		t.Fatalf("want exit 1, got %d", code)
	}
}

// 7) schedule with a bad expression -> exit 1
func TestSchedule_BadExpressionExits1(t *testing.T) {
	resetSeams()
	defer patchExit(t)()
	defer withArgs(t, []string{"schedule"})()

	cfg := stubConfig()
	cfg.Schedule = "not a cron expr"
	loadConfig = func() (config.Config, error) { return cfg, nil }
	newBackend = func(_ string, _ any) (backend.Backend, error) { return dummyBackend{}, nil }

	code := mustExitCode(t, func() { main() })
	if code != 1 {
		t.Fatalf("want exit 1, got %d", code)
	}
}

// 8) withSignals: cancels context on SIGTERM
func TestWithSignals_CancelsOnInterrupt(t *testing.T) {
	ctx := withSignals(context.Background())

	// Send SIGINT after a short delay to ensure signal.Notify has been registered.
	time.AfterFunc(100*time.Millisecond, func() {
		p, _ := os.FindProcess(os.Getpid())
		_ = p.Signal(os.Interrupt) // ignore error, should work on Linux
	})

	select {
	case <-ctx.Done():
		// context was canceled as expected
	case <-time.After(2 * time.Second): // allow more time in CI
		t.Fatal("context not canceled after os.Interrupt")
	}

	// Reset signal handling for cleanliness
	signal.Reset(os.Interrupt)
}
