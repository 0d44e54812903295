package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/config"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/logx"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/orchestrator"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/trigger"
	"github.com/Chapsvision-dev/fileshare-backup-operator/internal/version"

	_ "github.com/Chapsvision-dev/fileshare-backup-operator/internal/backend/azure"
)

// Test seams — overridden in unit tests. Keep signatures in sync with packages.
var (
	loadConfig   func() (config.Config, error)                                                        = config.Load
	newBackend   func(name string, cfg any) (backend.Backend, error)                                  = backend.New
	runOnce      func(ctx context.Context, o *orchestrator.Orchestrator, t trigger.Trigger) error     = runOrchestrator
	newScheduler func(expr string, tol time.Duration, h trigger.Handler) (*trigger.Scheduler, error)  = trigger.NewScheduler
	exit         func(int)                                                                            = os.Exit
)

func runOrchestrator(ctx context.Context, o *orchestrator.Orchestrator, t trigger.Trigger) error {
	return o.Run(ctx, t)
}

const usage = `
Usage:
  operator run                 one backup invocation now
  operator schedule            run on the configured cron schedule
  operator version | --version | -v
  operator help    | --help    | -h

Notes:
  - Configuration is read from env vars, optionally overlaid on a YAML file
    given by OPERATOR_CONFIG.
  - Backend is selected with BACKUP_BACKEND (default: azure).
  - The cron expression for "schedule" comes from SYNC_SCHEDULE.
`

// main wires CLI -> config -> backend -> orchestrator.
// Exit codes: 0 success, 1 runtime error, 2 usage error.
func main() {
	_ = godotenv.Load() // best-effort
	logx.InitFromEnv()

	args := os.Args[1:]
	if len(args) < 1 {
		fmt.Print(usage)
		exit(2)
	}
	action := strings.ToLower(args[0])

	// Handle version command
	if action == "version" || action == "--version" || action == "-v" {
		fmt.Printf("fileshare-backup-operator %s\n", version.Info())
		exit(0)
	}

	// Handle help command
	if action == "help" || action == "--help" || action == "-h" {
		fmt.Print(usage)
		exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("config error")
		exit(1)
	}
	logx.Init(cfg.LogLevel, cfg.LogFormat)

	b, err := newBackend(cfg.Backend, cfg)
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.Backend).Msg("backend init error")
		exit(1)
	}

	ctx := withSignals(context.Background())
	orch := orchestrator.New(cfg, b)

	switch action {
	case "run":
		if err := runOnce(ctx, orch, trigger.Now()); err != nil {
			exit(1)
		}

	case "schedule":
		if strings.TrimSpace(cfg.Schedule) == "" {
			log.Error().Msg("schedule mode requires SYNC_SCHEDULE")
			exit(1)
		}
		sched, err := newScheduler(cfg.Schedule, cfg.LateTolerance, func(ctx context.Context, t trigger.Trigger) error {
			return runOnce(ctx, orch, t)
		})
		if err != nil {
			log.Error().Err(err).Str("schedule", cfg.Schedule).Msg("schedule error")
			exit(1)
		}
		log.Info().Str("schedule", cfg.Schedule).Msg("scheduler started")
		sched.Run(ctx)

	default:
		fmt.Print(usage)
		exit(2)
	}
}

func withSignals(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()
	return ctx
}
