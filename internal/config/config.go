package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Side selects one of the two file share endpoints of a run.
type Side string

const (
	Source Side = "source"
	Target Side = "target"
)

type Config struct {
	Backend string // storage/runtime backend name, e.g. "azure"

	SubscriptionID string
	TenantID       string
	ClientID       string
	ClientSecret   string

	Source Endpoint
	Target Endpoint

	Retention RetentionPolicy
	Sandbox   SandboxConfig

	// SASExpiry bounds the single-shot access credentials handed to the copy
	// job. No refresh path exists: the job must finish inside this window.
	SASExpiry time.Duration

	// Schedule is a cron expression used by the "schedule" verb.
	Schedule string
	// LateTolerance is how far past the scheduled time a firing may drift
	// before the trigger is marked late.
	LateTolerance time.Duration

	LogLevel  string
	LogFormat string
}

// Endpoint identifies one file share and the credentials to reach it.
type Endpoint struct {
	ResourceGroup string `yaml:"resourceGroup"`
	Account       string `yaml:"account"`
	AccountKey    string `yaml:"accountKey"`
	Share         string `yaml:"share"`
	Region        string `yaml:"region"`
}

// RetentionPolicy holds the platform snapshot ceiling and per-side buffers.
type RetentionPolicy struct {
	Ceiling      int
	SourceBuffer int
	TargetBuffer int
	// ProtectionKey is the snapshot metadata key marking snapshots owned by a
	// separate backup subsystem. Key presence alone marks a snapshot
	// protected; the value is ignored.
	ProtectionKey string
}

// Buffer returns the retention buffer for a side.
func (r RetentionPolicy) Buffer(side Side) int {
	if side == Target {
		return r.TargetBuffer
	}
	return r.SourceBuffer
}

// SandboxConfig describes the isolated runtime the copy tool executes in.
type SandboxConfig struct {
	ResourceGroup string
	Region        string
	SubnetID      string
	Image         string
	Tool          string
	CPU           float64
	MemoryGB      float64
	NamePrefix    string
}

// Endpoint returns the endpoint for a side.
func (c Config) Endpoint(side Side) Endpoint {
	if side == Target {
		return c.Target
	}
	return c.Source
}

// Load reads config from an optional YAML file (OPERATOR_CONFIG) overlaid by
// environment variables, applies defaults and validates. Env always wins.
func Load() (Config, error) {
	get := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return v
		}
		return def
	}

	parseInt := func(key string, def int) int {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				return n
			}
		}
		return def
	}

	parseFloat := func(key string, def float64) float64 {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				return f
			}
		}
		return def
	}

	parseDur := func(key string, def time.Duration) time.Duration {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				return d
			}
		}
		return def
	}

	cfg := defaults()

	if path := strings.TrimSpace(get("OPERATOR_CONFIG", "")); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.Backend = strings.ToLower(get("BACKUP_BACKEND", cfg.Backend))
	cfg.SubscriptionID = get("AZURE_SUBSCRIPTION_ID", cfg.SubscriptionID)
	cfg.TenantID = get("AZURE_TENANT_ID", cfg.TenantID)
	cfg.ClientID = get("AZURE_CLIENT_ID", cfg.ClientID)
	cfg.ClientSecret = get("AZURE_CLIENT_SECRET", cfg.ClientSecret)

	cfg.Source.ResourceGroup = get("SOURCE_RESOURCE_GROUP", cfg.Source.ResourceGroup)
	cfg.Source.Account = get("SOURCE_STORAGE_ACCOUNT", cfg.Source.Account)
	cfg.Source.AccountKey = get("SOURCE_STORAGE_KEY", cfg.Source.AccountKey)
	cfg.Source.Share = get("SOURCE_SHARE", cfg.Source.Share)
	cfg.Source.Region = get("SOURCE_REGION", cfg.Source.Region)

	cfg.Target.ResourceGroup = get("TARGET_RESOURCE_GROUP", cfg.Target.ResourceGroup)
	cfg.Target.Account = get("TARGET_STORAGE_ACCOUNT", cfg.Target.Account)
	cfg.Target.AccountKey = get("TARGET_STORAGE_KEY", cfg.Target.AccountKey)
	cfg.Target.Share = get("TARGET_SHARE", cfg.Target.Share)
	cfg.Target.Region = get("TARGET_REGION", cfg.Target.Region)

	cfg.Retention.Ceiling = parseInt("SNAPSHOT_CEILING", cfg.Retention.Ceiling)
	cfg.Retention.SourceBuffer = parseInt("SOURCE_RETENTION_BUFFER", cfg.Retention.SourceBuffer)
	cfg.Retention.TargetBuffer = parseInt("TARGET_RETENTION_BUFFER", cfg.Retention.TargetBuffer)
	cfg.Retention.ProtectionKey = get("SNAPSHOT_PROTECTION_KEY", cfg.Retention.ProtectionKey)

	cfg.Sandbox.ResourceGroup = get("SANDBOX_RESOURCE_GROUP", cfg.Sandbox.ResourceGroup)
	cfg.Sandbox.Region = get("SANDBOX_REGION", cfg.Sandbox.Region)
	cfg.Sandbox.SubnetID = get("SANDBOX_SUBNET_ID", cfg.Sandbox.SubnetID)
	cfg.Sandbox.Image = get("SANDBOX_IMAGE", cfg.Sandbox.Image)
	cfg.Sandbox.Tool = get("SANDBOX_COPY_TOOL", cfg.Sandbox.Tool)
	cfg.Sandbox.CPU = parseFloat("SANDBOX_CPU", cfg.Sandbox.CPU)
	cfg.Sandbox.MemoryGB = parseFloat("SANDBOX_MEMORY_GB", cfg.Sandbox.MemoryGB)
	cfg.Sandbox.NamePrefix = get("SANDBOX_NAME_PREFIX", cfg.Sandbox.NamePrefix)

	cfg.SASExpiry = parseDur("SAS_EXPIRY", cfg.SASExpiry)
	cfg.Schedule = get("SYNC_SCHEDULE", cfg.Schedule)
	cfg.LateTolerance = parseDur("SCHEDULE_LATE_TOLERANCE", cfg.LateTolerance)
	cfg.LogLevel = get("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = get("LOG_FORMAT", cfg.LogFormat)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Backend: "azure",
		Retention: RetentionPolicy{
			Ceiling:       200,
			SourceBuffer:  20,
			TargetBuffer:  10,
			ProtectionKey: "initiator",
		},
		Sandbox: SandboxConfig{
			Image:      "mcr.microsoft.com/azure-cli",
			Tool:       "azcopy",
			CPU:        2,
			MemoryGB:   4,
			NamePrefix: "share-sync",
		},
		SASExpiry:     24 * time.Hour,
		LateTolerance: time.Minute,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// validate checks backend-specific requirements.
func (c *Config) validate() error {
	switch c.Backend {
	case "azure":
		if c.SubscriptionID == "" {
			return errors.New("azure: AZURE_SUBSCRIPTION_ID is required")
		}
		for _, ep := range []struct {
			side Side
			e    Endpoint
		}{{Source, c.Source}, {Target, c.Target}} {
			if ep.e.Account == "" || ep.e.Share == "" {
				return errors.New("azure: " + string(ep.side) + " storage account and share are required")
			}
			if ep.e.AccountKey == "" {
				return errors.New("azure: " + string(ep.side) + " storage key is required to sign SAS")
			}
		}
		if c.Sandbox.ResourceGroup == "" || c.Sandbox.Region == "" || c.Sandbox.SubnetID == "" {
			return errors.New("azure: sandbox resource group, region and subnet id are required")
		}
	default:
		return errors.New("unsupported backend: " + c.Backend)
	}
	if c.Retention.Ceiling <= 0 {
		return errors.New("snapshot ceiling must be positive")
	}
	return nil
}
