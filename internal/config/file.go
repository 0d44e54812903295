package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// expandEnvVars replaces $(VAR) placeholders with os.Getenv(VAR).
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

// fileConfig is the YAML shape. Pointer fields so absent keys leave the
// corresponding default untouched.
type fileConfig struct {
	Backend        *string `yaml:"backend"`
	SubscriptionID *string `yaml:"subscriptionId"`
	TenantID       *string `yaml:"tenantId"`
	ClientID       *string `yaml:"clientId"`
	ClientSecret   *string `yaml:"clientSecret"`

	Source *Endpoint `yaml:"source"`
	Target *Endpoint `yaml:"target"`

	Retention *struct {
		Ceiling       *int    `yaml:"ceiling"`
		SourceBuffer  *int    `yaml:"sourceBuffer"`
		TargetBuffer  *int    `yaml:"targetBuffer"`
		ProtectionKey *string `yaml:"protectionKey"`
	} `yaml:"retention"`

	Sandbox *struct {
		ResourceGroup *string  `yaml:"resourceGroup"`
		Region        *string  `yaml:"region"`
		SubnetID      *string  `yaml:"subnetId"`
		Image         *string  `yaml:"image"`
		Tool          *string  `yaml:"tool"`
		CPU           *float64 `yaml:"cpu"`
		MemoryGB      *float64 `yaml:"memoryGb"`
		NamePrefix    *string  `yaml:"namePrefix"`
	} `yaml:"sandbox"`

	SASExpiry     *string `yaml:"sasExpiry"`
	Schedule      *string `yaml:"schedule"`
	LateTolerance *string `yaml:"lateTolerance"`
	LogLevel      *string `yaml:"logLevel"`
	LogFormat     *string `yaml:"logFormat"`
}

// overlayFile reads a YAML config file, expands $(ENV_VAR) placeholders and
// applies the values it carries on top of cfg.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &fc); err != nil {
		return fmt.Errorf("unmarshalling yaml: %w", err)
	}

	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("parsing duration %q: %w", *src, err)
		}
		*dst = d
		return nil
	}

	setStr(&cfg.Backend, fc.Backend)
	setStr(&cfg.SubscriptionID, fc.SubscriptionID)
	setStr(&cfg.TenantID, fc.TenantID)
	setStr(&cfg.ClientID, fc.ClientID)
	setStr(&cfg.ClientSecret, fc.ClientSecret)

	if fc.Source != nil {
		cfg.Source = *fc.Source
	}
	if fc.Target != nil {
		cfg.Target = *fc.Target
	}

	if fc.Retention != nil {
		setInt(&cfg.Retention.Ceiling, fc.Retention.Ceiling)
		setInt(&cfg.Retention.SourceBuffer, fc.Retention.SourceBuffer)
		setInt(&cfg.Retention.TargetBuffer, fc.Retention.TargetBuffer)
		setStr(&cfg.Retention.ProtectionKey, fc.Retention.ProtectionKey)
	}

	if fc.Sandbox != nil {
		setStr(&cfg.Sandbox.ResourceGroup, fc.Sandbox.ResourceGroup)
		setStr(&cfg.Sandbox.Region, fc.Sandbox.Region)
		setStr(&cfg.Sandbox.SubnetID, fc.Sandbox.SubnetID)
		setStr(&cfg.Sandbox.Image, fc.Sandbox.Image)
		setStr(&cfg.Sandbox.Tool, fc.Sandbox.Tool)
		setFloat(&cfg.Sandbox.CPU, fc.Sandbox.CPU)
		setFloat(&cfg.Sandbox.MemoryGB, fc.Sandbox.MemoryGB)
		setStr(&cfg.Sandbox.NamePrefix, fc.Sandbox.NamePrefix)
	}

	if err := setDur(&cfg.SASExpiry, fc.SASExpiry); err != nil {
		return err
	}
	setStr(&cfg.Schedule, fc.Schedule)
	if err := setDur(&cfg.LateTolerance, fc.LateTolerance); err != nil {
		return err
	}
	setStr(&cfg.LogLevel, fc.LogLevel)
	setStr(&cfg.LogFormat, fc.LogFormat)
	return nil
}
