// Package config loads server settings from an optional TOML file and
// CADENCE_* environment variables. Environment variables win.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve without system zoneinfo

	"github.com/BurntSushi/toml"
)

// EnvConfigFile names the environment variable holding the TOML file path.
const EnvConfigFile = "CADENCE_CONFIG"

type Config struct {
	DatabaseURL string `toml:"database_url"` // CADENCE_DATABASE_URL (required unless Memory)
	Memory      bool   `toml:"memory"`       // CADENCE_MEMORY (in-process store, data lost on exit)
	HTTPAddr    string `toml:"http_addr"`    // CADENCE_HTTP_ADDR (default ":8080")
	GRPCAddr    string `toml:"grpc_addr"`    // CADENCE_GRPC_ADDR (default ":9090"; empty = disabled)
	NATSURL     string `toml:"nats_url"`     // CADENCE_NATS_URL (optional, empty = no events)
	AdminToken  string `toml:"admin_token"`  // CADENCE_ADMIN_TOKEN (guards POST /events/generate when set)

	// Generation
	Schedule    string        `toml:"schedule"`     // CADENCE_SCHEDULE (default "@daily"; empty = no scheduler)
	ScheduleTZ  string        `toml:"schedule_tz"`  // CADENCE_SCHEDULE_TZ (default "UTC")
	PassTimeout time.Duration `toml:"pass_timeout"` // CADENCE_PASS_TIMEOUT (default 2m)
	RunOnStart  bool          `toml:"run_on_start"` // CADENCE_RUN_ON_START

	// Registration
	RolePolicy    string  `toml:"role_policy"`    // CADENCE_ROLE_POLICY (permissive|strict)
	InputTimezone string  `toml:"input_timezone"` // CADENCE_INPUT_TIMEZONE (default "Europe/Kyiv")
	RegisterRPS   float64 `toml:"register_rps"`   // CADENCE_REGISTER_RPS (per user; 0 = unlimited)
	RegisterBurst int     `toml:"register_burst"` // CADENCE_REGISTER_BURST (default 10)

	// Logging
	LogLevel  string `toml:"log_level"`  // CADENCE_LOG_LEVEL (debug|info|warn|error)
	LogFormat string `toml:"log_format"` // CADENCE_LOG_FORMAT (text|json)

	// Sync settings
	SyncInterval      time.Duration `toml:"sync_interval"`    // CADENCE_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket      string        `toml:"sync_s3_bucket"`   // CADENCE_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint    string        `toml:"sync_s3_endpoint"` // CADENCE_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region      string        `toml:"sync_s3_region"`   // CADENCE_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key         string        `toml:"sync_s3_key"`      // CADENCE_SYNC_S3_KEY (default "cadence/snapshot.jsonl")
	SyncS3ArchivePath string        `toml:"sync_s3_archive"`  // CADENCE_SYNC_S3_ARCHIVE (dated copies when set)
	SyncGitRepo       string        `toml:"sync_git_repo"`    // CADENCE_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile       string        `toml:"sync_git_file"`    // CADENCE_SYNC_GIT_FILE (default "cadence.jsonl")
	SyncGitBranch     string        `toml:"sync_git_branch"`  // CADENCE_SYNC_GIT_BRANCH (default "main")
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		HTTPAddr:      ":8080",
		GRPCAddr:      ":9090",
		Schedule:      "@daily",
		ScheduleTZ:    "UTC",
		PassTimeout:   2 * time.Minute,
		RolePolicy:    "permissive",
		InputTimezone: "Europe/Kyiv",
		RegisterRPS:   5,
		RegisterBurst: 10,
		LogLevel:      "info",
		LogFormat:     "text",
		SyncS3Region:  "us-east-1",
		SyncS3Key:     "cadence/snapshot.jsonl",
		SyncGitFile:   "cadence.jsonl",
		SyncGitBranch: "main",
	}
}

// Load builds a Config from defaults, the file named by CADENCE_CONFIG (if
// any), and the environment. It does not validate; call Validate once
// command-line overrides have been applied.
func Load() (*Config, error) {
	c := Default()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	envString(&c.DatabaseURL, "CADENCE_DATABASE_URL")
	envString(&c.HTTPAddr, "CADENCE_HTTP_ADDR")
	envString(&c.GRPCAddr, "CADENCE_GRPC_ADDR")
	envString(&c.NATSURL, "CADENCE_NATS_URL")
	envString(&c.AdminToken, "CADENCE_ADMIN_TOKEN")
	envString(&c.Schedule, "CADENCE_SCHEDULE")
	envString(&c.ScheduleTZ, "CADENCE_SCHEDULE_TZ")
	envString(&c.RolePolicy, "CADENCE_ROLE_POLICY")
	envString(&c.InputTimezone, "CADENCE_INPUT_TIMEZONE")
	envString(&c.LogLevel, "CADENCE_LOG_LEVEL")
	envString(&c.LogFormat, "CADENCE_LOG_FORMAT")
	envString(&c.SyncS3Bucket, "CADENCE_SYNC_S3_BUCKET")
	envString(&c.SyncS3Endpoint, "CADENCE_SYNC_S3_ENDPOINT")
	envString(&c.SyncS3Region, "CADENCE_SYNC_S3_REGION")
	envString(&c.SyncS3Key, "CADENCE_SYNC_S3_KEY")
	envString(&c.SyncS3ArchivePath, "CADENCE_SYNC_S3_ARCHIVE")
	envString(&c.SyncGitRepo, "CADENCE_SYNC_GIT_REPO")
	envString(&c.SyncGitFile, "CADENCE_SYNC_GIT_FILE")
	envString(&c.SyncGitBranch, "CADENCE_SYNC_GIT_BRANCH")

	for _, fn := range []func() error{
		func() error { return envBool(&c.Memory, "CADENCE_MEMORY") },
		func() error { return envBool(&c.RunOnStart, "CADENCE_RUN_ON_START") },
		func() error { return envDuration(&c.PassTimeout, "CADENCE_PASS_TIMEOUT") },
		func() error { return envDuration(&c.SyncInterval, "CADENCE_SYNC_INTERVAL") },
		func() error { return envFloat(&c.RegisterRPS, "CADENCE_REGISTER_RPS") },
		func() error { return envInt(&c.RegisterBurst, "CADENCE_REGISTER_BURST") },
	} {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks required settings and that every named value parses.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && !c.Memory {
		return fmt.Errorf("CADENCE_DATABASE_URL is required (or enable the in-memory store)")
	}
	if _, err := c.ScheduleLocation(); err != nil {
		return err
	}
	if _, err := c.InputLocation(); err != nil {
		return err
	}
	switch strings.ToLower(c.RolePolicy) {
	case "", "permissive", "strict":
	default:
		return fmt.Errorf("CADENCE_ROLE_POLICY: unknown policy %q", c.RolePolicy)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("CADENCE_LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	if c.PassTimeout < 0 || c.SyncInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.RegisterRPS < 0 || c.RegisterBurst < 0 {
		return fmt.Errorf("CADENCE_REGISTER_RPS and CADENCE_REGISTER_BURST must not be negative")
	}
	return nil
}

// ScheduleLocation returns the timezone the generation schedule runs in.
func (c *Config) ScheduleLocation() (*time.Location, error) {
	return loadLocation("CADENCE_SCHEDULE_TZ", c.ScheduleTZ)
}

// InputLocation returns the timezone plain dates are interpreted in.
func (c *Config) InputLocation() (*time.Location, error) {
	return loadLocation("CADENCE_INPUT_TIMEZONE", c.InputTimezone)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("CADENCE_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func loadLocation(key, name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return loc, nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func envFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func envInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
