// Package config loads the forge process's YAML configuration file into a
// typed Config, grounded on the teacher's config/loader.go +
// config/config.go (a CUE-based loader) generalized to plain YAML decoding
// since no CUE schema exists for this domain in the example pack.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/catalyst-forge/forge-core/ferrors"
)

// SSHConfig configures the SSHServer listener.
type SSHConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	HostKeyPaths    []string `yaml:"host_key_paths"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
	MaxSessionBytes int64    `yaml:"max_session_bytes"`
}

// S3Config configures the LFS S3 backend.
type S3Config struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Prefix         string `yaml:"prefix"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// LFSConfig selects and configures the LFS backend.
type LFSConfig struct {
	// Backend is "filesystem" or "s3".
	Backend string `yaml:"backend"`

	// Root is the filesystem backend's storage root. Only meaningful when
	// Backend is "filesystem".
	Root string `yaml:"root"`

	S3 S3Config `yaml:"s3"`

	RepoQuotaBytes  int64 `yaml:"repo_quota_bytes"`
	OwnerQuotaBytes int64 `yaml:"owner_quota_bytes"`

	GCMinAge Duration `yaml:"gc_min_age"`
}

// RateLimitConfig configures the SSH/HTTP authentication rate limiter.
type RateLimitConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Window      Duration `yaml:"window"`
}

// ActionsConfig configures the CI control plane.
type ActionsConfig struct {
	HeartbeatTimeout Duration `yaml:"heartbeat_timeout"`
}

// Config is the root of the forge process's configuration file.
type Config struct {
	RepositoryRoot string          `yaml:"repository_root"`
	SSH            SSHConfig       `yaml:"ssh"`
	LFS            LFSConfig       `yaml:"lfs"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Actions        ActionsConfig   `yaml:"actions"`
}

// Duration wraps time.Duration so it can be decoded from a YAML scalar
// like "90s" or "24h" instead of a raw integer nanosecond count.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Load reads and parses the YAML configuration file at path, applying
// defaults for zero-valued fields that must not be zero at runtime.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindInvalidInput, "config.Load")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindInvalidInput, "config.Load")
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RateLimit.MaxAttempts <= 0 {
		cfg.RateLimit.MaxAttempts = 10
	}
	if cfg.RateLimit.Window.Duration <= 0 {
		cfg.RateLimit.Window = Duration{5 * time.Minute}
	}
	if cfg.Actions.HeartbeatTimeout.Duration <= 0 {
		cfg.Actions.HeartbeatTimeout = Duration{90 * time.Second}
	}
	if cfg.LFS.Backend == "" {
		cfg.LFS.Backend = "filesystem"
	}
	if cfg.LFS.GCMinAge.Duration <= 0 {
		cfg.LFS.GCMinAge = Duration{24 * time.Hour}
	}
	if cfg.SSH.IdleTimeout.Duration <= 0 {
		cfg.SSH.IdleTimeout = Duration{10 * time.Minute}
	}
}

// Validate rejects a Config missing any field required for the process to
// start.
func (c *Config) Validate() error {
	if c.RepositoryRoot == "" {
		return ferrors.New(ferrors.KindInvalidInput, "Config.Validate", "repository_root is required")
	}
	if c.SSH.ListenAddr == "" {
		return ferrors.New(ferrors.KindInvalidInput, "Config.Validate", "ssh.listen_addr is required")
	}
	switch c.LFS.Backend {
	case "filesystem":
		if c.LFS.Root == "" {
			return ferrors.New(ferrors.KindInvalidInput, "Config.Validate", "lfs.root is required for the filesystem backend")
		}
	case "s3":
		if c.LFS.S3.Bucket == "" {
			return ferrors.New(ferrors.KindInvalidInput, "Config.Validate", "lfs.s3.bucket is required for the s3 backend")
		}
	default:
		return ferrors.New(ferrors.KindInvalidInput, "Config.Validate", "lfs.backend must be \"filesystem\" or \"s3\"")
	}
	return nil
}
