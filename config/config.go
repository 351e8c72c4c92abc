// Package config loads gateway configuration from an optional local YAML
// file (defaults) overlaid by environment variables / CLI flags
// (overrides), matching the teacher's urfave/cli EnvVars convention: every
// flag has a matching environment variable.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dazedpro/claude-cli-proxy/types"
)

// FileConfig represents an optional gateway.yaml used for local defaults.
// CLI flags and environment variables always override file values.
type FileConfig struct {
	Port            int      `yaml:"port"`
	MaxConcurrent   int      `yaml:"max_concurrent"`
	MaxQueueDepth   int      `yaml:"max_queue_depth"`
	QueueTimeout    Duration `yaml:"queue_timeout"`
	DefaultMaxTurns int      `yaml:"default_max_turns"`
	DefaultTimeout  Duration `yaml:"default_timeout"`
	ClaudeBinary    string   `yaml:"claude_binary"`
	PermissionMode  string   `yaml:"permission_mode"`

	Archive ArchiveConfig `yaml:"archive"`
	Cache   CacheConfig   `yaml:"cache"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// ArchiveConfig holds the file's settings for the optional Lode/S3 audit
// archiver. The gateway entrypoint does not read them: it takes archive
// settings from its flags and environment variables only.
type ArchiveConfig struct {
	Dataset  string `yaml:"dataset"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// CacheConfig configures the optional Redis-backed response cache.
type CacheConfig struct {
	RedisURL string   `yaml:"redis_url"`
	TTL      Duration `yaml:"ttl"`
}

// NotifyConfig configures the optional webhook notification adapter.
type NotifyConfig struct {
	WebhookURL     string            `yaml:"webhook_url"`
	Headers        map[string]string `yaml:"headers"`
	Retries        int               `yaml:"retries"`
	BackoffStep    Duration          `yaml:"backoff_step"`
	BackoffCeiling Duration          `yaml:"backoff_ceiling"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// LoadFile reads and parses a YAML config file. A missing path is not an
// error: it returns a zero-value FileConfig so callers can overlay
// environment-sourced values unconditionally.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fc, nil
	}
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// Merge layers file-sourced defaults under the gateway's runtime Config,
// filling only fields the runtime config left at its zero value.
func Merge(base types.Config, fc FileConfig) types.Config {
	if base.Port == 0 {
		base.Port = fc.Port
	}
	if base.MaxConcurrent == 0 {
		base.MaxConcurrent = fc.MaxConcurrent
	}
	if base.MaxQueueDepth == 0 {
		base.MaxQueueDepth = fc.MaxQueueDepth
	}
	if base.QueueTimeoutMs == 0 && fc.QueueTimeout.Duration != 0 {
		base.QueueTimeoutMs = int(fc.QueueTimeout.Milliseconds())
	}
	if base.DefaultMaxTurns == 0 {
		base.DefaultMaxTurns = fc.DefaultMaxTurns
	}
	if base.DefaultTimeoutMs == 0 && fc.DefaultTimeout.Duration != 0 {
		base.DefaultTimeoutMs = int(fc.DefaultTimeout.Milliseconds())
	}
	if base.ClaudeBinary == "" {
		base.ClaudeBinary = fc.ClaudeBinary
	}
	if base.PermissionMode == "" {
		base.PermissionMode = fc.PermissionMode
	}
	return base
}
