package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dazedpro/claude-cli-proxy/types"
)

func TestLoadFile_MissingPathReturnsZeroValue(t *testing.T) {
	fc, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile(\"\") error = %v", err)
	}
	if fc.Port != 0 || fc.ClaudeBinary != "" || fc.Archive.Bucket != "" {
		t.Errorf("LoadFile(\"\") = %+v, want zero value", fc)
	}
}

func TestLoadFile_NonExistentPathReturnsZeroValue(t *testing.T) {
	fc, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if fc.Port != 0 || fc.ClaudeBinary != "" || fc.Archive.Bucket != "" {
		t.Errorf("LoadFile() = %+v, want zero value", fc)
	}
}

func TestLoadFile_ParsesYAML(t *testing.T) {
	content := `
port: 9200
max_concurrent: 10
queue_timeout: 30s
archive:
  bucket: my-bucket
cache:
  redis_url: redis://localhost:6379
notify:
  webhook_url: https://example.com/hook
`
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if fc.Port != 9200 {
		t.Errorf("Port = %d, want 9200", fc.Port)
	}
	if fc.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", fc.MaxConcurrent)
	}
	if fc.QueueTimeout.Seconds() != 30 {
		t.Errorf("QueueTimeout = %v, want 30s", fc.QueueTimeout.Duration)
	}
	if fc.Archive.Bucket != "my-bucket" {
		t.Errorf("Archive.Bucket = %q, want my-bucket", fc.Archive.Bucket)
	}
	if fc.Cache.RedisURL != "redis://localhost:6379" {
		t.Errorf("Cache.RedisURL = %q", fc.Cache.RedisURL)
	}
	if fc.Notify.WebhookURL != "https://example.com/hook" {
		t.Errorf("Notify.WebhookURL = %q", fc.Notify.WebhookURL)
	}
}

func TestMerge_RuntimeConfigTakesPrecedence(t *testing.T) {
	base := types.Config{Port: 9100, ClaudeBinary: "explicit-claude"}
	fc := FileConfig{Port: 9200, ClaudeBinary: "file-claude"}

	merged := Merge(base, fc)
	if merged.Port != 9100 {
		t.Errorf("Port = %d, want 9100 (runtime wins)", merged.Port)
	}
	if merged.ClaudeBinary != "explicit-claude" {
		t.Errorf("ClaudeBinary = %q, want explicit-claude", merged.ClaudeBinary)
	}
}

func TestMerge_FillsFromFileWhenRuntimeIsZero(t *testing.T) {
	base := types.Config{}
	fc := FileConfig{Port: 9200, MaxConcurrent: 7, ClaudeBinary: "file-claude"}

	merged := Merge(base, fc)
	if merged.Port != 9200 {
		t.Errorf("Port = %d, want 9200", merged.Port)
	}
	if merged.MaxConcurrent != 7 {
		t.Errorf("MaxConcurrent = %d, want 7", merged.MaxConcurrent)
	}
	if merged.ClaudeBinary != "file-claude" {
		t.Errorf("ClaudeBinary = %q, want file-claude", merged.ClaudeBinary)
	}
}

func TestMerge_DurationFieldsConvertToMillis(t *testing.T) {
	base := types.Config{}
	fc := FileConfig{}
	fc.QueueTimeout.Duration = 45_000_000_000 // 45s in nanoseconds
	fc.DefaultTimeout.Duration = 120_000_000_000

	merged := Merge(base, fc)
	if merged.QueueTimeoutMs != 45000 {
		t.Errorf("QueueTimeoutMs = %d, want 45000", merged.QueueTimeoutMs)
	}
	if merged.DefaultTimeoutMs != 120000 {
		t.Errorf("DefaultTimeoutMs = %d, want 120000", merged.DefaultTimeoutMs)
	}
}
