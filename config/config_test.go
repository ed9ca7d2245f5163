package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func loadWithArgs(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	if err := RegisterFlags(cmd); err != nil {
		t.Fatalf("RegisterFlags: %v", err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	return LoadConfig(cmd)
}

func TestLoadConfigMinimal(t *testing.T) {
	cfg, err := loadWithArgs(t, "--mbox", "a.mbox")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if len(cfg.MboxPaths) != 1 || cfg.MboxPaths[0] != "a.mbox" {
		t.Errorf("MboxPaths = %v, want [a.mbox]", cfg.MboxPaths)
	}
	if cfg.Sink != SinkJSONL {
		t.Errorf("Sink = %q, want %q", cfg.Sink, SinkJSONL)
	}
	if cfg.OutputPath != "records.jsonl" {
		t.Errorf("OutputPath = %q, want records.jsonl", cfg.OutputPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadConfigRequiresMbox(t *testing.T) {
	if _, err := loadWithArgs(t); err == nil {
		t.Fatal("LoadConfig without --mbox must fail")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "invalid sink",
			args: []string{"--mbox", "a.mbox", "--sink", "carrier-pigeon"},
		},
		{
			name: "imap sink requires host",
			args: []string{"--mbox", "a.mbox", "--sink", "imap", "--imap-user", "u", "--imap-pass", "p"},
		},
		{
			name: "include and exclude are mutually exclusive",
			args: []string{"--mbox", "a.mbox", "--include-header", "x", "--exclude-header", "y"},
		},
		{
			name: "invalid log level",
			args: []string{"--mbox", "a.mbox", "--log-level", "loud"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadWithArgs(t, tt.args...); err == nil {
				t.Errorf("LoadConfig(%v) must fail", tt.args)
			}
		})
	}
}

func TestLoadConfigNormalizesWarning(t *testing.T) {
	cfg, err := loadWithArgs(t, "--mbox", "a.mbox", "--log-level", "WARNING")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestLoadConfigFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
mbox:
  - archives/2001.mbox
  - archives/2002.mbox
sink: stdout
dry_run: true
log_level: debug
filters:
  exclude_header:
    - "Subject:.*spam"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadWithArgs(t, "--config", path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if len(cfg.MboxPaths) != 2 {
		t.Fatalf("MboxPaths = %v, want two entries", cfg.MboxPaths)
	}
	if cfg.Sink != SinkStdout {
		t.Errorf("Sink = %q, want stdout", cfg.Sink)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if len(cfg.ExcludeHeader) != 1 {
		t.Errorf("ExcludeHeader = %v, want one pattern", cfg.ExcludeHeader)
	}
	if !cfg.DryRun {
		t.Error("DryRun = false, want true from config file")
	}
}

func TestLoadConfigDryRunFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
mbox:
  - archives/2001.mbox
dry_run: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadWithArgs(t, "--config", path, "--dry-run=false")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DryRun {
		t.Error("DryRun = true, want false (explicit flag overrides file)")
	}
}

func TestLoadConfigFlagsWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
mbox:
  - archives/2001.mbox
sink: stdout
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadWithArgs(t, "--config", path, "--sink", "jsonl", "--mbox", "other.mbox")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Sink != SinkJSONL {
		t.Errorf("Sink = %q, want jsonl (flag overrides file)", cfg.Sink)
	}
	if len(cfg.MboxPaths) != 1 || cfg.MboxPaths[0] != "other.mbox" {
		t.Errorf("MboxPaths = %v, want [other.mbox]", cfg.MboxPaths)
	}
}
