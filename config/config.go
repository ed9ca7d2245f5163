package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v4"
)

// Sink names accepted by --sink.
const (
	SinkJSONL  = "jsonl"
	SinkStdout = "stdout"
	SinkIMAP   = "imap"
)

// Config captures all options required to run the parser pipeline.
type Config struct {
	MboxPaths  []string
	Sink       string
	OutputPath string

	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	UseTLS             bool
	InsecureSkipVerify bool
	TargetFolder       string

	StateDir string
	DryRun   bool
	LogLevel string
	LogDir   string

	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// fileConfig mirrors the YAML configuration file. CLI flags win over file
// values whenever a flag was set explicitly.
type fileConfig struct {
	Mbox     []string `yaml:"mbox"`
	Sink     string   `yaml:"sink"`
	Output   string   `yaml:"output"`
	StateDir string   `yaml:"state_dir"`
	DryRun   *bool    `yaml:"dry_run"`
	LogLevel string   `yaml:"log_level"`
	LogDir   string   `yaml:"log_dir"`

	IMAP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		UseTLS             *bool  `yaml:"use_tls"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
		TargetFolder       string `yaml:"target_folder"`
	} `yaml:"imap"`

	Filters struct {
		IncludeHeader []string `yaml:"include_header"`
		IncludeBody   []string `yaml:"include_body"`
		ExcludeHeader []string `yaml:"exclude_header"`
		ExcludeBody   []string `yaml:"exclude_body"`
	} `yaml:"filters"`
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	flags.StringArray("mbox", nil, "Path to an mbox file to parse (repeatable)")
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("sink", SinkJSONL, "Record sink: jsonl, stdout or imap")
	flags.String("output", "records.jsonl", "Output path for the jsonl sink")
	flags.String("imap-host", "", "IMAP server hostname (imap sink)")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-pass", "", "IMAP password (falls back to IMAP_PASS env var)")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("target-folder", "INBOX", "Target IMAP folder for emitted records")
	flags.String("state-dir", defaultStateDir, "Directory for the emitted-record state file")
	flags.Bool("dry-run", false, "Parse and report stats without emitting records")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for a timestamped log file (in addition to stdout)")
	flags.StringArray("include-header", nil, "Regex allow-list applied to record header fields (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to record bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to record header fields (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to record bodies (mutually exclusive with include flags)")

	return nil
}

// LoadConfig converts the parsed Cobra flags, merged with the optional YAML
// file, into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return Config{}, err
	}

	var file fileConfig
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg := Config{}

	cfg.MboxPaths, err = flags.GetStringArray("mbox")
	if err != nil {
		return Config{}, err
	}
	if len(cfg.MboxPaths) == 0 {
		cfg.MboxPaths = file.Mbox
	}

	cfg.Sink, err = stringValue(flags, "sink", file.Sink)
	if err != nil {
		return Config{}, err
	}
	cfg.OutputPath, err = stringValue(flags, "output", file.Output)
	if err != nil {
		return Config{}, err
	}
	cfg.IMAPHost, err = stringValue(flags, "imap-host", file.IMAP.Host)
	if err != nil {
		return Config{}, err
	}
	cfg.IMAPUser, err = stringValue(flags, "imap-user", file.IMAP.Username)
	if err != nil {
		return Config{}, err
	}
	cfg.IMAPPass, err = stringValue(flags, "imap-pass", file.IMAP.Password)
	if err != nil {
		return Config{}, err
	}
	cfg.TargetFolder, err = stringValue(flags, "target-folder", file.IMAP.TargetFolder)
	if err != nil {
		return Config{}, err
	}
	cfg.StateDir, err = stringValue(flags, "state-dir", file.StateDir)
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel, err = stringValue(flags, "log-level", file.LogLevel)
	if err != nil {
		return Config{}, err
	}
	cfg.LogDir, err = stringValue(flags, "log-dir", file.LogDir)
	if err != nil {
		return Config{}, err
	}

	cfg.IMAPPort, err = flags.GetInt("imap-port")
	if err != nil {
		return Config{}, err
	}
	if !flags.Changed("imap-port") && file.IMAP.Port != 0 {
		cfg.IMAPPort = file.IMAP.Port
	}

	cfg.UseTLS, err = flags.GetBool("use-tls")
	if err != nil {
		return Config{}, err
	}
	if !flags.Changed("use-tls") && file.IMAP.UseTLS != nil {
		cfg.UseTLS = *file.IMAP.UseTLS
	}

	cfg.InsecureSkipVerify, err = flags.GetBool("insecure-skip-verify")
	if err != nil {
		return Config{}, err
	}
	if !flags.Changed("insecure-skip-verify") {
		cfg.InsecureSkipVerify = cfg.InsecureSkipVerify || file.IMAP.InsecureSkipVerify
	}

	cfg.DryRun, err = flags.GetBool("dry-run")
	if err != nil {
		return Config{}, err
	}
	if !flags.Changed("dry-run") && file.DryRun != nil {
		cfg.DryRun = *file.DryRun
	}

	cfg.IncludeHeader, err = stringArrayValue(flags, "include-header", file.Filters.IncludeHeader)
	if err != nil {
		return Config{}, err
	}
	cfg.IncludeBody, err = stringArrayValue(flags, "include-body", file.Filters.IncludeBody)
	if err != nil {
		return Config{}, err
	}
	cfg.ExcludeHeader, err = stringArrayValue(flags, "exclude-header", file.Filters.ExcludeHeader)
	if err != nil {
		return Config{}, err
	}
	cfg.ExcludeBody, err = stringArrayValue(flags, "exclude-body", file.Filters.ExcludeBody)
	if err != nil {
		return Config{}, err
	}

	if cfg.IMAPPass == "" {
		cfg.IMAPPass = os.Getenv("IMAP_PASS")
	}

	if cfg.StateDir == "" {
		cfg.StateDir, err = defaultStateDir()
		if err != nil {
			return Config{}, err
		}
	}
	cfg.StateDir = filepath.Clean(cfg.StateDir)

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Sink == "" {
		cfg.Sink = SinkJSONL
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if len(cfg.MboxPaths) == 0 {
		return fmt.Errorf("at least one mbox file must be specified via --mbox or the config file")
	}

	switch cfg.Sink {
	case SinkJSONL:
		if cfg.OutputPath == "" {
			return fmt.Errorf("--output is required for the jsonl sink")
		}
	case SinkStdout:
	case SinkIMAP:
		if cfg.IMAPHost == "" {
			return fmt.Errorf("--imap-host is required for the imap sink")
		}
		if cfg.IMAPUser == "" {
			return fmt.Errorf("--imap-user is required for the imap sink")
		}
		if cfg.IMAPPass == "" && !cfg.DryRun {
			return fmt.Errorf("IMAP password must be provided via --imap-pass or IMAP_PASS env var")
		}
		if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
			return fmt.Errorf("--imap-port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("invalid --sink: %s", cfg.Sink)
	}

	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

func stringValue(flags *pflag.FlagSet, name, fileValue string) (string, error) {
	value, err := flags.GetString(name)
	if err != nil {
		return "", err
	}
	if !flags.Changed(name) && fileValue != "" {
		return fileValue, nil
	}
	return value, nil
}

func stringArrayValue(flags *pflag.FlagSet, name string, fileValue []string) ([]string, error) {
	value, err := flags.GetStringArray(name)
	if err != nil {
		return nil, err
	}
	if !flags.Changed(name) && len(fileValue) > 0 {
		return fileValue, nil
	}
	return value, nil
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mbox-source", "state"), nil
}
