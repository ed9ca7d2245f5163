// Package cmd holds the CLI entry points.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamir/flume-mbox-source/config"
	"github.com/kamir/flume-mbox-source/imap"
	"github.com/kamir/flume-mbox-source/mbox"
	"github.com/kamir/flume-mbox-source/progress"
	"github.com/kamir/flume-mbox-source/runner"
	"github.com/kamir/flume-mbox-source/sink"
	"github.com/kamir/flume-mbox-source/stats"
)

var rootCmd = &cobra.Command{
	Use:   "mbox-source",
	Short: "Parse mbox archives into field-tagged records and emit them to a sink",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cmd)
		if err != nil {
			return err
		}

		logger, cleanup, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = cleanup()
		}()

		slog.SetDefault(logger)
		logger.Info("starting mbox-source", "mbox", cfg.MboxPaths, "sink", cfg.Sink, "dryRun", cfg.DryRun)

		return run(cfg, logger)
	},
}

// Execute runs the root command.
func Execute() {
	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}

	// The progress bar would garble the stdout sink's output, so it only
	// runs for file and network sinks.
	if cfg.LogLevel == "info" && cfg.Sink != config.SinkStdout {
		total, err := mbox.CountMessages(cfg.MboxPaths)
		if err != nil {
			logger.Warn("message pre-count failed, progress bar disabled", "err", err)
			stats.NewReporter(r, logger)
		} else {
			bar := progress.New(total, r.Tracker().Snapshot().Processed, true)
			progress.NewReporter(r, bar, logger)
		}
	} else {
		stats.NewReporter(r, logger)
	}

	if _, err := mbox.NewProducer(mbox.Options{Paths: cfg.MboxPaths}, r, logger); err != nil {
		return fmt.Errorf("mbox.NewProducer: %w", err)
	}

	recordSink, err := newSink(cfg, logger)
	if err != nil {
		return err
	}

	if _, err := sink.NewConsumer(recordSink, r, logger); err != nil {
		return fmt.Errorf("sink.NewConsumer: %w", err)
	}

	return r.Start()
}

func newSink(cfg config.Config, logger *slog.Logger) (sink.RecordSink, error) {
	switch cfg.Sink {
	case config.SinkJSONL:
		s, err := sink.NewJSONLFile(cfg.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("jsonl sink: %w", err)
		}
		return s, nil
	case config.SinkStdout:
		return sink.NewStdout(), nil
	case config.SinkIMAP:
		s, err := imap.NewSink(imap.Options{
			Host:               cfg.IMAPHost,
			Port:               cfg.IMAPPort,
			Username:           cfg.IMAPUser,
			Password:           cfg.IMAPPass,
			UseTLS:             cfg.UseTLS,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			TargetFolder:       cfg.TargetFolder,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("imap sink: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink: %s", cfg.Sink)
	}
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("mbox-source-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
