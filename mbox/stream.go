package mbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kamir/flume-mbox-source/model"
	"github.com/kamir/flume-mbox-source/runner"
	"github.com/kamir/flume-mbox-source/stats"
)

// Options configures the record producer.
type Options struct {
	// Paths lists the mbox files to parse, in order.
	Paths []string
}

// Reader streams parsed records into a channel.
type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

// NewReader validates opts and returns a streaming reader over the
// configured mbox files.
func NewReader(opts Options, logger *slog.Logger, events func(stats.Event)) (Reader, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("at least one mbox file must be specified")
	}
	return &fileReader{paths: opts.Paths, logger: logger, events: events}, nil
}

type fileReader struct {
	paths  []string
	logger *slog.Logger
	events func(stats.Event)
}

// Stream parses each configured file in turn. Failures are isolated per
// file: a malformed separator or a read error abandons the remainder of
// that file, is logged and counted, and the next file is processed. Only
// context cancellation stops the whole stream.
func (f *fileReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	for _, path := range f.paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		count, err := f.processFile(ctx, path, out)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			if f.logger != nil {
				f.logger.Error("error processing mbox file", "path", path, "err", err)
			}
			f.emitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeFileFailed, Path: path, Err: err})
		case count == 0:
			if f.logger != nil {
				f.logger.Warn("mbox file was empty", "path", path)
			}
			f.emitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeFileEmpty, Path: path})
		default:
			if f.logger != nil {
				f.logger.Info("finished mbox file", "path", path, "records", count)
			}
		}
	}
	return nil
}

// processFile parses one file and returns the number of records emitted
// from it, together with the failure that stopped parsing early, if any.
// Records emitted before a mid-file failure stay emitted.
func (f *fileReader) processFile(ctx context.Context, path string, out chan<- model.Envelope) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	it := NewIterator(NewLineSource(file), f.logger)

	count := 0
	skips := 0
	for {
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}

		for ; skips < it.HeaderSkips(); skips++ {
			f.emitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeHeaderSkipped, Path: path})
		}
		sender, _ := rec.Get(model.FieldSender)
		f.emitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeParsed, Path: path, Sender: sender})

		select {
		case <-ctx.Done():
			return count, ctx.Err()
		case out <- model.Envelope{Record: rec}:
			count++
		}
	}
}

func (f *fileReader) emitEvent(evt stats.Event) {
	if f.events != nil {
		f.events(evt)
	}
}

// Producer hooks a Reader into the pipeline as its source stage.
type Producer struct {
	reader Reader
	runner *runner.Runner
}

func NewProducer(opts Options, r *runner.Runner, logger *slog.Logger) (*Producer, error) {
	reader, err := NewReader(opts, logger, r.EmitEvent)
	if err != nil {
		return nil, err
	}
	producer := &Producer{reader: reader, runner: r}
	r.AddStage("mbox", producer.run)
	return producer, nil
}

func (p *Producer) run(ctx context.Context) error {
	defer p.runner.CloseRecords()
	return p.reader.Stream(ctx, p.runner.RecordWriter())
}
