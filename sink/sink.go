// Package sink delivers finished records to their destination. A sink
// receives each record exactly once, after filtering and deduplication, and
// must not mutate it.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kamir/flume-mbox-source/model"
	"github.com/kamir/flume-mbox-source/runner"
	"github.com/kamir/flume-mbox-source/state"
	"github.com/kamir/flume-mbox-source/stats"
)

// RecordSink accepts finished records.
type RecordSink interface {
	Emit(ctx context.Context, rec *model.Record) error
	Close() error
}

// Consumer drains the pipeline's emit channel into a RecordSink, marking
// each delivered record in the tracker so later runs skip it.
type Consumer struct {
	sink    RecordSink
	runner  *runner.Runner
	tracker state.Tracker
	emits   <-chan *model.Record
	dryRun  bool
	logger  *slog.Logger
}

func NewConsumer(s RecordSink, r *runner.Runner, logger *slog.Logger) (*Consumer, error) {
	if s == nil {
		return nil, fmt.Errorf("sink must not be nil")
	}
	tracker := r.Tracker()
	if tracker == nil {
		return nil, fmt.Errorf("tracker must not be nil")
	}
	consumer := &Consumer{
		sink:    s,
		runner:  r,
		tracker: tracker,
		emits:   r.Emits(),
		dryRun:  r.Config().DryRun,
		logger:  logger,
	}
	r.AddStage("sink", consumer.run)
	return consumer, nil
}

func (c *Consumer) run(ctx context.Context) error {
	defer func() {
		if err := c.sink.Close(); err != nil && c.logger != nil {
			c.logger.Warn("sink close failed", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-c.emits:
			if !ok {
				return nil
			}

			sender, _ := rec.Get(model.FieldSender)

			if c.dryRun {
				if err := c.tracker.MarkProcessed(rec.Hash(), sender); err != nil {
					c.runner.EmitEvent(stats.Event{Stage: stats.StageSink, Type: stats.EventTypeError, Sender: sender, Err: err})
					return err
				}
				c.runner.EmitEvent(stats.Event{Stage: stats.StageSink, Type: stats.EventTypeDryRunEmitted, Sender: sender})
				if c.logger != nil {
					c.logger.Debug("dry-run emit", "sender", sender, "hash", rec.Hash())
				}
				continue
			}

			if err := c.sink.Emit(ctx, rec); err != nil {
				err = fmt.Errorf("emit record from %s: %w", sender, err)
				c.runner.EmitEvent(stats.Event{Stage: stats.StageSink, Type: stats.EventTypeError, Sender: sender, Err: err})
				return err
			}

			if err := c.tracker.MarkProcessed(rec.Hash(), sender); err != nil {
				c.runner.EmitEvent(stats.Event{Stage: stats.StageSink, Type: stats.EventTypeError, Sender: sender, Err: err})
				return err
			}

			c.runner.EmitEvent(stats.Event{Stage: stats.StageSink, Type: stats.EventTypeEmitted, Sender: sender})
		}
	}
}
