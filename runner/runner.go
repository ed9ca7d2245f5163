package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kamir/flume-mbox-source/config"
	"github.com/kamir/flume-mbox-source/filter"
	"github.com/kamir/flume-mbox-source/model"
	"github.com/kamir/flume-mbox-source/state"
	"github.com/kamir/flume-mbox-source/stats"
)

type StageFunc func(context.Context) error

// Runner wires the parsing source, the record bridge and the sink stage
// together over channels and owns the shared dedup tracker and filter.
type Runner struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	records chan model.Envelope
	emits   chan *model.Record
	events  chan stats.Event

	tracker state.Tracker
	filter  *filter.Filter

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeRecordsOnce sync.Once
	closeEmitsOnce   sync.Once
	closeEventsOnce  sync.Once
	since            time.Time
}

func New(cfg config.Config, logger *slog.Logger) (*Runner, error) {
	ctx, cancel := context.WithCancel(context.Background())

	tracker, err := state.NewFileTracker(cfg.StateDir, !cfg.DryRun)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("state tracker: %w", err)
	}

	recordFilter, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("record filter: %w", err)
	}

	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		records: make(chan model.Envelope, 32),
		emits:   make(chan *model.Record, 32),
		events:  make(chan stats.Event, 128),
		tracker: tracker,
		filter:  recordFilter,
	}

	r.AddStage("bridge", r.bridge)
	return r, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) Tracker() state.Tracker {
	return r.tracker
}

func (r *Runner) RecordWriter() chan<- model.Envelope {
	return r.records
}

func (r *Runner) CloseRecords() {
	r.closeRecordsOnce.Do(func() {
		close(r.records)
	})
}

func (r *Runner) Emits() <-chan *model.Record {
	return r.emits
}

func (r *Runner) EmitEvent(evt stats.Event) {
	select {
	case <-r.ctx.Done():
	case r.events <- evt:
	}
}

func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, r.events); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

func (r *Runner) Start() error {
	r.since = time.Now()

	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	r.cancel()

	err := r.err
	if closer, ok := r.tracker.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			r.logger.Warn("closing state tracker failed", "err", cerr)
		}
	}
	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration)
	return nil
}

// bridge moves parsed records from the source to the sink stage, dropping
// duplicates and filtered-out records on the way.
func (r *Runner) bridge(ctx context.Context) error {
	defer r.closeEmits()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-r.records:
			if !ok {
				return nil
			}

			if envelope.Err != nil {
				r.EmitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeError, Err: envelope.Err})
				r.fail(fmt.Errorf("mbox envelope: %w", envelope.Err))
				continue
			}

			rec := envelope.Record

			if !r.filter.Allows(rec) {
				r.EmitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeFiltered})
				continue
			}

			if r.tracker.AlreadyProcessed(rec.Hash()) {
				sender, _ := rec.Get(model.FieldSender)
				r.EmitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeDuplicate, Sender: sender})
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.emits <- rec:
				r.EmitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeEnqueued})
			}
		}
	}
}

func (r *Runner) closeEmits() {
	r.closeEmitsOnce.Do(func() {
		close(r.emits)
	})
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
