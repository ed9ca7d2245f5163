package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Stage string

const (
	StageMbox Stage = "mbox"
	StageSink Stage = "sink"
)

type EventType string

const (
	EventTypeParsed        EventType = "parsed"
	EventTypeEnqueued      EventType = "enqueued"
	EventTypeEmitted       EventType = "emitted"
	EventTypeDryRunEmitted EventType = "dry_run_emitted"
	EventTypeDuplicate     EventType = "duplicate"
	EventTypeFiltered      EventType = "filtered"
	EventTypeHeaderSkipped EventType = "header_skipped"
	EventTypeFileFailed    EventType = "file_failed"
	EventTypeFileEmpty     EventType = "file_empty"
	EventTypeError         EventType = "error"
)

type Event struct {
	Stage  Stage
	Type   EventType
	Path   string
	Sender string
	Err    error
	Detail string
}

type Summary struct {
	Parsed         int
	Enqueued       int
	Emitted        int
	DryRunEmitted  int
	Duplicates     int
	Filtered       int
	HeadersSkipped int
	FilesFailed    int
	FilesEmpty     int
	Errors         int
	LastError      error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"parsed", s.Parsed,
		"enqueued", s.Enqueued,
		"emitted", s.Emitted,
		"dryRunEmitted", s.DryRunEmitted,
		"duplicates", s.Duplicates,
		"filtered", s.Filtered,
		"headersSkipped", s.HeadersSkipped,
		"filesFailed", s.FilesFailed,
		"filesEmpty", s.FilesEmpty,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.Apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

// Apply folds a single event into the running summary.
func (c *Collector) Apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeParsed:
		c.summary.Parsed++
	case EventTypeEnqueued:
		c.summary.Enqueued++
	case EventTypeEmitted:
		c.summary.Emitted++
	case EventTypeDryRunEmitted:
		c.summary.DryRunEmitted++
	case EventTypeDuplicate:
		c.summary.Duplicates++
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeHeaderSkipped:
		c.summary.HeadersSkipped++
	case EventTypeFileFailed:
		c.summary.FilesFailed++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	case EventTypeFileEmpty:
		c.summary.FilesEmpty++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	type pair struct {
		Key   string
		Value int
	}

	var pairs []pair
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Value > pairs[j].Value
	})

	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Printf("%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}
