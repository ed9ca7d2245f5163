package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/kamir/flume-mbox-source/stats"
)

// Bar manages a progress bar for tracking record parsing.
type Bar struct {
	pb          *pterm.ProgressbarPrinter
	total       int
	alreadyDone int
	mu          sync.Mutex
	enabled     bool
}

// New creates a new progress bar. The total comes from the fast pre-count
// pass over the configured mbox files; alreadyDone is the number of records
// the state tracker has seen in earlier runs.
func New(total int, alreadyDone int, enabled bool) *Bar {
	bar := &Bar{
		total:       total,
		alreadyDone: alreadyDone,
		enabled:     enabled,
	}

	if enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Parsing messages").
			Start()

		bar.pb = pb

		pterm.Info.Printf("Total messages in mbox files: %d\n", total)
		pterm.Info.Printf("Already emitted in earlier runs: %d\n", alreadyDone)
		pterm.Info.Printf("Remaining: %d\n", total-alreadyDone)
		pterm.Println()

		// Resumed runs start the bar where the last run left off.
		pb.Current = alreadyDone
	}

	return bar
}

// Update advances the progress bar based on the event type.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeParsed:
		b.pb.Increment()
		if evt.Sender != "" {
			displaySender := evt.Sender
			if len(displaySender) > 40 {
				displaySender = displaySender[:37] + "..."
			}
			b.pb.UpdateTitle("Parsing: " + displaySender)
		}
	case stats.EventTypeFileFailed:
		if evt.Err != nil {
			pterm.Error.Printf("File failed: %v\n", evt.Err)
		}
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	b.pb.Stop()
	pterm.Success.Println("Parsing complete!")
}

// Reporter pairs the progress bar with a stats collector and prints a
// summary once the pipeline drains. It registers a single event subscriber:
// the runner's event channel delivers each event to exactly one consumer, so
// the bar and the collector must share one subscription or each would only
// see a fraction of the stream.
type Reporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}

	if bar != nil && bar.enabled {
		stream.SubscribeStats("progress", reporter.consume)
	}

	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan stats.Event) error {
	defer r.bar.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				r.printSummary()
				return nil
			}
			r.bar.Update(evt)
			r.collector.Apply(evt)
		}
	}
}

func (r *Reporter) printSummary() {
	summary := r.collector.Snapshot()
	duration := time.Since(r.started)

	pterm.Println()
	pterm.DefaultSection.Println("Summary Statistics")
	pterm.Info.Printf("Duration: %v\n", duration)
	pterm.Info.Printf("Parsed: %d\n", summary.Parsed)
	pterm.Info.Printf("Emitted: %d\n", summary.Emitted)
	pterm.Info.Printf("Dry-run emitted: %d\n", summary.DryRunEmitted)
	pterm.Info.Printf("Duplicates (skipped): %d\n", summary.Duplicates)
	pterm.Info.Printf("Filtered out: %d\n", summary.Filtered)
	pterm.Info.Printf("Header lines skipped: %d\n", summary.HeadersSkipped)
	pterm.Info.Printf("Empty files: %d\n", summary.FilesEmpty)
	pterm.Info.Printf("Failed files: %d\n", summary.FilesFailed)
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}
}
