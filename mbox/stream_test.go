package mbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kamir/flume-mbox-source/model"
	"github.com/kamir/flume-mbox-source/stats"
)

func writeMbox(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runStream(t *testing.T, paths []string) ([]*model.Record, []stats.Event) {
	t.Helper()

	var events []stats.Event
	reader, err := NewReader(Options{Paths: paths}, nil, func(evt stats.Event) {
		events = append(events, evt)
	})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	out := make(chan model.Envelope, 64)
	done := make(chan error, 1)
	go func() {
		done <- reader.Stream(context.Background(), out)
		close(out)
	}()

	var records []*model.Record
	for env := range out {
		if env.Err != nil {
			t.Fatalf("unexpected envelope error: %v", env.Err)
		}
		records = append(records, env.Record)
	}
	if err := <-done; err != nil {
		t.Fatalf("Stream: %v", err)
	}
	return records, events
}

func countEvents(events []stats.Event, typ stats.EventType) int {
	n := 0
	for _, evt := range events {
		if evt.Type == typ {
			n++
		}
	}
	return n
}

func TestStreamContinuesPastBadFile(t *testing.T) {
	dir := t.TempDir()

	good := writeMbox(t, dir, "good.mbox", strings.Join([]string{
		"From a@x Mon Jul 16 02:12:35 2001",
		"Subject: hi",
		"",
		"hello",
		"",
	}, "\n"))
	bad := writeMbox(t, dir, "bad.mbox", "not a separator line\nmore junk\n")
	empty := writeMbox(t, dir, "empty.mbox", "")
	second := writeMbox(t, dir, "second.mbox", strings.Join([]string{
		"From b@y Thu Jan  9 00:24:29 2003",
		"",
		"world",
	}, "\n"))

	records, events := runStream(t, []string{good, bad, empty, second})

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if sender, _ := records[0].Get(model.FieldSender); sender != "a@x" {
		t.Errorf("first sender = %q, want %q", sender, "a@x")
	}
	if sender, _ := records[1].Get(model.FieldSender); sender != "b@y" {
		t.Errorf("second sender = %q, want %q", sender, "b@y")
	}

	if got := countEvents(events, stats.EventTypeFileFailed); got != 1 {
		t.Errorf("file_failed events = %d, want 1", got)
	}
	if got := countEvents(events, stats.EventTypeFileEmpty); got != 1 {
		t.Errorf("file_empty events = %d, want 1", got)
	}
	if got := countEvents(events, stats.EventTypeParsed); got != 2 {
		t.Errorf("parsed events = %d, want 2", got)
	}
}

func TestStreamRecordsBeforeMidFileFailureSurvive(t *testing.T) {
	dir := t.TempDir()

	// The second message's separator is truncated; the first record must
	// still come through.
	path := writeMbox(t, dir, "partial.mbox", strings.Join([]string{
		"From a@x Mon Jul 16 02:12:35 2001",
		"",
		"hello",
		"",
		"From b@y",
		"",
		"world",
	}, "\n"))

	records, events := runStream(t, []string{path})

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if body, _ := records[0].Get(model.FieldBody); body != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
	if got := countEvents(events, stats.EventTypeFileFailed); got != 1 {
		t.Errorf("file_failed events = %d, want 1", got)
	}
}

func TestStreamHeaderSkipEvents(t *testing.T) {
	dir := t.TempDir()

	path := writeMbox(t, dir, "skips.mbox", strings.Join([]string{
		"From a@x Mon Jul 16 02:12:35 2001",
		"broken header line",
		"Subject: ok",
		"",
		"body",
	}, "\n"))

	records, events := runStream(t, []string{path})

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if got := countEvents(events, stats.EventTypeHeaderSkipped); got != 1 {
		t.Errorf("header_skipped events = %d, want 1", got)
	}
}

func TestStreamMissingFileIsIsolated(t *testing.T) {
	dir := t.TempDir()
	good := writeMbox(t, dir, "good.mbox", strings.Join([]string{
		"From a@x Mon Jul 16 02:12:35 2001",
		"",
		"hello",
	}, "\n"))

	records, events := runStream(t, []string{filepath.Join(dir, "missing.mbox"), good})

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if got := countEvents(events, stats.EventTypeFileFailed); got != 1 {
		t.Errorf("file_failed events = %d, want 1", got)
	}
}

func TestNewReaderRequiresPaths(t *testing.T) {
	if _, err := NewReader(Options{}, nil, nil); err == nil {
		t.Fatal("NewReader with no paths must fail")
	}
}
