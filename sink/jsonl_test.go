package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kamir/flume-mbox-source/model"
)

func TestJSONLPreservesOrderAndDuplicates(t *testing.T) {
	rec := model.NewRecord()
	rec.Add(model.FieldSender, "a@x")
	rec.Add(model.FieldDate, "Mon Jul 16 02:12:35 2001")
	rec.Add("Received", " one")
	rec.Add("Received", " two")
	rec.Add(model.FieldBody, "helloworld")

	var buf bytes.Buffer
	s := NewJSONL(&buf)

	if err := s.Emit(context.Background(), rec); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}

	var fields []model.Field
	if err := json.Unmarshal([]byte(lines[0]), &fields); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}

	want := []model.Field{
		{Name: model.FieldSender, Value: "a@x"},
		{Name: model.FieldDate, Value: "Mon Jul 16 02:12:35 2001"},
		{Name: "Received", Value: " one"},
		{Name: "Received", Value: " two"},
		{Name: model.FieldBody, Value: "helloworld"},
	}
	if len(fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(fields), len(want))
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d = %+v, want %+v", i, fields[i], want[i])
		}
	}
}

func TestJSONLOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONL(&buf)

	for i := 0; i < 3; i++ {
		rec := model.NewRecord()
		rec.Add(model.FieldSender, "a@x")
		rec.Add(model.FieldBody, "body with\nnewline")
		if err := s.Emit(context.Background(), rec); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (newlines in values must stay escaped)", len(lines))
	}
}

func TestStdoutSinkRendersFields(t *testing.T) {
	rec := model.NewRecord()
	rec.Add(model.FieldSender, "a@x")
	rec.Add("Subject", " hi")
	rec.Add(model.FieldBody, "hello")

	var buf bytes.Buffer
	s := NewStdoutTo(&buf)

	if err := s.Emit(context.Background(), rec); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Sender: a@x\n", "Subject:  hi\n", "Body: hello\n", "---\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
