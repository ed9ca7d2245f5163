package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kamir/flume-mbox-source/model"
)

// JSONL writes one JSON array of {name, value} objects per record per line.
// Field order and duplicate names survive the encoding, which a JSON object
// keyed by name could not guarantee.
type JSONL struct {
	writer *bufio.Writer
	closer io.Closer
}

// NewJSONLFile creates (truncating) the given path and returns a JSONL sink
// writing to it.
func NewJSONLFile(path string) (*JSONL, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &JSONL{
		writer: bufio.NewWriterSize(file, 64*1024),
		closer: file,
	}, nil
}

// NewJSONL returns a JSONL sink writing to w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{writer: bufio.NewWriterSize(w, 64*1024)}
}

func (j *JSONL) Emit(_ context.Context, rec *model.Record) error {
	data, err := json.Marshal(rec.Fields())
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := j.writer.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := j.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (j *JSONL) Close() error {
	var firstErr error
	if err := j.writer.Flush(); err != nil {
		firstErr = fmt.Errorf("flush output: %w", err)
	}
	if j.closer != nil {
		if err := j.closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close output: %w", err)
		}
	}
	return firstErr
}
