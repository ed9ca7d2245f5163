package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kamir/flume-mbox-source/model"
)

// Stdout prints records in a readable "Name: Value" form, one block per
// record, separated by a marker line. Meant for inspection, not ingestion.
type Stdout struct {
	writer *bufio.Writer
}

func NewStdout() *Stdout {
	return NewStdoutTo(os.Stdout)
}

func NewStdoutTo(w io.Writer) *Stdout {
	return &Stdout{writer: bufio.NewWriter(w)}
}

func (s *Stdout) Emit(_ context.Context, rec *model.Record) error {
	for _, field := range rec.Fields() {
		if _, err := fmt.Fprintf(s.writer, "%s: %s\n", field.Name, field.Value); err != nil {
			return fmt.Errorf("write field: %w", err)
		}
	}
	if _, err := fmt.Fprintln(s.writer, "---"); err != nil {
		return fmt.Errorf("write record separator: %w", err)
	}
	return nil
}

func (s *Stdout) Close() error {
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush stdout: %w", err)
	}
	return nil
}
