package mbox

import (
	"bufio"
	"io"
)

// LineSource yields successive lines of text with terminators stripped.
// Next reports ok=false at end of input; after that, Err returns the read
// error that cut the stream short, if any.
type LineSource interface {
	Next() (line string, ok bool)
	Err() error
}

const maxLineSize = 1024 * 1024

type scannerSource struct {
	scanner *bufio.Scanner
}

// NewLineSource wraps a reader in a line-by-line source. Lines longer than
// 1 MiB terminate the stream with bufio.ErrTooLong.
func NewLineSource(r io.Reader) LineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &scannerSource{scanner: scanner}
}

func (s *scannerSource) Next() (string, bool) {
	if !s.scanner.Scan() {
		return "", false
	}
	return s.scanner.Text(), true
}

func (s *scannerSource) Err() error {
	return s.scanner.Err()
}
