// Package mbox segments mbox-formatted mail archives into field-tagged
// records. The format is line-oriented: each message starts with a "From "
// separator line carrying the envelope sender and a fixed-width date token,
// followed by RFC-822-style headers, a blank line, and the body. The next
// message begins at a blank line immediately followed by another "From "
// line; a blank line on its own is body text.
package mbox

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kamir/flume-mbox-source/model"
)

// ErrMalformedSeparator reports a line that should have been a message
// separator but does not have the required shape. Once it occurs, the rest
// of the current source cannot be segmented reliably and iteration stops.
var ErrMalformedSeparator = errors.New("malformed mbox separator line")

// Iterator produces the records of one mbox source, lazily and exactly
// once. It owns the source for its lifetime and is not safe for concurrent
// use.
type Iterator struct {
	src     LineSource
	logger  *slog.Logger
	current string
	started bool
	done    bool

	headerSkips int
}

// NewIterator returns an iterator over the messages of src. The logger
// receives per-line diagnostics; it may be nil.
func NewIterator(src LineSource, logger *slog.Logger) *Iterator {
	return &Iterator{src: src, logger: logger}
}

// Next returns the next parsed record. It returns io.EOF once the source is
// exhausted, ErrMalformedSeparator (wrapped) when a separator line does not
// parse, and the underlying read error when the source fails. Any non-nil
// error ends the iteration; records emitted earlier remain valid.
func (it *Iterator) Next() (*model.Record, error) {
	if it.done {
		return nil, io.EOF
	}

	if !it.started {
		it.started = true
		line, ok := it.src.Next()
		if !ok {
			it.done = true
			if err := it.src.Err(); err != nil {
				return nil, fmt.Errorf("read source: %w", err)
			}
			return nil, io.EOF
		}
		it.current = line
	}

	sep, ok := ParseFromLine(it.current)
	if !ok {
		it.done = true
		return nil, fmt.Errorf("%w: %q", ErrMalformedSeparator, it.current)
	}

	if it.logger != nil {
		it.logger.Debug("processing message", "sender", sep.Sender, "date", sep.DateToken)
	}

	rec := model.NewRecord()
	rec.Add(model.FieldSender, sep.Sender)
	rec.Add(model.FieldDate, sep.DateToken)
	if sep.ExtraInfo != "" {
		rec.Add(model.FieldSenderInfo, sep.ExtraInfo)
	}

	it.headerSkips += parseHeaders(it.src, rec, it.logger)

	next, hasNext := accumulateBody(it.src, rec)
	if !hasNext {
		it.done = true
		if err := it.src.Err(); err != nil {
			// The body was cut short by a read failure; the partial record
			// is dropped, matching the file-level recovery contract.
			return nil, fmt.Errorf("read source: %w", err)
		}
		return rec, nil
	}

	it.current = next
	return rec, nil
}

// HeaderSkips returns how many malformed header lines were skipped so far.
func (it *Iterator) HeaderSkips() int {
	return it.headerSkips
}
