package mbox

import (
	"log/slog"
	"strings"

	"github.com/kamir/flume-mbox-source/model"
)

// parseHeaders consumes the header block of one message, appending a field
// per "Name: value" line until a blank line (consumed and discarded) or end
// of input. Name and value are taken verbatim around the first colon, with
// no whitespace trimming. A line without a colon is logged and skipped;
// header parsing continues with the next line. Returns the number of lines
// skipped that way.
//
// On return the source is positioned at the first body line.
func parseHeaders(src LineSource, rec *model.Record, logger *slog.Logger) int {
	skipped := 0
	for {
		line, ok := src.Next()
		if !ok {
			return skipped
		}
		if line == "" {
			return skipped
		}

		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			if logger != nil {
				logger.Warn("header line has no colon, skipping", "line", line)
			}
			skipped++
			continue
		}

		rec.Add(line[:colon], line[colon+1:])
	}
}
