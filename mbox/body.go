package mbox

import (
	"strings"

	"github.com/kamir/flume-mbox-source/model"
)

// bodyEvent classifies one step of body accumulation.
type bodyEvent int

const (
	// bodyLine carries text to append to the body.
	bodyLine bodyEvent = iota
	// bodyBoundary carries the separator line of the next message.
	bodyBoundary
	// bodyEnd marks end of input.
	bodyEnd
)

// bodyScanner walks the body of one message with a one-line lookahead. A
// blank line is only a message boundary when the very next line starts with
// "From " (case-insensitive); otherwise the blank line and the lookahead
// line are folded back into the body as a single concatenated chunk. This
// disambiguation is the heart of the parser: a lone blank line inside a body
// must not split the message.
type bodyScanner struct {
	src LineSource
}

func (s *bodyScanner) next() (bodyEvent, string) {
	line, ok := s.src.Next()
	if !ok {
		return bodyEnd, ""
	}
	if line != "" {
		return bodyLine, line
	}

	// Candidate boundary: peek at the next line.
	ahead, ok := s.src.Next()
	if !ok {
		return bodyEnd, ""
	}
	if hasFromPrefix(ahead) {
		return bodyBoundary, ahead
	}

	// False alarm. The blank line is body text; fold it together with the
	// lookahead line and keep going.
	return bodyLine, line + ahead
}

// accumulateBody reads the message body from the source, appends it to the
// record as a single field and returns the separator line of the next
// message, if one was found. Body lines are concatenated with no delimiter
// between them; line terminators were stripped by the source and are not
// reinserted. That byte-exact behavior is a compatibility contract.
func accumulateBody(src LineSource, rec *model.Record) (nextSeparator string, hasNext bool) {
	var body strings.Builder
	scanner := &bodyScanner{src: src}

	for {
		event, text := scanner.next()
		switch event {
		case bodyLine:
			body.WriteString(text)
		case bodyBoundary:
			rec.Add(model.FieldBody, body.String())
			return text, true
		case bodyEnd:
			rec.Add(model.FieldBody, body.String())
			return "", false
		}
	}
}
