package mbox

import (
	"regexp"
	"strings"
)

// fromLinePattern decomposes an mbox message separator line: the word
// "From" and a space, a run of non-whitespace characters naming the sender,
// optional whitespace, exactly 24 characters holding the envelope date, and
// anything left over as extra sender info. The 24-character date width is a
// fixed contract of the historical mbox envelope format; the date is carried
// as an opaque token and never parsed.
var fromLinePattern = regexp.MustCompile(`^From (\S*)\s*(.{24})(.*)$`)

// SeparatorFields holds the pieces of one separator line. It only lives for
// the duration of building a record's initial fields.
type SeparatorFields struct {
	Sender    string
	DateToken string
	ExtraInfo string
}

// ParseFromLine reports whether line is a well-formed message separator and,
// if so, returns its fields. A non-match is an ordinary outcome: the same
// check rejects malformed separators and tells body lines apart from
// separator lines.
func ParseFromLine(line string) (SeparatorFields, bool) {
	m := fromLinePattern.FindStringSubmatch(line)
	if m == nil {
		return SeparatorFields{}, false
	}
	return SeparatorFields{
		Sender:    m[1],
		DateToken: m[2],
		ExtraInfo: m[3],
	}, true
}

// hasFromPrefix reports whether the first five characters of line are
// "From " ignoring case. This looser check is what body accumulation uses to
// spot a candidate boundary; full validation happens in ParseFromLine.
func hasFromPrefix(line string) bool {
	return len(line) >= 5 && strings.EqualFold(line[:5], "From ")
}
