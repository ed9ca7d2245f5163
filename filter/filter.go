// Package filter applies include/exclude regular expressions to parsed
// records before they are handed to a sink.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/kamir/flume-mbox-source/model"
)

// Options captures the filtering configuration.
type Options struct {
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// Filter holds compiled regex patterns for filtering records. Header
// patterns run against the record's non-body fields rendered back into
// "Name:Value" lines; body patterns run against the Body field.
type Filter struct {
	includeMode   bool
	excludeMode   bool
	includeHeader []*regexp.Regexp
	includeBody   []*regexp.Regexp
	excludeHeader []*regexp.Regexp
	excludeBody   []*regexp.Regexp

	mu   sync.Mutex
	hits map[string]int
}

// Stats reports per-pattern hit counts.
type Stats struct {
	IncludeHeaderPatterns []string
	IncludeBodyPatterns   []string
	ExcludeHeaderPatterns []string
	ExcludeBodyPatterns   []string
	Hits                  map[string]int
}

// New creates a new Filter from the provided options. Include and exclude
// patterns are mutually exclusive.
func New(opts Options) (*Filter, error) {
	includeHeader, err := compilePatterns(opts.IncludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile include-header pattern: %w", err)
	}
	includeBody, err := compilePatterns(opts.IncludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile include-body pattern: %w", err)
	}
	excludeHeader, err := compilePatterns(opts.ExcludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-header pattern: %w", err)
	}
	excludeBody, err := compilePatterns(opts.ExcludeBody)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-body pattern: %w", err)
	}

	includeActive := len(includeHeader) > 0 || len(includeBody) > 0
	excludeActive := len(excludeHeader) > 0 || len(excludeBody) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	return &Filter{
		includeMode:   includeActive,
		excludeMode:   excludeActive,
		includeHeader: includeHeader,
		includeBody:   includeBody,
		excludeHeader: excludeHeader,
		excludeBody:   excludeBody,
		hits:          make(map[string]int),
	}, nil
}

// Active reports whether any pattern is configured.
func (f *Filter) Active() bool {
	return f.includeMode || f.excludeMode
}

// Allows returns true if the record passes the filter criteria.
func (f *Filter) Allows(rec *model.Record) bool {
	if !f.Active() {
		return true
	}

	headerText, bodyText := renderRecord(rec)

	if f.includeMode {
		return f.matchAny(f.includeHeader, headerText) || f.matchAny(f.includeBody, bodyText)
	}

	if f.matchAny(f.excludeHeader, headerText) || f.matchAny(f.excludeBody, bodyText) {
		return false
	}
	return true
}

// GetStats returns a snapshot of per-pattern hit counts.
func (f *Filter) GetStats() Stats {
	f.mu.Lock()
	hits := make(map[string]int, len(f.hits))
	for k, v := range f.hits {
		hits[k] = v
	}
	f.mu.Unlock()

	return Stats{
		IncludeHeaderPatterns: patternStrings(f.includeHeader),
		IncludeBodyPatterns:   patternStrings(f.includeBody),
		ExcludeHeaderPatterns: patternStrings(f.excludeHeader),
		ExcludeBodyPatterns:   patternStrings(f.excludeBody),
		Hits:                  hits,
	}
}

// renderRecord rebuilds the textual header block and body of a record. Field
// values were captured verbatim after the colon, so Name+":"+Value
// reproduces the original header lines.
func renderRecord(rec *model.Record) (header, body string) {
	var sb strings.Builder
	for _, field := range rec.Fields() {
		if field.Name == model.FieldBody {
			body = field.Value
			continue
		}
		sb.WriteString(field.Name)
		sb.WriteString(":")
		sb.WriteString(field.Value)
		sb.WriteString("\n")
	}
	return sb.String(), body
}

func (f *Filter) matchAny(patterns []*regexp.Regexp, text string) bool {
	if len(patterns) == 0 {
		return false
	}
	matched := false
	for _, re := range patterns {
		if re.MatchString(text) {
			matched = true
			f.mu.Lock()
			f.hits[re.String()]++
			f.mu.Unlock()
		}
	}
	return matched
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func patternStrings(patterns []*regexp.Regexp) []string {
	if len(patterns) == 0 {
		return nil
	}
	out := make([]string, len(patterns))
	for i, re := range patterns {
		out[i] = re.String()
	}
	return out
}
