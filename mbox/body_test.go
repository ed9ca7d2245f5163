package mbox

import (
	"strings"
	"testing"

	"github.com/kamir/flume-mbox-source/model"
)

func sourceFromLines(lines ...string) LineSource {
	return NewLineSource(strings.NewReader(strings.Join(lines, "\n")))
}

func TestAccumulateBody(t *testing.T) {
	sep := "From b@y Mon Jul 16 02:12:35 2001"

	tests := []struct {
		name     string
		lines    []string
		wantBody string
		wantNext string
		wantMore bool
	}{
		{
			name:     "lines join without delimiter",
			lines:    []string{"hello", "world"},
			wantBody: "helloworld",
		},
		{
			name:     "blank line before separator ends the body",
			lines:    []string{"hello", "", sep},
			wantBody: "hello",
			wantNext: sep,
			wantMore: true,
		},
		{
			name:     "internal blank line folds into the body",
			lines:    []string{"hello", "", "world", "", sep},
			wantBody: "helloworld",
			wantNext: sep,
			wantMore: true,
		},
		{
			name:     "case-insensitive boundary check",
			lines:    []string{"hello", "", "from b@y whenever"},
			wantBody: "hello",
			wantNext: "from b@y whenever",
			wantMore: true,
		},
		{
			name:     "From line without preceding blank is body text",
			lines:    []string{"hello", sep},
			wantBody: "hello" + sep,
		},
		{
			name:     "trailing blank line at end of input",
			lines:    []string{"hello", "", ""},
			wantBody: "hello",
		},
		{
			name:     "consecutive blank lines fold",
			lines:    []string{"hello", "", "", "world"},
			wantBody: "helloworld",
		},
		{
			name:     "empty body",
			lines:    nil,
			wantBody: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.NewRecord()
			next, more := accumulateBody(sourceFromLines(tt.lines...), rec)

			if more != tt.wantMore {
				t.Fatalf("hasNext = %v, want %v", more, tt.wantMore)
			}
			if next != tt.wantNext {
				t.Errorf("next separator = %q, want %q", next, tt.wantNext)
			}

			body, ok := rec.Get(model.FieldBody)
			if !ok {
				t.Fatal("record has no body field")
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}
