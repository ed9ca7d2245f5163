package mbox

import "testing"

func TestParseFromLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantMatch bool
		want      SeparatorFields
	}{
		{
			name:      "classic separator",
			line:      "From alice@example.com Mon Jul 16 02:12:35 2001",
			wantMatch: true,
			want: SeparatorFields{
				Sender:    "alice@example.com",
				DateToken: "Mon Jul 16 02:12:35 2001",
				ExtraInfo: "",
			},
		},
		{
			name:      "separator with extra info",
			line:      "From bob@example.org Thu Jan  9 00:24:29 2003 remote from mailhub",
			wantMatch: true,
			want: SeparatorFields{
				Sender:    "bob@example.org",
				DateToken: "Thu Jan  9 00:24:29 2003",
				ExtraInfo: " remote from mailhub",
			},
		},
		{
			name:      "date field is a fixed 24-character slice",
			line:      "From a@x 01234567890123456789012extra",
			wantMatch: true,
			want: SeparatorFields{
				Sender:    "a@x",
				DateToken: "01234567890123456789012e",
				ExtraInfo: "xtra",
			},
		},
		{
			name:      "empty sender token",
			line:      "From Mon Jul 16 02:12:35 2001",
			wantMatch: true,
			want: SeparatorFields{
				Sender:    "",
				DateToken: "Mon Jul 16 02:12:35 2001",
				ExtraInfo: "",
			},
		},
		{
			name:      "too short for a date token",
			line:      "From alice@example.com Mon Jul 16",
			wantMatch: false,
		},
		{
			name:      "lowercase from is not a separator",
			line:      "from alice@example.com Mon Jul 16 02:12:35 2001",
			wantMatch: false,
		},
		{
			name:      "missing space after From",
			line:      "From:alice@example.com Mon Jul 16 02:12:35 2001",
			wantMatch: false,
		},
		{
			name:      "ordinary body line",
			line:      "hello world",
			wantMatch: false,
		},
		{
			name:      "empty line",
			line:      "",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFromLine(tt.line)
			if ok != tt.wantMatch {
				t.Fatalf("ParseFromLine(%q) match = %v, want %v", tt.line, ok, tt.wantMatch)
			}
			if !ok {
				return
			}
			if got != tt.want {
				t.Errorf("ParseFromLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
			if len(got.DateToken) != 24 {
				t.Errorf("DateToken length = %d, want 24", len(got.DateToken))
			}
		})
	}
}

func TestHasFromPrefix(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"From alice Mon Jul 16 02:12:35 2001", true},
		{"from alice", true},
		{"FROM alice", true},
		{"From ", true},
		{"From", false},
		{"Fromx alice", false},
		{"", false},
		{"hello", false},
	}

	for _, tt := range tests {
		if got := hasFromPrefix(tt.line); got != tt.want {
			t.Errorf("hasFromPrefix(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
