package sanitizer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim spaces", input: "  Tel Aviv  ", want: "Tel Aviv"},
		{name: "collapse whitespace", input: "Haifa\t\n  Port", want: "Haifa Port"},
		{name: "control characters", input: "Ei\x00lat\x1b", want: "Eilat"},
		{name: "zero width", input: "Je​rusalem", want: "Jerusalem"},
		{name: "keeps unicode", input: " Café & Spa ", want: "Café & Spa"},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	inputs := []string{"  a  b ", "x\x00y", strings.Repeat("é", 100)}
	for _, in := range inputs {
		once := SanitizeText(in)
		if twice := SanitizeText(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSanitizeText_TruncatesOnRuneBoundary(t *testing.T) {
	got := SanitizeText(strings.Repeat("é", 100))
	if len(got) > MaxTextLength {
		t.Errorf("expected at most %d bytes, got %d", MaxTextLength, len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("expected valid UTF-8, got %q", got)
	}
}
