package richtext

import (
	"encoding/json"
	"testing"
)

func doc(t *testing.T, s string) json.RawMessage {
	t.Helper()
	if !json.Valid([]byte(s)) {
		t.Fatalf("invalid test document: %s", s)
	}
	return json.RawMessage(s)
}

func TestExtractPlainText_SingleParagraph(t *testing.T) {
	d := doc(t, `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Hello World"}]}]}`)

	got := ExtractPlainText(d)
	if got != "Hello World" {
		t.Errorf("Expected %q, got %q", "Hello World", got)
	}
}

func TestExtractPlainText_BlocksSeparatedByNewlines(t *testing.T) {
	d := doc(t, `{"type":"doc","content":[
		{"type":"heading","content":[{"type":"text","text":"One"}]},
		{"type":"paragraph","content":[{"type":"text","text":"Two"}]}
	]}`)

	got := ExtractPlainText(d)
	if got != "One\nTwo" {
		t.Errorf("Expected %q, got %q", "One\nTwo", got)
	}
}

func TestExtractPlainText_InlineMarksConcatenate(t *testing.T) {
	d := doc(t, `{"type":"doc","content":[{"type":"paragraph","content":[
		{"type":"text","text":"bold"},
		{"type":"text","text":" and plain"}
	]}]}`)

	got := ExtractPlainText(d)
	if got != "bold and plain" {
		t.Errorf("Expected %q, got %q", "bold and plain", got)
	}
}

func TestExtractPlainText_EmptyAndMalformed(t *testing.T) {
	if got := ExtractPlainText(nil); got != "" {
		t.Errorf("Expected empty string for nil document, got %q", got)
	}
	if got := ExtractPlainText(json.RawMessage(`{"type":`)); got != "" {
		t.Errorf("Expected empty string for malformed document, got %q", got)
	}
}

func TestCountCharacters(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"hello world", "Hello World", 10},
		{"empty", "", 0},
		{"only whitespace", " \t\n ", 0},
		{"multibyte", "héllo wörld", 10},
		{"newlines between words", "a\nb\nc", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountCharacters(tt.text); got != tt.want {
				t.Errorf("CountCharacters(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}
