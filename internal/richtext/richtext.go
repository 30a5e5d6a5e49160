// Package richtext consumes the structured document trees emitted by the
// editor component. Documents are opaque to storage and sync; this package
// only derives plain text and counts from them.
package richtext

import (
	"encoding/json"
	"strings"
	"unicode"
)

// node is the minimal shape of an editor document node. Unknown fields are
// ignored so documents round-trip storage unmodified.
type node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Content []node `json:"content,omitempty"`
}

// blockTypes separate their text with a newline when flattened.
var blockTypes = map[string]bool{
	"paragraph":  true,
	"heading":    true,
	"blockquote": true,
	"listItem":   true,
	"codeBlock":  true,
}

// ExtractPlainText flattens a document tree into plain text. Text leaves are
// concatenated in document order; block boundaries become newlines. An empty
// or malformed document yields an empty string rather than an error, since
// derived fields must never block a local write.
func ExtractPlainText(doc json.RawMessage) string {
	if len(doc) == 0 {
		return ""
	}
	var root node
	if err := json.Unmarshal(doc, &root); err != nil {
		return ""
	}
	var b strings.Builder
	flatten(&b, root)
	return strings.TrimRight(b.String(), "\n")
}

func flatten(b *strings.Builder, n node) {
	if n.Text != "" {
		b.WriteString(n.Text)
	}
	for _, child := range n.Content {
		flatten(b, child)
	}
	if blockTypes[n.Type] {
		b.WriteByte('\n')
	}
}

// CountCharacters returns the number of non-whitespace runes in text.
// "Hello World" counts as 10.
func CountCharacters(text string) int {
	count := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count
}
