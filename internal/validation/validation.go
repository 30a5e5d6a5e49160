package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field length ceilings shared by the API handlers.
const (
	MaxTitleLength       = 200
	MaxNameLength        = 200
	MaxLabelLength       = 100
	MaxDescriptionLength = 2000
	MaxNotesLength       = 10000
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateULID returns an error if the value is not a valid ULID format.
// ULIDs are 26 characters using Crockford Base32 (excludes I, L, O, U).
func ValidateULID(field, value string) *ValidationError {
	if len(value) != 26 {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid ULID (26 characters)",
		}
	}

	// Crockford Base32 alphabet: 0123456789ABCDEFGHJKMNPQRSTVWXYZ
	// Excludes: I, L, O, U (to avoid confusion)
	const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	for _, r := range value {
		upper := strings.ToUpper(string(r))
		if !strings.Contains(crockfordBase32, upper) {
			return &ValidationError{
				Field:   field,
				Message: "must be a valid ULID (invalid character)",
			}
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateText runs the checks every free-text field needs.
func ValidateText(c *Collector, field, value string, max int) {
	c.Add(ValidateUTF8(field, value))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateMaxLength(field, value, max))
}

// ValidateReorderIDs validates an explicit ordering list: non-empty,
// well-formed ids, no duplicates. Completeness against the stored rows is
// checked by the store inside the reorder transaction.
func ValidateReorderIDs(c *Collector, field string, ids []string) {
	if len(ids) == 0 {
		c.Add(&ValidationError{Field: field, Message: "is required"})
		return
	}
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		name := fmt.Sprintf("%s[%d]", field, i)
		c.Add(ValidateULID(name, id))
		if seen[id] {
			c.Add(&ValidationError{Field: name, Message: "is a duplicate"})
		}
		seen[id] = true
	}
}

// ValidateRelationshipEnds validates the two character ids a relationship
// connects. Self-relationships are rejected.
func ValidateRelationshipEnds(c *Collector, sourceID, targetID string) {
	c.Add(ValidateRequired("source_character_id", sourceID))
	c.Add(ValidateRequired("target_character_id", targetID))
	if sourceID != "" && sourceID == targetID {
		c.Add(&ValidationError{
			Field:   "target_character_id",
			Message: "must differ from source_character_id",
		})
	}
}
