package extractor

import (
	"strings"

	"github.com/use-agent/shelfscan/models"
	"golang.org/x/text/unicode/norm"
)

// Field resolves one raw snapshot value into its output form.
type Field struct {
	Name    string
	Default string
	// Text fields are whitespace-collapsed and normalized; attribute fields
	// are only trimmed.
	Text bool
}

var (
	titleField = Field{Name: "title", Default: models.NoTitle, Text: true}
	priceField = Field{Name: "price", Default: models.NoPrice, Text: true}
	imageField = Field{Name: "image", Default: ""}
	linkField  = Field{Name: "link", Default: ""}
)

// Resolve returns the cleaned value and whether the default was used. A
// present element with empty content keeps its empty value.
func (f Field) Resolve(raw models.RawField) (string, bool) {
	if !raw.Present {
		return f.Default, true
	}
	if f.Text {
		return cleanText(raw.Value), false
	}
	return strings.TrimSpace(raw.Value), false
}

// cleanText collapses whitespace runs to single spaces and applies NFC.
func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
