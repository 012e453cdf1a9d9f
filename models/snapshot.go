package models

import (
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Selectors describes where a result item and its fields live in the
// search-results DOM. Field selectors are evaluated relative to each item.
type Selectors struct {
	Item      string `json:"item" yaml:"item"`
	Title     string `json:"title" yaml:"title"`
	Price     string `json:"price" yaml:"price"`
	Image     string `json:"image" yaml:"image"`
	ImageAttr string `json:"imageAttr" yaml:"image_attr"`
	Link      string `json:"link" yaml:"link"`
}

// DefaultSelectors matches the product grid of the default storefront.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:      `.s-result-item[role="listitem"]`,
		Title:     "a h2 span",
		Price:     ".a-price span",
		Image:     "img.s-image",
		ImageAttr: "src",
		Link:      "h2 a",
	}
}

// Validate checks that the item selector is set and every non-empty
// selector parses. An empty field selector means the field is never present.
func (s Selectors) Validate() error {
	if s.Item == "" {
		return errors.New("item: selector is required")
	}
	fields := []struct{ name, query string }{
		{"item", s.Item},
		{"title", s.Title},
		{"price", s.Price},
		{"image", s.Image},
		{"link", s.Link},
	}
	for _, f := range fields {
		if f.query == "" {
			continue
		}
		if _, err := cascadia.Parse(f.query); err != nil {
			return fmt.Errorf("%s: invalid selector %q: %w", f.name, f.query, err)
		}
	}
	return nil
}

// RawField is a value copied out of the page. Present is false when the
// sub-element (or attribute) did not exist, which is different from an
// element that exists with empty content.
type RawField struct {
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

// RawItem is the snapshot of a single matched result item.
type RawItem struct {
	Title RawField `json:"title"`
	Price RawField `json:"price"`
	Image RawField `json:"image"`
	Link  RawField `json:"link"`
}
