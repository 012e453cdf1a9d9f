// Package extractor maps a loaded results page into product records.
package extractor

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/renderer"
)

// FallbackFunc is notified each time a field falls back to its default.
type FallbackFunc func(field string)

// Extractor turns result items on a page into products. It holds no
// per-page state and is safe for concurrent use.
type Extractor struct {
	selectors  models.Selectors
	base       *url.URL
	onFallback FallbackFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithFallbackObserver registers fn to be called for every defaulted field.
func WithFallbackObserver(fn FallbackFunc) Option {
	return func(e *Extractor) { e.onFallback = fn }
}

// New creates an Extractor. Relative links are resolved against siteBase.
func New(siteBase string, sel models.Selectors, opts ...Option) (*Extractor, error) {
	if err := sel.Validate(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid selectors", err)
	}
	base, err := url.Parse(siteBase)
	if err != nil || !base.IsAbs() {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "site base must be an absolute URL", err)
	}
	e := &Extractor{selectors: sel, base: base}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract snapshots page once and resolves every matched item. Items are
// returned in document order; an item with no recognizable fields is still
// emitted with all defaults. Zero matches yield an empty, non-nil slice.
func (e *Extractor) Extract(ctx context.Context, page renderer.Page) ([]models.Product, error) {
	items, err := page.Snapshot(ctx, e.selectors)
	if err != nil {
		return nil, &models.ScrapeError{
			Code:    models.ErrCodeExtraction,
			Message: "structural query failed",
			URL:     page.URL(),
			Err:     err,
		}
	}

	products := make([]models.Product, 0, len(items))
	for _, item := range items {
		products = append(products, e.resolve(item))
	}
	slog.Debug("products extracted", "url", page.URL(), "count", len(products))
	return products, nil
}

// resolve maps a single snapshot item into a product.
func (e *Extractor) resolve(item models.RawItem) models.Product {
	return models.Product{
		Title: e.field(titleField, item.Title),
		Price: e.field(priceField, item.Price),
		Image: e.field(imageField, item.Image),
		Link:  e.link(item.Link),
	}
}

func (e *Extractor) field(f Field, raw models.RawField) string {
	v, defaulted := f.Resolve(raw)
	if defaulted && e.onFallback != nil {
		e.onFallback(f.Name)
	}
	return v
}

// link resolves a relative href against the site base. Absolute hrefs are
// kept, and an unparsable href is kept verbatim.
func (e *Extractor) link(raw models.RawField) string {
	href := e.field(linkField, raw)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return href
	}
	return e.base.ResolveReference(ref).String()
}
