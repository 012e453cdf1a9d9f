package renderer

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/models"
)

// StaticPage is a Page backed by already-fetched HTML. No script runs, so
// it sees only server-rendered markup. It is used by the http engine and for
// extracting from saved result pages.
type StaticPage struct {
	doc    *goquery.Document
	url    string
	closed atomic.Bool
}

// NewStaticPage parses rawHTML as the document loaded from pageURL.
func NewStaticPage(rawHTML, pageURL string) (*StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("renderer: parse html: %w", err)
	}
	return &StaticPage{doc: doc, url: pageURL}, nil
}

func (s *StaticPage) URL() string { return s.url }

// Close releases the page. Later snapshots fail with ErrPageClosed.
func (s *StaticPage) Close() {
	s.closed.Store(true)
}

// Snapshot implements Page with the same presence semantics as the
// in-browser query: a missing element or attribute is not present, an
// element with empty text is present and empty.
func (s *StaticPage) Snapshot(ctx context.Context, sel models.Selectors) ([]models.RawItem, error) {
	if s.closed.Load() {
		return nil, ErrPageClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	imageAttr := sel.ImageAttr
	if imageAttr == "" {
		imageAttr = "src"
	}

	items := []models.RawItem{}
	s.doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		items = append(items, models.RawItem{
			Title: textField(item, sel.Title),
			Price: textField(item, sel.Price),
			Image: attrField(item, sel.Image, imageAttr),
			Link:  attrField(item, sel.Link, "href"),
		})
	})
	return items, nil
}

func textField(item *goquery.Selection, q string) models.RawField {
	if q == "" {
		return models.RawField{}
	}
	el := item.Find(q).First()
	if el.Length() == 0 {
		return models.RawField{}
	}
	return models.RawField{Present: true, Value: el.Text()}
}

func attrField(item *goquery.Selection, q, name string) models.RawField {
	if q == "" {
		return models.RawField{}
	}
	el := item.Find(q).First()
	if el.Length() == 0 {
		return models.RawField{}
	}
	v, ok := el.Attr(name)
	if !ok {
		return models.RawField{}
	}
	return models.RawField{Present: true, Value: v}
}
