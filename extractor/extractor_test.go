package extractor

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/renderer"
)

const base = "https://www.amazon.com"

// stubPage returns canned snapshot items.
type stubPage struct {
	items []models.RawItem
	err   error
}

func (s *stubPage) URL() string { return base + "/s?k=laptop" }

func (s *stubPage) Snapshot(context.Context, models.Selectors) ([]models.RawItem, error) {
	return s.items, s.err
}

func present(v string) models.RawField { return models.RawField{Present: true, Value: v} }

func newExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	e, err := New(base, models.DefaultSelectors(), opts...)
	require.NoError(t, err)
	return e
}

func TestExtract_Fallbacks(t *testing.T) {
	page := &stubPage{items: []models.RawItem{
		{Title: present("Laptop A"), Price: present("$499.00"), Image: present("https://img/a.jpg"), Link: present("/dp/ABC123")},
		{Price: present("$10"), Image: present("https://img/b.jpg"), Link: present("/dp/B")},
		{Title: present("Laptop C"), Image: present("https://img/c.jpg"), Link: present("/dp/C")},
		{Title: present("Laptop D"), Price: present("$1")},
		{},
	}}

	var fallbacks []string
	e := newExtractor(t, WithFallbackObserver(func(field string) { fallbacks = append(fallbacks, field) }))

	got, err := e.Extract(context.Background(), page)
	require.NoError(t, err)

	want := []models.Product{
		{Title: "Laptop A", Price: "$499.00", Image: "https://img/a.jpg", Link: base + "/dp/ABC123"},
		{Title: "No title", Price: "$10", Image: "https://img/b.jpg", Link: base + "/dp/B"},
		{Title: "Laptop C", Price: "N/A", Image: "https://img/c.jpg", Link: base + "/dp/C"},
		{Title: "Laptop D", Price: "$1", Image: "", Link: ""},
		{Title: "No title", Price: "N/A", Image: "", Link: ""},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"title", "price", "image", "link", "title", "price", "image", "link"}, fallbacks)
}

func TestExtract_PresentButEmpty(t *testing.T) {
	page := &stubPage{items: []models.RawItem{
		{Title: present("   "), Price: present(""), Image: present(""), Link: present("")},
	}}
	got, err := newExtractor(t).Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, []models.Product{{}}, got)
}

func TestExtract_LinkResolution(t *testing.T) {
	tests := []struct {
		name string
		href models.RawField
		want string
	}{
		{"relative", present("/dp/ABC123"), base + "/dp/ABC123"},
		{"relative with query", present("/sspa/click?ie=UTF8&url=%2Fdp%2FX"), base + "/sspa/click?ie=UTF8&url=%2Fdp%2FX"},
		{"absolute kept", present("https://example.org/p/1"), "https://example.org/p/1"},
		{"padded", present("  /dp/Z  "), base + "/dp/Z"},
		{"absent", models.RawField{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newExtractor(t).Extract(context.Background(), &stubPage{items: []models.RawItem{{Link: tt.href}}})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Link)
		})
	}
}

func TestExtract_TextNormalization(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9 under NFC.
	page := &stubPage{items: []models.RawItem{
		{Title: present("\n  Cafe\u0301   Laptop\t 15\" \n"), Price: present(" $1,299.00 ")},
	}}
	got, err := newExtractor(t).Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9 Laptop 15\"", got[0].Title)
	assert.Equal(t, "$1,299.00", got[0].Price)
}

func TestExtract_EmptyPage(t *testing.T) {
	got, err := newExtractor(t).Extract(context.Background(), &stubPage{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtract_SnapshotFailure(t *testing.T) {
	page := &stubPage{err: errors.New("execution context was destroyed")}
	_, err := newExtractor(t).Extract(context.Background(), page)
	require.Error(t, err)
	assert.True(t, models.IsExtractionError(err))
	assert.False(t, models.IsNavigationError(err))
}

func TestExtract_ClosedPage(t *testing.T) {
	page, err := renderer.NewStaticPage("<html></html>", base+"/s?k=laptop")
	require.NoError(t, err)
	page.Close()

	_, err = newExtractor(t).Extract(context.Background(), page)
	require.Error(t, err)
	assert.True(t, models.IsExtractionError(err))
	assert.ErrorIs(t, err, renderer.ErrPageClosed)
}

func TestExtract_StaticFixture(t *testing.T) {
	html, err := os.ReadFile("../renderer/testdata/results.html")
	require.NoError(t, err)
	page, err := renderer.NewStaticPage(string(html), base+"/s?k=laptop")
	require.NoError(t, err)

	got, err := newExtractor(t).Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, models.Product{
		Title: "Ultrabook 14 Pro",
		Price: "$999.99",
		Image: "https://m.media-amazon.com/images/I/ultra.jpg",
		Link:  base + "/dp/B0TEST0001",
	}, got[0])
	assert.Equal(t, "N/A", got[1].Price)
	assert.Equal(t, "", got[2].Title)
	assert.Equal(t, models.Product{Title: "No title", Price: "N/A"}, got[3])
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("not a url", models.DefaultSelectors())
	assert.Error(t, err)

	_, err = New(base, models.Selectors{})
	assert.Error(t, err)
}
