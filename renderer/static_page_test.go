package renderer

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscan/models"
)

func loadFixture(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("testdata/results.html")
	require.NoError(t, err)
	return string(b)
}

func TestStaticPage_Snapshot(t *testing.T) {
	page, err := NewStaticPage(loadFixture(t), "https://www.amazon.com/s?k=laptop")
	require.NoError(t, err)

	items, err := page.Snapshot(context.Background(), models.DefaultSelectors())
	require.NoError(t, err)
	require.Len(t, items, 4, "non-listitem widgets are not results")

	first := items[0]
	assert.Equal(t, models.RawField{Present: true, Value: "  Ultrabook   14  Pro "}, first.Title)
	assert.Equal(t, models.RawField{Present: true, Value: "$999.99"}, first.Price)
	assert.Equal(t, models.RawField{Present: true, Value: "https://m.media-amazon.com/images/I/ultra.jpg"}, first.Image)
	assert.Equal(t, models.RawField{Present: true, Value: "/dp/B0TEST0001"}, first.Link)

	second := items[1]
	assert.Equal(t, "Budget Chromebook", second.Title.Value)
	assert.False(t, second.Price.Present)
	assert.Equal(t, "https://www.example.org/dp/B0TEST0002", second.Link.Value)

	third := items[2]
	assert.Equal(t, models.RawField{Present: true, Value: ""}, third.Title, "empty element is present")
	assert.False(t, third.Image.Present, "missing attribute is absent")
	assert.False(t, third.Link.Present)
	assert.Equal(t, "$12.00", third.Price.Value)

	assert.Equal(t, models.RawItem{}, items[3])
}

func TestStaticPage_NoMatches(t *testing.T) {
	page, err := NewStaticPage("<html><body><p>no results</p></body></html>", "https://www.amazon.com/s?k=x")
	require.NoError(t, err)

	items, err := page.Snapshot(context.Background(), models.DefaultSelectors())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestStaticPage_CustomImageAttr(t *testing.T) {
	html := `<ul><li class="p"><img class="s-image" data-src="/lazy.jpg"></li></ul>`
	page, err := NewStaticPage(html, "https://shop.test/")
	require.NoError(t, err)

	sel := models.Selectors{Item: "li.p", Image: "img.s-image", ImageAttr: "data-src"}
	items, err := page.Snapshot(context.Background(), sel)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "/lazy.jpg", items[0].Image.Value)
	assert.False(t, items[0].Title.Present, "empty selector is never present")
}

func TestStaticPage_InvalidSelector(t *testing.T) {
	page, err := NewStaticPage("<html></html>", "https://shop.test/")
	require.NoError(t, err)

	_, err = page.Snapshot(context.Background(), models.Selectors{Item: "div[", Title: "h2"})
	assert.Error(t, err)

	_, err = page.Snapshot(context.Background(), models.Selectors{Title: "h2"})
	assert.Error(t, err)
}

func TestStaticPage_Closed(t *testing.T) {
	page, err := NewStaticPage(loadFixture(t), "https://www.amazon.com/s?k=laptop")
	require.NoError(t, err)
	page.Close()

	_, err = page.Snapshot(context.Background(), models.DefaultSelectors())
	assert.ErrorIs(t, err, ErrPageClosed)
}
