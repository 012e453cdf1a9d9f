// Package search runs a product search end to end: it builds the results
// URL, renders it in a fresh session and extracts products from it.
package search

import (
	"net/url"
	"strings"

	"github.com/use-agent/shelfscan/models"
)

// NormalizeQuery trims q and substitutes models.DefaultQuery when it is blank.
func NormalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return models.DefaultQuery
	}
	return q
}

// BuildURL returns <siteBase>/s?k=<query>, percent-encoding query exactly
// once. Spaces become %20, not '+'.
func BuildURL(siteBase, query string) string {
	return strings.TrimRight(siteBase, "/") + "/s?k=" + escapeComponent(query)
}

// componentUnescaper turns url.QueryEscape output into encodeURIComponent
// output: spaces are %20 and the marks ! ' ( ) * stay literal.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent percent-encodes s the way a URI component is encoded.
func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
