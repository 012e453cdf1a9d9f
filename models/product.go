package models

// Sentinels substituted for product fields missing from the page.
const (
	NoTitle = "No title"
	NoPrice = "N/A"
)

// DefaultQuery is searched when the caller supplies no query.
const DefaultQuery = "laptop"

// Product is one search result. All fields are presentation strings and are
// always set: a field missing on the page holds its fallback value.
type Product struct {
	Title string `json:"title"`
	Price string `json:"price"`
	Image string `json:"image"`
	Link  string `json:"link"`
}
