package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// product mirrors the shelfscan API product model.
type product struct {
	Title string `json:"title"`
	Price string `json:"price"`
	Image string `json:"image"`
	Link  string `json:"link"`
}

// searchResponse mirrors the shelfscan API search response.
type searchResponse struct {
	Products []product `json:"products"`
	Query    string    `json:"query"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("SHELFSCAN_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional: the server runs without auth unless configured otherwise.
	apiKey := os.Getenv("SHELFSCAN_API_KEY")

	s := server.NewMCPServer(
		"shelfscan",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_products",
		mcp.WithDescription("Search the storefront for products and return title, price, image and link for each result on the first results page. Uses a headless browser to render the page."),
		mcp.WithString("query",
			mcp.Description("Free-text search query (default: 'laptop')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of products to return (default: all)"),
			mcp.Min(0),
		),
		mcp.WithString("format",
			mcp.Description("Result format: 'text' (default, one product per block) or 'json'"),
			mcp.Enum("text", "json"),
		),
	)
	s.AddTool(searchTool, handleSearchProducts(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleSearchProducts(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := request.GetString("query", "")
		limit := request.GetInt("limit", 0)
		format := request.GetString("format", "text")

		endpoint := strings.TrimRight(apiURL, "/") + "/api/v1/search?query=" + url.QueryEscape(query)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var searchResp searchResponse
		if err := json.Unmarshal(respBody, &searchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response (HTTP %d): %v", resp.StatusCode, err)), nil
		}
		if searchResp.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %s: %s", searchResp.Error.Code, searchResp.Error.Message)), nil
		}

		products := searchResp.Products
		if limit > 0 && len(products) > limit {
			products = products[:limit]
		}

		if format == "json" {
			out, err := json.MarshalIndent(products, "", "  ")
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to encode products: %v", err)), nil
			}
			return mcp.NewToolResultText(string(out)), nil
		}
		return mcp.NewToolResultText(formatProducts(searchResp.Query, products)), nil
	}
}

// formatProducts renders products as numbered plain-text blocks.
func formatProducts(query string, products []product) string {
	if len(products) == 0 {
		return fmt.Sprintf("No products found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d products for %q:\n", len(products), query)
	for i, p := range products {
		fmt.Fprintf(&b, "\n%d. %s\n   Price: %s\n", i+1, p.Title, p.Price)
		if p.Link != "" {
			fmt.Fprintf(&b, "   Link: %s\n", p.Link)
		}
		if p.Image != "" {
			fmt.Fprintf(&b, "   Image: %s\n", p.Image)
		}
	}
	return b.String()
}
