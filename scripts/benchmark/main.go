// Command benchmark times a running shelfscan server over a fixed set of
// queries and reports latency and field coverage per query.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/shelfscan/models"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "shelfscan API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per query for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Queries covering short, multi-word, and reserved-character input.
var testQueries = []string{
	"laptop",
	"usb c hub",
	"gaming laptop & mouse",
	"4k monitor 27\"",
	"100% cotton t-shirt",
}

type runResult struct {
	Run        int     `json:"run"`
	TotalMs    int64   `json:"total_ms"`
	StatusCode int     `json:"status_code"`
	Products   int     `json:"products"`
	Coverage   float64 `json:"coverage"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
}

type queryAverages struct {
	TotalMs  float64 `json:"total_ms"`
	Products float64 `json:"products"`
	Coverage float64 `json:"coverage"`
}

type queryResult struct {
	Query    string         `json:"query"`
	Runs     []runResult    `json:"runs"`
	Averages *queryAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp    string        `json:"timestamp"`
	APIURL       string        `json:"api_url"`
	RunsPerQuery int           `json:"runs_per_query"`
	Results      []queryResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== shelfscan benchmark ===")
	fmt.Printf("API URL:    %s\n", *apiURL)
	fmt.Printf("Runs/query: %d\n", *runs)
	fmt.Printf("Output:     %s\n", *output)
	fmt.Println()

	client := &http.Client{Timeout: 90 * time.Second}

	if err := checkAPI(client, *apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure shelfscan is running (go run ./cmd/shelfscan)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		APIURL:       *apiURL,
		RunsPerQuery: *runs,
	}

	for _, q := range testQueries {
		fmt.Printf("Benchmarking %q ...\n", q)
		qr := queryResult{Query: q}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkQuery(client, q, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d products  %.0f%% fields found\n", rr.TotalMs, rr.Products, rr.Coverage)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			qr.Runs = append(qr.Runs, rr)
		}

		qr.Averages = computeAverages(qr.Runs)
		report.Results = append(report.Results, qr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkQuery(client *http.Client, query string, run int) runResult {
	rr := runResult{Run: run}

	req, err := http.NewRequest(http.MethodGet, *apiURL+"/api/v1/search?query="+url.QueryEscape(query), nil)
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var sr models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.StatusCode = resp.StatusCode
	rr.TotalMs = time.Since(start).Milliseconds()
	if sr.Timing != nil {
		rr.TotalMs = sr.Timing.TotalMs
	}
	if sr.Error != nil {
		rr.Error = sr.Error.Code + ": " + sr.Error.Message
		return rr
	}

	rr.Success = true
	rr.Products = len(sr.Products)
	rr.Coverage = coverage(sr.Products)
	return rr
}

// coverage is the percentage of fields that were found rather than defaulted.
func coverage(products []models.Product) float64 {
	if len(products) == 0 {
		return 0
	}
	found := 0
	for _, p := range products {
		if p.Title != models.NoTitle {
			found++
		}
		if p.Price != models.NoPrice {
			found++
		}
		if p.Image != "" {
			found++
		}
		if p.Link != "" {
			found++
		}
	}
	return 100 * float64(found) / float64(4*len(products))
}

func computeAverages(runs []runResult) *queryAverages {
	var successCount int
	var avg queryAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.Products += float64(r.Products)
		avg.Coverage += r.Coverage
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.Products /= n
	avg.Coverage /= n
	return &avg
}

func printTable(results []queryResult) {
	fmt.Println(strings.Repeat("─", 72))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Query\tAvg Latency\tProducts\tFields Found\n")
	fmt.Fprintf(w, "─────\t───────────\t────────\t────────────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\n", r.Query)
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%.1f\t%.1f%%\n",
			r.Query,
			int64(r.Averages.TotalMs),
			r.Averages.Products,
			r.Averages.Coverage,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 72))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
