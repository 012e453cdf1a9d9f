// Command shelfscan-search runs a single product search and writes the
// results as JSON, CSV or XLSX.
//
// Usage:
//
//	shelfscan-search [-engine rod|chromedp|http] [-format json|csv|xlsx] [-o file] [query]
//	shelfscan-search -html saved.html [-format csv]
//
// With -html the products are extracted from a saved results page and no
// network request is made.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/export"
	"github.com/use-agent/shelfscan/extractor"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/renderer"
	"github.com/use-agent/shelfscan/search"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "shelfscan-search: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("shelfscan-search", flag.ContinueOnError)
	engineName := fs.String("engine", cfg.Browser.Engine, "renderer engine: rod, chromedp or http")
	formatName := fs.String("format", "json", "output format: json, csv or xlsx")
	outPath := fs.String("o", "", "output file (default stdout)")
	htmlPath := fs.String("html", "", "extract from a saved results page instead of searching")
	verbose := fs.Bool("v", false, "log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := cfg.Log.SlogLevel()
	if !*verbose {
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		return err
	}
	if format == export.FormatXLSX && *outPath == "" {
		return fmt.Errorf("xlsx output needs -o <file>")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var products []models.Product
	if *htmlPath != "" {
		products, err = extractFile(ctx, cfg, *htmlPath)
	} else {
		cfg.Browser.Engine = *engineName
		products, err = searchOnce(ctx, cfg, strings.Join(fs.Args(), " "))
	}
	if err != nil {
		return err
	}

	return writeOutput(stdout, *outPath, format, products)
}

func searchOnce(ctx context.Context, cfg *config.Config, query string) ([]models.Product, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine, err := renderer.New(cfg.Browser, cfg.Search)
	if err != nil {
		return nil, err
	}
	svc, err := search.NewService(engine, cfg, nil)
	if err != nil {
		return nil, err
	}
	return svc.Search(ctx, query)
}

func extractFile(ctx context.Context, cfg *config.Config, path string) ([]models.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	page, err := renderer.NewStaticPage(string(raw), cfg.Search.SiteBase)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	ext, err := extractor.New(cfg.Search.SiteBase, cfg.Search.Selectors)
	if err != nil {
		return nil, err
	}
	return ext.Extract(ctx, page)
}

func writeOutput(stdout io.Writer, path string, format export.Format, products []models.Product) error {
	if path == "" {
		w := bufio.NewWriter(stdout)
		if err := export.Write(w, format, products); err != nil {
			return err
		}
		return w.Flush()
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, products); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("results written", "path", path, "products", len(products))
	return nil
}
