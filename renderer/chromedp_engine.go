package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
)

// ChromedpEngine renders pages with chromedp. Each Render call gets its own
// exec allocator, so no browser process outlives the call.
type ChromedpEngine struct {
	sessionCounter
	browserCfg config.BrowserConfig
	searchCfg  config.SearchConfig
}

// NewChromedpEngine creates a ChromedpEngine.
func NewChromedpEngine(browserCfg config.BrowserConfig, searchCfg config.SearchConfig) *ChromedpEngine {
	return &ChromedpEngine{browserCfg: browserCfg, searchCfg: searchCfg}
}

func (e *ChromedpEngine) Name() string { return "chromedp" }

func (e *ChromedpEngine) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !e.browserCfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if e.browserCfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if e.browserCfg.BrowserBin != "" {
		opts = append(opts, chromedp.ExecPath(e.browserCfg.BrowserBin))
	}
	if e.browserCfg.DefaultProxy != "" {
		opts = append(opts, chromedp.ProxyServer(e.browserCfg.DefaultProxy))
	}
	if e.browserCfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(e.browserCfg.UserAgent))
	}
	return opts
}

// Render implements Engine.
func (e *ChromedpEngine) Render(ctx context.Context, target string, fn func(Page) error) error {
	if err := validateTarget(target); err != nil {
		return err
	}

	release := e.acquire()
	defer release()

	if bin := e.browserCfg.BrowserBin; bin != "" {
		if _, err := os.Stat(bin); err != nil {
			return models.NewScrapeError(models.ErrCodeEngineUnavailable, "browser binary not found", err)
		}
	}

	// Cancelling the allocator kills the process and waits for it to exit.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, e.allocatorOptions()...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelTab()

	tracker := newIdleTracker(e.searchCfg.QuietWindow, e.searchCfg.MaxInflight)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *network.EventRequestWillBeSent:
			tracker.started(string(ev.RequestID))
		case *network.EventLoadingFinished:
			tracker.finished(string(ev.RequestID))
		case *network.EventLoadingFailed:
			tracker.finished(string(ev.RequestID))
		}
	})

	// The first Run starts the browser; it must use the tab context itself,
	// not a derived timeout context, or the browser is tied to the timeout.
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		return models.NewScrapeError(models.ErrCodeEngineUnavailable, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "engine", e.Name())

	page := &chromedpPage{tabCtx: tabCtx, url: target}
	defer page.closed.Store(true)

	navCtx, cancel := context.WithTimeout(tabCtx, e.searchCfg.NavigationTimeout)
	defer cancel()

	tracker.reset()
	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(target))
	if err != nil {
		return categorizeError(err, target, "navigation to target URL failed")
	}
	if err := tracker.wait(navCtx); err != nil {
		return categorizeError(err, target, "page did not settle")
	}
	if resp != nil {
		if err := checkStatus(int(resp.Status), target); err != nil {
			return err
		}
	}
	var title string
	if err := chromedp.Run(navCtx, chromedp.Title(&title)); err == nil {
		if err := checkBlockPage(title, target); err != nil {
			return err
		}
	}

	return fn(page)
}

// chromedpPage is the Page handed to Render callbacks.
type chromedpPage struct {
	tabCtx context.Context
	url    string
	closed atomic.Bool
}

func (c *chromedpPage) URL() string { return c.url }

func (c *chromedpPage) Snapshot(ctx context.Context, sel models.Selectors) ([]models.RawItem, error) {
	if c.closed.Load() {
		return nil, ErrPageClosed
	}
	expr, err := snapshotExpression(sel)
	if err != nil {
		return nil, err
	}

	// Actions need the chromedp tab context; tie it to the caller's ctx.
	runCtx, cancel := context.WithCancel(c.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var items []models.RawItem
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, &items)); err != nil {
		return nil, fmt.Errorf("renderer: evaluate snapshot: %w", err)
	}
	return items, nil
}
