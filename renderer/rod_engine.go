package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
	"github.com/ysmood/gson"
)

// RodEngine renders pages with a dedicated Chromium process per call,
// driven through go-rod. It is safe for concurrent use; calls share nothing
// but the session counter.
type RodEngine struct {
	sessionCounter
	browserCfg config.BrowserConfig
	searchCfg  config.SearchConfig
}

// NewRodEngine creates a RodEngine. No browser is started until Render.
func NewRodEngine(browserCfg config.BrowserConfig, searchCfg config.SearchConfig) *RodEngine {
	return &RodEngine{browserCfg: browserCfg, searchCfg: searchCfg}
}

func (e *RodEngine) Name() string { return "rod" }

func (e *RodEngine) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(e.browserCfg.Headless).
		NoSandbox(e.browserCfg.NoSandbox)

	if e.browserCfg.BrowserBin != "" {
		l = l.Bin(e.browserCfg.BrowserBin)
	}
	if e.browserCfg.DefaultProxy != "" {
		l = l.Proxy(e.browserCfg.DefaultProxy)
	}
	if e.browserCfg.Stealth {
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
	}
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	return l
}

// Render implements Engine.
//
// Lifecycle:
//
//  1. Validate target       – absolute http(s) only
//  2. Launch + connect      – EngineUnavailable on failure
//  3. DEFER: teardown       – page, browser, process, user data dir
//  4. Stealth / UA / hijack – must precede navigation
//  5. Idle listener         – registered before Navigate so no request is missed
//  6. Navigate + settle     – NavigationError (or timeout) on failure
//  7. fn(page)              – extraction runs while the session is alive
func (e *RodEngine) Render(ctx context.Context, target string, fn func(Page) error) error {
	// ── 1. Validate ───────────────────────────────────────────────────
	if err := validateTarget(target); err != nil {
		return err
	}

	release := e.acquire()
	defer release()

	// ── 2. Launch ─────────────────────────────────────────────────────
	if bin := e.browserCfg.BrowserBin; bin != "" {
		if _, err := os.Stat(bin); err != nil {
			return models.NewScrapeError(models.ErrCodeEngineUnavailable, "browser binary not found", err)
		}
	}

	l := e.newLauncher()
	controlURL, err := l.Launch()
	if err != nil {
		return models.NewScrapeError(models.ErrCodeEngineUnavailable, "failed to launch browser", err)
	}
	// Cleanup blocks until the process exits, so Kill must run first.
	defer l.Cleanup()
	defer l.Kill()
	slog.Debug("browser launched", "engine", e.Name(), "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return models.NewScrapeError(models.ErrCodeEngineUnavailable, "failed to connect to browser", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			slog.Debug("browser close failed", "error", closeErr)
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return models.NewScrapeError(models.ErrCodeEngineUnavailable, "failed to open page", err)
	}

	// ── 3. Page teardown ──────────────────────────────────────────────
	rp := &rodPage{page: page, url: target}
	defer rp.close()

	// ── 4. Pre-navigation setup ───────────────────────────────────────
	if e.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	if ua := e.browserCfg.UserAgent; ua != "" {
		if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); uaErr != nil {
			slog.Warn("user agent override failed", "error", uaErr)
		}
	}
	router := setupHijack(page, e.browserCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	navCtx, cancel := context.WithTimeout(ctx, e.searchCfg.NavigationTimeout)
	defer cancel()
	p := page.Context(navCtx)

	// ── 5. Idle listener BEFORE navigation ────────────────────────────
	var settle func() error
	if router != nil {
		// Network events conflict with the Fetch domain used by the hijack
		// router, so fall back to DOM stability.
		settle = func() error {
			return p.WaitDOMStable(e.searchCfg.QuietWindow, 0)
		}
	} else {
		settle = e.watchNetwork(p)
	}

	// ── 6. Navigate + settle ──────────────────────────────────────────
	if err := p.Navigate(target); err != nil {
		return categorizeError(err, target, "navigation to target URL failed")
	}
	if err := settle(); err != nil {
		return categorizeError(err, target, "page did not settle")
	}
	if err := navCtx.Err(); err != nil {
		return categorizeError(err, target, "page did not settle")
	}
	if err := checkStatus(documentStatus(p), target); err != nil {
		return err
	}
	if info, err := p.Info(); err == nil {
		if err := checkBlockPage(info.Title, target); err != nil {
			return err
		}
	}

	// ── 7. Hand the loaded page to the caller ─────────────────────────
	return fn(rp)
}

// watchNetwork subscribes to request lifecycle events on p and returns a
// func that blocks until the network-idle heuristic fires.
func (e *RodEngine) watchNetwork(p *rod.Page) func() error {
	tracker := newIdleTracker(e.searchCfg.QuietWindow, e.searchCfg.MaxInflight)

	evCtx, stop := context.WithCancel(p.GetContext())
	listen := p.Context(evCtx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) { tracker.started(string(ev.RequestID)) },
		func(ev *proto.NetworkLoadingFinished) { tracker.finished(string(ev.RequestID)) },
		func(ev *proto.NetworkLoadingFailed) { tracker.finished(string(ev.RequestID)) },
	)
	go listen()

	return func() error {
		defer stop()
		tracker.reset()
		return tracker.wait(p.GetContext())
	}
}

// documentStatus reads the main document's HTTP status via the Navigation
// Timing API, avoiding extra CDP listeners. Returns 0 when unavailable.
func documentStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// rodPage is the Page handed to Render callbacks.
type rodPage struct {
	page   *rod.Page
	url    string
	closed atomic.Bool
}

func (r *rodPage) URL() string { return r.url }

func (r *rodPage) Snapshot(ctx context.Context, sel models.Selectors) ([]models.RawItem, error) {
	if r.closed.Load() {
		return nil, ErrPageClosed
	}
	res, err := r.page.Context(ctx).Eval(snapshotJS, sel)
	if err != nil {
		return nil, fmt.Errorf("renderer: evaluate snapshot: %w", err)
	}
	return decodeSnapshot(res.Value)
}

// decodeSnapshot converts the evaluated snapshot into raw items. A null
// result (no document yet) decodes to an empty slice.
func decodeSnapshot(v gson.JSON) ([]models.RawItem, error) {
	// gson.JSON.Unmarshal refuses values that were already read through
	// Val, so decode from the raw JSON text instead.
	var items []models.RawItem
	if err := json.Unmarshal([]byte(v.JSON("", "")), &items); err != nil {
		return nil, fmt.Errorf("renderer: decode snapshot: %w", err)
	}
	if items == nil {
		items = []models.RawItem{}
	}
	return items, nil
}

// close marks the page dead and closes the tab. The original page reference
// has no request context, so this succeeds even after a timeout.
func (r *rodPage) close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.page.Close(); err != nil {
			slog.Debug("page close failed", "error", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Warn("page close timed out", "url", r.url)
	}
}
