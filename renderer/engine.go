package renderer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
)

// ErrPageClosed is returned by Page.Snapshot once the session that produced
// the page has been torn down.
var ErrPageClosed = errors.New("renderer: page is closed")

// Engine loads a URL in a fresh rendering session.
//
// Render launches the engine, navigates to target, waits for the page to
// settle and then calls fn with the loaded page. The session is released
// before Render returns, on every path, so fn must not retain the page.
type Engine interface {
	// Name returns the engine identifier ("rod", "chromedp", "http").
	Name() string

	// Render runs fn against the fully loaded page at target.
	Render(ctx context.Context, target string, fn func(Page) error) error

	// ActiveSessions returns the number of sessions currently open.
	ActiveSessions() int
}

// Page is a loaded, queryable document.
type Page interface {
	// URL returns the URL the page was loaded from.
	URL() string

	// Snapshot copies the content of every element matching sel.Item out of
	// the page in a single query.
	Snapshot(ctx context.Context, sel models.Selectors) ([]models.RawItem, error)
}

// New returns the engine named by browserCfg.Engine.
func New(browserCfg config.BrowserConfig, searchCfg config.SearchConfig) (Engine, error) {
	switch browserCfg.Engine {
	case "rod", "":
		return NewRodEngine(browserCfg, searchCfg), nil
	case "chromedp":
		return NewChromedpEngine(browserCfg, searchCfg), nil
	case "http":
		return NewHTTPEngine(browserCfg, searchCfg), nil
	default:
		return nil, fmt.Errorf("renderer: unknown engine %q", browserCfg.Engine)
	}
}

// sessionCounter tracks open sessions so leaks are observable.
type sessionCounter struct {
	active atomic.Int32
}

// acquire records a new session and returns its release func. The release
// func is idempotent so a session is counted down exactly once.
func (s *sessionCounter) acquire() func() {
	s.active.Add(1)
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			s.active.Add(-1)
		}
	}
}

func (s *sessionCounter) ActiveSessions() int {
	return int(s.active.Load())
}

// validateTarget requires an absolute http(s) URL.
func validateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return models.NewNavigationError(models.ErrCodeNavigation, target, "malformed target URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.NewNavigationError(models.ErrCodeNavigation, target, "target URL must be absolute http(s)", nil)
	}
	return nil
}

// categorizeError wraps raw navigation errors into typed ScrapeErrors so the
// API layer can map them to appropriate HTTP status codes.
func categorizeError(err error, target, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewNavigationError(models.ErrCodeTimeout, target, "page did not settle before the navigation timeout", err)
	case errors.Is(err, context.Canceled):
		return models.NewNavigationError(models.ErrCodeTimeout, target, "request canceled", err)
	default:
		return models.NewNavigationError(models.ErrCodeNavigation, target, msg, err)
	}
}

// checkStatus fails navigation on a non-2xx main document. A zero status
// means the engine could not observe it and is accepted.
func checkStatus(status int, target string) error {
	if status == 0 || (status >= 200 && status < 300) {
		return nil
	}
	return models.NewNavigationError(models.ErrCodeNavigation, target,
		fmt.Sprintf("target responded with HTTP %d", status), nil)
}

// blockPageTitles are lowercase <title> fragments of bot-check pages that
// storefronts serve with a 200 in place of results.
var blockPageTitles = []string{
	"robot check",
	"captcha",
	"are you a human",
	"verify you are human",
	"access denied",
}

// checkBlockPage fails navigation when the loaded document is a bot-check
// page. Such a page has no products, and reporting it as an empty result
// would hide the failure.
func checkBlockPage(title, target string) error {
	t := strings.ToLower(title)
	for _, frag := range blockPageTitles {
		if strings.Contains(t, frag) {
			return models.NewNavigationError(models.ErrCodeNavigation, target,
				fmt.Sprintf("target served a bot-check page (%q) instead of results", title), nil)
		}
	}
	return nil
}
