package renderer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
	"golang.org/x/net/html"
)

const (
	defaultHTTPUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	maxBody              = 10 << 20
)

// HTTPEngine fetches the results page without a browser. No script runs,
// so it only sees server-rendered markup, but it needs no Chromium and is
// the engine used for offline and fixture runs.
type HTTPEngine struct {
	sessionCounter
	client    *http.Client
	userAgent string
	searchCfg config.SearchConfig
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine with a Chrome-like TLS fingerprint.
func NewHTTPEngine(browserCfg config.BrowserConfig, searchCfg config.SearchConfig) *HTTPEngine {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
		DisableKeepAlives: true,
	}
	if browserCfg.DefaultProxy != "" {
		if proxyURL, err := url.Parse(browserCfg.DefaultProxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			slog.Warn("ignoring malformed proxy URL", "proxy", browserCfg.DefaultProxy, "error", err)
		}
	}

	ua := browserCfg.UserAgent
	if ua == "" {
		ua = defaultHTTPUserAgent
	}

	return &HTTPEngine{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: ua,
		searchCfg: searchCfg,
	}
}

func (e *HTTPEngine) Name() string { return "http" }

// Render implements Engine. The page handed to fn is closed when Render
// returns.
func (e *HTTPEngine) Render(ctx context.Context, target string, fn func(Page) error) error {
	if err := validateTarget(target); err != nil {
		return err
	}

	release := e.acquire()
	defer release()

	navCtx, cancel := context.WithTimeout(ctx, e.searchCfg.NavigationTimeout)
	defer cancel()

	body, finalURL, err := e.fetch(navCtx, target)
	if err != nil {
		return categorizeError(err, target, "fetching target URL failed")
	}
	title := extractTitle(body)
	slog.Debug("page fetched", "engine", e.Name(), "url", finalURL, "title", title)
	if err := checkBlockPage(title, target); err != nil {
		return err
	}

	page, err := NewStaticPage(body, finalURL)
	if err != nil {
		return models.NewNavigationError(models.ErrCodeNavigation, target, "target returned unparsable HTML", err)
	}
	defer page.Close()

	return fn(page)
}

func (e *HTTPEngine) fetch(ctx context.Context, target string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", "", fmt.Errorf("http_engine: build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, target); err != nil {
		return "", "", err
	}
	if ct := resp.Header.Get("Content-Type"); !isHTMLContentType(ct) {
		return "", "", models.NewNavigationError(models.ErrCodeNavigation, target,
			fmt.Sprintf("target returned non-html content-type %q", ct), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", "", fmt.Errorf("http_engine: read body: %w", err)
	}
	return string(body), resp.Request.URL.String(), nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
