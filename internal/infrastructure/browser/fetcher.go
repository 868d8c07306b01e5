package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"NewsRadar/internal/ports"
)

const userAgent = "NewsRadar/1.0"

// ChromeFetcher renders pages with a headless Chrome session via chromedp.
// Scrape sources that rely on client-side rendering need it; each fetch runs
// in its own browser context with a hard timeout.
type ChromeFetcher struct {
	timeout time.Duration
}

var _ ports.PageFetcher = (*ChromeFetcher)(nil)

// NewChromeFetcher builds a fetcher with a per-page timeout; zero means 45s.
func NewChromeFetcher(timeout time.Duration) *ChromeFetcher {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &ChromeFetcher{timeout: timeout}
}

// FetchHTML navigates to the url and returns the rendered document.
func (f *ChromeFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

// HTTPFetcher retrieves pages with a plain HTTP client. It serves scrape
// sources whose markup is server-rendered and doubles as the test substitute
// for the headless browser.
type HTTPFetcher struct {
	client *http.Client
}

var _ ports.PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher wires an HTTP client; nil selects a 20s-timeout default.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPFetcher{client: client}
}

// FetchHTML downloads the raw page body.
func (f *HTTPFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return string(body), nil
}
