package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/autotrack/autotrack/internal/session"
)

// HeadlessConfig controls the browser-driven fetcher.
type HeadlessConfig struct {
	NavigationTimeout time.Duration
	ScrollSteps       int
	CookieButtonID    string
}

// HeadlessFetcher implements Fetcher with headless Chrome via chromedp. It
// renders the listing page, dismisses the cookie banner when present, and
// scrolls a few steps so lazily loaded items appear in the DOM.
type HeadlessFetcher struct {
	cfg         HeadlessConfig
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewHeadless creates a headless fetcher with its own browser allocator.
func NewHeadless(cfg HeadlessConfig, logger *zap.Logger) (*HeadlessFetcher, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 25 * time.Second
	}
	if cfg.ScrollSteps <= 0 {
		cfg.ScrollSteps = 3
	}
	if cfg.CookieButtonID == "" {
		cfg.CookieButtonID = "didomi-notice-agree-button"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &HeadlessFetcher{
		cfg:         cfg,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, shutting down the browser.
func (f *HeadlessFetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with a fresh tab under the session identity and returns the
// rendered DOM.
func (f *HeadlessFetcher) Fetch(ctx context.Context, rawURL string, id session.Identity) (Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.allocator)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancelTask()

	status := newStatusCapture(rawURL)
	chromedp.ListenTarget(taskCtx, status.capture)

	headers := make(network.Headers, len(id.Headers))
	for k, v := range id.Headers {
		headers[k] = v
	}

	start := time.Now()
	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		emulation.SetUserAgentOverride(id.UserAgent),
		chromedp.Navigate(rawURL),
		chromedp.Sleep(2 * time.Second),
		f.dismissCookieBanner(),
		f.scrollLikeHuman(),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		select {
		case <-ctx.Done():
			return Page{}, fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
		default:
		}
		return Page{}, fmt.Errorf("%w: headless fetch: %v", ErrTransport, err)
	}

	return Page{
		URL:        rawURL,
		StatusCode: status.code(),
		Body:       []byte(html),
		FetchedAt:  time.Now().UTC(),
		Duration:   time.Since(start),
	}, nil
}

// dismissCookieBanner clicks the consent button when the banner is shown.
// Absence is not an error.
func (f *HeadlessFetcher) dismissCookieBanner() chromedp.Action {
	script := fmt.Sprintf(
		`(() => { const b = document.getElementById(%q); if (b) { b.click(); return true; } return false; })()`,
		f.cfg.CookieButtonID,
	)
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked bool
		if err := chromedp.Evaluate(script, &clicked).Do(ctx); err != nil {
			return nil
		}
		if clicked {
			return chromedp.Sleep(time.Second).Do(ctx)
		}
		return nil
	})
}

// scrollLikeHuman scrolls the page in a few uneven steps so lazy lists load.
func (f *HeadlessFetcher) scrollLikeHuman() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 0; i < f.cfg.ScrollSteps; i++ {
			amount := 350 + 180*i
			script := fmt.Sprintf("window.scrollBy(0, %d);", amount)
			if err := chromedp.Evaluate(script, nil).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.Sleep(600 * time.Millisecond).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// statusCapture records the HTTP status of the main document response.
type statusCapture struct {
	mu     sync.Mutex
	url    string
	status int
}

func newStatusCapture(url string) *statusCapture {
	return &statusCapture{url: url, status: 200}
}

func (s *statusCapture) capture(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = int(resp.Response.Status)
}

func (s *statusCapture) code() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
