package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/autotrack/autotrack/internal/session"
)

// CollyConfig controls the plain-HTTP fetcher.
type CollyConfig struct {
	Timeout     time.Duration
	MaxBodySize int
}

// CollyFetcher implements Fetcher with the Colly collector. Each Fetch runs
// on a clone of the base collector so identity headers never leak between
// sessions.
type CollyFetcher struct {
	base   *colly.Collector
	cfg    CollyConfig
	logger *zap.Logger
}

// NewColly builds a CollyFetcher.
func NewColly(cfg CollyConfig, logger *zap.Logger) *CollyFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := colly.NewCollector(colly.Async(false))
	// The same listing URL is polled every cycle and the target does not
	// publish a robots policy for its search pages.
	base.AllowURLRevisit = true
	base.IgnoreRobotsTxt = true
	if cfg.MaxBodySize > 0 {
		base.MaxBodySize = cfg.MaxBodySize
	}
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)
	return &CollyFetcher{base: base, cfg: cfg, logger: logger}
}

type collyResult struct {
	page Page
	err  error
}

// Fetch executes a single GET under the session identity. Block statuses
// (403, 429) come back as pages, not errors, so the session controller can
// classify them; only network failures surface as ErrTransport.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string, id session.Identity) (Page, error) {
	collector := f.base.Clone()
	collector.UserAgent = id.UserAgent

	resultCh := make(chan collyResult, 1)
	var once sync.Once
	send := func(res collyResult) {
		once.Do(func() { resultCh <- res })
	}

	start := time.Now()
	collector.OnRequest(func(r *colly.Request) {
		for k, v := range id.Headers {
			r.Headers.Set(k, v)
		}
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		send(collyResult{page: Page{
			URL:        rawURL,
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			FetchedAt:  time.Now().UTC(),
			Duration:   time.Since(start),
		}})
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Colly reports non-2xx statuses through OnError with the response
		// attached; those are pages for block classification.
		if r != nil && r.StatusCode > 0 {
			send(collyResult{page: Page{
				URL:        rawURL,
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
				FetchedAt:  time.Now().UTC(),
				Duration:   time.Since(start),
			}})
			return
		}
		send(collyResult{err: fmt.Errorf("%w: %v", ErrTransport, err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return res.page, res.err
	default:
		return Page{}, fmt.Errorf("%w: fetch produced no result", ErrTransport)
	}
}
