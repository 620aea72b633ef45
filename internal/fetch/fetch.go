// Package fetch defines the Fetcher boundary consumed by the ingestion
// pipeline and its HTTP, headless-browser, and fixture-backed
// implementations. The pipeline is agnostic to which one is wired; it only
// needs status codes and raw content.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/autotrack/autotrack/internal/session"
)

// ErrTransport wraps network-level failures (timeouts, connection resets).
// Transport errors are retried on the next scheduled cycle, never
// immediately.
var ErrTransport = errors.New("transport error")

// Page is the raw result of fetching one listing page.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	Duration   time.Duration
}

// Fetcher performs one request for a listing page under the given session
// identity.
type Fetcher interface {
	Fetch(ctx context.Context, url string, id session.Identity) (Page, error)
}
