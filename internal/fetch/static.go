package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/autotrack/autotrack/internal/session"
)

// StaticFetcher serves registered page bodies by URL. It backs tests and
// offline runs where no marketplace is reachable.
type StaticFetcher struct {
	mu    sync.RWMutex
	pages map[string]Page
}

// NewStatic returns an empty StaticFetcher.
func NewStatic() *StaticFetcher {
	return &StaticFetcher{pages: make(map[string]Page)}
}

// NewStaticFromDir loads every *.html file under dir, registering each under
// url plus a page query parameter in filename order (page-1.html, ...).
func NewStaticFromDir(dir, url string) (*StaticFetcher, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("scan fixture dir: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("fixture dir %s holds no *.html files", dir)
	}
	f := NewStatic()
	for i, m := range matches {
		body, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", m, err)
		}
		f.Register(fmt.Sprintf("%s?page=%d", url, i+1), 200, body)
	}
	return f, nil
}

// Register installs a page body for a URL.
func (f *StaticFetcher) Register(url string, status int, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = Page{URL: url, StatusCode: status, Body: append([]byte(nil), body...)}
}

// Fetch returns the registered page or a transport error for unknown URLs.
func (f *StaticFetcher) Fetch(ctx context.Context, url string, _ session.Identity) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	f.mu.RLock()
	page, ok := f.pages[url]
	f.mu.RUnlock()
	if !ok {
		return Page{}, fmt.Errorf("%w: no fixture registered for %s", ErrTransport, url)
	}
	page.FetchedAt = time.Now().UTC()
	return page, nil
}
