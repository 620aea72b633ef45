// Package snapshot archives raw fetched page bodies for offline debugging of
// extraction failures.
package snapshot

import (
	"context"
	"fmt"
	"time"
)

// Store persists one raw page body and returns the artifact URI.
type Store interface {
	Save(ctx context.Context, page int, fetchedAt time.Time, body []byte) (string, error)
}

// objectPath names artifacts so listings sort chronologically per page.
func objectPath(prefix string, page int, fetchedAt time.Time) string {
	name := fmt.Sprintf("page-%02d/%s.html", page, fetchedAt.UTC().Format("20060102T150405.000Z"))
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
