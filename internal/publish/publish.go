// Package publish pushes new-listing events to an external message bus for
// downstream consumers (alerting, analytics). The memory implementation backs
// tests and the none/dev configuration.
package publish

import (
	"context"

	"github.com/autotrack/autotrack/internal/vehicle"
)

// Publisher delivers one new listing to the bus. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, l vehicle.Listing) (string, error)
	Close() error
}
