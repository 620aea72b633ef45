// Package main hosts the vehicle listings monitor entrypoint.
//
// Architecture overview:
//   - Monitor loop: internal/ingest walks the configured result pages on a fixed
//     interval. A silent warm-up pass seeds the store so only listings that appear
//     after startup are announced as new.
//   - Session control: internal/session paces requests with an adaptive delay that
//     backs off multiplicatively on blocks and decays after sustained successes.
//     Identities (user agent, headers, cookie jar) rotate after a request budget
//     or repeated blocks, with a randomized cool-down before the next session.
//   - Extraction: internal/extract parses ad cards with goquery through ordered
//     strategy chains for title, price, attributes, location, and images, scoring
//     each listing for completeness.
//   - Fanout: new listings go to the SSE hub (internal/hub), optionally to
//     Pub/Sub, and optionally to a Postgres archive. Raw pages can be snapshotted
//     to disk or GCS for reprocessing.
//   - HTTP API: internal/api serves /api/vehicles with filtering, geo-radius
//     search, sorting and pagination, /api/stream for live events, /api/stats,
//     health endpoints, and Prometheus metrics.
//
// Configuration comes from a YAML file and AUTOTRACK_* env vars via Viper; run
// locally with: go run ./cmd/autotrack -config config.yaml
package main
