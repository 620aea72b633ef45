// Package ingest runs the scrape cycle: paced fetching through the session
// controller, extraction, dedup, and fan-out of new listings.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autotrack/autotrack/internal/extract"
	"github.com/autotrack/autotrack/internal/fetch"
	"github.com/autotrack/autotrack/internal/metrics"
	"github.com/autotrack/autotrack/internal/session"
	"github.com/autotrack/autotrack/internal/store"
	"github.com/autotrack/autotrack/internal/vehicle"
)

// Broadcaster delivers a new listing to realtime subscribers.
type Broadcaster interface {
	Publish(l vehicle.Listing)
}

// Publisher pushes a new listing to an external bus.
type Publisher interface {
	Publish(ctx context.Context, l vehicle.Listing) (string, error)
}

// Archiver persists a new listing durably.
type Archiver interface {
	Insert(ctx context.Context, l vehicle.Listing) error
}

// Snapshotter archives a raw page body.
type Snapshotter interface {
	Save(ctx context.Context, page int, fetchedAt time.Time, body []byte) (string, error)
}

// Config controls one pipeline's page walk.
type Config struct {
	// URL is the listing page, fetched with a "page" query parameter.
	URL             string
	PageStart       int
	PageEnd         int
	MaxItemsPerPage int
}

// Report summarizes one cycle.
type Report struct {
	Pages     int
	NewCount  int
	TotalSeen int
	Errors    int
	Blocked   bool
}

// Pipeline wires the scrape cycle together. The hub, publisher, archiver, and
// snapshotter are optional; nil disables the corresponding fan-out.
type Pipeline struct {
	cfg       Config
	sessions  *session.Controller
	fetcher   fetch.Fetcher
	extractor *extract.Extractor
	listings  *store.Store

	hub       Broadcaster
	publisher Publisher
	archiver  Archiver
	snapshots Snapshotter

	logger *zap.Logger
}

// New builds a Pipeline. sessions, fetcher, extractor, and listings are
// required.
func New(cfg Config, sessions *session.Controller, fetcher fetch.Fetcher, extractor *extract.Extractor, listings *store.Store, logger *zap.Logger) *Pipeline {
	if cfg.PageStart <= 0 {
		cfg.PageStart = 1
	}
	if cfg.PageEnd < cfg.PageStart {
		cfg.PageEnd = cfg.PageStart
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		sessions:  sessions,
		fetcher:   fetcher,
		extractor: extractor,
		listings:  listings,
		logger:    logger,
	}
}

// WithHub attaches the realtime broadcaster.
func (p *Pipeline) WithHub(h Broadcaster) *Pipeline { p.hub = h; return p }

// WithPublisher attaches the external bus publisher.
func (p *Pipeline) WithPublisher(pub Publisher) *Pipeline { p.publisher = pub; return p }

// WithArchiver attaches the durable listing archive.
func (p *Pipeline) WithArchiver(a Archiver) *Pipeline { p.archiver = a; return p }

// WithSnapshotter attaches the raw page snapshot store.
func (p *Pipeline) WithSnapshotter(s Snapshotter) *Pipeline { p.snapshots = s; return p }

// RunCycle walks the configured page range once. When broadcast is false,
// new listings are stored and marked seen but not announced; the warm-up
// scan uses this to seed the store silently.
//
// Failures are contained: a transport error skips to the next page, a failed
// card is counted and skipped. A block response ends the page walk early so
// the session controller can rotate before the next cycle.
func (p *Pipeline) RunCycle(ctx context.Context, broadcast bool) (Report, error) {
	var report Report
	started := time.Now()

	for page := p.cfg.PageStart; page <= p.cfg.PageEnd; page++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		handle, err := p.sessions.Acquire(ctx)
		if err != nil {
			return report, fmt.Errorf("acquire session: %w", err)
		}

		pg, err := p.fetcher.Fetch(ctx, p.pageURL(page), handle.Identity())
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			p.sessions.ReportOutcome(handle, session.OutcomeTransportError)
			p.logger.Warn("page fetch failed", zap.Int("page", page), zap.Error(err))
			metrics.ObservePage("transport_error")
			report.Errors++
			continue
		}
		report.Pages++

		outcome := p.sessions.Classify(pg.StatusCode, pg.Body)
		p.sessions.ReportOutcome(handle, outcome)
		if outcome.IsBlock() {
			kind := "soft"
			if outcome == session.OutcomeHardBlock {
				kind = "hard"
			}
			p.logger.Warn("block detected, ending cycle early",
				zap.Int("page", page),
				zap.Int("status", pg.StatusCode),
				zap.String("kind", kind),
			)
			metrics.ObserveBlock(kind)
			metrics.ObservePage("blocked")
			report.Blocked = true
			break
		}
		metrics.ObservePage("ok")

		if p.snapshots != nil {
			if _, err := p.snapshots.Save(ctx, page, pg.FetchedAt, pg.Body); err != nil {
				p.logger.Warn("page snapshot failed", zap.Int("page", page), zap.Error(err))
			}
		}

		report.NewCount += p.ingestPage(ctx, pg.Body, broadcast, &report)
	}

	report.TotalSeen = p.listings.TotalSeen()
	metrics.ObserveNewListings(report.NewCount)
	metrics.SetStoredListings(p.listings.Len())
	metrics.SetAdaptiveDelay(p.sessions.CurrentDelay())

	result := "ok"
	if report.Blocked {
		result = "blocked"
	}
	metrics.ObserveCycle(result, time.Since(started))
	return report, nil
}

func (p *Pipeline) ingestPage(ctx context.Context, body []byte, broadcast bool, report *Report) int {
	elements, err := p.extractor.Elements(body)
	if err != nil {
		p.logger.Warn("page parse failed", zap.Error(err))
		report.Errors++
		return 0
	}
	if p.cfg.MaxItemsPerPage > 0 && len(elements) > p.cfg.MaxItemsPerPage {
		elements = elements[:p.cfg.MaxItemsPerPage]
	}

	newCount := 0
	for i, el := range elements {
		listing, err := p.extractor.Extract(el, i)
		if err != nil {
			if !errors.Is(err, extract.ErrUnparsable) {
				p.logger.Warn("card extraction failed", zap.Int("index", i), zap.Error(err))
			}
			metrics.ObserveExtractionFailure()
			report.Errors++
			continue
		}
		if !p.listings.Add(ctx, listing) {
			continue
		}
		newCount++
		if broadcast {
			p.announce(ctx, listing)
		}
	}
	return newCount
}

func (p *Pipeline) announce(ctx context.Context, l vehicle.Listing) {
	if p.hub != nil {
		p.hub.Publish(l)
	}
	if p.publisher != nil {
		if _, err := p.publisher.Publish(ctx, l); err != nil {
			p.logger.Warn("bus publish failed", zap.String("id", l.ID), zap.Error(err))
		}
	}
	if p.archiver != nil {
		if err := p.archiver.Insert(ctx, l); err != nil {
			p.logger.Warn("archive insert failed", zap.String("id", l.ID), zap.Error(err))
		}
	}
}

func (p *Pipeline) pageURL(page int) string {
	sep := "?"
	if strings.Contains(p.cfg.URL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", p.cfg.URL, sep, page)
}
