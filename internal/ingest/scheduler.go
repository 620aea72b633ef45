package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/autotrack/autotrack/internal/session"
)

// StatsSource reports controller counters for the periodic stats log.
type StatsSource interface {
	Snapshot() session.Stats
}

// Scheduler drives the pipeline on a fixed interval. The first scan is a
// silent warm-up that seeds the store without announcing anything, so a
// restart does not flood subscribers with every ad already on the page.
type Scheduler struct {
	pipeline   *Pipeline
	interval   time.Duration
	statsEvery int
	stats      StatsSource
	logger     *zap.Logger
}

// NewScheduler builds a Scheduler. statsEvery of zero disables the periodic
// stats log; stats may be nil.
func NewScheduler(p *Pipeline, interval time.Duration, statsEvery int, stats StatsSource, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		pipeline:   p,
		interval:   interval,
		statsEvery: statsEvery,
		stats:      stats,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled. An in-flight cycle observes cancellation
// between page fetches and stops; Run returns once the current cycle has
// finished.
func (s *Scheduler) Run(ctx context.Context) error {
	report, err := s.pipeline.RunCycle(ctx, false)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("warm-up scan failed", zap.Error(err))
	} else {
		s.logger.Info("warm-up scan complete",
			zap.Int("seeded", report.NewCount),
			zap.Int("pages", report.Pages),
		)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cycles := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", zap.Int("cycles", cycles))
			return ctx.Err()
		case <-ticker.C:
		}

		report, err := s.pipeline.RunCycle(ctx, true)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("scheduler stopping", zap.Int("cycles", cycles))
				return ctx.Err()
			}
			s.logger.Warn("scrape cycle failed", zap.Error(err))
			continue
		}
		cycles++

		if report.NewCount > 0 {
			s.logger.Info("scrape cycle complete",
				zap.Int("new", report.NewCount),
				zap.Int("pages", report.Pages),
				zap.Int("errors", report.Errors),
				zap.Bool("blocked", report.Blocked),
			)
		}
		if s.statsEvery > 0 && cycles%s.statsEvery == 0 {
			s.logStats(cycles, report)
		}
	}
}

func (s *Scheduler) logStats(cycles int, report Report) {
	fields := []zap.Field{
		zap.Int("cycles", cycles),
		zap.Int("total_seen", report.TotalSeen),
		zap.Int("stored", s.pipeline.listings.Len()),
	}
	if s.stats != nil {
		st := s.stats.Snapshot()
		fields = append(fields,
			zap.Float64("success_rate", st.SuccessRate),
			zap.Int64("sessions_created", st.SessionsCreated),
			zap.Duration("delay", st.AdaptiveDelay),
		)
	}
	s.logger.Info("scraper stats", fields...)
}
