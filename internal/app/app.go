// Package app builds and runs the monitoring service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/autotrack/autotrack/internal/api"
	"github.com/autotrack/autotrack/internal/archive"
	"github.com/autotrack/autotrack/internal/config"
	"github.com/autotrack/autotrack/internal/dedup"
	"github.com/autotrack/autotrack/internal/extract"
	"github.com/autotrack/autotrack/internal/fetch"
	"github.com/autotrack/autotrack/internal/geo"
	"github.com/autotrack/autotrack/internal/hub"
	"github.com/autotrack/autotrack/internal/ingest"
	"github.com/autotrack/autotrack/internal/logging"
	"github.com/autotrack/autotrack/internal/metrics"
	"github.com/autotrack/autotrack/internal/publish"
	"github.com/autotrack/autotrack/internal/query"
	"github.com/autotrack/autotrack/internal/session"
	"github.com/autotrack/autotrack/internal/snapshot"
	"github.com/autotrack/autotrack/internal/store"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	scheduler *ingest.Scheduler
	sessions  *session.Controller
	events    *hub.Hub
	headless  *fetch.HeadlessFetcher
	gcsClient *storage.Client
	seen      *dedup.RedisSeenSet
	archive   *archive.Store
	publisher publish.Publisher
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.String("scraper", cfg.Scraper.Provider),
		zap.String("url", cfg.Scraper.URL),
	)

	app.sessions = session.NewController(session.Config{
		MaxRequests:    cfg.Session.MaxRequests,
		BlockThreshold: cfg.Session.BlockThreshold,
		Recovery:       time.Duration(cfg.Session.RecoverySeconds) * time.Second,
		RecoveryJitter: time.Duration(cfg.Session.RecoveryJitterMs) * time.Millisecond,
		DelayInitial:   time.Duration(cfg.Session.DelayInitialMs) * time.Millisecond,
		DelayMin:       time.Duration(cfg.Session.DelayMinMs) * time.Millisecond,
		DelayMax:       time.Duration(cfg.Session.DelayMaxMs) * time.Millisecond,
		UserAgents:     cfg.Session.UserAgents,
		BlockMarkers:   cfg.Session.BlockMarkers,
	}, logger.Named("session"))

	listings, err := setupStore(app)
	if err != nil {
		return nil, err
	}

	fetcher, err := setupFetcher(app)
	if err != nil {
		return nil, err
	}

	origin, err := pageOrigin(cfg.Scraper.URL)
	if err != nil {
		return nil, fmt.Errorf("scraper url: %w", err)
	}
	extractor := extract.New(origin)

	app.events = hub.New(cfg.Hub.ClientBuffer, logger.Named("hub"))

	pipeline := ingest.New(ingest.Config{
		URL:             cfg.Scraper.URL,
		PageStart:       cfg.Scraper.PageStart,
		PageEnd:         cfg.Scraper.PageEnd,
		MaxItemsPerPage: cfg.Scraper.MaxItemsPerPage,
	}, app.sessions, fetcher, extractor, listings, logger.Named("ingest"))
	pipeline.WithHub(app.events)

	if err := setupSnapshots(ctx, app, pipeline); err != nil {
		return nil, err
	}
	if err := setupArchive(ctx, app, pipeline); err != nil {
		return nil, err
	}
	if err := setupPublisher(ctx, app, pipeline); err != nil {
		return nil, err
	}

	app.scheduler = ingest.NewScheduler(
		pipeline,
		cfg.Interval(),
		cfg.Scraper.StatsEveryCycle,
		app.sessions,
		logger.Named("scheduler"),
	)

	engine := query.New(geo.NewGazetteer())
	app.apiServer = api.NewServer(listings, engine, app.events, app.sessions, logger.Named("api"))

	return app, nil
}

// Run starts the monitor loop and HTTP server, blocking until the context is
// canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		a.logger.Info("scheduler started", zap.Duration("interval", a.cfg.Interval()))
		if err := a.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("scheduler error", zap.Error(err))
			stop()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close()
}

// Close releases infrastructure in dependency order: consumers first, then
// the clients they write through.
func (a *App) Close() error {
	a.events.CloseAll()
	a.sessions.Close()
	if a.headless != nil {
		a.headless.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close failed", zap.Error(err))
		}
	}
	if a.archive != nil {
		a.archive.Close()
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.seen != nil {
		if err := a.seen.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
	return nil
}

func setupStore(app *App) (*store.Store, error) {
	var remote store.SeenSet
	if app.cfg.Dedup.Provider == "redis" {
		seen, err := dedup.NewRedisSeenSet(app.cfg.Dedup.RedisURL, 0)
		if err != nil {
			return nil, fmt.Errorf("redis seen set init failed: %w", err)
		}
		app.seen = seen
		remote = seen
		app.logger.Info("using redis dedup backend")
	}
	return store.New(app.cfg.Store.Capacity, remote, app.logger.Named("store")), nil
}

func setupFetcher(app *App) (fetch.Fetcher, error) {
	switch app.cfg.Scraper.Provider {
	case "static":
		app.logger.Info("using static fixture fetcher", zap.String("dir", app.cfg.Scraper.FixtureDir))
		f, err := fetch.NewStaticFromDir(app.cfg.Scraper.FixtureDir, app.cfg.Scraper.URL)
		if err != nil {
			return nil, fmt.Errorf("static fetcher init failed: %w", err)
		}
		return f, nil
	case "headless":
		f, err := fetch.NewHeadless(fetch.HeadlessConfig{
			NavigationTimeout: time.Duration(app.cfg.Scraper.NavTimeoutSec) * time.Second,
		}, app.logger.Named("fetch"))
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		app.headless = f
		app.logger.Info("using headless fetcher")
		return f, nil
	default:
		app.logger.Info("using http fetcher")
		return fetch.NewColly(fetch.CollyConfig{
			Timeout: app.cfg.FetchTimeout(),
		}, app.logger.Named("fetch")), nil
	}
}

func setupSnapshots(ctx context.Context, app *App, pipeline *ingest.Pipeline) error {
	switch app.cfg.Snapshot.Provider {
	case "local":
		snaps, err := snapshot.NewLocal(app.cfg.Snapshot.BaseDir, app.cfg.Snapshot.Prefix)
		if err != nil {
			return fmt.Errorf("local snapshot store init failed: %w", err)
		}
		pipeline.WithSnapshotter(snaps)
		app.logger.Info("snapshots enabled", zap.String("dir", app.cfg.Snapshot.BaseDir))
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		snaps, err := snapshot.NewGCS(client, app.cfg.Snapshot.GCSBucket, app.cfg.Snapshot.Prefix)
		if err != nil {
			return fmt.Errorf("gcs snapshot store init failed: %w", err)
		}
		pipeline.WithSnapshotter(snaps)
		app.logger.Info("snapshots enabled", zap.String("bucket", app.cfg.Snapshot.GCSBucket))
	}
	return nil
}

func setupArchive(ctx context.Context, app *App, pipeline *ingest.Pipeline) error {
	if !app.cfg.Archive.Enabled {
		return nil
	}
	st, err := archive.New(ctx, archive.Config{
		DSN:   app.cfg.Archive.DSN,
		Table: app.cfg.Archive.Table,
	})
	if err != nil {
		return fmt.Errorf("archive init failed: %w", err)
	}
	app.archive = st
	pipeline.WithArchiver(st)
	app.logger.Info("listing archive enabled", zap.String("table", app.cfg.Archive.Table))
	return nil
}

func setupPublisher(ctx context.Context, app *App, pipeline *ingest.Pipeline) error {
	switch app.cfg.Publish.Provider {
	case "memory":
		app.publisher = publish.NewMemory()
	case "pubsub":
		pub, err := publish.NewPubSub(ctx, app.cfg.Publish.ProjectID, app.cfg.Publish.Topic)
		if err != nil {
			return fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		app.publisher = pub
		app.logger.Info("pubsub publisher enabled",
			zap.String("project", app.cfg.Publish.ProjectID),
			zap.String("topic", app.cfg.Publish.Topic),
		)
	default:
		return nil
	}
	pipeline.WithPublisher(app.publisher)
	return nil
}

func pageOrigin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
