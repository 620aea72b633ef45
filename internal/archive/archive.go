// Package archive persists every newly ingested listing to Postgres, so the
// feed history survives the memory-resident store being rebuilt on restart.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autotrack/autotrack/internal/vehicle"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for listing rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes listing rows into Postgres.
type Store struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed archive using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("archive.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "listings"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "listings"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Insert writes one listing row. Repeated observations of the same ID update
// the price, score, and last-seen timestamp instead of duplicating the row.
func (s *Store) Insert(ctx context.Context, l vehicle.Listing) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("archive is not configured")
	}
	if l.ID == "" {
		return fmt.Errorf("listing id is required")
	}
	imagesJSON, err := json.Marshal(l.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	var lat, lon *float64
	if l.Coordinates != nil {
		lat, lon = &l.Coordinates.Lat, &l.Coordinates.Lon
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	title,
	brand,
	model,
	price,
	year,
	mileage_km,
	fuel,
	gearbox,
	location,
	lat,
	lon,
	is_pro,
	images,
	url,
	score,
	published_at,
	observed_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)
ON CONFLICT (id) DO UPDATE SET
	price = EXCLUDED.price,
	score = EXCLUDED.score,
	observed_at = EXCLUDED.observed_at`, s.table)

	args := []any{
		l.ID,
		l.Title,
		l.Brand,
		l.Model,
		l.Price,
		l.Year,
		l.MileageKm,
		string(l.Fuel),
		string(l.Gearbox),
		l.Location,
		lat,
		lon,
		l.IsProfessionalSeller,
		imagesJSON,
		l.URL,
		l.QualityScore,
		l.PublishedAt,
		l.ObservedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}
