// Package postgres stores libraries, photos, tags and world borders in
// PostgreSQL with pgvector face embeddings.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/kozaktomas/phototag/internal/config"
	"github.com/kozaktomas/phototag/internal/database"
)

const pingTimeout = 10 * time.Second

var errNoURL = errors.New("database URL is required")

// Pool is a PostgreSQL connection pool shared by the repositories.
type Pool struct {
	db *sql.DB
}

var (
	globalPool *Pool
	poolMu     sync.RWMutex
)

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errNoURL
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Initialize opens the pool, applies pending migrations and registers the
// repositories with the database package.
func Initialize(ctx context.Context, cfg *config.DatabaseConfig) error {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return err
	}

	applied, err := pool.Migrate(ctx)
	if err != nil {
		pool.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	for _, file := range applied {
		slog.Info("applied migration", "file", file)
	}

	setGlobalPool(pool)
	return nil
}

func setGlobalPool(p *Pool) {
	poolMu.Lock()
	defer poolMu.Unlock()
	globalPool = p

	photos := NewPhotoRepository(p)
	tags := NewTagRepository(p)
	photoTags := NewPhotoTagRepository(p)
	geo := NewGeoRepository(p)
	database.RegisterPostgresBackend(
		func() database.PhotoWriter { return photos },
		func() database.TagRepository { return tags },
		func() database.FaceResultWriter { return photoTags },
		func() database.GeoRepository { return geo },
	)
}

// GetGlobalPool returns the pool set up by Initialize, nil before that.
func GetGlobalPool() *Pool {
	poolMu.RLock()
	defer poolMu.RUnlock()
	return globalPool
}

// QueryRow executes a query that returns a single row.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

// Exec executes a statement that returns no rows.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	return result, nil
}

// BeginTx starts a transaction.
func (p *Pool) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := p.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}
