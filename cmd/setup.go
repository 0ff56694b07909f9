package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/kozaktomas/phototag/internal/classifier"
	"github.com/kozaktomas/phototag/internal/config"
	"github.com/kozaktomas/phototag/internal/database"
	"github.com/kozaktomas/phototag/internal/database/postgres"
	"github.com/kozaktomas/phototag/internal/facematch"
	"github.com/kozaktomas/phototag/internal/lock"
	"github.com/kozaktomas/phototag/internal/vision"
)

// app bundles the repositories and services a command needs
type app struct {
	cfg        *config.Config
	photos     database.PhotoWriter
	tags       database.TagRepository
	faces      database.FaceResultWriter
	geo        database.GeoRepository
	locker     lock.Locker
	classifier *classifier.Classifier

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// connectDatabase initializes PostgreSQL (running pending migrations) and
// resolves the registered repositories.
func connectDatabase(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(ctx, &cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	a := &app{cfg: cfg}
	a.closers = append(a.closers, func() {
		if pool := postgres.GetGlobalPool(); pool != nil {
			pool.Close()
		}
	})

	var err error
	if a.photos, err = database.GetPhotoWriter(ctx); err == nil {
		if a.tags, err = database.GetTagRepository(ctx); err == nil {
			if a.faces, err = database.GetFaceResultWriter(ctx); err == nil {
				a.geo, err = database.GetGeoRepository(ctx)
			}
		}
	}
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newLocker returns a Redis-backed lock when a Redis host is configured and a
// process-local one otherwise.
func newLocker(ctx context.Context, cfg config.RedisConfig) (lock.Locker, func(), error) {
	if cfg.Host == "" {
		slog.Debug("no Redis host configured, using process-local locks")
		return lock.NewLocal(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	locker := lock.NewRedis(client)
	if err := locker.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return locker, func() { client.Close() }, nil
}

// setupClassifier connects the database and the lock service and wires the
// face classifier. minScore overrides the configured threshold when positive.
func setupClassifier(ctx context.Context, minScore float64) (*app, error) {
	a, err := connectDatabase(ctx, config.Load())
	if err != nil {
		return nil, err
	}
	if err := a.wireClassifier(ctx, minScore); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// setupFileClassifier wires a classifier that only runs on image files.
// No database connection is made.
func setupFileClassifier(ctx context.Context, minScore float64) (*app, error) {
	a := &app{cfg: config.Load()}
	if err := a.wireClassifier(ctx, minScore); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wireClassifier(ctx context.Context, minScore float64) error {
	cfg := a.cfg
	locker, closeLocker, err := newLocker(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	a.locker = locker
	a.closers = append(a.closers, closeLocker)

	if minScore <= 0 {
		minScore = cfg.Face.MinScore
	}

	models := vision.SharedModelCache(&cfg.Models, locker)
	matcher := facematch.NewMatcher(a.faces, locker, cfg.Models.FaceDir())
	a.classifier = classifier.New(a.photos, a.tags, a.faces, models, matcher, locker, classifier.Options{
		MinScore: minScore,
		IndexDir: cfg.Models.FaceDir(),
	})
	return nil
}
