package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/trogers1052/holdings-service/internal/api"
	"github.com/trogers1052/holdings-service/internal/config"
	"github.com/trogers1052/holdings-service/internal/database"
	"github.com/trogers1052/holdings-service/internal/holdings"
	"github.com/trogers1052/holdings-service/internal/logging"
	"github.com/trogers1052/holdings-service/internal/metrics"
	"github.com/trogers1052/holdings-service/internal/models"
	"github.com/trogers1052/holdings-service/internal/orchestrator"
	"github.com/trogers1052/holdings-service/internal/remote"
)

// errStoreUnavailable is returned by the local store stand-in used when the
// database cannot be reached.
var errStoreUnavailable = errors.New("local store unavailable")

// app holds the components shared by the subcommands
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
	db      *database.DB
	redis   *redis.Client
	remote  *remote.Client
	service *holdings.Service
}

// newApp loads configuration and wires the data source. A database or redis
// that cannot be reached is logged and replaced by a degraded stand-in.
func newApp(withRuntimeMetrics bool) (*app, error) {
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logging.New(cfg.Log.Level, cfg.Log.Format),
		metrics: metrics.New(withRuntimeMetrics),
	}

	var repo holdings.Repository = unavailableStore{}
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		a.logger.WithError(err).Warn("Database unavailable, running without a local store")
	} else {
		a.db = db
		repo = db
	}

	var snapshot holdings.SnapshotStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Holdings.Timeout)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			a.logger.WithError(err).Warn("Redis unavailable, keeping the snapshot in memory")
			client.Close()
		} else {
			a.redis = client
			snapshot = holdings.NewRedisSnapshot(client, cfg.Redis.SnapshotKey, cfg.Redis.SnapshotTTL)
		}
	}

	a.remote = remote.NewClient(cfg.Holdings.Endpoint,
		remote.WithJSONPath(cfg.Holdings.JSONPath),
		remote.WithTimeout(cfg.Holdings.Timeout),
		remote.WithLogger(a.logger),
	)
	a.service = holdings.NewService(a.remote, repo, snapshot, a.logger)

	return a, nil
}

// migrate applies the schema when a database is connected.
func (a *app) migrate() error {
	if a.db == nil {
		return nil
	}
	if err := a.db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (a *app) newOrchestrator(opts ...orchestrator.Option) *orchestrator.Orchestrator {
	opts = append([]orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithRecorder(a.metrics),
		orchestrator.WithPersistTimeout(a.cfg.Holdings.PersistTimeout),
	}, opts...)
	return orchestrator.New(a.service, opts...)
}

// newHandler builds the HTTP handlers. Without a database the maintenance
// routes and the health ping are left unconfigured.
func (a *app) newHandler(view api.ViewModel) *api.Handler {
	var (
		store  api.LocalStore
		pinger api.Pinger
	)
	if a.db != nil {
		store = a.service
		pinger = a.db
	}
	return api.NewHandler(view, store, pinger, a.logger)
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close database")
		}
	}
}

// unavailableStore stands in for the database when it cannot be reached
type unavailableStore struct{}

func (unavailableStore) GetAllHoldings(context.Context) ([]models.Holding, error) {
	return nil, errStoreUnavailable
}

func (unavailableStore) ReplaceAllHoldings(context.Context, []models.Holding) error {
	return errStoreUnavailable
}

func (unavailableStore) AppendHoldings(context.Context, []models.Holding) error {
	return errStoreUnavailable
}

func (unavailableStore) DeleteAllHoldings(context.Context) error {
	return errStoreUnavailable
}
