package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/trogers1052/holdings-service/internal/api"
	"github.com/trogers1052/holdings-service/internal/kafka"
	"github.com/trogers1052/holdings-service/internal/orchestrator"
)

const shutdownTimeout = 10 * time.Second

type serveCmd struct {
	skipMigrations bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the holdings HTTP service" }
func (*serveCmd) Usage() string {
	return `holdings serve [-skip-migrations]

  Serves the holdings view over HTTP, loads holdings on start and on every
  refresh, and consumes holdings snapshots from Kafka when a topic is configured.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.skipMigrations, "skip-migrations", false, "do not apply schema migrations on start")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if !c.skipMigrations {
		if err := a.migrate(); err != nil {
			a.logger.WithError(err).Error("Failed to migrate database")
			return subcommands.ExitFailure
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []orchestrator.Option
	if a.cfg.Kafka.EventsTopic != "" {
		producer := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.EventsTopic)
		defer producer.Close()
		opts = append(opts, orchestrator.WithNotifier(producer))
	}

	orch := a.newOrchestrator(opts...)
	defer orch.Close()

	if a.cfg.Kafka.HoldingsTopic != "" {
		if a.db == nil {
			a.logger.Warn("Holdings topic configured but no database, not consuming snapshots")
		} else {
			consumer := kafka.NewHoldingsConsumer(a.cfg.Kafka.Brokers, a.cfg.Kafka.HoldingsTopic,
				a.cfg.Kafka.GroupID, a.db, a.metrics, a.logger)
			go func() {
				if err := consumer.Start(ctx); err != nil {
					a.logger.WithError(err).Error("Holdings consumer stopped")
				}
			}()
		}
	}

	handler := a.newHandler(orch)
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           api.SetupRoutes(handler, a.metrics.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	orch.NotifyViewReady()

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", srv.Addr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			a.logger.WithError(err).Error("HTTP server failed")
			return subcommands.ExitFailure
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	return subcommands.ExitSuccess
}
