package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	_ "modernc.org/sqlite"

	"docrow.io/row-export-backend/internal/bootstrap"
	cfgpkg "docrow.io/row-export-backend/internal/config"
	"docrow.io/row-export-backend/internal/httpserver"
	"docrow.io/row-export-backend/internal/orchestrator"
	"docrow.io/row-export-backend/internal/otelsetup"
	"docrow.io/row-export-backend/internal/stats"
)

const name = "docrow.io/row-export-backend"

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() (err error) {
	// Instance logger bridged to OTel.
	logger := otelslog.NewLogger(name)
	slog.SetDefault(logger)
	logger.Info("Starting application")

	// Set up OpenTelemetry.
	otelShutdown, err := otelsetup.Setup(context.Background())
	if err != nil {
		return
	}

	defer func() { err = errors.Join(err, otelShutdown(context.Background())) }()

	// Config
	readFlags := cfgpkg.RegisterFlags()

	flag.Parse()

	cfg := readFlags()

	// Derive a context canceled on SIGINT/SIGTERM for graceful shutdown
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Debug("Opening database", slog.String("dsn", cfg.DSN))

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, db.Close()) }()
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := bootstrap.Provision(sigCtx, db, logger); err != nil {
		return err
	}
	if err := bootstrap.Seed(sigCtx, db, cfg.SeedRows, logger); err != nil {
		return err
	}

	// Optional output file for the stats publisher
	var opts []orchestrator.Option
	if cfg.OutputFile != "" {
		f, openErr := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if openErr != nil {
			return openErr
		}
		defer func() { err = errors.Join(err, f.Close()) }()

		opts = append(opts, orchestrator.WithStatsPublisher(stats.NewJSONPublisher(f)))
	}

	svc, err := orchestrator.New(cfg, db, logger, opts...)
	if err != nil {
		return err
	}
	if err := svc.RegisterExport(bootstrap.DocumentsShape(), bootstrap.DocumentsQuery); err != nil {
		return err
	}

	// Start internal components; they will stop when sigCtx is canceled
	svc.Start(sigCtx)

	httpServer := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     httpserver.New(svc, logger),
		BaseContext: func(net.Listener) context.Context { return sigCtx },
	}

	slog.Debug("Starting HTTP server", slog.String("listenAddr", cfg.ListenAddr))

	// Serve in a goroutine so we can handle signals
	serveErr := make(chan error, 1)

	go func() { serveErr <- httpServer.ListenAndServe() }()

	select {
	case err := <-serveErr:
		return err
	case <-sigCtx.Done():
		// Begin graceful shutdown
		slog.Info("Shutdown signal received; beginning graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Graceful HTTP shutdown timed out; forcing close")
			_ = httpServer.Close()
		}

		// Cancel internal components and wait for close
		if err := svc.Close(shutdownCtx); err != nil {
			return err
		}

		return nil
	}
}
