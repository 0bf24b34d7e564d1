package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/iam-hbk/accounting-on-the-go/internal/analytics"
	"github.com/iam-hbk/accounting-on-the-go/internal/api"
	"github.com/iam-hbk/accounting-on-the-go/internal/archive"
	"github.com/iam-hbk/accounting-on-the-go/internal/auth"
	"github.com/iam-hbk/accounting-on-the-go/internal/config"
	"github.com/iam-hbk/accounting-on-the-go/internal/extract"
	"github.com/iam-hbk/accounting-on-the-go/internal/ingest"
	"github.com/iam-hbk/accounting-on-the-go/internal/ledger"
	"github.com/iam-hbk/accounting-on-the-go/internal/logger"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
	"github.com/iam-hbk/accounting-on-the-go/internal/store/memory"
	"github.com/iam-hbk/accounting-on-the-go/internal/store/postgres"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	var (
		port = flag.String("port", "", "HTTP server port (overrides config)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx := context.Background()

	// Store: Postgres when configured, otherwise the in-memory store for
	// local development.
	var (
		st      store.Store
		cleanup func()
	)
	if cfg.Database.URL != "" {
		pgStore, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		st = pgStore
		cleanup = pgStore.Close
	} else {
		log.Warn().Msg("No database configured - using in-memory store, data is lost on restart")
		st = memory.New()
		cleanup = func() {}
	}
	defer cleanup()

	extractor, err := extract.NewGeminiExtractor(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini extractor")
	}

	var archiver archive.Archiver
	if cfg.Archive.Bucket != "" {
		archiver = archive.NewGCS(cfg.Archive.Bucket)
	} else {
		log.Warn().Msg("No GCS bucket configured - statement archival disabled")
	}

	var sink analytics.Sink
	if cfg.Analytics.Project != "" {
		sink = analytics.NewBigQuerySink(cfg.Analytics.Project, cfg.Analytics.Dataset, cfg.Analytics.Table)
	}

	authService := auth.NewService(st, time.Duration(cfg.Auth.SessionTTLHours)*time.Hour, log)
	ledgerService := ledger.NewService(st, log)
	ingestService := ingest.NewService(st, extractor, archiver, sink, log)

	handler := api.NewRouter(api.Deps{
		Auth:   authService,
		Ledger: ledgerService,
		Ingest: ingestService,
		Log:    log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
