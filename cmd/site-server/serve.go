package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"site-server/internal/billing"
	"site-server/internal/config"
	"site-server/internal/db"
	"site-server/internal/logger"
	"site-server/internal/observability"
	"site-server/internal/server"
	"site-server/internal/store"
	"site-server/internal/stripe"
	"site-server/internal/voice"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Environment)
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Endpoint:     cfg.OTLPEndpoint,
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Environment,
		SamplingRate: cfg.TraceSamplingRate,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	var database *db.DB
	var cache billing.PriceCache
	switch {
	case cfg.DatabaseURL != "":
		database, err = db.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()
		if err := database.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("database connection established")
		cache = store.NewDatabasePriceCache(database)
	case cfg.PriceCacheFile != "":
		log.Info().Str("path", cfg.PriceCacheFile).Msg("using file price cache")
		cache = store.NewFilePriceCache(cfg.PriceCacheFile)
	default:
		log.Info().Msg("DB_URL not provided, caching prices in memory")
	}

	var payments stripe.Client
	if cfg.StripeSecretKey != "" {
		payments = stripe.NewAPIClient(stripe.Config{
			SecretKey:  cfg.StripeSecretKey,
			BaseURL:    cfg.StripeAPIBase,
			Timeout:    cfg.UpstreamTimeout,
			MaxRetries: cfg.StripeMaxRetries,
			Logger:     log,
		})
	}

	var transcriber voice.Transcriber
	if cfg.OpenAIAPIKey != "" {
		transcriber = voice.NewOpenAITranscriber(cfg.OpenAIAPIKey, cfg.STTModel)
	}

	srv, err := server.New(server.Deps{
		Config: cfg,
		Logger: log,
		Billing: billing.NewService(payments, billing.Options{
			SiteURL: cfg.SiteURL,
			Cache:   cache,
			Logger:  log,
		}),
		Transcriber: transcriber,
		Database:    database,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("failed to flush traces")
		}
		return nil
	})
	return g.Wait()
}
