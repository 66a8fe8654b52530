package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codyseavey/game-tracker/internal/api"
	"github.com/codyseavey/game-tracker/internal/config"
	"github.com/codyseavey/game-tracker/internal/database"
	"github.com/codyseavey/game-tracker/internal/logging"
	"github.com/codyseavey/game-tracker/internal/metrics"
	"github.com/codyseavey/game-tracker/internal/services"
)

// libraryMetricsInterval is how often the library gauges are refreshed from the database
const libraryMetricsInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logging is not configured yet; the default zerolog logger still writes to stderr
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	// Initialize database
	if err := database.Initialize(cfg.DBPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	db := database.GetDB()

	// Initialize services
	currency := services.NewCurrencyNormalizer(cfg.Currency)
	normalizer := services.NewGameNormalizer(currency)

	detailFetcher, err := services.NewDetailFetcher(cfg.Steam)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize detail fetcher")
	}

	primary := services.NewStoreSearchStrategy(cfg.Steam, detailFetcher, normalizer)

	var fallback services.Strategy
	if cfg.Steam.FallbackEnabled {
		fallback = services.NewHTMLSearchStrategy(cfg.Steam, detailFetcher, normalizer)
	}

	searchService := services.NewSearchService(primary, fallback, cfg.Steam.MaxResults)

	log.Info().
		Str("base_url", cfg.Steam.BaseURL).
		Int("batch_size", cfg.Steam.DetailBatchSize).
		Dur("batch_delay", cfg.Steam.DetailBatchDelay).
		Int("cache_size", cfg.Steam.DetailCacheSize).
		Bool("fallback", cfg.Steam.FallbackEnabled).
		Str("display_currency", currency.DisplayCurrency()).
		Msg("Store search configured")

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runLibraryMetrics(ctx)

	// Setup router
	router := api.SetupRouter(api.RouterDeps{
		DB:                 db,
		Searcher:           searchService,
		DetailStatus:       detailFetcher,
		FallbackEnabled:    cfg.Steam.FallbackEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		FrontendDistPath:   cfg.FrontendDistPath,
	})

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Stop background work
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// runLibraryMetrics refreshes the library gauges until ctx is done. A panic in
// one refresh is logged and the loop keeps going.
func runLibraryMetrics(ctx context.Context) {
	ticker := time.NewTicker(libraryMetricsInterval)
	defer ticker.Stop()

	refresh := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("PANIC in library metrics refresh")
			}
		}()
		metrics.UpdateLibraryMetrics(database.GetDB())
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
