package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagery-engine/internal/admission"
	"imagery-engine/internal/api"
	"imagery-engine/internal/boundary"
	"imagery-engine/internal/cache"
	"imagery-engine/internal/config"
	"imagery-engine/internal/dates"
	"imagery-engine/internal/ee"
	"imagery-engine/internal/engine"
	"imagery-engine/internal/geocode"
	"imagery-engine/internal/llm"
	"imagery-engine/internal/location"
	"imagery-engine/internal/selector"
	"imagery-engine/internal/telemetry"
	"imagery-engine/internal/tiles"
	"imagery-engine/internal/timeseries"
	"imagery-engine/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	collector := metrics.NewCollector("imagery_engine")
	tracker := telemetry.NewTracker(cfg.PostHogAPIKey, cfg.PostHogEndpoint, "imagery-engine-server")
	defer tracker.Close()

	// Remote-sensing backend shared by selection, tiles, and statistics.
	backend := ee.NewRESTBackend(cfg.BackendURL, cfg.BackendTimeout)
	backend.Instrument(collector)
	limiter := admission.NewLimiter(cfg.MaxConcurrent)
	limiter.Instrument(collector.BackendSlotsInUse)

	// Location tiers: Google geocoding behind an LRU cache, optional local
	// LLM inference, OSM admin boundaries.
	var upstream geocode.Geocoder
	if cfg.GeocodingAPIKey != "" {
		upstream = geocode.NewGoogleGeocoder(cfg.GeocodingAPIKey)
	} else {
		log.Printf("[Main] GEOCODING_API_KEY not set, geocoding tier disabled")
	}
	cached, err := geocode.NewCachedGeocoder(upstream, cfg.GeocodeCacheSize)
	if err != nil {
		log.Fatalf("failed to initialize geocode cache: %v", err)
	}
	cached.Instrument(collector.GeocodeCacheHits, collector.GeocodeCacheMisses)

	var inferrer location.CoordinateInferrer
	var prompts engine.PromptAnalyzer
	if cfg.LLMBaseURL != "" {
		llmClient := llm.New(cfg.LLMBaseURL, cfg.LLMModel)
		inferrer = llmClient
		prompts = llmClient
		log.Printf("[Main] LLM tier enabled (%s, model %s)", cfg.LLMBaseURL, cfg.LLMModel)
	}

	boundaries := boundary.NewOverpassSource(cfg.OverpassEndpoint, cfg.OverpassTimeout)
	locations := location.NewResolver(cached, inferrer, boundaries, cfg.BufferRadiusM)
	locations.Instrument(collector)

	sel := selector.NewWithConfig(backend, selector.Config{
		WidenBelowDays:   cfg.WidenBelowDays,
		WidenToDays:      cfg.WidenToDays,
		LatestWindowDays: cfg.LatestWindowDays,
	})
	renderer := cache.NewCachingRenderer(tiles.NewRenderer(backend), cache.NewTileCache(cache.DefaultSize, cache.DefaultTTL))
	calculator := timeseries.NewCalculator(backend)
	series := timeseries.NewGenerator(sel, renderer, calculator, limiter)

	eng := engine.New(engine.Options{
		Normalizer: dates.New(),
		Locations:  locations,
		Prompts:    prompts,
		Selector:   sel,
		Renderer:   renderer,
		Stats:      calculator,
		Series:     series,
		Limiter:    limiter,
		Tracker:    tracker,
		Metrics:    collector,
	})

	app := api.NewApp(eng, collector)

	// Prometheus metrics on a separate listener.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux}
	go func() {
		log.Printf("[Main] metrics listening on :%s", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	go func() {
		log.Printf("[Main] API listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	tracker.TrackEvent("server_started", map[string]interface{}{
		"max_concurrent": cfg.MaxConcurrent,
		"llm_enabled":    cfg.LLMBaseURL != "",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down metrics server: %v", err)
	}
}
