package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds every runtime setting of the engine.
type AppConfig struct {
	// HTTP listeners.
	Port        string
	MetricsPort string

	// Remote-sensing backend.
	BackendURL     string
	BackendTimeout time.Duration

	// Concurrent backend requests admitted at once.
	MaxConcurrent int

	// Google Maps geocoding.
	GeocodingAPIKey  string
	GeocodeCacheSize int

	// Boundary lookups.
	OverpassEndpoint string
	OverpassTimeout  time.Duration

	// Local LLM for prompt analysis and coordinate inference. Empty URL
	// disables the tier.
	LLMBaseURL string
	LLMModel   string

	// Fallback region size when no administrative boundary exists.
	BufferRadiusM float64

	// Imagery selection tuning.
	WidenBelowDays   int
	WidenToDays      int
	LatestWindowDays int

	// Product analytics. Empty key disables tracking.
	PostHogAPIKey   string
	PostHogEndpoint string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[Config] no .env file loaded: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.MetricsPort = getenvDefault("METRICS_PORT", "9090")

	cfg.BackendURL = getenvDefault("BACKEND_URL", "http://localhost:9100")
	timeout, err := time.ParseDuration(getenvDefault("BACKEND_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_TIMEOUT: %w", err)
	}
	cfg.BackendTimeout = timeout

	cfg.MaxConcurrent = getenvInt("MAX_CONCURRENT", 8)

	cfg.GeocodingAPIKey = os.Getenv("GEOCODING_API_KEY")
	cfg.GeocodeCacheSize = getenvInt("GEOCODE_CACHE_SIZE", 128)

	cfg.OverpassEndpoint = getenvDefault("OVERPASS_ENDPOINT", "https://overpass-api.de/api/interpreter")
	opTimeout, err := time.ParseDuration(getenvDefault("OVERPASS_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERPASS_TIMEOUT: %w", err)
	}
	cfg.OverpassTimeout = opTimeout

	cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	cfg.LLMModel = getenvDefault("LLM_MODEL", "llama3.2")

	cfg.BufferRadiusM = float64(getenvInt("BUFFER_RADIUS_M", 10000))

	cfg.WidenBelowDays = getenvInt("WIDEN_BELOW_DAYS", 180)
	cfg.WidenToDays = getenvInt("WIDEN_TO_DAYS", 240)
	cfg.LatestWindowDays = getenvInt("LATEST_WINDOW_DAYS", 90)

	cfg.PostHogAPIKey = os.Getenv("POSTHOG_API_KEY")
	cfg.PostHogEndpoint = getenvDefault("POSTHOG_ENDPOINT", "https://us.i.posthog.com")

	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT must be at least 1, got %d", cfg.MaxConcurrent)
	}
	if cfg.WidenToDays < cfg.WidenBelowDays {
		return nil, fmt.Errorf("WIDEN_TO_DAYS (%d) must not be smaller than WIDEN_BELOW_DAYS (%d)", cfg.WidenToDays, cfg.WidenBelowDays)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
