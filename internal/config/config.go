package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/turnstile-stats/internal/turnstile"
)

// Cache backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type AppConfig struct {
	Port string

	// BaseURL is the source file template; {date} becomes YYMMDD.
	BaseURL         string
	StationTableURL string

	// Persistent cache.
	CacheBackend string
	CacheDir     string
	SQLitePath   string
	HotCacheSize int // decoded chunks kept in memory (0 = off)

	// Outbound fetching.
	FetchConcurrency int
	HTTPTimeout      time.Duration
	FetchMaxRetries  int

	// Weekly cache warm-up.
	WarmEnabled bool
	WarmAt      string // HH:MM, UTC, on Saturdays
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.BaseURL = getenvDefault("TURNSTILE_BASE_URL", "http://web.mta.info/developers/data/nyct/turnstile/turnstile_"+turnstile.DatePlaceholder+".txt")
	if !strings.Contains(cfg.BaseURL, turnstile.DatePlaceholder) {
		return nil, fmt.Errorf("invalid TURNSTILE_BASE_URL: missing %s placeholder", turnstile.DatePlaceholder)
	}
	cfg.StationTableURL = getenvDefault("STATION_TABLE_URL", "http://web.mta.info/developers/resources/nyct/turnstile/Remote-Booth-Station.xls")

	cfg.CacheBackend = strings.ToLower(getenvDefault("CACHE_BACKEND", BackendFile))
	switch cfg.CacheBackend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want file, sqlite or memory", cfg.CacheBackend)
	}
	cfg.CacheDir = getenvDefault("CACHE_DIR", "static/data")
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "static/data/turnstile.db")
	cfg.HotCacheSize = getenvInt("HOT_CACHE_SIZE", 8)

	// Sequential by default; each file fetch blocks the next.
	cfg.FetchConcurrency = getenvInt("FETCH_CONCURRENCY", 1)
	cfg.FetchMaxRetries = getenvInt("FETCH_MAX_RETRIES", 0)

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.WarmEnabled = getenvBool("WARM_ENABLED", false)
	cfg.WarmAt = getenvDefault("WARM_AT", "12:00")
	if _, err := time.Parse("15:04", cfg.WarmAt); err != nil {
		return nil, fmt.Errorf("invalid WARM_AT: %w", err)
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

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
