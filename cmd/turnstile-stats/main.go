package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/turnstile-stats/internal/api/http"
	"github.com/i474232898/turnstile-stats/internal/config"
	"github.com/i474232898/turnstile-stats/internal/scheduler"
	"github.com/i474232898/turnstile-stats/internal/source"
	"github.com/i474232898/turnstile-stats/internal/store"
	"github.com/i474232898/turnstile-stats/internal/turnstile"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for the turnstile data host.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	client := source.NewClient(httpClient, cfg.FetchMaxRetries)

	// Persistent cache of parsed files and the station table.
	blobs, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open cache store: %v", err)
	}
	defer closeStore()

	locator := turnstile.NewLocator(cfg.BaseURL, nil)
	directory := turnstile.NewDirectoryLoader(blobs, source.NewStationTable(client, cfg.StationTableURL))
	cache := turnstile.NewFileCache(blobs, cfg.HotCacheSize)
	retriever := turnstile.NewRetriever(locator, client, cache, directory, cfg.FetchConcurrency)

	// Core service answering station traffic queries.
	service := turnstile.NewService(locator, retriever, nil)

	if cfg.WarmEnabled {
		sched := scheduler.New(service, cfg.WarmAt, 0)
		if err := sched.Start(); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "turnstile-stats",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Cold queries download and parse several weekly files.
		WriteTimeout: cfg.HTTPTimeout + time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "turnstile-stats",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		log.Printf("INFO: listening on :%s (cache backend %s)", cfg.Port, cfg.CacheBackend)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

func openStore(cfg *config.AppConfig) (turnstile.Store, func(), error) {
	switch cfg.CacheBackend {
	case config.BackendSQLite:
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.BackendMemory:
		return store.NewMemoryStore(), func() {}, nil
	default:
		s, err := store.NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}
