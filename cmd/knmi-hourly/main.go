package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	httpapi "github.com/i474232898/knmi-hourly/internal/api/http"
	"github.com/i474232898/knmi-hourly/internal/config"
	"github.com/i474232898/knmi-hourly/internal/geo"
	"github.com/i474232898/knmi-hourly/internal/knmi"
	"github.com/i474232898/knmi-hourly/internal/knmi/archive"
	"github.com/i474232898/knmi-hourly/internal/scheduler"
	"github.com/i474232898/knmi-hourly/internal/store"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	catalog, err := knmi.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("failed to load station catalog: %v", err)
	}

	// Shared HTTP client for every archive download.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: cfg.FetchConcurrency,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	datasets := store.NewDatasets(cfg.OutputDir)
	history := store.NewRunHistory(cfg.RunHistory)

	service := knmi.NewService(
		archive.NewClient(httpClient, cfg.FetchMaxRetries),
		archive.NewMerger(datasets),
		datasets,
		history,
		cfg.BaseURL,
		cfg.FetchConcurrency,
	)

	var geocoder geo.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geocoder = geo.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	} else {
		log.Info("no geocoder API key configured; postal code lookups are disabled")
	}
	finder := geo.NewFinder(catalog, datasets, geo.Linear{}, geocoder)

	// Scheduler that periodically rebuilds the datasets.
	sched := scheduler.New(service, cfg.Stations(), cfg.Periods, cfg.FetchInterval, cfg.FetchOnStartup)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "knmi-hourly",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
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

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "knmi-hourly",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Finder:   finder,
		Runs:     service,
		History:  history,
		Stations: cfg.Stations(),
		Periods:  cfg.Periods,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("fiber server stopped: %v", err)
		}
	}()
	log.WithField("port", cfg.Port).Info("listening")

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}
