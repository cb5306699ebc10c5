// Package main provides the entry point for the hygrolog server
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/hygrolog/hygrolog/internal/api"
	"github.com/hygrolog/hygrolog/internal/cache"
	"github.com/hygrolog/hygrolog/internal/config"
	"github.com/hygrolog/hygrolog/internal/storage"
	"github.com/hygrolog/hygrolog/internal/vision"
	"github.com/hygrolog/hygrolog/pkg/logging"
	"github.com/hygrolog/hygrolog/pkg/ocr"
	"github.com/hygrolog/hygrolog/pkg/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := logging.SetupLogger(&cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	// OCR pipeline: local Tesseract engine, optionally backed by a
	// vision model for readings the local pass cannot validate.
	pipelineCfg := cfg.PipelineConfig()
	recognizer := ocr.NewTesseractRecognizer(cfg.OCR.Language, pipelineCfg)
	defer recognizer.Close()

	var resolver ocr.VisionResolver
	if cfg.Vision.Enabled {
		model, err := vision.NewModel(cfg.Vision)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build vision model client")
		}
		resolver = ocr.NewLLMResolver(model, pipelineCfg.SecondaryTimeout).
			WithRateLimit(ratelimit.NewLimiter(), cfg.Vision.Provider)
		log.Info().Str("provider", cfg.Vision.Provider).Str("model", cfg.Vision.Model).
			Msg("Secondary recognizer enabled")
	}

	pipeline := ocr.NewPipeline(pipelineCfg, recognizer, resolver)
	memoized, err := cache.New(pipeline, cfg.OCR.CacheSize)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extraction cache")
	}

	// Storage: Postgres when a DSN is configured, in-memory otherwise.
	metrics := storage.NewSimpleMetricsCollector()
	var records storage.RecordStore
	if cfg.Database.URL != "" {
		pg, err := storage.NewPostgresRecordStore(cfg.Database.URL, metrics)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect record store")
		}
		defer pg.Close()
		records = pg
	} else {
		log.Warn().Msg("No database configured, records are kept in memory only")
		records = storage.NewMemoryRecordStore()
	}

	creds := storage.NewStaticCredentialProvider(cfg.Upload.Token)
	photos, err := storage.NewDiskObjectStore(cfg.Server.MediaDir, cfg.Server.MediaBaseURL, creds)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize object store")
	}

	handlers := api.NewHandlers(memoized, records, photos)

	app := fiber.New(fiber.Config{
		AppName:      "hygrolog API",
		BodyLimit:    20 * 1024 * 1024, // phone photos
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	app.Get("/health", handlers.Health)
	app.Static(cfg.Server.MediaBaseURL, cfg.Server.MediaDir)

	v1 := app.Group("/api/v1")
	v1.Post("/extract", handlers.ExtractReading)
	v1.Post("/records", handlers.SaveRecord)
	v1.Get("/records", handlers.ListRecords)
	v1.Put("/records", handlers.ReplaceRecords)
	v1.Get("/records/export", handlers.ExportCSV)

	go func() {
		if err := app.Listen(cfg.Server.Addr); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()
	log.Info().Str("addr", cfg.Server.Addr).Msg("hygrolog listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
