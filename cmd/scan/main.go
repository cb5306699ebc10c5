// Package main provides a one-shot CLI: run the OCR pipeline over image
// files and print each result as JSON, for tuning against a folder of
// field photos without starting the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hygrolog/hygrolog/internal/config"
	"github.com/hygrolog/hygrolog/internal/vision"
	"github.com/hygrolog/hygrolog/pkg/logging"
	"github.com/hygrolog/hygrolog/pkg/ocr"
	"github.com/hygrolog/hygrolog/pkg/ratelimit"
	"github.com/hygrolog/hygrolog/pkg/reading"
)

func main() {
	language := flag.String("lang", "eng", "tesseract language code")
	useVision := flag.Bool("vision", false, "enable the vision-model fallback (needs provider env vars)")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] image_files...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := logging.SetupLogger(&logging.LogConfig{Level: *logLevel, Format: "pretty", Console: true}); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	pipelineCfg := ocr.DefaultConfig()
	recognizer := ocr.NewTesseractRecognizer(*language, pipelineCfg)
	defer recognizer.Close()

	var resolver ocr.VisionResolver
	if *useVision {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		model, err := vision.NewModel(cfg.Vision)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build vision model client")
		}
		resolver = ocr.NewLLMResolver(model, pipelineCfg.SecondaryTimeout).
			WithRateLimit(ratelimit.NewLimiter(), cfg.Vision.Provider)
	}

	pipeline := ocr.NewPipeline(pipelineCfg, recognizer, resolver)

	exitCode := 0
	enc := json.NewEncoder(os.Stdout)
	for _, path := range flag.Args() {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exitCode = 1
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		result, err := pipeline.Extract(ctx, raw)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			exitCode = 1
			continue
		}

		_ = enc.Encode(struct {
			File string `json:"file"`
			reading.ExtractionResult
		}{File: path, ExtractionResult: result})
	}
	os.Exit(exitCode)
}
