// CLAUDE:SUMMARY Entry point for the ocrpipe service — HTTP API mode and one-shot page mode.
package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ocrpipe"
	"github.com/hazyhaar/ocrpipe/inference"
	"github.com/hazyhaar/ocrpipe/server"
)

// fileConfig is the YAML layout for OCRPIPE_CONFIG files. Every field has
// an env/default fallback, so the file is optional.
type fileConfig struct {
	Addr     string                 `yaml:"addr"`
	Client   inference.ClientConfig `yaml:"client"`
	Pipeline ocrpipe.Config         `yaml:"pipeline"`
}

func main() {
	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg := fileConfig{Pipeline: ocrpipe.DefaultConfig()}
	if path := env("OCRPIPE_CONFIG", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("read config", "path", path, "error", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			slog.Error("parse config", "path", path, "error", err)
			os.Exit(1)
		}
	}
	if cfg.Addr == "" {
		cfg.Addr = ":" + env("PORT", "8080")
	}
	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = env("INFERENCE_URL", "http://localhost:8000/v1")
	}
	if cfg.Client.Model == "" {
		cfg.Client.Model = env("INFERENCE_MODEL", "")
	}
	if cfg.Client.APIKey == "" {
		cfg.Client.APIKey = env("INFERENCE_API_KEY", "")
	}
	cfg.Client.Logger = logger
	cfg.Pipeline.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gen := inference.NewClient(cfg.Client)
	pipeline, err := ocrpipe.New(gen, cfg.Pipeline)
	if err != nil {
		slog.Error("pipeline", "error", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		if err := runOnce(ctx, pipeline, os.Args[1]); err != nil {
			slog.Error("run", "path", os.Args[1], "error", err)
			os.Exit(1)
		}
		return
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(pipeline, server.Config{Addr: cfg.Addr, Logger: logger}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// runOnce OCRs a single page image and prints its markdown to stdout.
func runOnce(ctx context.Context, pipeline *ocrpipe.Pipeline, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	records := pipeline.Process(ctx, []inference.GenerationRequest{
		{Image: img, PromptType: inference.PromptOCRLayout},
	})
	rec := records[0]
	if rec.Failed {
		return fmt.Errorf("generation failed after retries")
	}
	fmt.Println(rec.Markdown)
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
