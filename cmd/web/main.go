package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mediafetch/internal/config"
	"mediafetch/internal/extractor"
	"mediafetch/internal/fallback"
	"mediafetch/internal/ffmpeg"
	"mediafetch/internal/handlers"
	"mediafetch/internal/hls"
	"mediafetch/internal/jobs"
	"mediafetch/internal/metrics"
	"mediafetch/internal/mirror"
	"mediafetch/internal/scancache"
	"mediafetch/internal/whisper"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.OutputsDir, 0o755); err != nil {
		logger.Error("failed to create outputs dir", "dir", cfg.OutputsDir, "error", err)
		os.Exit(1)
	}

	transcoder := ffmpeg.NewService(logger, ffmpeg.NewLocator(cfg.FFmpegLocations))
	if !transcoder.Available() {
		logger.Warn("ffmpeg not found, clips and audio extraction are limited")
	}

	recorder := metrics.New()
	deps := jobs.Deps{
		Extractor:  extractor.New(logger, transcoder.Dir()),
		Secondary:  fallback.NewRunner(logger, cfg.SecondaryTool),
		Embed:      fallback.NewEmbedClient(nil, ""),
		Playlists:  hls.NewProber(nil),
		Transcoder: transcoder,
		Speech:     whisper.NewCLI(logger, cfg.WhisperBin, cfg.WhisperModel, transcoder),
		Metrics:    recorder,
	}

	mir, cache, err := openStores(logger, cfg)
	if err != nil {
		logger.Error("invalid mirror configuration", "error", err)
		os.Exit(1)
	}
	// Only assign when present so the interfaces stay nil otherwise.
	if mir != nil {
		logger.Info("artifact mirror enabled", "backend", mir.Name())
		deps.Mirror = mir
	}
	if cache != nil {
		defer cache.Close()
		deps.Cache = cache
	}

	manager := jobs.NewManager(logger, jobs.Options{
		OutputDir:       cfg.OutputsDir,
		MaxHeight:       cfg.MaxVideoHeight,
		DefaultLanguage: cfg.WhisperLanguage,
		PreferGPU:       cfg.WhisperGPU,
	}, deps)

	app := handlers.NewApp(logger, manager, recorder.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager.StartCleanupLoop(ctx, cfg.CleanupInterval, cfg.ArtifactTTL)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server started", "addr", cfg.Addr, "outputs_dir", cfg.OutputsDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	logger.Info("server stopped")
}

// openStores validates the mirror before opening pebble, so a config error
// never leaves the cache open. A cache that cannot be opened is disabled.
func openStores(logger *slog.Logger, cfg *config.Config) (*mirror.Mirror, *scancache.Store, error) {
	mir, err := mirror.New(logger, cfg.Mirror)
	if err != nil {
		return nil, nil, err
	}

	cache, err := scancache.Open(filepath.Join(cfg.DataDir, "scan-cache"), cfg.ScanCacheTTL)
	if err != nil {
		logger.Warn("scan cache disabled", "error", err)
		return mir, nil, nil
	}
	return mir, cache, nil
}
