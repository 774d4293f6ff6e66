package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediafetch/internal/config"
	"mediafetch/internal/mirror"
)

func TestOpenStoresRejectsMirrorBeforeCache(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dataDir := filepath.Join(t.TempDir(), "data")

	cfg := &config.Config{
		DataDir:      dataDir,
		ScanCacheTTL: time.Hour,
		Mirror:       mirror.Config{Backend: "s3"},
	}
	if _, _, err := openStores(logger, cfg); err == nil {
		t.Fatal("expected an error for an incomplete mirror config")
	}
	if _, err := os.Stat(filepath.Join(dataDir, "scan-cache")); !os.IsNotExist(err) {
		t.Fatalf("scan cache was opened before the mirror was validated: %v", err)
	}
}

func TestOpenStoresWithoutMirror(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{DataDir: t.TempDir(), ScanCacheTTL: time.Hour}

	mir, cache, err := openStores(logger, cfg)
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	if mir != nil {
		t.Errorf("mirror = %v, want nil", mir)
	}
	if cache == nil {
		t.Fatal("cache not opened")
	}
	if err := cache.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
