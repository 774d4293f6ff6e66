package fallback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mediafetch/internal/media"
)

const (
	DefaultTimeout = 120 * time.Second
	maxOutputText  = 500
)

// Runner invokes the secondary downloader (gallery-dl compatible CLI).
type Runner struct {
	logger  *slog.Logger
	bin     string
	timeout time.Duration
}

func NewRunner(logger *slog.Logger, bin string) *Runner {
	return &Runner{logger: logger, bin: bin, timeout: DefaultTimeout}
}

// Download fetches rawURL into a scratch dir under outputDir and moves the
// result to <name>.<ext>. The subprocess is killed after the runner timeout.
func (r *Runner) Download(ctx context.Context, rawURL, outputDir, name, ext string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	scratch, err := os.MkdirTemp(outputDir, name+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, r.bin, "-D", scratch, rawURL)
	cmd.Stdout = &out
	cmd.Stderr = &out

	started := time.Now()
	err = cmd.Run()
	r.logger.Debug("secondary downloader finished",
		"url", rawURL,
		"elapsed", time.Since(started).Round(time.Millisecond),
		"output", media.TruncateTail(strings.TrimSpace(out.String()), maxOutputText),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s timed out after %s", filepath.Base(r.bin), r.timeout)
		}
		if text := strings.TrimSpace(out.String()); text != "" {
			return "", fmt.Errorf("%s failed: %s", filepath.Base(r.bin), media.TruncateTail(text, maxOutputText))
		}
		return "", fmt.Errorf("%s failed: %w", filepath.Base(r.bin), err)
	}

	found, err := LocateArtifact(scratch, VideoID(rawURL), ext)
	if err != nil {
		return "", err
	}

	target := filepath.Join(outputDir, name+"."+ext)
	if err := os.Rename(found, target); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", filepath.Base(found), err)
	}
	return target, nil
}

// LocateArtifact finds the file the secondary downloader produced. A file
// whose name contains videoID wins, otherwise the newest file with ext.
func LocateArtifact(dir, videoID, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read output dir: %w", err)
	}

	suffix := "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	var (
		newest     string
		newestTime time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			continue
		}
		if videoID != "" && strings.Contains(e.Name(), videoID) {
			return filepath.Join(dir, e.Name()), nil
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(dir, e.Name())
			newestTime = info.ModTime()
		}
	}

	if newest == "" {
		return "", fmt.Errorf("no %s file produced in %s", suffix, dir)
	}
	return newest, nil
}
