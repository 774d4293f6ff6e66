package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mediafetch/internal/models"
)

const createdAtLayout = "2006-01-02 15:04"

// ListArtifacts lists the files in the output directory, newest first.
func (m *Manager) ListArtifacts() ([]models.Artifact, error) {
	entries, err := os.ReadDir(m.opts.OutputDir)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Artifact{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	artifacts := make([]models.Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, models.Artifact{
			Name:      entry.Name(),
			Size:      humanize.Bytes(uint64(info.Size())),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().Format(createdAtLayout),
			Type:      artifactType(entry.Name()),
		})
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt > artifacts[j].CreatedAt
	})
	return artifacts, nil
}

func artifactType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case videoExtensions[ext]:
		return "video"
	case audioExtensions[ext]:
		return "audio"
	default:
		return "file"
	}
}

// StartCleanupLoop removes artifacts older than ttl and prunes the scan cache
// every interval until ctx is done.
func (m *Manager) StartCleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanup(ttl)
			}
		}
	}()
}

func (m *Manager) cleanup(ttl time.Duration) {
	removed := 0
	if ttl > 0 {
		removed = m.removeOlderThan(time.Now().Add(-ttl))
	}

	pruned := 0
	if m.deps.Cache != nil {
		n, err := m.deps.Cache.Prune()
		if err != nil {
			m.logger.Warn("scan cache prune failed", "error", err)
		}
		pruned = n
	}

	if removed > 0 || pruned > 0 {
		m.logger.Info("cleanup completed", "removed_files", removed, "pruned_scans", pruned)
	}
}

func (m *Manager) removeOlderThan(cutoff time.Time) int {
	entries, err := os.ReadDir(m.opts.OutputDir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.opts.OutputDir, entry.Name())); err != nil {
			m.logger.Warn("failed to remove old artifact", "file", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed
}
