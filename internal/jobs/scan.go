package jobs

import (
	"context"
	"fmt"
	"strings"

	"mediafetch/internal/fallback"
	"mediafetch/internal/hls"
	"mediafetch/internal/models"
)

// Scan returns the metadata and selectable qualities of a URL without
// downloading it.
func (m *Manager) Scan(ctx context.Context, url string) (*models.VideoInfo, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", models.ErrValidation)
	}

	if m.deps.Cache != nil {
		if info, ok := m.deps.Cache.Get(url); ok {
			m.logger.Debug("scan served from cache", "url", url)
			return info, nil
		}
	}

	info, err := m.lookup(ctx, url)
	if err != nil {
		if !fallback.Applies(url) || m.deps.Embed == nil {
			return nil, err
		}
		m.logger.Warn("metadata lookup failed, using embed info", "url", url, "error", err)
		embed, embedErr := m.deps.Embed.Lookup(ctx, url)
		if embedErr != nil {
			return nil, fmt.Errorf("%w: %v; embed: %v", models.ErrExtraction, err, embedErr)
		}
		// Embed results mark a degraded extractor and are not cached.
		return embed, nil
	}

	if m.deps.Cache != nil {
		if err := m.deps.Cache.Put(url, info); err != nil {
			m.logger.Warn("failed to cache scan result", "url", url, "error", err)
		}
	}
	return info, nil
}

func (m *Manager) lookup(ctx context.Context, url string) (*models.VideoInfo, error) {
	if hls.IsPlaylistURL(url) && m.deps.Playlists != nil {
		info, err := m.deps.Playlists.Probe(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%w: playlist: %v", models.ErrExtraction, err)
		}
		return info, nil
	}

	info, err := m.deps.Extractor.Info(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}
	return info, nil
}
