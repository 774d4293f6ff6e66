package hls

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/grafov/m3u8"

	"mediafetch/internal/media"
	"mediafetch/internal/models"
)

// IsPlaylistURL reports whether rawURL points straight at an .m3u8 file.
func IsPlaylistURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), ".m3u8")
}

// Prober reads variant resolutions out of HLS master playlists.
type Prober struct {
	http *http.Client
}

func NewProber(httpClient *http.Client) *Prober {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Prober{http: httpClient}
}

// Probe fetches the playlist and builds scan metadata for it. A media
// playlist has no variants and yields the default tier.
func (p *Prober) Probe(ctx context.Context, rawURL string) (*models.VideoInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build playlist request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch playlist: status %d", resp.StatusCode)
	}

	pl, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}

	info := &models.VideoInfo{
		Title:      titleFromURL(rawURL),
		WebpageURL: rawURL,
	}

	switch listType {
	case m3u8.MASTER:
		master := pl.(*m3u8.MasterPlaylist)
		heights := make([]int, 0, len(master.Variants))
		for _, v := range master.Variants {
			if v == nil {
				continue
			}
			if h := heightOf(v.Resolution); h > 0 {
				heights = append(heights, h)
			}
		}
		info.Qualities = media.ExtractQualities(heights)
	case m3u8.MEDIA:
		mp := pl.(*m3u8.MediaPlaylist)
		var total float64
		for _, seg := range mp.Segments {
			if seg != nil {
				total += seg.Duration
			}
		}
		if mp.Closed && total > 0 {
			info.Duration = &total
		}
		info.Qualities = defaultTiers()
	default:
		return nil, fmt.Errorf("unknown playlist type")
	}

	return info, nil
}

func defaultTiers() []models.Quality {
	return media.ExtractQualities(nil)
}

// heightOf parses "1920x1080".
func heightOf(resolution string) int {
	_, h, ok := strings.Cut(strings.ToLower(resolution), "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0
	}
	return n
}

func titleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	base := path.Base(u.Path)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return u.Host
	}
	return base
}
