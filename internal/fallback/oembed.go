package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mediafetch/internal/media"
	"mediafetch/internal/models"
)

const DefaultEmbedEndpoint = "https://www.tiktok.com/oembed"

// EmbedClient reads title, thumbnail and author from the oEmbed endpoint.
type EmbedClient struct {
	http     *http.Client
	endpoint string
}

// NewEmbedClient uses a 15s client when httpClient is nil.
func NewEmbedClient(httpClient *http.Client, endpoint string) *EmbedClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if endpoint == "" {
		endpoint = DefaultEmbedEndpoint
	}
	return &EmbedClient{http: httpClient, endpoint: endpoint}
}

type embedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Lookup returns reduced metadata flagged with RequiresFallback.
func (c *EmbedClient) Lookup(ctx context.Context, rawURL string) (*models.VideoInfo, error) {
	endpoint := c.endpoint + "?url=" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build oembed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("oembed returned %d: %s", resp.StatusCode, string(body))
	}

	var data embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode oembed response: %w", err)
	}

	title := data.Title
	if title == "" {
		title = "TikTok video"
	}
	return &models.VideoInfo{
		Title:            title,
		Thumbnail:        data.ThumbnailURL,
		WebpageURL:       rawURL,
		Author:           data.AuthorName,
		Qualities:        media.ExtractQualities(nil),
		RequiresFallback: true,
	}, nil
}
