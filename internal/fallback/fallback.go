// Package fallback handles the short-form video host whose pages the primary
// extractor often fails on. It runs a secondary downloader as a subprocess
// and reads reduced metadata from the public oEmbed endpoint.
package fallback

import (
	"net/url"
	"regexp"
	"strings"
)

const host = "tiktok.com"

var videoIDPattern = regexp.MustCompile(`/video/(\d+)`)

// Applies reports whether rawURL belongs to the host served by the fallback.
func Applies(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return false
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h := strings.ToLower(u.Hostname())
	return h == host || strings.HasSuffix(h, "."+host)
}

// VideoID extracts the numeric id from a canonical video URL, or "".
func VideoID(rawURL string) string {
	m := videoIDPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
