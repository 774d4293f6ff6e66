package extractor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseInfo(t *testing.T) {
	data := []byte(`{
		"title": "Sample",
		"duration": 12.5,
		"thumbnails": [{"url": "https://img/small.jpg"}, {"url": "https://img/large.jpg"}],
		"uploader": "someone",
		"formats": [{"height": 360}, {"height": null}, {"height": 1080}, {"height": 1080}, {}]
	}`)

	info, err := parseInfo(data, "https://example.com/watch?v=1")
	if err != nil {
		t.Fatalf("parseInfo: %v", err)
	}
	if info.Title != "Sample" {
		t.Errorf("title = %q", info.Title)
	}
	if info.Duration == nil || *info.Duration != 12.5 {
		t.Errorf("duration = %v", info.Duration)
	}
	if info.Thumbnail != "https://img/large.jpg" {
		t.Errorf("thumbnail fallback = %q, want last thumbnail", info.Thumbnail)
	}
	if info.WebpageURL != "https://example.com/watch?v=1" {
		t.Errorf("webpage url fallback = %q", info.WebpageURL)
	}
	if len(info.Qualities) != 2 || info.Qualities[0].Height != 1080 || info.Qualities[1].Height != 360 {
		t.Errorf("qualities = %v", info.Qualities)
	}
}

func TestParseInfoWithoutDurationOrFormats(t *testing.T) {
	info, err := parseInfo([]byte(`{"title":"Live","thumbnail":"https://img/t.jpg","webpage_url":"https://example.com/live"}`), "ignored")
	if err != nil {
		t.Fatalf("parseInfo: %v", err)
	}
	if info.Duration != nil {
		t.Errorf("duration should be nil, got %v", *info.Duration)
	}
	if info.Thumbnail != "https://img/t.jpg" {
		t.Errorf("thumbnail = %q", info.Thumbnail)
	}
	if len(info.Qualities) != 1 || info.Qualities[0].Height != 720 {
		t.Errorf("expected synthesized 720 tier, got %v", info.Qualities)
	}
}

func TestParseInfoInvalidJSON(t *testing.T) {
	if _, err := parseInfo([]byte("not json"), "u"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestResolveOutput(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "abc123.mp3")
	if err := os.WriteFile(final, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "abc123.webm.part"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The extractor reports the pre-conversion name, which no longer exists.
	got := resolveOutput(dir, "abc123", filepath.Join(dir, "abc123.webm"))
	if got != final {
		t.Errorf("resolveOutput = %q, want %q", got, final)
	}

	if got := resolveOutput(dir, "abc123", final); got != final {
		t.Errorf("reported path should win, got %q", got)
	}

	if got := resolveOutput(dir, "missing"); got != "" {
		t.Errorf("expected empty result, got %q", got)
	}
}
