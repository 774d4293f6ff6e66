package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lrstanley/go-ytdlp"

	"mediafetch/internal/media"
	"mediafetch/internal/models"
)

const progressInterval = 500 * time.Millisecond

// Event is one progress report from the extractor. Display strings may carry
// terminal escape codes and must be cleaned before showing them.
type Event struct {
	Status          string
	DownloadedBytes int64
	TotalBytes      int64
	Percent         string
	Speed           string
	ETA             string
	Filename        string
}

// ProgressFunc is called on every extractor tick. Returning an error aborts
// the download and the same error is returned from Download.
type ProgressFunc func(Event) error

// Options configures one download.
type Options struct {
	URL       string
	OutputDir string
	// Name is the file stem, the extension is chosen by the extractor.
	Name      string
	Selection media.Selection
	FFmpegDir string
}

// Download describes a finished download.
type Download struct {
	Path  string
	Title string
}

// Client drives yt-dlp through go-ytdlp.
type Client struct {
	logger    *slog.Logger
	ffmpegDir string
}

func New(logger *slog.Logger, ffmpegDir string) *Client {
	return &Client{logger: logger, ffmpegDir: ffmpegDir}
}

type rawInfo struct {
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
	Thumbnail  string   `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
	WebpageURL string `json:"webpage_url"`
	Uploader   string `json:"uploader"`
	Formats    []struct {
		Height *float64 `json:"height"`
	} `json:"formats"`
}

// Info fetches metadata without downloading.
func (c *Client) Info(ctx context.Context, url string) (*models.VideoInfo, error) {
	cmd := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		SkipDownload().
		DumpSingleJSON()

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata: %w", err)
	}
	return parseInfo([]byte(res.Stdout), url)
}

func parseInfo(data []byte, url string) (*models.VideoInfo, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}

	heights := make([]int, 0, len(raw.Formats))
	for _, f := range raw.Formats {
		if f.Height != nil {
			heights = append(heights, int(*f.Height))
		}
	}

	thumb := raw.Thumbnail
	if thumb == "" && len(raw.Thumbnails) > 0 {
		thumb = raw.Thumbnails[len(raw.Thumbnails)-1].URL
	}

	page := raw.WebpageURL
	if page == "" {
		page = url
	}

	return &models.VideoInfo{
		Title:      raw.Title,
		Duration:   raw.Duration,
		Thumbnail:  thumb,
		WebpageURL: page,
		Author:     raw.Uploader,
		Qualities:  media.ExtractQualities(heights),
	}, nil
}

// Download runs the extractor and blocks until it finishes or fn aborts it.
func (c *Client) Download(ctx context.Context, opts Options, fn ProgressFunc) (*Download, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	cmd := c.command(opts)

	var (
		mu       sync.Mutex
		abortErr error
		lastFile string
		title    string
	)
	cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		mu.Lock()
		defer mu.Unlock()
		if abortErr != nil {
			return
		}
		if update.Filename != "" {
			lastFile = update.Filename
		}
		if update.Info != nil && update.Info.Title != nil && title == "" {
			title = *update.Info.Title
		}
		if fn == nil {
			return
		}
		if err := fn(toEvent(update)); err != nil {
			abortErr = err
			cancel()
		}
	})

	res, runErr := cmd.Run(ctx, opts.URL)

	mu.Lock()
	aborted := abortErr
	mu.Unlock()
	if aborted != nil {
		return nil, aborted
	}
	if runErr != nil {
		return nil, fmt.Errorf("yt-dlp download: %w", runErr)
	}

	path := ""
	if res != nil {
		if info, err := res.GetExtractedInfo(); err == nil && len(info) > 0 {
			if info[0].Filename != nil {
				path = *info[0].Filename
			}
			if title == "" && info[0].Title != nil {
				title = *info[0].Title
			}
		}
	}
	path = resolveOutput(opts.OutputDir, opts.Name, path, lastFile)
	if path == "" {
		return nil, errors.New("extractor finished but no output file was found")
	}

	c.logger.Debug("extractor finished", "url", opts.URL, "path", path)
	return &Download{Path: path, Title: title}, nil
}

func (c *Client) command(opts Options) *ytdlp.Command {
	sel := opts.Selection
	cmd := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		ForceOverwrites().
		Format(sel.Format).
		Output(filepath.Join(opts.OutputDir, opts.Name+".%(ext)s"))

	ffmpegDir := opts.FFmpegDir
	if ffmpegDir == "" {
		ffmpegDir = c.ffmpegDir
	}
	if ffmpegDir != "" {
		cmd.FFmpegLocation(ffmpegDir)
	}
	if sel.ExtractAudio {
		cmd.ExtractAudio().AudioFormat(sel.AudioFormat).AudioQuality(sel.AudioQuality)
	}
	if sel.MergeFormat != "" {
		cmd.MergeOutputFormat(sel.MergeFormat)
	}
	if sel.Section != "" {
		cmd.DownloadSections(sel.Section)
		if sel.ForceKeyframes {
			cmd.ForceKeyframesAtCuts()
		}
	}
	return cmd
}

func toEvent(update ytdlp.ProgressUpdate) Event {
	ev := Event{
		Status:          string(update.Status),
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
		Filename:        update.Filename,
	}
	if update.TotalBytes > 0 {
		ev.Percent = fmt.Sprintf("%.1f%%", float64(update.DownloadedBytes)/float64(update.TotalBytes)*100)
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
			ev.Speed = humanize.Bytes(uint64(float64(update.DownloadedBytes)/elapsed)) + "/s"
		}
	}
	if eta := update.ETA(); eta > 0 {
		ev.ETA = eta.Round(time.Second).String()
	}
	return ev
}

// resolveOutput prefers the path reported by the extractor and falls back to
// globbing for the job's stem when post-processing renamed the file.
func resolveOutput(dir, name string, candidates ...string) string {
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	matches, _ := filepath.Glob(filepath.Join(dir, name+".*"))
	for _, m := range matches {
		ext := filepath.Ext(m)
		if ext == ".part" || ext == ".ytdl" {
			continue
		}
		return m
	}
	return ""
}
