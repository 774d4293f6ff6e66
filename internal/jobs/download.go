package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mediafetch/internal/extractor"
	"mediafetch/internal/fallback"
	"mediafetch/internal/media"
	"mediafetch/internal/models"
)

// StartDownload validates req and starts a download job.
func (m *Manager) StartDownload(req models.DownloadRequest) (string, error) {
	if err := req.Normalize(); err != nil {
		return "", err
	}
	if req.HasClip() && media.ParseTime(req.EndTime) <= media.ParseTime(req.StartTime) {
		return "", fmt.Errorf("%w: end_time must be after start_time", models.ErrValidation)
	}
	return m.start(models.KindDownload, func(id string) {
		m.runDownload(id, req)
	})
}

func (m *Manager) runDownload(id string, req models.DownloadRequest) {
	ctx := context.Background()
	hasFFmpeg := m.deps.Transcoder != nil && m.deps.Transcoder.Available()
	sel := media.BuildSelection(req, hasFFmpeg, m.opts.MaxHeight)
	ffmpegDir := ""
	if hasFFmpeg {
		ffmpegDir = m.deps.Transcoder.Dir()
	}
	useFallback := fallback.Applies(req.URL) && m.deps.Secondary != nil

	var (
		path  string
		title string
		err   error
	)

	if req.PreferSecondary && useFallback {
		path, err = m.runSecondary(ctx, id, req, nil)
	} else {
		var dl *extractor.Download
		dl, err = m.deps.Extractor.Download(ctx, extractor.Options{
			URL:       req.URL,
			OutputDir: m.opts.OutputDir,
			Name:      id,
			Selection: sel,
			FFmpegDir: ffmpegDir,
		}, m.downloadProgress(id))

		switch {
		case err == nil:
			path, title = dl.Path, dl.Title
		case errors.Is(err, models.ErrCancelled):
			// handled by fail
		case useFallback:
			m.logger.Warn("primary extractor failed, trying secondary downloader", "job_id", id, "error", err)
			path, err = m.runSecondary(ctx, id, req, err)
		default:
			err = fmt.Errorf("%w: %v", models.ErrExtraction, err)
		}
	}

	if err != nil {
		m.fail(id, models.KindDownload, err)
		return
	}

	if _, statErr := os.Stat(path); statErr != nil {
		m.fail(id, models.KindDownload, fmt.Errorf("%w: output file missing: %v", models.ErrExtraction, statErr))
		return
	}

	m.complete(id, models.KindDownload, path, displayName(title, path))
}

// downloadProgress turns extractor events into progress records. Each event
// is a cancellation checkpoint. Merged formats download several streams in a
// row, so the percent never goes down and processing is kept once reached.
func (m *Manager) downloadProgress(id string) extractor.ProgressFunc {
	var (
		last       float64
		processing bool
	)
	return func(ev extractor.Event) error {
		if m.cancels.Consume(id) {
			return models.ErrCancelled
		}

		if ev.Status == "finished" {
			processing = true
			m.progress.Set(id, models.ProgressRecord{
				Status:  models.StatusProcessing,
				Percent: 100,
				Message: "processing file",
			})
			return nil
		}
		if processing {
			return nil
		}

		last = max(last, media.ParsePercent(ev.Percent))
		m.progress.Set(id, models.ProgressRecord{
			Status:  models.StatusDownloading,
			Percent: last,
			Speed:   media.StripANSI(ev.Speed),
			ETA:     media.StripANSI(ev.ETA),
		})
		return nil
	}
}

// runSecondary downloads through the fallback tool. primaryErr, when set, is
// folded into the error so both causes are visible.
func (m *Manager) runSecondary(ctx context.Context, id string, req models.DownloadRequest, primaryErr error) (string, error) {
	if m.cancels.Consume(id) {
		return "", models.ErrCancelled
	}
	m.update(id, models.StatusDownloading, 0, "retrying with secondary downloader")

	path, err := m.deps.Secondary.Download(ctx, req.URL, m.opts.OutputDir, id, "mp4")
	if err != nil {
		m.deps.Metrics.Fallback("error")
		if primaryErr != nil {
			return "", fmt.Errorf("%w: primary: %v; secondary: %v", models.ErrExtraction, primaryErr, err)
		}
		return "", fmt.Errorf("%w: secondary: %v", models.ErrExtraction, err)
	}
	m.deps.Metrics.Fallback("success")

	if req.Format != models.FormatAudio || m.deps.Transcoder == nil || !m.deps.Transcoder.Available() {
		return path, nil
	}

	if m.cancels.Consume(id) {
		_ = os.Remove(path)
		return "", models.ErrCancelled
	}

	audio := filepath.Join(m.opts.OutputDir, id+".mp3")
	m.update(id, models.StatusProcessing, 0, "extracting audio")
	err = m.deps.Transcoder.ExtractAudio(ctx, path, audio, req.AudioBitrate, func(percent int, message string) {
		m.update(id, models.StatusProcessing, float64(percent), message)
	})
	if err != nil {
		return "", err
	}
	_ = os.Remove(path)
	return audio, nil
}

func displayName(title, path string) string {
	if title == "" {
		return filepath.Base(path)
	}
	return media.SanitizeFilename(title) + filepath.Ext(path)
}
