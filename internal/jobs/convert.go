package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediafetch/internal/models"
)

var (
	videoExtensions = map[string]bool{".mp4": true, ".mkv": true, ".webm": true, ".avi": true, ".mov": true}
	audioExtensions = map[string]bool{".mp3": true, ".m4a": true, ".wav": true, ".ogg": true, ".flac": true, ".opus": true}
)

const convertedSuffix = "_h264.mp4"

// StartConversion re-encodes a file from the output directory to H.264/AAC.
func (m *Manager) StartConversion(filename string) (string, error) {
	input, err := m.resolveInput(filename, videoExtensions)
	if err != nil {
		return "", err
	}
	return m.start(models.KindConversion, func(id string) {
		m.runConversion(id, input)
	})
}

// resolveInput maps a client supplied name to a file in the output directory.
func (m *Manager) resolveInput(filename string, allowed map[string]bool) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: filename is required", models.ErrValidation)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowed[ext] {
		return "", fmt.Errorf("%w: unsupported file type %q", models.ErrValidation, ext)
	}
	path := filepath.Join(m.opts.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: file %s", models.ErrNotFound, name)
	}
	return path, nil
}

func (m *Manager) runConversion(id, input string) {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	outName := stem + convertedSuffix
	output := filepath.Join(filepath.Dir(input), outName)

	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.fail(id, models.KindConversion, fmt.Errorf("%w: remove stale output: %v", models.ErrTranscode, err))
		return
	}

	m.update(id, models.StatusConverting, estimateFloor, "analyzing file")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	duration, err := m.deps.Transcoder.ProbeDuration(ctx, input)
	if err != nil || duration <= 0 {
		m.logger.Warn("duration probe failed, assuming default", "job_id", id, "error", err)
		duration = assumedDurationSeconds
	}
	est := newEstimator(duration)

	done := make(chan error, 1)
	started := time.Now()
	go func() {
		done <- m.deps.Transcoder.TranscodeH264(ctx, input, output)
	}()

	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				if !errors.Is(err, models.ErrTranscode) {
					err = fmt.Errorf("%w: %v", models.ErrTranscode, err)
				}
				m.fail(id, models.KindConversion, err)
				return
			}
			if _, statErr := os.Stat(output); statErr != nil {
				m.fail(id, models.KindConversion, fmt.Errorf("%w: output file missing", models.ErrTranscode))
				return
			}
			m.complete(id, models.KindConversion, output, outName)
			return

		case <-ticker.C:
			if m.cancels.Consume(id) {
				cancel()
				<-done
				_ = os.Remove(output)
				m.cancelled(id, models.KindConversion)
				return
			}
			m.update(id, models.StatusConverting, est.at(time.Since(started)), "converting")
		}
	}
}
