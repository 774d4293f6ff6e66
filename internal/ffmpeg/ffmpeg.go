package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"mediafetch/internal/media"
	"mediafetch/internal/models"
)

const maxErrorText = 500

// ProgressCallback receives updates emitted by ffmpeg execution.
type ProgressCallback func(percent int, message string)

// ErrUnavailable is returned when no ffmpeg binary could be located.
var ErrUnavailable = errors.New("ffmpeg not available")

// Service wraps ffmpeg/ffprobe operations.
type Service struct {
	logger  *slog.Logger
	locator *Locator
}

func NewService(logger *slog.Logger, locator *Locator) *Service {
	return &Service{logger: logger, locator: locator}
}

// Available reports whether ffmpeg was found.
func (s *Service) Available() bool {
	_, ok := s.locator.FFmpeg()
	return ok
}

// Dir is passed to the extractor so it can merge and re-encode streams.
func (s *Service) Dir() string {
	return s.locator.Dir()
}

// ProbeDuration returns the container duration in seconds.
func (s *Service) ProbeDuration(ctx context.Context, inputPath string) (float64, error) {
	cmd := exec.CommandContext(ctx,
		s.locator.FFprobe(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w", err)
	}
	val := strings.TrimSpace(string(out))
	if val == "" || val == "N/A" {
		return 0, errors.New("empty duration response")
	}
	dur, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration from ffprobe: %w", err)
	}
	return dur, nil
}

// TranscodeH264 re-encodes inputPath to an H.264/AAC mp4 that plays on
// strict decoders. It blocks until ffmpeg exits.
func (s *Service) TranscodeH264(ctx context.Context, inputPath, outputPath string) error {
	bin, ok := s.locator.FFmpeg()
	if !ok {
		return fmt.Errorf("%w: %w", models.ErrTranscode, ErrUnavailable)
	}

	args := []string{
		"-y", "-i", inputPath,
		"-c:v", "libx264", "-preset", "medium", "-crf", "23",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		"-nostats", "-loglevel", "error",
		outputPath,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if text := strings.TrimSpace(stderr.String()); text != "" {
			return fmt.Errorf("%w: %s", models.ErrTranscode, media.TruncateTail(text, maxErrorText))
		}
		return fmt.Errorf("%w: %w", models.ErrTranscode, err)
	}
	return nil
}

// ExtractAudio re-encodes the audio track of inputPath to mp3 and reports
// progress parsed from ffmpeg's -progress output.
func (s *Service) ExtractAudio(ctx context.Context, inputPath, outputPath string, bitrateKbps int, cb ProgressCallback) error {
	bin, ok := s.locator.FFmpeg()
	if !ok {
		return fmt.Errorf("%w: %w", models.ErrTranscode, ErrUnavailable)
	}
	if bitrateKbps <= 0 {
		bitrateKbps = media.DefaultAudioBitrate
	}

	duration, err := s.ProbeDuration(ctx, inputPath)
	if err != nil {
		s.logger.Warn("could not probe duration, progress will be coarse", "error", err)
	}

	args := []string{
		"-y", "-i", inputPath, "-vn",
		"-codec:a", "libmp3lame", "-b:a", fmt.Sprintf("%dk", bitrateKbps),
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	errDone := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(stderr)
		var last string
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				last = line
			}
		}
		errDone <- last
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "out_time_ms=") && duration > 0:
			outMs, convErr := strconv.ParseFloat(strings.TrimPrefix(line, "out_time_ms="), 64)
			if convErr != nil {
				continue
			}
			ratio := (outMs / 1_000_000.0) / duration
			ratio = max(0, min(ratio, 1))
			if cb != nil {
				cb(int(ratio*100), "extracting audio")
			}
		case line == "progress=end":
			if cb != nil {
				cb(100, "finalizing file")
			}
		}
	}
	scanErr := scanner.Err()
	lastErrLine := <-errDone

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lastErrLine != "" {
			return fmt.Errorf("%w: %s", models.ErrTranscode, media.TruncateTail(lastErrLine, maxErrorText))
		}
		return fmt.Errorf("%w: %w", models.ErrTranscode, err)
	}
	if scanErr != nil {
		return fmt.Errorf("failed while reading ffmpeg output: %w", scanErr)
	}
	return nil
}

// ToWAV decodes any input to 16 kHz mono PCM, the format speech engines expect.
func (s *Service) ToWAV(ctx context.Context, inputPath, outputPath string) error {
	bin, ok := s.locator.FFmpeg()
	if !ok {
		return ErrUnavailable
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-y", "-i", inputPath,
		"-vn", "-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le",
		"-nostats", "-loglevel", "error",
		outputPath,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if text := strings.TrimSpace(stderr.String()); text != "" {
			return fmt.Errorf("ffmpeg decode failed: %s", media.TruncateTail(text, maxErrorText))
		}
		return fmt.Errorf("ffmpeg decode failed: %w", err)
	}
	return nil
}
