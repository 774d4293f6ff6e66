package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediafetch/internal/extractor"
	"mediafetch/internal/ffmpeg"
	"mediafetch/internal/models"
	"mediafetch/internal/whisper"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeExtractor struct {
	info     *models.VideoInfo
	infoErr  error
	download func(ctx context.Context, opts extractor.Options, fn extractor.ProgressFunc) (*extractor.Download, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeExtractor) Info(ctx context.Context, url string) (*models.VideoInfo, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.info, f.infoErr
}

func (f *fakeExtractor) Download(ctx context.Context, opts extractor.Options, fn extractor.ProgressFunc) (*extractor.Download, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.download(ctx, opts, fn)
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// writingDownload writes <name>.<ext> and reports one finished event.
func writingDownload(ext, title string) func(context.Context, extractor.Options, extractor.ProgressFunc) (*extractor.Download, error) {
	return func(ctx context.Context, opts extractor.Options, fn extractor.ProgressFunc) (*extractor.Download, error) {
		if err := fn(extractor.Event{Status: "downloading", Percent: "\x1b[0;94m 42.0%\x1b[0m"}); err != nil {
			return nil, err
		}
		path := filepath.Join(opts.OutputDir, opts.Name+"."+ext)
		if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
			return nil, err
		}
		if err := fn(extractor.Event{Status: "finished"}); err != nil {
			return nil, err
		}
		return &extractor.Download{Path: path, Title: title}, nil
	}
}

// endlessDownload reports progress until the callback asks it to stop.
func endlessDownload(ctx context.Context, opts extractor.Options, fn extractor.ProgressFunc) (*extractor.Download, error) {
	for {
		if err := fn(extractor.Event{Status: "downloading", Percent: "10%"}); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func failingDownload(msg string) func(context.Context, extractor.Options, extractor.ProgressFunc) (*extractor.Download, error) {
	return func(context.Context, extractor.Options, extractor.ProgressFunc) (*extractor.Download, error) {
		return nil, errors.New(msg)
	}
}

type fakeSecondary struct {
	err error

	mu    sync.Mutex
	calls int
}

func (f *fakeSecondary) Download(ctx context.Context, url, outputDir, name, ext string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(outputDir, name+"."+ext)
	return path, os.WriteFile(path, []byte("video"), 0o644)
}

func (f *fakeSecondary) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranscoder struct {
	available bool
	duration  float64
	probeErr  error
	transcode func(ctx context.Context, in, out string) error
}

func (f *fakeTranscoder) Available() bool { return f.available }

func (f *fakeTranscoder) Dir() string { return "" }

func (f *fakeTranscoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return f.duration, f.probeErr
}

func (f *fakeTranscoder) TranscodeH264(ctx context.Context, in, out string) error {
	return f.transcode(ctx, in, out)
}

func (f *fakeTranscoder) ExtractAudio(ctx context.Context, in, out string, bitrate int, cb ffmpeg.ProgressCallback) error {
	cb(50, "extracting audio")
	return os.WriteFile(out, []byte("audio"), 0o644)
}

type fakeModel struct {
	device whisper.Device
	text   string
}

func (m *fakeModel) Device() whisper.Device { return m.device }

func (m *fakeModel) Transcribe(ctx context.Context, path, language string) (string, error) {
	return m.text + " [" + language + "]", nil
}

type fakeSpeech struct {
	failGPU bool

	mu    sync.Mutex
	loads []whisper.Device
}

func (f *fakeSpeech) Load(ctx context.Context, device whisper.Device) (whisper.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, device)
	if device == whisper.DeviceGPU && f.failGPU {
		return nil, errors.New("no cuda device")
	}
	return &fakeModel{device: device, text: "hola mundo"}, nil
}

func (f *fakeSpeech) Loads() []whisper.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]whisper.Device(nil), f.loads...)
}

func newTestManager(t *testing.T, deps Deps) *Manager {
	t.Helper()
	if deps.Transcoder == nil {
		deps.Transcoder = &fakeTranscoder{}
	}
	return NewManager(discardLogger(), Options{
		OutputDir:       t.TempDir(),
		DefaultLanguage: "es",
		PreferGPU:       true,
		TickInterval:    2 * time.Millisecond,
	}, deps)
}

// waitForStatus polls until the job reaches one of the statuses.
func waitForStatus(t *testing.T, m *Manager, id string, statuses ...models.JobStatus) models.ProgressRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := m.Poll(id)
		for _, s := range statuses {
			if rec.Status == s {
				return rec
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s never reached %v, last %+v", id, statuses, m.Poll(id))
	return models.ProgressRecord{}
}
