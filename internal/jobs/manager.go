package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediafetch/internal/extractor"
	"mediafetch/internal/ffmpeg"
	"mediafetch/internal/media"
	"mediafetch/internal/metrics"
	"mediafetch/internal/models"
	"mediafetch/internal/whisper"
)

const (
	maxErrorText  = 500
	mirrorTimeout = 10 * time.Minute
	defaultTick   = 500 * time.Millisecond
	idLength      = 8
	maxIDAttempts = 16
)

// Extractor is the primary media extractor.
type Extractor interface {
	Info(ctx context.Context, url string) (*models.VideoInfo, error)
	Download(ctx context.Context, opts extractor.Options, fn extractor.ProgressFunc) (*extractor.Download, error)
}

// SecondaryDownloader fetches media for the fallback host and renames the
// result to <name>.<ext> inside outputDir.
type SecondaryDownloader interface {
	Download(ctx context.Context, url, outputDir, name, ext string) (string, error)
}

// MetadataFallback returns reduced metadata when the extractor cannot.
type MetadataFallback interface {
	Lookup(ctx context.Context, url string) (*models.VideoInfo, error)
}

// PlaylistProber reads qualities from HLS playlists.
type PlaylistProber interface {
	Probe(ctx context.Context, url string) (*models.VideoInfo, error)
}

// Transcoder wraps the ffmpeg operations jobs rely on.
type Transcoder interface {
	Available() bool
	Dir() string
	ProbeDuration(ctx context.Context, path string) (float64, error)
	TranscodeH264(ctx context.Context, inputPath, outputPath string) error
	ExtractAudio(ctx context.Context, inputPath, outputPath string, bitrateKbps int, cb ffmpeg.ProgressCallback) error
}

// SpeechEngine loads a speech-to-text model for a device.
type SpeechEngine interface {
	Load(ctx context.Context, device whisper.Device) (whisper.Model, error)
}

// ScanCache stores scan results between requests.
type ScanCache interface {
	Get(url string) (*models.VideoInfo, bool)
	Put(url string, info *models.VideoInfo) error
	Prune() (int, error)
}

// Mirror copies finished artifacts elsewhere.
type Mirror interface {
	Name() string
	Upload(ctx context.Context, path string) error
}

// Options are the static settings of a Manager.
type Options struct {
	OutputDir string
	// MaxHeight is the default video height ceiling.
	MaxHeight       int
	DefaultLanguage string
	PreferGPU       bool
	// TickInterval is how often conversions report progress and check for
	// cancellation.
	TickInterval time.Duration
}

// Deps are the collaborators of a Manager. Only Extractor and Transcoder are
// required.
type Deps struct {
	Extractor  Extractor
	Secondary  SecondaryDownloader
	Embed      MetadataFallback
	Playlists  PlaylistProber
	Transcoder Transcoder
	Speech     SpeechEngine
	Cache      ScanCache
	Mirror     Mirror
	Metrics    *metrics.Recorder
}

// Manager starts, tracks and cancels download, conversion and transcription
// jobs. Each job runs on its own goroutine and reports through the progress
// registry.
type Manager struct {
	logger *slog.Logger
	opts   Options
	deps   Deps

	progress *ProgressRegistry
	cancels  *CancelSet
	results  *ResultStore
	speech   *speechLoader

	wg sync.WaitGroup
}

func NewManager(logger *slog.Logger, opts Options, deps Deps) *Manager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTick
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = 2160
	}
	m := &Manager{
		logger:   logger,
		opts:     opts,
		deps:     deps,
		progress: NewProgressRegistry(),
		cancels:  NewCancelSet(),
		results:  NewResultStore(),
	}
	if deps.Speech != nil {
		m.speech = newSpeechLoader(logger, deps.Speech, opts.PreferGPU)
	}
	return m
}

// Wait blocks until every running job and mirror upload has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Poll returns the current record, or an "unknown" record for ids never
// submitted.
func (m *Manager) Poll(id string) models.ProgressRecord {
	return m.progress.Snapshot(id)
}

// Cancel asks a running job to stop. It returns ErrNotFound for unknown ids
// and false when the job is finished, cannot be interrupted, or already has
// a pending request.
func (m *Manager) Cancel(id string) (bool, error) {
	rec, ok := m.progress.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: job %s", models.ErrNotFound, id)
	}
	if rec.Status.IsTerminal() || rec.Kind == models.KindTranscription {
		return false, nil
	}
	if !m.cancels.Request(id) {
		return false, nil
	}
	// The job may have finished between the read and the request.
	if cur, _ := m.progress.Get(id); cur.Status.IsTerminal() {
		m.cancels.Consume(id)
		return false, nil
	}
	m.logger.Info("cancellation requested", "job_id", id)
	return true, nil
}

// FetchResult hands out the artifact of a completed job once.
func (m *Manager) FetchResult(id string) (models.Result, error) {
	res, ok := m.results.Take(id)
	if !ok {
		return models.Result{}, fmt.Errorf("%w: no result for job %s", models.ErrNotFound, id)
	}
	if _, err := os.Stat(res.Path); err != nil {
		return models.Result{}, fmt.Errorf("%w: artifact %s is gone", models.ErrNotFound, res.Name)
	}
	return res, nil
}

// start allocates an id and launches run on its own goroutine.
func (m *Manager) start(kind models.JobKind, run func(id string)) (string, error) {
	id, err := m.allocate(kind)
	if err != nil {
		return "", err
	}
	m.deps.Metrics.JobStarted(string(kind))
	m.logger.Info("job started", "job_id", id, "kind", kind)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		run(id)
	}()
	return id, nil
}

func (m *Manager) allocate(kind models.JobKind) (string, error) {
	for range maxIDAttempts {
		id := uuid.NewString()[:idLength]
		if m.progress.Create(id, kind) {
			return id, nil
		}
	}
	return "", errors.New("could not allocate a job id")
}

// update writes a non-terminal record.
func (m *Manager) update(id string, status models.JobStatus, percent float64, message string) {
	m.progress.Set(id, models.ProgressRecord{Status: status, Percent: percent, Message: message})
}

// complete stores the result and marks the job done. The result is stored
// first so a poller that sees "completed" can always fetch it.
func (m *Manager) complete(id string, kind models.JobKind, path, name string) {
	// Last checkpoint before the terminal write.
	if m.cancels.Consume(id) {
		_ = os.Remove(path)
		m.cancelled(id, kind)
		return
	}

	m.results.Put(id, models.Result{Path: path, Name: name})
	if !m.progress.Set(id, models.ProgressRecord{
		Status:   models.StatusCompleted,
		Percent:  100,
		Message:  "done",
		Filename: name,
	}) {
		m.results.Take(id)
		return
	}
	m.deps.Metrics.JobFinished(string(kind), string(models.StatusCompleted))
	m.logger.Info("job completed", "job_id", id, "kind", kind, "output", path)
	m.mirror(id, path)
}

func (m *Manager) fail(id string, kind models.JobKind, err error) {
	if errors.Is(err, models.ErrCancelled) {
		m.cancelled(id, kind)
		return
	}
	m.cancels.Consume(id)

	text := media.TruncateTail(err.Error(), maxErrorText)
	if m.progress.Set(id, models.ProgressRecord{Status: models.StatusFailed, Error: text}) {
		m.deps.Metrics.JobFinished(string(kind), string(models.StatusFailed))
	}
	m.logger.Error("job failed", "job_id", id, "kind", kind, "error", err)
}

func (m *Manager) cancelled(id string, kind models.JobKind) {
	m.cancels.Consume(id)
	if m.progress.Set(id, models.ProgressRecord{Status: models.StatusCancelled, Message: "cancelled by user"}) {
		m.deps.Metrics.JobFinished(string(kind), string(models.StatusCancelled))
	}
	m.logger.Info("job cancelled", "job_id", id, "kind", kind)
}

func (m *Manager) mirror(id, path string) {
	if m.deps.Mirror == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()

		backend := m.deps.Mirror.Name()
		if err := m.deps.Mirror.Upload(ctx, path); err != nil {
			m.deps.Metrics.MirrorUpload(backend, "error")
			m.logger.Warn("artifact mirror failed", "job_id", id, "backend", backend, "error", err)
			return
		}
		m.deps.Metrics.MirrorUpload(backend, "success")
	}()
}
