package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mediafetch/internal/models"
	"mediafetch/internal/whisper"
)

const transcriptSuffix = "_transcript.txt"

// StartTranscription writes a plain-text transcript of an audio or video file
// from the output directory. Transcriptions cannot be cancelled.
func (m *Manager) StartTranscription(filename, language string) (string, error) {
	allowed := make(map[string]bool, len(videoExtensions)+len(audioExtensions))
	for ext := range videoExtensions {
		allowed[ext] = true
	}
	for ext := range audioExtensions {
		allowed[ext] = true
	}

	input, err := m.resolveInput(filename, allowed)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(language) == "" {
		language = m.opts.DefaultLanguage
	}
	return m.start(models.KindTranscription, func(id string) {
		m.runTranscription(id, input, language)
	})
}

func (m *Manager) runTranscription(id, input, language string) {
	ctx := context.Background()

	if m.speech == nil {
		m.fail(id, models.KindTranscription, fmt.Errorf("%w: no speech engine configured", models.ErrTranscription))
		return
	}

	m.update(id, models.StatusLoadingModel, 10, "loading speech model")
	model, err := m.speech.get(ctx)
	if err != nil {
		m.fail(id, models.KindTranscription, err)
		return
	}

	m.update(id, models.StatusTranscribing, 30, "transcribing audio")
	text, err := model.Transcribe(ctx, input, language)
	if err != nil {
		m.fail(id, models.KindTranscription, fmt.Errorf("%w: %v", models.ErrTranscription, err))
		return
	}

	m.update(id, models.StatusSaving, 90, "saving transcript")
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	outName := stem + transcriptSuffix
	output := filepath.Join(m.opts.OutputDir, outName)
	if err := os.WriteFile(output, []byte(strings.TrimSpace(text)), 0o644); err != nil {
		m.fail(id, models.KindTranscription, fmt.Errorf("%w: write transcript: %v", models.ErrTranscription, err))
		return
	}

	m.complete(id, models.KindTranscription, output, outName)
}

// speechLoader loads the model on first use and keeps it. The accelerated
// device is tried first, then the default one.
type speechLoader struct {
	logger    *slog.Logger
	engine    SpeechEngine
	preferGPU bool

	mu    sync.Mutex
	model whisper.Model
}

func newSpeechLoader(logger *slog.Logger, engine SpeechEngine, preferGPU bool) *speechLoader {
	return &speechLoader{logger: logger, engine: engine, preferGPU: preferGPU}
}

func (l *speechLoader) get(ctx context.Context) (whisper.Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model != nil {
		return l.model, nil
	}

	if l.preferGPU {
		model, err := l.engine.Load(ctx, whisper.DeviceGPU)
		if err == nil {
			l.model = model
			return model, nil
		}
		l.logger.Warn("gpu model load failed, falling back to cpu", "error", err)
	}

	model, err := l.engine.Load(ctx, whisper.DeviceCPU)
	if err != nil {
		return nil, fmt.Errorf("%w: load model: %v", models.ErrTranscription, err)
	}
	l.model = model
	return model, nil
}
