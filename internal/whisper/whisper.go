// Package whisper runs speech-to-text through the whisper.cpp command line.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mediafetch/internal/media"
)

// Device selects the execution mode of the model.
type Device string

const (
	DeviceGPU Device = "gpu"
	DeviceCPU Device = "cpu"
)

// Model transcribes one file at a time.
type Model interface {
	Transcribe(ctx context.Context, path, language string) (string, error)
	Device() Device
}

// Decoder converts arbitrary media into 16 kHz mono WAV.
type Decoder interface {
	ToWAV(ctx context.Context, inputPath, outputPath string) error
}

// CLI loads models backed by a whisper.cpp binary.
type CLI struct {
	logger    *slog.Logger
	bin       string
	modelPath string
	decoder   Decoder
	// gpuProbe reports whether an accelerator is usable. It defaults to
	// asking nvidia-smi for a device list.
	gpuProbe func(ctx context.Context) error
}

func NewCLI(logger *slog.Logger, bin, modelPath string, decoder Decoder) *CLI {
	return &CLI{
		logger:    logger,
		bin:       bin,
		modelPath: modelPath,
		decoder:   decoder,
		gpuProbe:  probeNvidia,
	}
}

// Load checks that the binary and model are present for the given device.
func (c *CLI) Load(ctx context.Context, device Device) (Model, error) {
	bin, err := exec.LookPath(c.bin)
	if err != nil {
		return nil, fmt.Errorf("whisper binary %q not found: %w", c.bin, err)
	}
	if _, err := os.Stat(c.modelPath); err != nil {
		return nil, fmt.Errorf("whisper model %q: %w", c.modelPath, err)
	}
	if device == DeviceGPU {
		if err := c.gpuProbe(ctx); err != nil {
			return nil, fmt.Errorf("no usable gpu: %w", err)
		}
	}

	c.logger.Info("whisper model loaded", "model", c.modelPath, "device", device)
	return &cliModel{bin: bin, modelPath: c.modelPath, device: device, decoder: c.decoder}, nil
}

func probeNvidia(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "nvidia-smi", "-L").Output()
	if err != nil {
		return err
	}
	if !strings.Contains(string(out), "GPU") {
		return errors.New("nvidia-smi listed no devices")
	}
	return nil
}

type cliModel struct {
	bin       string
	modelPath string
	device    Device
	decoder   Decoder
}

func (m *cliModel) Device() Device { return m.device }

func (m *cliModel) Transcribe(ctx context.Context, path, language string) (string, error) {
	tmp, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	input := path
	if m.decoder != nil {
		input = filepath.Join(tmp, "input.wav")
		if err := m.decoder.ToWAV(ctx, path, input); err != nil {
			return "", err
		}
	}

	base := filepath.Join(tmp, "transcript")
	args := []string{
		"-m", m.modelPath,
		"-l", NormalizeLanguage(language),
		"-f", input,
		"-otxt",
		"-of", base,
		"-np",
	}
	if m.device == DeviceCPU {
		args = append(args, "-ng")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if text := strings.TrimSpace(stderr.String()); text != "" {
			return "", fmt.Errorf("whisper failed: %s", media.TruncateTail(text, 500))
		}
		return "", fmt.Errorf("whisper failed: %w", err)
	}

	data, err := os.ReadFile(base + ".txt")
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

var languageCodes = map[string]string{
	"spanish":    "es",
	"español":    "es",
	"english":    "en",
	"portuguese": "pt",
	"português":  "pt",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"japanese":   "ja",
}

// NormalizeLanguage maps language names to the ISO codes whisper expects.
// Empty input becomes "auto".
func NormalizeLanguage(language string) string {
	l := strings.ToLower(strings.TrimSpace(language))
	if l == "" {
		return "auto"
	}
	if code, ok := languageCodes[l]; ok {
		return code
	}
	return l
}
