package whisper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"Spanish": "es",
		" es ":    "es",
		"English": "en",
		"":        "auto",
		"auto":    "auto",
		"nl":      "nl",
	}
	for in, want := range tests {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func fakeWhisper(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	// Writes a transcript to the path given after -of and records the args.
	script := `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-of" ]; then out="$a"; fi
  prev="$a"
done
echo "$@" > "$(dirname "$0")/args.txt"
printf '  hola mundo \n' > "$out.txt"
`
	p := filepath.Join(t.TempDir(), "whisper-cli")
	if err := os.WriteFile(p, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCLILoadAndTranscribe(t *testing.T) {
	bin := fakeWhisper(t)
	model := filepath.Join(t.TempDir(), "ggml-base.bin")
	if err := os.WriteFile(model, []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	audio := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCLI(slog.New(slog.NewTextHandler(io.Discard, nil)), bin, model, nil)
	m, err := c.Load(context.Background(), DeviceCPU)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Device() != DeviceCPU {
		t.Errorf("device = %s", m.Device())
	}

	text, err := m.Transcribe(context.Background(), audio, "Spanish")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hola mundo" {
		t.Errorf("text = %q", text)
	}

	args, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "args.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(args); !containsAll(got, "-l es", "-ng", "-otxt") {
		t.Errorf("unexpected args %q", got)
	}
}

func TestCLILoadGPUUnavailable(t *testing.T) {
	bin := fakeWhisper(t)
	model := filepath.Join(t.TempDir(), "ggml-base.bin")
	if err := os.WriteFile(model, []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCLI(slog.New(slog.NewTextHandler(io.Discard, nil)), bin, model, nil)
	c.gpuProbe = func(context.Context) error { return errors.New("no device") }

	if _, err := c.Load(context.Background(), DeviceGPU); err == nil {
		t.Fatal("expected gpu load to fail")
	}
	if _, err := c.Load(context.Background(), DeviceCPU); err != nil {
		t.Fatalf("cpu load should succeed: %v", err)
	}
}

func TestCLILoadMissingModel(t *testing.T) {
	bin := fakeWhisper(t)
	c := NewCLI(slog.New(slog.NewTextHandler(io.Discard, nil)), bin, filepath.Join(t.TempDir(), "nope.bin"), nil)
	if _, err := c.Load(context.Background(), DeviceCPU); err == nil {
		t.Fatal("expected missing model error")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
