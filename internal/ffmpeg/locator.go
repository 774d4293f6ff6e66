package ffmpeg

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
)

// Locator finds the ffmpeg and ffprobe binaries. The lookup runs once and is
// cached for the life of the process.
type Locator struct {
	candidates []string

	once    sync.Once
	dir     string
	ffmpeg  string
	ffprobe string
}

// NewLocator searches PATH first and then each candidate directory in order.
func NewLocator(candidates []string) *Locator {
	return &Locator{candidates: candidates}
}

func (l *Locator) resolve() {
	l.once.Do(func() {
		if p, err := exec.LookPath("ffmpeg"); err == nil {
			if real, err := filepath.EvalSymlinks(p); err == nil {
				p = real
			}
			l.ffmpeg = p
			l.dir = filepath.Dir(p)
		} else {
			for _, dir := range l.candidates {
				if dir == "" {
					continue
				}
				p := filepath.Join(dir, binaryName("ffmpeg"))
				if info, err := os.Stat(p); err == nil && !info.IsDir() {
					l.ffmpeg = p
					l.dir = dir
					break
				}
			}
		}

		l.ffprobe = "ffprobe"
		if l.dir != "" {
			p := filepath.Join(l.dir, binaryName("ffprobe"))
			if _, err := os.Stat(p); err == nil {
				l.ffprobe = p
			}
		}
	})
}

// FFmpeg returns the ffmpeg path and whether it was found.
func (l *Locator) FFmpeg() (string, bool) {
	l.resolve()
	return l.ffmpeg, l.ffmpeg != ""
}

// FFprobe falls back to a bare "ffprobe" so exec can still try PATH.
func (l *Locator) FFprobe() string {
	l.resolve()
	return l.ffprobe
}

// Dir is the directory holding ffmpeg, or "" when it was not found.
func (l *Locator) Dir() string {
	l.resolve()
	return l.dir
}

func binaryName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
