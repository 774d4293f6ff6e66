package jobs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mediafetch/internal/models"
	"mediafetch/internal/whisper"
)

func TestTranscriptionFallsBackToCPUAndCachesModel(t *testing.T) {
	speech := &fakeSpeech{failGPU: true}
	m := newTestManager(t, Deps{Extractor: &fakeExtractor{}, Speech: speech})
	writeInput(t, m, "interview.m4a")

	for _, lang := range []string{"", "en"} {
		id, err := m.StartTranscription("interview.m4a", lang)
		if err != nil {
			t.Fatalf("StartTranscription: %v", err)
		}
		m.Wait()

		rec := m.Poll(id)
		if rec.Status != models.StatusCompleted || rec.Filename != "interview_transcript.txt" {
			t.Fatalf("record = %+v", rec)
		}
		res, err := m.FetchResult(id)
		if err != nil {
			t.Fatalf("FetchResult: %v", err)
		}
		data, err := os.ReadFile(res.Path)
		if err != nil {
			t.Fatal(err)
		}
		want := "hola mundo [es]"
		if lang != "" {
			want = "hola mundo [" + lang + "]"
		}
		if string(data) != want {
			t.Fatalf("transcript = %q, want %q", data, want)
		}
	}

	loads := speech.Loads()
	if len(loads) != 2 || loads[0] != whisper.DeviceGPU || loads[1] != whisper.DeviceCPU {
		t.Fatalf("loads = %v, want one gpu attempt then cpu", loads)
	}
}

func TestTranscriptionCannotBeCancelled(t *testing.T) {
	m := newTestManager(t, Deps{Extractor: &fakeExtractor{}, Speech: &fakeSpeech{}})
	writeInput(t, m, "talk.mp4")

	id, err := m.StartTranscription("talk.mp4", "es")
	if err != nil {
		t.Fatalf("StartTranscription: %v", err)
	}
	ok, err := m.Cancel(id)
	if err != nil || ok {
		t.Fatalf("Cancel = %v, %v, want false", ok, err)
	}
	m.Wait()
	if got := m.Poll(id).Status; got != models.StatusCompleted {
		t.Fatalf("status = %q", got)
	}
}

func TestTranscriptionWithoutEngine(t *testing.T) {
	m := newTestManager(t, Deps{Extractor: &fakeExtractor{}})
	writeInput(t, m, "talk.wav")

	id, err := m.StartTranscription("talk.wav", "")
	if err != nil {
		t.Fatalf("StartTranscription: %v", err)
	}
	m.Wait()

	rec := m.Poll(id)
	if rec.Status != models.StatusFailed {
		t.Fatalf("status = %q", rec.Status)
	}
	if _, err := os.Stat(filepath.Join(m.opts.OutputDir, "talk_transcript.txt")); !os.IsNotExist(err) {
		t.Fatalf("transcript written without an engine: %v", err)
	}
}

func TestStartTranscriptionValidation(t *testing.T) {
	m := newTestManager(t, Deps{Extractor: &fakeExtractor{}, Speech: &fakeSpeech{}})
	if _, err := m.StartTranscription("doc.pdf", ""); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, err := m.StartTranscription("gone.mp3", ""); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
