package models

import (
	"errors"
	"testing"
)

func TestDownloadRequestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		req        DownloadRequest
		wantErr    bool
		wantURL    string
		wantFormat Format
	}{
		{name: "audio", req: DownloadRequest{URL: "  https://example.com/v  ", Format: "audio"}, wantURL: "https://example.com/v", wantFormat: FormatAudio},
		{name: "video upper case", req: DownloadRequest{URL: "https://example.com/v", Format: "VIDEO"}, wantURL: "https://example.com/v", wantFormat: FormatVideo},
		{name: "mp3 alias", req: DownloadRequest{URL: "https://example.com/v", Format: "mp3"}, wantURL: "https://example.com/v", wantFormat: FormatAudio},
		{name: "mp4 alias", req: DownloadRequest{URL: "https://example.com/v", Format: "mp4"}, wantURL: "https://example.com/v", wantFormat: FormatVideo},
		{name: "blank url", req: DownloadRequest{URL: "   ", Format: "audio"}, wantErr: true},
		{name: "bad format", req: DownloadRequest{URL: "https://example.com/v", Format: "gif"}, wantErr: true},
		{name: "negative height", req: DownloadRequest{URL: "https://example.com/v", Format: "video", MaxHeight: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Normalize()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.URL != tt.wantURL {
				t.Errorf("url = %q, want %q", req.URL, tt.wantURL)
			}
			if req.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", req.Format, tt.wantFormat)
			}
		})
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	terminal := []JobStatus{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	active := []JobStatus{StatusStarting, StatusDownloading, StatusProcessing, StatusConverting, StatusLoadingModel, StatusTranscribing, StatusSaving, StatusUnknown}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
