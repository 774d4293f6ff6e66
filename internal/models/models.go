package models

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusStarting     JobStatus = "starting"
	StatusDownloading  JobStatus = "downloading"
	StatusProcessing   JobStatus = "processing"
	StatusConverting   JobStatus = "converting"
	StatusLoadingModel JobStatus = "loading_model"
	StatusTranscribing JobStatus = "transcribing"
	StatusSaving       JobStatus = "saving"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "error"
	StatusCancelled    JobStatus = "cancelled"

	// StatusUnknown is reported for ids that were never submitted.
	StatusUnknown JobStatus = "unknown"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobKind identifies which pipeline a job runs.
type JobKind string

const (
	KindDownload      JobKind = "download"
	KindConversion    JobKind = "conversion"
	KindTranscription JobKind = "transcription"
)

// Format is the media type requested for a download.
type Format string

const (
	FormatAudio Format = "audio"
	FormatVideo Format = "video"
)

// ProgressRecord is a point-in-time snapshot of a job. Records are replaced
// whole, never patched.
type ProgressRecord struct {
	Kind      JobKind   `json:"kind,omitempty"`
	Status    JobStatus `json:"status"`
	Percent   float64   `json:"percent"`
	Speed     string    `json:"speed,omitempty"`
	ETA       string    `json:"eta,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressEvent is sent to clients over WebSocket.
type ProgressEvent struct {
	ID string `json:"id"`
	ProgressRecord
}

// DownloadRequest describes a single download submission.
type DownloadRequest struct {
	URL       string `json:"url"`
	Format    Format `json:"format"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	// MaxHeight caps the video height in pixels. Zero means the configured default.
	MaxHeight int `json:"max_height,omitempty"`
	// AudioBitrate is in kbps. Zero means the configured default.
	AudioBitrate int `json:"audio_bitrate,omitempty"`
	// PreferSecondary skips the primary extractor for hosts that support the
	// secondary downloader. Set it when a scan came back with RequiresFallback.
	PreferSecondary bool `json:"prefer_secondary,omitempty"`
}

// Normalize trims the request in place and validates it.
func (r *DownloadRequest) Normalize() error {
	r.URL = strings.TrimSpace(r.URL)
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrValidation)
	}

	switch Format(strings.ToLower(strings.TrimSpace(string(r.Format)))) {
	case FormatAudio, "mp3":
		r.Format = FormatAudio
	case FormatVideo, "mp4":
		r.Format = FormatVideo
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrValidation, r.Format)
	}

	if r.MaxHeight < 0 {
		return fmt.Errorf("%w: max_height must not be negative", ErrValidation)
	}
	if r.AudioBitrate < 0 {
		return fmt.Errorf("%w: audio_bitrate must not be negative", ErrValidation)
	}
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.EndTime = strings.TrimSpace(r.EndTime)
	return nil
}

// HasClip reports whether both clip bounds were supplied.
func (r DownloadRequest) HasClip() bool {
	return r.StartTime != "" && r.EndTime != ""
}

// Quality is one selectable resolution tier.
type Quality struct {
	Height int    `json:"value"`
	Label  string `json:"label"`
}

// VideoInfo is the metadata returned by a scan.
type VideoInfo struct {
	Title      string    `json:"title"`
	Duration   *float64  `json:"duration"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	WebpageURL string    `json:"webpage_url"`
	Author     string    `json:"author,omitempty"`
	Qualities  []Quality `json:"qualities"`
	// RequiresFallback is set when the metadata came from the embed endpoint
	// and a download has to go through the secondary downloader.
	RequiresFallback bool `json:"requires_fallback"`
}

// Result points at a finished artifact.
type Result struct {
	Path string `json:"path"`
	Name string `json:"filename"`
}

// Artifact is one file in the output directory.
type Artifact struct {
	Name      string `json:"name"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
	Type      string `json:"type"`
}
