package models

import "errors"

var (
	ErrValidation    = errors.New("invalid request")
	ErrNotFound      = errors.New("not found")
	ErrExtraction    = errors.New("extraction failed")
	ErrTranscode     = errors.New("transcode failed")
	ErrTranscription = errors.New("transcription failed")
	// ErrCancelled marks a user requested stop. It is not a failure.
	ErrCancelled = errors.New("cancelled")
)
