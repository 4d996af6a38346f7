package store

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a recording.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a recording in this status is finished,
// successfully or not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Mode selects which pipeline stage's output is kept.
type Mode string

const (
	ModeRaw      Mode = "raw"      // stage 1 transcript only
	ModeModified Mode = "modified" // stage 2 refinement, raw kept alongside
)

func ValidMode(m Mode) bool {
	return m == ModeRaw || m == ModeModified
}

// Recording is one captured utterance and its transcription outcome.
// Empty text fields mean "not produced (yet)".
type Recording struct {
	ID              string    `json:"id"`
	AudioPath       string    `json:"audio_path,omitempty"`
	RawText         string    `json:"raw_text,omitempty"`
	RefinedText     string    `json:"refined_text,omitempty"`
	Mode            Mode      `json:"mode"`
	Status          Status    `json:"status"`
	RetryCount      int       `json:"retry_count"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewRecording allocates a recording in the recording state. Mode is fixed
// for the life of the record.
func NewRecording(mode Mode) Recording {
	now := time.Now()
	return Recording{
		ID:        uuid.NewString(),
		Mode:      mode,
		Status:    StatusRecording,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Text returns the transcript a user cares about: the refinement when one
// exists, the raw transcript otherwise.
func (r *Recording) Text() string {
	if r.RefinedText != "" {
		return r.RefinedText
	}
	return r.RawText
}
