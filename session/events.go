package session

import "quill/store"

// Severity classifies a toast.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// EventSink abstracts the display layer so the controller never talks to a
// concrete UI. The Bubble Tea TUI implements it; tests use a capturing sink.
type EventSink interface {
	// RecordingStatus fires on every lifecycle transition of a recording.
	RecordingStatus(id string, status store.Status)
	// TranscriptReady fires once per completed pipeline run with the text
	// the user should see (refined when available, raw otherwise).
	TranscriptReady(text string)
	// Toast requests a transient, timed notification.
	Toast(message string, severity Severity)
	// AudioLevel reports normalized capture amplitude in [0, 1].
	AudioLevel(level float64)
	// RecordingTick reports elapsed capture time in seconds.
	RecordingTick(seconds float64)
	// SilenceWarning toggles the "no voice detected" indicator.
	SilenceWarning(active bool)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordingStatus(string, store.Status) {}
func (NopSink) TranscriptReady(string)               {}
func (NopSink) Toast(string, Severity)               {}
func (NopSink) AudioLevel(float64)                   {}
func (NopSink) RecordingTick(float64)                {}
func (NopSink) SilenceWarning(bool)                  {}
