package main

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"quill/beep"
	"quill/clipboard"
	"quill/log"
	"quill/session"
	"quill/store"
)

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// uiSink forwards controller events to the Bubble Tea program and drives
// the side effects that belong to the app shell: beeps and auto-paste.
type uiSink struct {
	settings *session.SettingsRef
}

func (s *uiSink) RecordingStatus(id string, status store.Status) {
	switch status {
	case store.StatusRecording:
		go beep.PlayStart()
	case store.StatusProcessing:
		go beep.PlayEnd()
	case store.StatusFailed:
		go beep.PlayError()
	}
	tuiSend(statusMsg{id: id, status: status})
}

func (s *uiSink) TranscriptReady(text string) {
	if text != "" && s.settings.Get().AutoPaste {
		go pasteTranscript(text)
	}
	tuiSend(transcriptMsg{text: text})
}

func (s *uiSink) Toast(message string, severity session.Severity) {
	tuiSend(toastMsg{text: message, severity: severity})
}

func (s *uiSink) AudioLevel(level float64) {
	tuiSend(audioLevelMsg{level: level})
}

func (s *uiSink) RecordingTick(seconds float64) {
	tuiSend(recordingTickMsg{seconds: seconds})
}

func (s *uiSink) SilenceWarning(active bool) {
	tuiSend(silenceWarningMsg{active: active})
}

// pasteTranscript copies the transcript, sends the paste keystroke, and
// puts the previous clipboard contents back shortly after.
func pasteTranscript(text string) {
	prev, _ := clipboard.Read()

	if err := clipboard.Copy(text); err != nil {
		log.Warnf("clipboard copy failed: %v", err)
		return
	}
	if err := clipboard.Paste(); err != nil {
		log.Warnf("paste failed: %v", err)
	}

	if prev != "" && prev != text {
		time.Sleep(600 * time.Millisecond)
		clipboard.Copy(prev)
	}
}
