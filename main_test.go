package main

import (
	"testing"
	"time"

	"quill/audio"
	"quill/encoder"
	"quill/hotkey"
	"quill/session"
	"quill/store"
	"quill/transcriber"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Drives the hotkey loop the way run does, with a fake hotkey and a fake
// audio context end to end: press starts, press stops, transcript lands.
func TestHotkeyToggleLifecycle(t *testing.T) {
	ctx := audio.NewFakeContext(audio.TonePCM(encoder.SampleRate, 3*time.Second), false)
	capture, err := ctx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	defer capture.Close()

	settings := store.DefaultSettings()
	settings.APIKey = "test-key"
	recordings := store.New()
	controller := session.NewController(session.Config{
		Capture:  capture,
		Pipeline: transcriber.NewFake("hello world", "", nil),
		Store:    recordings,
		Settings: session.NewSettingsRef(settings),
		AudioDir: t.TempDir(),
	})

	hk := hotkey.NewFake()
	if err := hk.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer hk.Unregister()
	go func() {
		for range hk.Presses() {
			toggleRecording(controller)
		}
	}()

	hk.SimPress()
	waitFor(t, "recording to start", func() bool {
		cur, ok := controller.Current()
		return ok && cur.Status == store.StatusRecording
	})

	hk.SimPress()
	waitFor(t, "recording to complete", func() bool {
		recs := recordings.Snapshot()
		return len(recs) == 1 && recs[0].Status == store.StatusCompleted
	})

	rec := recordings.Snapshot()[0]
	if rec.RawText != "hello world" {
		t.Errorf("RawText = %q, want %q", rec.RawText, "hello world")
	}
	if rec.DurationSeconds != 3 {
		t.Errorf("DurationSeconds = %d, want 3", rec.DurationSeconds)
	}
}
