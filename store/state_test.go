package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "state.json")

	rec := NewRecording(ModeModified)
	rec.RawText = "um hello"
	rec.RefinedText = "Hello."
	rec.Status = StatusCompleted

	st := State{Settings: DefaultSettings(), Recordings: []Recording{rec}}
	st.Settings.DefaultMode = ModeModified
	if err := SaveState(path, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got.Settings.DefaultMode != ModeModified {
		t.Errorf("DefaultMode = %q, want modified", got.Settings.DefaultMode)
	}
	if len(got.Recordings) != 1 {
		t.Fatalf("Recordings = %d, want 1", len(got.Recordings))
	}
	if got.Recordings[0].ID != rec.ID || got.Recordings[0].RefinedText != "Hello." {
		t.Errorf("restored recording does not match saved one: %+v", got.Recordings[0])
	}
}

func TestLoadStateMissingFileYieldsDefaults(t *testing.T) {
	st, err := LoadState(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.Settings != DefaultSettings() {
		t.Errorf("Settings = %+v, want defaults", st.Settings)
	}
	if len(st.Recordings) != 0 {
		t.Errorf("Recordings = %d, want 0", len(st.Recordings))
	}
}

func TestLoadStateMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(path); err == nil {
		t.Error("LoadState accepted malformed JSON")
	}
}

func TestLoadStateSelfHeals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	dup := NewRecording(ModeRaw)
	dup.RawText = "kept"
	shadow := dup
	shadow.RawText = "dropped"
	recordings := []Recording{dup, shadow}
	for i := 0; i < MaxRecordings+5; i++ {
		recordings = append(recordings, NewRecording(ModeRaw))
	}

	st := State{Settings: DefaultSettings(), Recordings: recordings}
	st.Settings.MaxRecordingDuration = 9999 // out of range on disk
	if err := SaveState(path, st); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	got, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(got.Recordings) != MaxRecordings {
		t.Errorf("Recordings = %d, want %d after truncation", len(got.Recordings), MaxRecordings)
	}
	if got.Recordings[0].RawText != "kept" {
		t.Errorf("RawText = %q, want first duplicate kept", got.Recordings[0].RawText)
	}
	if got.Settings.MaxRecordingDuration != 600 {
		t.Errorf("MaxRecordingDuration = %d, want clamped to 600", got.Settings.MaxRecordingDuration)
	}
}
