package store

import "testing"

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.DefaultMode != ModeRaw {
		t.Errorf("DefaultMode = %q, want raw", s.DefaultMode)
	}
	if !s.AutoPaste || !s.ShowPreview {
		t.Error("AutoPaste and ShowPreview should default on")
	}
	if s.PreviewTimeoutSec != 30 || s.AudioRetentionHours != 24 || s.MaxRecordingDuration != 300 {
		t.Errorf("timing defaults = %d/%d/%d, want 30/24/300",
			s.PreviewTimeoutSec, s.AudioRetentionHours, s.MaxRecordingDuration)
	}
}

func TestNormalizeClampsDuration(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 300}, // unset falls back to the default
		{5, 30},
		{30, 30},
		{300, 300},
		{600, 600},
		{10000, 600},
		{-1, 30},
	}
	for _, tt := range tests {
		s := DefaultSettings()
		s.MaxRecordingDuration = tt.in
		s.Normalize()
		if s.MaxRecordingDuration != tt.want {
			t.Errorf("Normalize(%d) = %d, want %d", tt.in, s.MaxRecordingDuration, tt.want)
		}
	}
}

func TestNormalizeFillsModels(t *testing.T) {
	var s Settings
	s.Normalize()
	if s.TranscribeModel == "" || s.RefineModel == "" {
		t.Errorf("Normalize left models empty: %q / %q", s.TranscribeModel, s.RefineModel)
	}
	if !ValidMode(s.DefaultMode) {
		t.Errorf("Normalize left invalid mode %q", s.DefaultMode)
	}
}
