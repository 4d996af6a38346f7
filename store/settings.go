package store

// Settings is the process-wide configuration. Loaded at startup, mutated by
// user action, persisted on every change. The session controller only reads
// it.
type Settings struct {
	DefaultMode          Mode   `json:"default_mode"`
	AutoPaste            bool   `json:"auto_paste"`
	ShowPreview          bool   `json:"show_preview"`
	PreviewTimeoutSec    int    `json:"preview_timeout_sec"`
	AudioRetentionHours  int    `json:"audio_retention_hours"`
	MaxRecordingDuration int    `json:"max_recording_duration_sec"`
	TranscribeModel      string `json:"transcribe_model"`
	RefineModel          string `json:"refine_model"`
	APIKey               string `json:"api_key,omitempty"`
}

const (
	minRecordingDuration = 30
	maxRecordingDuration = 600
)

func DefaultSettings() Settings {
	return Settings{
		DefaultMode:          ModeRaw,
		AutoPaste:            true,
		ShowPreview:          true,
		PreviewTimeoutSec:    30,
		AudioRetentionHours:  24,
		MaxRecordingDuration: 300,
		TranscribeModel:      "whisper-large-v3-turbo",
		RefineModel:          "moonshotai/kimi-k2-instruct-0905",
	}
}

// Normalize clamps out-of-range values and fills unset fields with defaults,
// so a hand-edited or stale state file cannot wedge the app.
func (s *Settings) Normalize() {
	def := DefaultSettings()
	if !ValidMode(s.DefaultMode) {
		s.DefaultMode = def.DefaultMode
	}
	if s.PreviewTimeoutSec <= 0 {
		s.PreviewTimeoutSec = def.PreviewTimeoutSec
	}
	if s.AudioRetentionHours <= 0 {
		s.AudioRetentionHours = def.AudioRetentionHours
	}
	if s.MaxRecordingDuration == 0 {
		s.MaxRecordingDuration = def.MaxRecordingDuration
	}
	if s.MaxRecordingDuration < minRecordingDuration {
		s.MaxRecordingDuration = minRecordingDuration
	}
	if s.MaxRecordingDuration > maxRecordingDuration {
		s.MaxRecordingDuration = maxRecordingDuration
	}
	if s.TranscribeModel == "" {
		s.TranscribeModel = def.TranscribeModel
	}
	if s.RefineModel == "" {
		s.RefineModel = def.RefineModel
	}
}
