package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

// ResolveDir picks the log directory: flag, then QUILL_LOG_PATH, then the
// OS-specific default.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	envPath := os.Getenv("QUILL_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Lifecycle events. One entry per recording transition so a diagnostics log
// reconstructs the full history of a session.

func RecordingStarted(id, mode string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("id", id).Str("mode", mode).Msg("recording_started")
}

func RecordingCommitted(id string, seconds int) {
	if !logReady {
		return
	}
	diagLog.Info().Str("id", id).Int("duration_s", seconds).Msg("recording_committed")
}

func RecordingDiscarded(id, reason string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("id", id).Str("reason", reason).Msg("recording_discarded")
}

func RecordingFailed(id, errMsg string) {
	if !logReady {
		return
	}
	diagLog.Error().Str("id", id).Str("error", errMsg).Msg("recording_failed")
}

func RetryStarted(id string, attempt int) {
	if !logReady {
		return
	}
	diagLog.Info().Str("id", id).Int("attempt", attempt).Msg("retry_started")
}

func TranscriptionDone(id string, chars int) {
	if !logReady {
		return
	}
	diagLog.Info().Str("id", id).Int("chars", chars).Msg("transcription_done")
}

// NetworkMetrics mirrors the pipeline's per-request timing for logging.
type NetworkMetrics struct {
	DNSMs     float64
	TLSMs     float64
	TTFBMs    float64
	TotalMs   float64
	Reused    bool
	Protocol  string
	RateLimit string
}

func PipelineMetrics(stage string, m NetworkMetrics) {
	if !logReady {
		return
	}
	conn := "new"
	if m.Reused {
		conn = "reused"
	}
	ev := diagLog.Info().
		Str("stage", stage).
		Str("conn", conn)
	if m.Protocol != "" {
		ev = ev.Str("tls_proto", m.Protocol)
	}
	if m.RateLimit != "" {
		ev = ev.Str("rate_limit", m.RateLimit)
	}
	ev.Float64("dns_ms", m.DNSMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("pipeline_request")
}

// TranscriptionText appends the finished transcript to a plain text log,
// separate from diagnostics.
func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SessionStart(mode, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("mode", mode).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(recordings int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("recordings", recordings).
		Msg("session_end")
}
