package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"quill/audio"
	"quill/encoder"
	"quill/log"
	"quill/store"
	"quill/transcriber"
)

var (
	// ErrRecordingActive is returned when starting (or retrying) while the
	// current recording is still non-terminal.
	ErrRecordingActive = errors.New("a recording is already in progress")
	// ErrNotRecording is returned for stop/cancel outside the recording state.
	ErrNotRecording = errors.New("no recording in progress")
)

// credentialMissingMsg is the fixed failure message when stop finds no API
// key configured. The pipeline is never invoked in that case.
const credentialMissingMsg = "no credential configured"

// Captures shorter than this are treated as accidental hotkey taps and
// discarded instead of committed.
const minCaptureFrames = encoder.SampleRate / 10

// Config wires a Controller.
type Config struct {
	Capture  audio.CaptureDevice
	Pipeline transcriber.Pipeline
	Store    *store.Store
	Events   EventSink
	Settings *SettingsRef
	// AudioDir receives one FLAC file per committed recording; retry reads
	// them back.
	AudioDir string
	// NewDetector builds the voice activity detector for each capture.
	// nil disables silence monitoring.
	NewDetector func() (VoiceDetector, error)
}

// Controller owns the recording lifecycle state machine: at most one
// current recording, transitioned through
// recording -> processing -> completed/failed, with retry re-entering
// processing. It is the single writer of both the current slot and the
// store; events flow out through the EventSink.
type Controller struct {
	capture     audio.CaptureDevice
	pipeline    transcriber.Pipeline
	store       *store.Store
	events      EventSink
	settings    *SettingsRef
	audioDir    string
	newDetector func() (VoiceDetector, error)

	mu       sync.Mutex
	current  *store.Recording
	active   *captureSession
	attempts map[string]uint64
}

func NewController(cfg Config) *Controller {
	if cfg.Events == nil {
		cfg.Events = NopSink{}
	}
	return &Controller{
		capture:     cfg.Capture,
		pipeline:    cfg.Pipeline,
		store:       cfg.Store,
		events:      cfg.Events,
		settings:    cfg.Settings,
		audioDir:    cfg.AudioDir,
		newDetector: cfg.NewDetector,
		attempts:    make(map[string]uint64),
	}
}

// Current returns a copy of the current recording, if any.
func (c *Controller) Current() (store.Recording, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return store.Recording{}, false
	}
	return *c.current, true
}

// Busy reports whether a non-terminal recording occupies the current slot.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && !c.current.Status.Terminal()
}

// Start allocates a new recording and requests the capture device. Rejected
// without side effects while the current recording is non-terminal. A device
// failure goes straight to failed, skipping processing, and is never
// inserted into the history.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.current != nil && !c.current.Status.Terminal() {
		c.mu.Unlock()
		return ErrRecordingActive
	}

	set := c.settings.Get()
	rec := store.NewRecording(set.DefaultMode)

	var detector VoiceDetector
	if c.newDetector != nil {
		d, err := c.newDetector()
		if err != nil {
			log.Warnf("voice detector unavailable: %v", err)
		} else {
			detector = d
		}
	}

	maxDur := time.Duration(set.MaxRecordingDuration) * time.Second
	cs, err := newCaptureSession(c.capture, c.events, detector, maxDur, func() {
		if stopErr := c.Stop(); stopErr != nil && !errors.Is(stopErr, ErrNotRecording) {
			log.Errorf("auto-stop: %v", stopErr)
		}
	})
	if err == nil {
		err = cs.start()
	}
	if err != nil {
		rec.Status = store.StatusFailed
		rec.ErrorMessage = err.Error()
		c.current = &rec
		c.active = nil
		c.mu.Unlock()

		log.Errorf("capture start failed: %v", err)
		c.events.RecordingStatus(rec.ID, store.StatusFailed)
		c.events.Toast("Microphone unavailable: "+err.Error(), SeverityError)
		return fmt.Errorf("starting capture: %w", err)
	}

	c.current = &rec
	c.active = cs
	c.mu.Unlock()

	log.RecordingStarted(rec.ID, string(rec.Mode))
	c.events.RecordingStatus(rec.ID, store.StatusRecording)
	return nil
}

// Stop commits the current capture: the recording becomes processing, is
// inserted into the history, and (credential permitting) the pipeline is
// dispatched. The processing state is externally observable before the
// pipeline settles. Both user stops and ceiling/silence auto-stops land
// here.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.current == nil || c.current.Status != store.StatusRecording || c.active == nil {
		c.mu.Unlock()
		return ErrNotRecording
	}
	cs := c.active
	c.mu.Unlock()

	res := cs.stop()

	c.mu.Lock()
	// Re-check under the lock: a concurrent auto-stop may have committed
	// this capture already. First caller wins.
	if c.current == nil || c.current.Status != store.StatusRecording {
		c.mu.Unlock()
		return nil
	}

	if res.err == nil && res.frames < minCaptureFrames {
		rec := *c.current
		c.current = nil
		c.active = nil
		c.mu.Unlock()
		log.RecordingDiscarded(rec.ID, "too short")
		c.events.RecordingStatus(rec.ID, store.StatusIdle)
		return nil
	}

	c.current.Status = store.StatusProcessing
	c.current.DurationSeconds = res.seconds
	c.current.UpdatedAt = time.Now()
	c.active = nil
	rec := *c.current

	if res.err == nil {
		path := filepath.Join(c.audioDir, rec.ID+".flac")
		if werr := writeAudioFile(path, res.payload); werr != nil {
			res.err = werr
		} else {
			c.current.AudioPath = path
			rec.AudioPath = path
		}
	}

	set := c.settings.Get()
	c.mu.Unlock()

	// Insertion happens before any pipeline dispatch so history shows the
	// processing entry immediately.
	c.store.Insert(rec)
	log.RecordingCommitted(rec.ID, rec.DurationSeconds)
	c.events.RecordingStatus(rec.ID, store.StatusProcessing)

	if res.err != nil {
		c.fail(rec.ID, res.err.Error())
		return nil
	}

	if set.APIKey == "" {
		c.fail(rec.ID, credentialMissingMsg)
		return nil
	}

	token := c.issueAttempt(rec.ID)
	go c.runPipeline(rec.ID, res.payload, rec.Mode, token)
	return nil
}

// Cancel discards the current capture. The recording never reaches the
// history and the current slot returns to empty.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.current == nil || c.current.Status != store.StatusRecording || c.active == nil {
		c.mu.Unlock()
		return ErrNotRecording
	}
	cs := c.active
	rec := *c.current
	c.current = nil
	c.active = nil
	c.mu.Unlock()

	cs.cancel()
	log.RecordingDiscarded(rec.ID, "cancelled")
	c.events.RecordingStatus(rec.ID, store.StatusIdle)
	c.events.Toast("Recording discarded", SeverityInfo)
	return nil
}

// Retry re-runs the pipeline for a failed history entry using its stored
// audio. Unknown ids, non-failed entries, and entries without audio are
// no-ops so duplicate or stale UI events stay harmless. The retried entry
// claims the current slot, so the single-active-recording rule holds.
func (c *Controller) Retry(id string) error {
	c.mu.Lock()
	if c.current != nil && !c.current.Status.Terminal() {
		c.mu.Unlock()
		return ErrRecordingActive
	}
	rec, ok := c.store.Get(id)
	if !ok || rec.Status != store.StatusFailed || rec.AudioPath == "" {
		c.mu.Unlock()
		return nil
	}

	// Claim the current slot in the same critical section as the busy
	// check. A Start landing between an early unlock and the claim would
	// succeed and then be overwritten, orphaning its live capture.
	c.attempts[id]++
	token := c.attempts[id]
	cur := rec
	cur.Status = store.StatusProcessing
	cur.RetryCount++
	cur.ErrorMessage = ""
	c.current = &cur
	c.mu.Unlock()

	c.store.Patch(id, func(r *store.Recording) {
		r.Status = store.StatusProcessing
		r.RetryCount++
		r.ErrorMessage = ""
	})

	log.RetryStarted(id, cur.RetryCount)
	c.events.RecordingStatus(id, store.StatusProcessing)

	payload, err := os.ReadFile(rec.AudioPath)
	if err != nil {
		c.fail(id, fmt.Sprintf("stored audio unavailable: %v", err))
		return nil
	}

	go c.runPipeline(id, payload, rec.Mode, token)
	return nil
}

// Delete removes a history entry and its audio file. Absent ids are a
// no-op; the in-flight current recording cannot be deleted.
func (c *Controller) Delete(id string) {
	c.mu.Lock()
	if c.current != nil && c.current.ID == id && !c.current.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	if c.current != nil && c.current.ID == id {
		c.current = nil
	}
	c.mu.Unlock()

	rec, ok := c.store.Get(id)
	if !ok {
		return
	}
	c.store.Delete(id)
	if rec.AudioPath != "" {
		os.Remove(rec.AudioPath)
	}
}

// SetMode changes the default mode for future recordings. In-flight
// recordings keep the mode they were created with.
func (c *Controller) SetMode(mode store.Mode) error {
	if !store.ValidMode(mode) {
		return fmt.Errorf("unknown mode %q", mode)
	}
	c.settings.Update(func(s *store.Settings) {
		s.DefaultMode = mode
	})
	return nil
}

func (c *Controller) runPipeline(id string, payload []byte, mode store.Mode, token uint64) {
	result, err := c.pipeline.Process(context.Background(), payload, transcriber.Options{
		Refine: mode == store.ModeModified,
	})
	c.finish(id, token, result, err)
}

// finish applies a pipeline outcome, unless a newer attempt for the same id
// has been issued in the meantime; stale results are dropped without
// touching the store.
func (c *Controller) finish(id string, token uint64, result transcriber.Result, err error) {
	c.mu.Lock()
	if c.attempts[id] != token {
		c.mu.Unlock()
		log.Warnf("discarding stale pipeline result for %s", id)
		return
	}
	c.mu.Unlock()

	if err != nil {
		c.fail(id, err.Error())
		return
	}

	c.store.Patch(id, func(r *store.Recording) {
		r.RawText = result.Raw
		if r.Mode == store.ModeModified {
			r.RefinedText = result.Refined
		}
		r.Status = store.StatusCompleted
		r.ErrorMessage = ""
	})
	rec, ok := c.store.Get(id)
	if !ok {
		return
	}
	c.syncCurrent(rec)

	log.TranscriptionDone(id, len(rec.Text()))
	log.TranscriptionText(rec.Text())
	c.events.RecordingStatus(id, store.StatusCompleted)
	c.events.TranscriptReady(rec.Text())
}

// fail marks a recording failed with the given message and surfaces it.
// Every failure is both persisted (visible in history, retryable) and
// toasted; nothing fails silently.
func (c *Controller) fail(id, msg string) {
	c.store.UpdateStatus(id, store.StatusFailed, msg)
	if rec, ok := c.store.Get(id); ok {
		c.syncCurrent(rec)
	}
	log.RecordingFailed(id, msg)
	c.events.RecordingStatus(id, store.StatusFailed)
	c.events.Toast("Transcription failed: "+msg, SeverityError)
}

// syncCurrent mirrors a store update into the current slot when ids match.
func (c *Controller) syncCurrent(rec store.Recording) {
	c.mu.Lock()
	if c.current != nil && c.current.ID == rec.ID {
		cp := rec
		c.current = &cp
	}
	c.mu.Unlock()
}

// issueAttempt tags a pipeline dispatch. Completions holding an older token
// for the same id are discarded in finish.
func (c *Controller) issueAttempt(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[id]++
	return c.attempts[id]
}

func writeAudioFile(path string, payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}
