package session

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"quill/audio"
	"quill/encoder"
)

// captureResult is what a committed capture yields: the encoded payload and
// the elapsed capture time rounded down to whole seconds.
type captureResult struct {
	payload []byte
	frames  uint64
	seconds int
	err     error
}

// captureSession owns the audio device for the lifetime of one recording:
// it encodes PCM to FLAC concurrently with capture, publishes amplitude and
// elapsed-time events on a fixed tick, watches for silence, and enforces the
// hard duration ceiling. Exactly one of stop or cancel terminates it, and
// the ceiling fires the same stop path a user stop does.
type captureSession struct {
	device      audio.CaptureDevice
	events      EventSink
	detector    VoiceDetector // nil disables silence monitoring
	maxDuration time.Duration
	requestStop func() // invoked at most once, from the tick goroutine

	enc        encoder.Encoder
	blockChan  chan []int16
	encodeDone chan struct{}
	done       chan struct{}
	tickerDone chan struct{}

	bufMu       sync.Mutex
	sampleBuf   []int16
	totalFrames uint64
	closed      bool

	finalizeOnce sync.Once
	stopOnce     sync.Once
	autoStopOnce sync.Once
	result       captureResult
}

func newCaptureSession(device audio.CaptureDevice, events EventSink, detector VoiceDetector, maxDuration time.Duration, requestStop func()) (*captureSession, error) {
	enc, err := encoder.NewFlac()
	if err != nil {
		return nil, err
	}
	return &captureSession{
		device:      device,
		events:      events,
		detector:    detector,
		maxDuration: maxDuration,
		requestStop: requestStop,
		enc:         enc,
		blockChan:   make(chan []int16, 64),
		encodeDone:  make(chan struct{}),
		done:        make(chan struct{}),
		tickerDone:  make(chan struct{}),
	}, nil
}

// start requests the device and begins the encode and tick loops. A device
// error leaves no goroutines running.
func (s *captureSession) start() error {
	go func() {
		defer close(s.encodeDone)
		for block := range s.blockChan {
			s.enc.EncodeBlock(block)
		}
	}()

	s.device.SetCallback(s.onData)
	if err := s.device.Start(); err != nil {
		s.device.ClearCallback()
		close(s.blockChan)
		<-s.encodeDone
		close(s.tickerDone)
		return err
	}

	go s.tickLoop(time.Now())
	return nil
}

func (s *captureSession) onData(data []byte, frameCount uint32) {
	s.bufMu.Lock()
	if s.closed {
		s.bufMu.Unlock()
		return
	}
	s.totalFrames += uint64(frameCount)
	for i := 0; i+1 < len(data); i += 2 {
		s.sampleBuf = append(s.sampleBuf, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	// Sends stay under bufMu so finalize can set closed and then close the
	// channel knowing no callback is mid-send. The encode goroutine drains
	// independently, so holding the lock across a send cannot deadlock.
	for len(s.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, s.sampleBuf[:encoder.BlockSize])
		s.sampleBuf = s.sampleBuf[encoder.BlockSize:]
		s.blockChan <- block
	}
	s.bufMu.Unlock()

	if len(data) > 1 {
		var sumSquares float64
		for i := 0; i+1 < len(data); i += 2 {
			sample := int16(binary.LittleEndian.Uint16(data[i:]))
			normalized := float64(sample) / 32768.0
			sumSquares += normalized * normalized
		}
		rms := math.Sqrt(sumSquares / float64(len(data)/2))
		s.events.AudioLevel(math.Min(rms, 1.0))
		if s.detector != nil {
			s.detector.Process(data)
		}
	}
}

// tickLoop drives elapsed-time events, the silence monitor, and the duration
// ceiling. It exits when the session terminates; the ticker is always
// stopped on the way out.
func (s *captureSession) tickLoop(start time.Time) {
	defer close(s.tickerDone)
	mon := newSilenceMonitor()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			s.events.RecordingTick(elapsed.Seconds())

			if elapsed >= s.maxDuration {
				s.autoStop()
				return
			}

			if s.detector == nil {
				continue
			}
			switch mon.Tick(s.detector.HasSpeechTick()) {
			case silenceWarn, silenceRepeat:
				s.events.SilenceWarning(true)
			case silenceWarnClear:
				s.events.SilenceWarning(false)
			case silenceAutoStop:
				s.events.SilenceWarning(false)
				s.autoStop()
				return
			}
		}
	}
}

// autoStop funnels ceiling and silence cutoffs through the caller's stop
// path so auto-stopped recordings commit exactly like user-stopped ones.
func (s *captureSession) autoStop() {
	s.autoStopOnce.Do(func() {
		go s.requestStop()
	})
}

// finalize tears down the device, drains the encoder, and stops the ticker.
// Safe to reach from both stop and cancel; only the first caller acts.
func (s *captureSession) finalize() {
	s.finalizeOnce.Do(func() {
		close(s.done)
		s.device.Stop()
		s.device.ClearCallback()

		s.bufMu.Lock()
		s.closed = true
		if len(s.sampleBuf) > 0 {
			partial := make([]int16, len(s.sampleBuf))
			copy(partial, s.sampleBuf)
			s.sampleBuf = nil
			s.blockChan <- partial
		}
		s.bufMu.Unlock()
		close(s.blockChan)
		<-s.encodeDone
		<-s.tickerDone
	})
}

// stop commits the capture: finalizes the encoder and returns the payload.
// Idempotent; concurrent callers (user stop racing the ceiling) observe the
// same result.
func (s *captureSession) stop() captureResult {
	s.stopOnce.Do(func() {
		s.finalize()
		if err := s.enc.Close(); err != nil {
			s.result = captureResult{err: err}
			return
		}
		frames := s.enc.TotalFrames()
		s.result = captureResult{
			payload: s.enc.Bytes(),
			frames:  frames,
			seconds: int(frames / encoder.SampleRate),
		}
	})
	return s.result
}

// cancel discards the capture. The buffered audio never becomes a payload.
func (s *captureSession) cancel() {
	s.finalize()
	s.enc.Close()
}
