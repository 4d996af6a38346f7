package session

import (
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"quill/encoder"
)

// VoiceDetector feeds captured PCM to a voice activity detector and answers,
// per tick, whether the interval since the previous tick contained speech.
type VoiceDetector interface {
	Process(data []byte)
	HasSpeechTick() bool
}

const (
	vadMode       = 3
	vadFrameMs    = 20
	vadFrameBytes = encoder.SampleRate * vadFrameMs / 1000 * 2
	// fraction of VAD frames in a tick that must be speech to count as voice
	vadSpeechRatio = 0.10
)

// vadDetector wraps WebRTC VAD. PCM arrives in arbitrary chunk sizes from
// the capture callback; it is re-framed to the 20ms windows VAD requires.
type vadDetector struct {
	vad *webrtcvad.VAD

	mu           sync.Mutex
	buf          []byte
	totalFrames  int
	speechFrames int
	tickTotal    int
	tickSpeech   int
}

func NewVoiceDetector() (VoiceDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &vadDetector{vad: v}, nil
}

func (d *vadDetector) Process(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = append(d.buf, data...)
	for len(d.buf) >= vadFrameBytes {
		frame := d.buf[:vadFrameBytes]
		d.buf = d.buf[vadFrameBytes:]

		active, err := d.vad.Process(encoder.SampleRate, frame)
		if err != nil {
			continue
		}
		d.totalFrames++
		if active {
			d.speechFrames++
		}
	}
}

func (d *vadDetector) HasSpeechTick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.totalFrames - d.tickTotal
	s := d.speechFrames - d.tickSpeech
	d.tickTotal, d.tickSpeech = d.totalFrames, d.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= vadSpeechRatio
}
