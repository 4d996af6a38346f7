//go:build darwin

package beep

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Darwin keeps one CoreAudio device open and plays very short tones; longer
// ones feel laggy next to the instant device start.
const (
	startDur = 0.03
	endDur   = 0.05
	beepDur  = 0.08
	gapDur   = 0.05
)

var (
	malgoCtx     *malgo.AllocatedContext
	device       *malgo.Device
	startSamples []byte
	endSamples   []byte
	errorSamples []byte
	soundOnce    sync.Once

	// The device callback reads these while playCue writes them.
	playing sync.Mutex
	playBuf atomic.Pointer[[]byte]
	playPos atomic.Uint32
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: feedDevice,
	}

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, callbacks)
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}

	startSamples = render(startCue, startDur)
	endSamples = render(endCue, endDur)
	errorSamples = render(errorCue, beepDur)

	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
		return
	}
}

func feedDevice(pOutput, _ []byte, frameCount uint32) {
	samples := playBuf.Load()
	if samples == nil || len(*samples) == 0 {
		zero(pOutput)
		return
	}

	pos := playPos.Load()
	total := uint32(len(*samples))
	remaining := total - pos
	if remaining == 0 {
		playBuf.Store(nil)
		zero(pOutput)
		return
	}

	bytesToWrite := frameCount * 2
	if bytesToWrite > remaining {
		bytesToWrite = remaining
	}

	copy(pOutput[:bytesToWrite], (*samples)[pos:pos+bytesToWrite])
	playPos.Store(pos + bytesToWrite)

	for i := bytesToWrite; i < frameCount*2; i++ {
		pOutput[i] = 0
	}
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// render synthesizes a cue as mono s16le bytes, doubling it with a short
// gap when the cue asks for it.
func render(c cue, duration float64) []byte {
	tone := synthesize(c, duration)
	if !c.double {
		return tone
	}
	gap := make([]byte, int(sampleRate*gapDur)*2)
	out := make([]byte, 0, len(tone)*2+len(gap))
	out = append(out, tone...)
	out = append(out, gap...)
	out = append(out, tone...)
	return out
}

func synthesize(c cue, duration float64) []byte {
	n := int(sampleRate * duration)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * c.decay)
		sample := int16(math.Sin(2*math.Pi*c.freq*t) * 32767 * c.volume * envelope)
		buf[i*2] = byte(sample)
		buf[i*2+1] = byte(sample >> 8)
	}
	return buf
}

func playCue(samples []byte) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}

	playing.Lock()
	defer playing.Unlock()

	if device == nil {
		return
	}

	// Restart from a clean state; Stop is a no-op when not running.
	device.Stop()
	playPos.Store(0)
	playBuf.Store(&samples)

	if err := device.Start(); err != nil {
		// CoreAudio invalidates the device across sleep/wake. Rebuild it
		// once before giving up.
		device.Uninit()
		if err := initDevice(); err != nil {
			playBuf.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playBuf.Store(nil)
			return
		}
	}
}

func Init() {
	soundOnce.Do(initSound)
}

func PlayStart() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playCue(startSamples)
}

func PlayEnd() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playCue(endSamples)
}

func PlayError() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playCue(errorSamples)
}
