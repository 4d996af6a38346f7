//go:build linux

package beep

import (
	"math"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// Linux durations. PulseAudio adds its own startup latency per play, so the
// tones are longer than on darwin.
const (
	tickDur = 0.2
	beepDur = 0.08
	gapDur  = 0.05
)

var (
	startSamples []int16
	endSamples   []int16
	errorSamples []int16
	soundOnce    sync.Once
)

func initSound() {
	startSamples = render(startCue, tickDur)
	endSamples = render(endCue, tickDur)
	errorSamples = render(errorCue, beepDur)
}

// render synthesizes a cue as interleaved stereo s16le, doubling it with a
// short gap when the cue asks for it.
func render(c cue, duration float64) []int16 {
	tone := synthesize(c, duration)
	if !c.double {
		return tone
	}
	gap := make([]int16, int(sampleRate*gapDur)*2)
	out := make([]int16, 0, len(tone)*2+len(gap))
	out = append(out, tone...)
	out = append(out, gap...)
	out = append(out, tone...)
	return out
}

func synthesize(c cue, duration float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * c.decay)
		s := int16(math.Sin(2*math.Pi*c.freq*t) * 32767 * c.volume * envelope)
		samples[i*2] = s
		samples[i*2+1] = s
	}
	return samples
}

func playCue(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient()
	if err != nil {
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}

func Init() {
	soundOnce.Do(initSound)
}

func PlayStart() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	go playCue(startSamples)
}

func PlayEnd() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	go playCue(endSamples)
}

func PlayError() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	go playCue(errorSamples)
}
