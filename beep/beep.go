package beep

const sampleRate = 44100

// cue is one synthesized feedback tone: a sine at freq shaped by an
// exponential decay envelope. Durations are platform-specific.
type cue struct {
	freq   float64
	volume float64
	decay  float64
	double bool // two short beeps with a gap, used for errors
}

var (
	startCue = cue{freq: 1200, volume: 0.5, decay: 60}
	endCue   = cue{freq: 900, volume: 0.5, decay: 40}
	errorCue = cue{freq: 350, volume: 0.6, decay: 30, double: true}
)

var disabled bool

// Disable silences every cue. Wired to the -mute flag.
func Disable() { disabled = true }
