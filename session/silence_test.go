package session

import "testing"

func TestSilenceWarnAfterWarnWindow(t *testing.T) {
	m := newSilenceMonitor()
	warnTicks := int(silenceWarnEvery / tickInterval)

	for i := 0; i < warnTicks-1; i++ {
		if ev := m.Tick(false); ev != silenceNone {
			t.Fatalf("tick %d: event %v before warn window elapsed", i, ev)
		}
	}
	if ev := m.Tick(false); ev != silenceWarn {
		t.Errorf("tick %d: event %v, want silenceWarn", warnTicks, ev)
	}
	// No repeated warn until another warn window passes
	if ev := m.Tick(false); ev != silenceNone {
		t.Errorf("event %v right after warning, want none", ev)
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := newSilenceMonitor()
	warnTicks := int(silenceWarnEvery / tickInterval)

	for i := 0; i < warnTicks; i++ {
		m.Tick(false)
	}

	// Speech must exceed the clear threshold over the warn window
	var cleared bool
	for i := 0; i < warnTicks; i++ {
		if ev := m.Tick(true); ev == silenceWarnClear {
			cleared = true
			break
		}
	}
	if !cleared {
		t.Error("warning never cleared despite sustained speech")
	}
}

func TestSilenceRepeatWarning(t *testing.T) {
	m := newSilenceMonitor()
	warnTicks := int(silenceWarnEvery / tickInterval)

	for i := 0; i < warnTicks; i++ {
		m.Tick(false)
	}

	var repeats int
	for i := 0; i < warnTicks*2; i++ {
		if ev := m.Tick(false); ev == silenceRepeat {
			repeats++
		}
	}
	if repeats != 2 {
		t.Errorf("repeats = %d over two warn windows, want 2", repeats)
	}
}

func TestSilenceAutoStop(t *testing.T) {
	m := newSilenceMonitor()
	stopTicks := int(silenceAutoStopDur / tickInterval)

	var ev silenceEvent
	for i := 0; i < stopTicks; i++ {
		ev = m.Tick(false)
	}
	if ev != silenceAutoStop {
		t.Errorf("event after %d silent ticks = %v, want silenceAutoStop", stopTicks, ev)
	}
}

func TestSpeechPreventsEvents(t *testing.T) {
	m := newSilenceMonitor()
	stopTicks := int(silenceAutoStopDur / tickInterval)

	// Every other tick has speech: 50% ratio, well above both thresholds
	for i := 0; i < stopTicks*2; i++ {
		if ev := m.Tick(i%2 == 0); ev != silenceNone {
			t.Fatalf("tick %d: unexpected event %v with regular speech", i, ev)
		}
	}
}
