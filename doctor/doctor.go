package doctor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"quill/audio"
	"quill/clipboard"
	"quill/encoder"
	"quill/hotkey"
	"quill/store"
	"quill/transcriber"
)

// Run executes interactive diagnostic checks and returns an exit code
// (0=all pass, 1=any fail).
func Run(settings store.Settings) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("quill doctor - interactive system diagnostics")
	fmt.Println("=============================================")

	allPass := true

	if !checkHotkey() {
		allPass = false
	}
	if !checkClipboardCopy() {
		allPass = false
	}
	if !checkPaste() {
		allPass = false
	}
	if !checkCredential(settings) {
		allPass = false
	}
	if allPass && !checkMicAndTranscription(settings) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[1/5] Hotkey detection")
	fmt.Println("Press Ctrl+Shift+Space...")

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Presses():
		fmt.Println("  PASS: hotkey detected")
		// The grab may leave the terminal in raw mode
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkClipboardCopy() bool {
	fmt.Println()
	fmt.Println("[2/5] Clipboard copy")

	testStr := fmt.Sprintf("quill-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (compositor not accessible?)")
		return false
	}
}

func checkPaste() bool {
	fmt.Println()
	fmt.Println("[3/5] Paste keystroke")

	msg, err := clipboard.Verify()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Printf("  PASS: %s\n", msg)
	return true
}

func checkCredential(settings store.Settings) bool {
	fmt.Println()
	fmt.Println("[4/5] API credential")

	if settings.APIKey == "" {
		fmt.Println("  FAIL: no credential configured (set GROQ_API_KEY or add api_key to settings)")
		return false
	}
	fmt.Println("  PASS: credential present")
	return true
}

func checkMicAndTranscription(settings store.Settings) bool {
	fmt.Println()
	fmt.Println("[5/5] Microphone and transcription")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	device, err := audio.SelectDevice(ctx)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("Using device: %s\n", device.Name)

	fmt.Println("Speak for 3 seconds...")

	payload, err := recordFlac(ctx, device, 3*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(payload) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	fmt.Printf("  Recorded %.1f KB, transcribing...\n", float64(len(payload))/1024)

	pipeline := transcriber.NewGroq(transcriber.Config{
		APIKey:          settings.APIKey,
		TranscribeModel: settings.TranscribeModel,
		RefineModel:     settings.RefineModel,
	})
	result, err := pipeline.Process(context.Background(), payload, transcriber.Options{})
	if err != nil {
		fmt.Printf("  FAIL: transcription error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(result.Raw)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Printf("  PASS: transcribed text: %s\n", text)
	return true
}

func recordFlac(ctx audio.Context, device *audio.DeviceInfo, d time.Duration) ([]byte, error) {
	enc, err := encoder.NewFlac()
	if err != nil {
		return nil, err
	}

	config := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
	captureDevice, err := ctx.NewCapture(device, config)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var buf []int16
	var stopped bool
	captureDevice.SetCallback(func(data []byte, frameCount uint32) {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		for i := 0; i+1 < len(data); i += 2 {
			buf = append(buf, int16(uint16(data[i])|uint16(data[i+1])<<8))
		}
	})

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	deadline := time.After(d)
loop:
	for {
		select {
		case <-deadline:
			break loop
		case <-ticker.C:
			fmt.Print(".")
		}
	}
	ticker.Stop()
	fmt.Println(" done")

	captureDevice.Stop()
	captureDevice.ClearCallback()
	captureDevice.Close()

	mu.Lock()
	stopped = true
	samples := buf
	mu.Unlock()

	for i := 0; i < len(samples); i += encoder.BlockSize {
		end := min(i+encoder.BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
