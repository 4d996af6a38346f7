package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"quill/audio"
	"quill/beep"
	"quill/clipboard"
	"quill/doctor"
	"quill/encoder"
	"quill/hotkey"
	"quill/log"
	"quill/session"
	"quill/shutdown"
	"quill/store"
	"quill/transcriber"
)

var version = "dev"

var (
	shutdownOnce sync.Once
	onShutdown   func()
)

func initCrashLog() {
	dir, err := log.ResolveDir(os.Getenv("QUILL_LOG_PATH"))
	if err != nil {
		return
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		return
	}
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}
}

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		if onShutdown != nil {
			onShutdown()
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "quill")
	}
	return ".quill"
}

func run() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	modeFlag := flag.String("mode", "", "Transcription mode: raw or modified")
	autoPasteFlag := flag.Bool("autopaste", true, "Auto-paste to focused window after transcription")
	dataDirFlag := flag.String("datadir", "", "Data directory (default: OS-specific location)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location, use ./ for current dir)")
	muteFlag := flag.Bool("mute", false, "Disable start/stop/error audio cues")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("quill %s\n", version)
		os.Exit(0)
	}

	dataDir := *dataDirFlag
	if dataDir == "" {
		dataDir = defaultDataDir()
	}
	statePath := filepath.Join(dataDir, "state.json")
	audioDir := filepath.Join(dataDir, "audio")

	st, err := store.LoadState(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load state (%v), starting fresh\n", err)
		st = store.State{Settings: store.DefaultSettings()}
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		st.Settings.APIKey = key
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			mode := store.Mode(strings.ToLower(*modeFlag))
			if !store.ValidMode(mode) {
				fmt.Fprintf(os.Stderr, "Error: unknown mode %q (use raw or modified)\n", *modeFlag)
				os.Exit(1)
			}
			st.Settings.DefaultMode = mode
		case "autopaste":
			st.Settings.AutoPaste = *autoPasteFlag
		}
	})
	st.Settings.Normalize()

	if *doctorFlag {
		os.Exit(doctor.Run(st.Settings))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if st.Settings.AutoPaste {
		if err := clipboard.Init(); err != nil {
			fmt.Printf("Warning: paste init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		selectedDevice, err = audio.FindDevice(ctx, *deviceFlag)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	captureConfig := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
	captureDevice, err := ctx.NewCapture(selectedDevice, captureConfig)
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	recordings := store.New()
	recordings.Replace(st.Recordings)
	settingsRef := session.NewSettingsRef(st.Settings)

	saver := newStateSaver(statePath, settingsRef, recordings)
	recordings.OnChange(saver.schedule)
	settingsRef.OnChange(func(store.Settings) { saver.schedule() })
	onShutdown = func() {
		log.SessionEnd(recordings.Len())
		saver.flush()
	}

	pipeline := transcriber.NewGroq(transcriber.Config{
		APIKey:          st.Settings.APIKey,
		TranscribeModel: st.Settings.TranscribeModel,
		RefineModel:     st.Settings.RefineModel,
	})
	go pipeline.Warm()

	controller := session.NewController(session.Config{
		Capture:     captureDevice,
		Pipeline:    pipeline,
		Store:       recordings,
		Events:      &uiSink{settings: settingsRef},
		Settings:    settingsRef,
		AudioDir:    audioDir,
		NewDetector: session.NewVoiceDetector,
	})

	tuiMu.Lock()
	tuiProgram = newTUIProgram(controller, recordings, settingsRef)
	tuiMu.Unlock()

	go func() {
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
			os.Exit(1)
		}
		gracefulShutdown()
	}()
	<-tuiReady

	go retentionLoop(recordings, audioDir, settingsRef)

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown()
	}()

	if *muteFlag {
		beep.Disable()
	}
	go beep.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	log.SessionStart(string(settingsRef.Get().DefaultMode), captureDevice.DeviceName())

	for range hk.Presses() {
		toggleRecording(controller)
	}
}

// toggleRecording maps a hotkey press onto the lifecycle: start when idle,
// stop when recording. Presses during processing are ignored.
func toggleRecording(controller *session.Controller) {
	if rec, ok := controller.Current(); ok && rec.Status == store.StatusRecording {
		if err := controller.Stop(); err != nil {
			log.Errorf("stop error: %v", err)
		}
		return
	}
	if err := controller.Start(); err != nil {
		log.Warnf("start rejected: %v", err)
	}
}

// stateSaver debounces persistence so bursts of store updates produce one
// write.
type stateSaver struct {
	path       string
	settings   *session.SettingsRef
	recordings *store.Store

	mu    sync.Mutex
	timer *time.Timer
}

func newStateSaver(path string, settings *session.SettingsRef, recordings *store.Store) *stateSaver {
	return &stateSaver{path: path, settings: settings, recordings: recordings}
}

func (s *stateSaver) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(500*time.Millisecond, s.flush)
}

func (s *stateSaver) flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	st := store.State{
		Settings:   s.settings.Get(),
		Recordings: s.recordings.Snapshot(),
	}
	if err := store.SaveState(s.path, st); err != nil {
		log.Errorf("state save error: %v", err)
	}
}

// retentionLoop deletes audio files past the retention window. Entries keep
// their transcript; only the replayable audio goes away.
func retentionLoop(recordings *store.Store, audioDir string, settings *session.SettingsRef) {
	sweep := func() {
		hours := settings.Get().AudioRetentionHours
		if hours <= 0 {
			return
		}
		cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

		entries, err := os.ReadDir(audioDir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".flac") {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(audioDir, e.Name())
			if err := os.Remove(path); err != nil {
				log.Warnf("retention sweep: %v", err)
				continue
			}
			id := strings.TrimSuffix(e.Name(), ".flac")
			recordings.Patch(id, func(r *store.Recording) {
				r.AudioPath = ""
			})
			log.Info("audio_expired: " + id)
		}
	}

	sweep()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		sweep()
	}
}
