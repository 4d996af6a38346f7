package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"quill/session"
	"quill/store"
)

// TUI message types
type statusMsg struct {
	id     string
	status store.Status
}
type transcriptMsg struct{ text string }
type toastMsg struct {
	text     string
	severity session.Severity
}
type audioLevelMsg struct{ level float64 }
type recordingTickMsg struct{ seconds float64 }
type silenceWarningMsg struct{ active bool }
type tickMsg time.Time

const toastTTL = 4 * time.Second

type toast struct {
	text     string
	severity session.Severity
	expires  time.Time
}

type tuiView int

const (
	viewMain tuiView = iota
	viewHistory
)

type tuiModel struct {
	controller *session.Controller
	recordings *store.Store
	settings   *session.SettingsRef

	view          tuiView
	status        store.Status
	seconds       float64
	audioLevel    float64
	peakLevel     float64
	silenceWarn   bool
	width, height int

	lastText        string
	previewDeadline time.Time

	toasts []toast

	history    []store.Recording
	cursor     int
	searching  bool
	search     string
	filterMode store.Mode // empty shows all modes
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	procStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	meterStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	meterHiStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newTUIProgram(controller *session.Controller, recordings *store.Store, settings *session.SettingsRef) *tea.Program {
	m := tuiModel{
		controller: controller,
		recordings: recordings,
		settings:   settings,
		status:     store.StatusIdle,
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		now := time.Time(msg)
		if m.lastText != "" && !m.previewDeadline.IsZero() && now.After(m.previewDeadline) {
			m.lastText = ""
		}
		live := m.toasts[:0]
		for _, t := range m.toasts {
			if now.Before(t.expires) {
				live = append(live, t)
			}
		}
		m.toasts = live
		return m, tuiTick()

	case statusMsg:
		m.status = msg.status
		switch msg.status {
		case store.StatusRecording:
			m.seconds = 0
			m.audioLevel = 0
			m.peakLevel = 0
			m.silenceWarn = false
		case store.StatusIdle, store.StatusCompleted, store.StatusFailed:
			m.audioLevel = 0
			m.silenceWarn = false
		}
		m.refreshHistory()

	case transcriptMsg:
		m.lastText = msg.text
		m.previewDeadline = time.Time{}
		s := m.settings.Get()
		if s.ShowPreview && s.PreviewTimeoutSec > 0 {
			m.previewDeadline = time.Now().Add(time.Duration(s.PreviewTimeoutSec) * time.Second)
		}

	case toastMsg:
		m.toasts = append(m.toasts, toast{
			text:     msg.text,
			severity: msg.severity,
			expires:  time.Now().Add(toastTTL),
		})

	case audioLevelMsg:
		if m.status == store.StatusRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.level*0.4
			if msg.level > m.peakLevel {
				m.peakLevel = msg.level
			}
		}

	case recordingTickMsg:
		m.seconds = msg.seconds

	case silenceWarningMsg:
		m.silenceWarn = msg.active
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.String() {
		case "enter", "esc":
			m.searching = false
			if msg.String() == "esc" {
				m.search = ""
			}
			m.refreshHistory()
		case "backspace":
			if len(m.search) > 0 {
				m.search = m.search[:len(m.search)-1]
				m.refreshHistory()
			}
		default:
			if msg.Type == tea.KeyRunes {
				m.search += string(msg.Runes)
				m.refreshHistory()
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "esc":
		if m.status == store.StatusRecording {
			go m.controller.Cancel()
		} else if m.view == viewHistory {
			m.view = viewMain
		}

	case "tab":
		if m.view == viewMain {
			m.view = viewHistory
			m.cursor = 0
			m.refreshHistory()
		} else {
			m.view = viewMain
		}

	case "m":
		current := m.settings.Get().DefaultMode
		next := store.ModeModified
		if current == store.ModeModified {
			next = store.ModeRaw
		}
		m.controller.SetMode(next)

	case "/":
		if m.view == viewHistory {
			m.searching = true
			m.search = ""
		}

	case "f":
		if m.view == viewHistory {
			switch m.filterMode {
			case "":
				m.filterMode = store.ModeRaw
			case store.ModeRaw:
				m.filterMode = store.ModeModified
			default:
				m.filterMode = ""
			}
			m.cursor = 0
			m.refreshHistory()
		}

	case "up", "k":
		if m.view == viewHistory && m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.view == viewHistory && m.cursor < len(m.history)-1 {
			m.cursor++
		}

	case "r":
		if m.view == viewHistory {
			if rec, ok := m.selected(); ok {
				go m.controller.Retry(rec.ID)
			}
		}

	case "d":
		if m.view == viewHistory {
			if rec, ok := m.selected(); ok {
				m.controller.Delete(rec.ID)
				m.refreshHistory()
				if m.cursor >= len(m.history) && m.cursor > 0 {
					m.cursor--
				}
			}
		}

	case "c":
		if m.view == viewHistory {
			if rec, ok := m.selected(); ok && rec.Text() != "" {
				go pasteTranscript(rec.Text())
			}
		}
	}
	return m, nil
}

func (m *tuiModel) selected() (store.Recording, bool) {
	if m.cursor < 0 || m.cursor >= len(m.history) {
		return store.Recording{}, false
	}
	return m.history[m.cursor], true
}

func (m *tuiModel) refreshHistory() {
	m.history = m.recordings.List(store.Filter{Mode: m.filterMode, Search: m.search})
	if m.cursor >= len(m.history) {
		m.cursor = max(len(m.history)-1, 0)
	}
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.view == viewHistory {
		return m.viewHistoryScreen()
	}
	return m.viewMainScreen()
}

func (m tuiModel) viewMainScreen() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("quill") + "\n\n")

	switch m.status {
	case store.StatusRecording:
		b.WriteString(recStyle.Render(fmt.Sprintf("● REC %.1fs", m.seconds)))
		maxDur := m.settings.Get().MaxRecordingDuration
		b.WriteString(dimStyle.Render(fmt.Sprintf(" / %ds", maxDur)))
		b.WriteString("\n")
		b.WriteString(renderLevelMeter(m.audioLevel) + "\n")
		if m.silenceWarn {
			b.WriteString(warnStyle.Render("⚠ no voice detected") + "\n")
		}
	case store.StatusProcessing:
		b.WriteString(procStyle.Render("◌ TRANSCRIBING...") + "\n")
	default:
		b.WriteString(idleStyle.Render("○ STANDBY") + "\n")
	}
	b.WriteString("\n")

	mode := m.settings.Get().DefaultMode
	modeLabel := "raw"
	if mode == store.ModeModified {
		modeLabel = "modified (AI cleanup)"
	}
	b.WriteString(dimStyle.Render("mode: "+modeLabel) + "\n")

	if m.lastText != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Last transcription") + "\n")
		wrapWidth := max(m.width-4, 20)
		for _, line := range wrapText(m.lastText, wrapWidth) {
			b.WriteString(textStyle.Render(line) + "\n")
		}
		if !m.previewDeadline.IsZero() {
			left := int(time.Until(m.previewDeadline).Seconds())
			if left >= 0 {
				b.WriteString(dimStyle.Render(fmt.Sprintf("(clears in %ds)", left)) + "\n")
			}
		}
	}

	b.WriteString(m.renderToasts())

	b.WriteString("\n")
	b.WriteString(helpKeyStyle.Render("Ctrl+Shift+Space") + helpStyle.Render(" record/stop  "))
	b.WriteString(helpKeyStyle.Render("esc") + helpStyle.Render(" cancel  "))
	b.WriteString(helpKeyStyle.Render("tab") + helpStyle.Render(" history  "))
	b.WriteString(helpKeyStyle.Render("m") + helpStyle.Render(" mode  "))
	b.WriteString(helpKeyStyle.Render("q") + helpStyle.Render(" quit") + "\n")
	b.WriteString(helpStyle.Render("quill " + version))

	return b.String()
}

func (m tuiModel) viewHistoryScreen() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("quill history") + " ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("(%d)", len(m.history))))
	if m.filterMode != "" {
		b.WriteString(" " + dimStyle.Render("["+string(m.filterMode)+"]"))
	}
	b.WriteString("\n")

	if m.searching {
		b.WriteString(cursorStyle.Render("/"+m.search+"▌") + "\n")
	} else if m.search != "" {
		b.WriteString(dimStyle.Render("filter: "+m.search) + "\n")
	}
	b.WriteString("\n")

	if len(m.history) == 0 {
		b.WriteString(idleStyle.Render("No recordings yet") + "\n")
	}

	visible := max(m.height-8, 3)
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	wrapWidth := max(m.width-30, 20)
	for i := start; i < len(m.history) && i < start+visible; i++ {
		rec := m.history[i]
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("▶ ")
		}

		var status string
		switch rec.Status {
		case store.StatusCompleted:
			status = okStyle.Render("done")
		case store.StatusFailed:
			status = errStyle.Render("failed")
		case store.StatusProcessing:
			status = procStyle.Render("processing")
		default:
			status = idleStyle.Render(string(rec.Status))
		}

		text := rec.Text()
		if rec.Status == store.StatusFailed && rec.ErrorMessage != "" {
			text = rec.ErrorMessage
		}
		text = truncate(text, wrapWidth)

		meta := fmt.Sprintf("%s %3ds %-8s", rec.CreatedAt.Format("15:04"), rec.DurationSeconds, rec.Mode)
		line := prefix + dimStyle.Render(meta) + " " + status + " " + textStyle.Render(text)
		b.WriteString(line + "\n")
	}

	b.WriteString(m.renderToasts())

	b.WriteString("\n")
	b.WriteString(helpKeyStyle.Render("r") + helpStyle.Render(" retry  "))
	b.WriteString(helpKeyStyle.Render("d") + helpStyle.Render(" delete  "))
	b.WriteString(helpKeyStyle.Render("c") + helpStyle.Render(" paste  "))
	b.WriteString(helpKeyStyle.Render("/") + helpStyle.Render(" search  "))
	b.WriteString(helpKeyStyle.Render("f") + helpStyle.Render(" filter  "))
	b.WriteString(helpKeyStyle.Render("tab") + helpStyle.Render(" back"))

	return b.String()
}

func (m tuiModel) renderToasts() string {
	if len(m.toasts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, t := range m.toasts {
		style := dimStyle
		switch t.severity {
		case session.SeveritySuccess:
			style = okStyle
		case session.SeverityWarning:
			style = warnStyle
		case session.SeverityError:
			style = errStyle
		}
		b.WriteString(style.Render(t.text) + "\n")
	}
	return b.String()
}

const meterWidth = 30

func renderLevelMeter(level float64) string {
	filled := int(level * meterWidth * 3) // full scale is loud; boost low levels
	if filled > meterWidth {
		filled = meterWidth
	}
	var b strings.Builder
	for i := 0; i < meterWidth; i++ {
		if i < filled {
			if i > meterWidth*3/4 {
				b.WriteString(meterHiStyle.Render("█"))
			} else {
				b.WriteString(meterStyle.Render("█"))
			}
		} else {
			b.WriteString(dimStyle.Render("░"))
		}
	}
	return b.String()
}

// truncate shortens text to width cells, ellipsized. Operates on runes so a
// multi-byte character is never cut in half.
func truncate(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	if width < 1 {
		return ""
	}
	return string(runes[:width-1]) + "…"
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
