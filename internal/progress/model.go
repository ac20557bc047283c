package progress

import (
	"fmt"
	"path/filepath"
	"strings"

	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lvcoi/playlistdl/internal/resolver"
)

// maxFinishedRows bounds how many completed tracks stay on screen.
const maxFinishedRows = 5

type resolvedMsg struct {
	title string
	total int
}

type startedMsg struct {
	track resolver.Track
}

type finishedMsg struct {
	track resolver.Track
	path  string
	ok    bool
}

type assemblingMsg struct {
	succeeded int
	archive   bool
}

type doneMsg struct {
	path string
	err  error
}

type stopMsg struct{}

type rowState int

const (
	rowRunning rowState = iota
	rowDone
	rowFailed
)

type row struct {
	label string
	state rowState
}

type model struct {
	title     string
	total     int
	succeeded int
	failed    int
	status    string
	rows      map[string]*row
	running   []string
	finished  []string
	width     int
	bar       progressbar.Model
	spin      spinner.Model
	interrupt func()
}

func newModel(interrupt func()) *model {
	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = spinnerStyle
	return &model{
		status:    "resolving playlist",
		rows:      make(map[string]*row),
		width:     80,
		bar:       newBar(80),
		spin:      spin,
		interrupt: interrupt,
	}
}

func newBar(width int) progressbar.Model {
	return progressbar.New(
		progressbar.WithGradient("#FF006E", "#00F5FF"),
		progressbar.WithWidth(barWidth(width)),
	)
}

func barWidth(total int) int {
	width := total - 10
	if width < 10 {
		return 10
	}
	return width
}

func truncateLine(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}
	if width <= 3 {
		return text[:width]
	}
	return text[:width-3] + "..."
}

func trackKey(track resolver.Track) string {
	if track.ID != "" {
		return track.ID
	}
	if track.URL != "" {
		return track.URL
	}
	return fmt.Sprintf("#%d", track.Index)
}

func (m *model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = barWidth(m.width)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.status = "interrupting, waiting for running tracks"
			if m.interrupt != nil {
				m.interrupt()
			}
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case resolvedMsg:
		m.title = msg.title
		m.total = msg.total
		m.status = "fetching"
	case startedMsg:
		key := trackKey(msg.track)
		if _, exists := m.rows[key]; exists {
			return m, nil
		}
		m.rows[key] = &row{label: msg.track.DisplayName()}
		m.running = append(m.running, key)
	case finishedMsg:
		key := trackKey(msg.track)
		r, exists := m.rows[key]
		if !exists {
			r = &row{label: msg.track.DisplayName()}
			m.rows[key] = r
		}
		m.running = removeKey(m.running, key)
		if msg.ok {
			m.succeeded++
			r.state = rowDone
			if msg.path != "" {
				r.label = filepath.Base(msg.path)
			}
		} else {
			m.failed++
			r.state = rowFailed
		}
		m.finished = append(m.finished, key)
		if len(m.finished) > maxFinishedRows {
			drop := m.finished[0]
			m.finished = m.finished[1:]
			delete(m.rows, drop)
		}
	case assemblingMsg:
		switch {
		case msg.succeeded == 0:
			m.status = "no tracks downloaded"
		case msg.archive:
			m.status = fmt.Sprintf("writing archive of %d tracks", msg.succeeded)
		default:
			m.status = fmt.Sprintf("collected %d tracks", msg.succeeded)
		}
	case doneMsg:
		if msg.err != nil {
			m.status = "failed: " + msg.err.Error()
		} else {
			m.status = "saved to " + msg.path
		}
		return m, tea.Quit
	case stopMsg:
		return m, tea.Quit
	}
	return m, nil
}

func removeKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}

func (m *model) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	done := float64(m.succeeded+m.failed) / float64(m.total)
	if done > 1 {
		return 1
	}
	return done
}

func (m *model) View() string {
	var b strings.Builder

	title := m.title
	if title == "" {
		title = "playlistdl"
	}
	b.WriteString(titleStyle.Render(truncateLine(title, m.width-20)))
	if m.total > 0 {
		b.WriteString(" ")
		b.WriteString(countStyle.Render(fmt.Sprintf("%d/%d", m.succeeded+m.failed, m.total)))
		if m.failed > 0 {
			b.WriteString(" ")
			b.WriteString(failStyle.Render(fmt.Sprintf("%d failed", m.failed)))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString("\n")

	for _, key := range m.finished {
		r := m.rows[key]
		if r == nil {
			continue
		}
		mark := okStyle.Render("✓")
		if r.state == rowFailed {
			mark = failStyle.Render("✗")
		}
		b.WriteString(mark + " " + labelStyle.Render(truncateLine(r.label, m.width-2)) + "\n")
	}
	for _, key := range m.running {
		r := m.rows[key]
		if r == nil {
			continue
		}
		b.WriteString(m.spin.View() + " " + truncateLine(r.label, m.width-2) + "\n")
	}

	b.WriteString(statusStyle.Render(truncateLine(m.status, m.width)))
	b.WriteString("\n")
	return b.String()
}
