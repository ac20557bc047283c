// Package progress renders a live terminal board of a playlist run.
package progress

import (
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/lvcoi/playlistdl/internal/downloader"
	"github.com/lvcoi/playlistdl/internal/resolver"
)

const stopTimeout = 2 * time.Second

// Board is a downloader.Observer that drives a Bubble Tea program.
type Board struct {
	mu        sync.Mutex
	output    io.Writer
	input     io.Reader
	interrupt func()
	program   *tea.Program
	started   bool
	done      chan struct{}
}

var _ downloader.Observer = (*Board)(nil)

// Option configures a Board.
type Option func(*Board)

// WithInput sets the key input source. A nil reader disables key handling.
func WithInput(r io.Reader) Option {
	return func(b *Board) {
		b.input = r
	}
}

// New returns a Board writing to output. interrupt is called when the user
// presses ctrl+c while the board owns the terminal.
func New(output io.Writer, interrupt func(), opts ...Option) *Board {
	b := &Board{
		output:    output,
		input:     os.Stdin,
		interrupt: interrupt,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Interactive reports whether f is a terminal the board can draw on.
func Interactive(f *os.File) bool {
	if f == nil || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start begins rendering in a separate goroutine.
func (b *Board) Start() {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return
	}

	opts := []tea.ProgramOption{
		tea.WithOutput(b.output),
		tea.WithInput(b.input),
		tea.WithoutSignalHandler(),
	}
	program := tea.NewProgram(newModel(b.interrupt), opts...)

	b.program = program
	b.started = true
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		_, _ = program.Run()
	}()
}

// Stop ends rendering and waits briefly for the program to restore the
// terminal.
func (b *Board) Stop() {
	if b == nil {
		return
	}

	b.mu.Lock()
	program := b.program
	done := b.done
	b.mu.Unlock()

	if program == nil {
		return
	}
	go program.Send(stopMsg{})
	select {
	case <-done:
	case <-time.After(stopTimeout):
		program.Kill()
		<-done
	}
}

func (b *Board) PlaylistResolved(playlist resolver.Playlist, _ string) {
	b.send(resolvedMsg{title: playlist.Title, total: len(playlist.Tracks)})
}

func (b *Board) TrackStarted(track resolver.Track) {
	b.send(startedMsg{track: track})
}

func (b *Board) TrackFinished(track resolver.Track, path string, ok bool) {
	b.send(finishedMsg{track: track, path: path, ok: ok})
}

func (b *Board) Assembling(succeeded int, archive bool) {
	b.send(assemblingMsg{succeeded: succeeded, archive: archive})
}

func (b *Board) Finished(artifact downloader.Artifact, err error) {
	b.send(doneMsg{path: artifact.Path, err: err})
}

func (b *Board) send(msg tea.Msg) {
	if b == nil {
		return
	}
	b.mu.Lock()
	program := b.program
	b.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}
