package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"transcript-navigator/internal/observability/logging"
	"transcript-navigator/internal/service/keyboard"
	"transcript-navigator/internal/service/navigator"
	"transcript-navigator/internal/service/viewport"
)

const refreshInterval = 100 * time.Millisecond

var termGetSize = term.GetSize

// UI drives one panel in a full-screen terminal session.
type UI struct {
	panel     *navigator.Panel
	viewport  *viewport.Memory
	rowHeight float64
	title     string
	clock     clockwork.Clock
	log       zerolog.Logger

	input       *os.File
	output      io.Writer
	reader      *bufio.Reader
	writer      *bufio.Writer
	restoreTerm *term.State
	layout      Layout
}

// New creates a UI over panel. vp must be the viewport the panel was built with.
func New(panel *navigator.Panel, vp *viewport.Memory, rowHeight float64, title string) *UI {
	return &UI{
		panel:     panel,
		viewport:  vp,
		rowHeight: rowHeight,
		title:     title,
		clock:     clockwork.NewRealClock(),
		log:       logging.WithComponent("tui"),
		layout:    Layout{Width: 80, Height: 24, RowHeight: rowHeight},
	}
}

// Run takes over the terminal until the user quits or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	if err := u.initTerminal(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer u.cleanupTerminal()

	u.updateSize()
	u.writeString("\x1b[?25l\x1b[2J")

	events := make(chan Event)
	readErr := make(chan error, 1)
	go func() {
		for {
			ev, err := ReadEvent(u.reader)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := u.clock.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		u.render()

		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case ev := <-events:
			if u.handle(ev) {
				return nil
			}
		case <-ticker.Chan():
			u.updateSize()
		}
	}
}

// handle applies ev and reports whether the UI should exit.
func (u *UI) handle(ev Event) bool {
	switch ev.Action {
	case ActionQuit:
		return true
	case ActionRetry:
		u.log.Debug().Msg("Retry requested")
		u.panel.Retry()
	case ActionScroll:
		u.panel.HandleKey(ev.Key)
	}
	return false
}

func (u *UI) render() {
	view := u.panel.View()
	offset := u.viewport.ScrollOffset()

	start, end := u.layout.VisibleRange(offset)
	if view.SentinelIndex >= start && view.SentinelIndex < end {
		u.panel.SentinelVisible()
	}

	st := u.panel.State()
	status := fmt.Sprintf("%s/%s  %d/%d  %s  |  %s", st.VideoID, st.Language, st.Segments, st.Total, st.Loading, keyboard.AccessibleLabel)
	lines := Frame(view, offset, u.layout, Chrome{
		Title:        u.title,
		Announcement: u.viewport.Announcement(),
		Status:       status,
	})

	u.writeString("\x1b[H")
	for i, line := range lines {
		u.writeString("\x1b[2K")
		u.writeString(line)
		if i < len(lines)-1 {
			u.writeString("\r\n")
		}
	}
	if u.writer != nil {
		_ = u.writer.Flush()
	}
}

func (u *UI) initTerminal() error {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		if runtime.GOOS != "windows" {
			return err
		}
		u.input = os.Stdin
		u.output = os.Stdout
	} else {
		u.input = tty
		u.output = tty
	}

	u.reader = bufio.NewReader(u.input)
	u.writer = bufio.NewWriter(u.output)

	rawState, err := term.MakeRaw(int(u.input.Fd()))
	if err != nil {
		return err
	}
	u.restoreTerm = rawState
	return nil
}

func (u *UI) cleanupTerminal() {
	u.writeString("\x1b[2J\x1b[H\x1b[?25h")
	if u.writer != nil {
		_ = u.writer.Flush()
	}
	if u.input != nil && u.restoreTerm != nil {
		_ = term.Restore(int(u.input.Fd()), u.restoreTerm)
	}
	if u.input != nil && u.input.Name() == "/dev/tty" {
		_ = u.input.Close()
	}
}

func (u *UI) updateSize() {
	if u.input == nil {
		return
	}
	width, height, err := termGetSize(int(u.input.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return
	}
	if width == u.layout.Width && height == u.layout.Height {
		return
	}
	u.layout.Width = width
	u.layout.Height = height
	// One line below the list stays free for the tail marker at the end.
	lines := u.layout.ListLines() - 1
	if lines < 1 {
		lines = 1
	}
	u.viewport.SetHeight(float64(lines) * u.rowHeight)
	u.writeString("\x1b[2J")
}

func (u *UI) writeString(s string) {
	switch {
	case u.writer != nil:
		_, _ = u.writer.WriteString(s)
	case u.output != nil:
		_, _ = fmt.Fprint(u.output, s)
	}
}
