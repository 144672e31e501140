// Package tui is the terminal front end of the navigator: raw-mode input,
// key decoding and full-screen frame drawing.
package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"transcript-navigator/internal/service/render"
)

const (
	chromeLines    = 3 // header, announcement, status
	reverseVideo   = "\x1b[7m"
	dim            = "\x1b[2m"
	resetAttrs     = "\x1b[0m"
	placeholderRow = "░"
)

// Layout is the terminal geometry of a frame.
type Layout struct {
	Width     int
	Height    int
	RowHeight float64
}

// ListLines is the number of terminal lines available for the list.
func (l Layout) ListLines() int {
	if n := l.Height - chromeLines; n > 0 {
		return n
	}
	return 0
}

// VisibleRange returns the half-open index range of rows on screen.
func (l Layout) VisibleRange(scrollOffset float64) (int, int) {
	if l.RowHeight <= 0 {
		return 0, 0
	}
	first := int(math.Floor(scrollOffset / l.RowHeight))
	if first < 0 {
		first = 0
	}
	return first, first + l.ListLines()
}

// Chrome is the text around the list.
type Chrome struct {
	Title        string
	Announcement string
	Status       string
}

// Frame lays out one full screen as lines of text.
func Frame(view render.ListView, scrollOffset float64, l Layout, c Chrome) []string {
	lines := make([]string, 0, l.Height)
	lines = append(lines, reverseVideo+pad(truncateToWidth(c.Title, l.Width), l.Width)+resetAttrs)

	listLines := l.ListLines()
	switch {
	case view.Error == render.ErrorFullWidth:
		lines = append(lines, fullWidthError(view.ErrorMessage, l.Width, listLines)...)
	default:
		lines = append(lines, listBody(view, scrollOffset, l)...)
	}

	lines = append(lines, truncateToWidth(c.Announcement, l.Width))
	lines = append(lines, dim+truncateToWidth(c.Status, l.Width)+resetAttrs)
	return lines
}

func listBody(view render.ListView, scrollOffset float64, l Layout) []string {
	rows := make(map[int]render.Row, len(view.Rows))
	for _, row := range view.Rows {
		rows[row.Index] = row
	}
	tail := tailLines(view, l.Width)

	start, end := l.VisibleRange(scrollOffset)
	body := make([]string, 0, end-start)
	for idx := start; idx < end; idx++ {
		switch {
		case idx < view.Count:
			if row, ok := rows[idx]; ok {
				body = append(body, formatRow(row, l.Width))
			} else {
				body = append(body, "")
			}
		case idx-view.Count < len(tail):
			body = append(body, tail[idx-view.Count])
		default:
			body = append(body, "")
		}
	}
	return body
}

// tailLines are drawn after the last loaded row.
func tailLines(view render.ListView, width int) []string {
	var tail []string
	if view.Error == render.ErrorInline {
		tail = append(tail, truncateToWidth("  ! Could not load more segments. Press r to retry.", width))
	}
	for i := 0; i < view.Placeholders; i++ {
		tail = append(tail, dim+"  "+strings.Repeat(placeholderRow, max(width/2, 1))+resetAttrs)
	}
	if view.EndOfContent {
		tail = append(tail, dim+center("-- End of transcript --", width)+resetAttrs)
	}
	return tail
}

func formatRow(row render.Row, width int) string {
	marker := " "
	if row.Highlighted {
		marker = ">"
	}
	text := fmt.Sprintf("%s %8s  %s", marker, row.Timestamp, strings.Join(strings.Fields(row.Segment.Text), " "))
	text = truncateToWidth(text, width)
	if row.Highlighted {
		return reverseVideo + pad(text, width) + resetAttrs
	}
	return text
}

func fullWidthError(message string, width, height int) []string {
	body := make([]string, height)
	if height == 0 {
		return body
	}
	mid := height / 2
	body[mid] = center("Transcript failed to load. Press r to retry.", width)
	if message != "" && mid+1 < height {
		body[mid+1] = dim + center(truncateToWidth(message, width), width) + resetAttrs
	}
	return body
}

func center(text string, width int) string {
	w := displayWidth(text)
	if w >= width {
		return truncateToWidth(text, width)
	}
	return strings.Repeat(" ", (width-w)/2) + text
}

func pad(text string, width int) string {
	if w := displayWidth(text); w < width {
		return text + strings.Repeat(" ", width-w)
	}
	return text
}

func truncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if displayWidth(text) <= width {
		return text
	}

	const ellipsis = "…"
	ellipsisWidth := runewidth.RuneWidth([]rune(ellipsis)[0])
	if ellipsisWidth <= 0 {
		ellipsisWidth = 1
	}
	if width <= ellipsisWidth {
		return ellipsis
	}

	target := width - ellipsisWidth
	var builder strings.Builder
	current := 0
	for _, ru := range text {
		w := runewidth.RuneWidth(ru)
		if w <= 0 {
			w = 1
		}
		if current+w > target {
			break
		}
		builder.WriteRune(ru)
		current += w
	}
	builder.WriteString(ellipsis)
	return builder.String()
}

func displayWidth(text string) int {
	width := 0
	for _, ru := range text {
		w := runewidth.RuneWidth(ru)
		if w <= 0 {
			w = 1
		}
		width += w
	}
	return width
}
