// Package keyboard maps navigation keys to viewport scrolls.
package keyboard

import (
	"fmt"
	"strings"

	"transcript-navigator/internal/service/viewport"
)

// AccessibleLabel describes the scroll container to assistive technology.
const AccessibleLabel = "Transcript segments. Use arrow keys, Page Up, Page Down, Home and End to scroll."

// Key is a navigation key understood by the controller.
type Key int

const (
	KeyUnknown Key = iota
	KeyArrowUp
	KeyArrowDown
	KeyPageUp
	KeyPageDown
	KeyHome
	KeyEnd
)

func (k Key) String() string {
	switch k {
	case KeyArrowUp:
		return "ArrowUp"
	case KeyArrowDown:
		return "ArrowDown"
	case KeyPageUp:
		return "PageUp"
	case KeyPageDown:
		return "PageDown"
	case KeyHome:
		return "Home"
	case KeyEnd:
		return "End"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// ParseKey maps a key name (as produced by String, case-insensitive) to a Key.
func ParseKey(name string) Key {
	switch strings.ToLower(name) {
	case "arrowup", "up":
		return KeyArrowUp
	case "arrowdown", "down":
		return KeyArrowDown
	case "pageup", "pgup":
		return KeyPageUp
	case "pagedown", "pgdn":
		return KeyPageDown
	case "home":
		return KeyHome
	case "end":
		return KeyEnd
	default:
		return KeyUnknown
	}
}

// Controller scrolls a viewport in response to keys. Every scroll is smooth.
type Controller struct {
	viewport  viewport.Viewport
	rowHeight float64
}

// New creates a controller stepping by rowHeight for arrow keys.
func New(vp viewport.Viewport, rowHeight float64) *Controller {
	return &Controller{viewport: vp, rowHeight: rowHeight}
}

// Handle performs the scroll bound to k and reports whether k was handled.
func (c *Controller) Handle(k Key) bool {
	switch k {
	case KeyArrowUp:
		c.viewport.ScrollBy(-c.rowHeight, viewport.Smooth)
	case KeyArrowDown:
		c.viewport.ScrollBy(c.rowHeight, viewport.Smooth)
	case KeyPageUp:
		c.viewport.ScrollBy(-c.viewport.Height(), viewport.Smooth)
	case KeyPageDown:
		c.viewport.ScrollBy(c.viewport.Height(), viewport.Smooth)
	case KeyHome:
		c.viewport.ScrollTo(0, viewport.Smooth)
	case KeyEnd:
		end := c.viewport.ScrollHeight() - c.viewport.Height()
		if end < 0 {
			end = 0
		}
		c.viewport.ScrollTo(end, viewport.Smooth)
	default:
		return false
	}
	return true
}
