// Package viewport defines the scrollable surface the navigator drives and an
// in-memory implementation used by headless front ends.
package viewport

import "sync"

// Behavior selects how a scroll is performed.
type Behavior int

const (
	Instant Behavior = iota
	Smooth
)

func (b Behavior) String() string {
	if b == Smooth {
		return "smooth"
	}
	return "instant"
}

// Viewport is the scroll container of the segment list. Offsets are in the
// same units as the estimated row height.
type Viewport interface {
	ScrollOffset() float64
	Height() float64
	ScrollHeight() float64

	ScrollTo(offset float64, behavior Behavior)
	ScrollBy(delta float64, behavior Behavior)
	// ScrollToIndex brings the row at index to the vertical center.
	ScrollToIndex(index int, behavior Behavior)
	// Focus moves keyboard focus to the row at index.
	Focus(index int)
}

// Announcer delivers screen-reader style announcements. An empty message
// clears the current announcement.
type Announcer interface {
	Announce(message string)
}

// Memory is a thread-safe in-memory Viewport with uniform rows.
type Memory struct {
	mu           sync.Mutex
	rowHeight    float64
	height       float64
	rows         int
	offset       float64
	focused      int
	scrollCalls  int
	lastBehavior Behavior
	announcement string
}

// NewMemory creates a viewport of the given height over uniform rows.
func NewMemory(height, rowHeight float64) *Memory {
	return &Memory{height: height, rowHeight: rowHeight, focused: -1}
}

// SetRows updates the number of rows in the scrollable region.
func (m *Memory) SetRows(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = n
	m.offset = m.clamp(m.offset)
}

// SetHeight resizes the visible region.
func (m *Memory) SetHeight(h float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = h
	m.offset = m.clamp(m.offset)
}

func (m *Memory) ScrollOffset() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

func (m *Memory) Height() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}

func (m *Memory) ScrollHeight() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.rows) * m.rowHeight
}

func (m *Memory) ScrollTo(offset float64, behavior Behavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = m.clamp(offset)
	m.scrollCalls++
	m.lastBehavior = behavior
}

func (m *Memory) ScrollBy(delta float64, behavior Behavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = m.clamp(m.offset + delta)
	m.scrollCalls++
	m.lastBehavior = behavior
}

func (m *Memory) ScrollToIndex(index int, behavior Behavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	center := float64(index)*m.rowHeight + m.rowHeight/2
	m.offset = m.clamp(center - m.height/2)
	m.scrollCalls++
	m.lastBehavior = behavior
}

func (m *Memory) Focus(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focused = index
}

// Announce implements Announcer.
func (m *Memory) Announce(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announcement = message
}

// Focused returns the focused row index, or -1.
func (m *Memory) Focused() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// Announcement returns the current announcement.
func (m *Memory) Announcement() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.announcement
}

// ScrollCalls returns how many scroll operations were performed.
func (m *Memory) ScrollCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scrollCalls
}

// LastBehavior returns the behavior of the most recent scroll.
func (m *Memory) LastBehavior() Behavior {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBehavior
}

func (m *Memory) clamp(offset float64) float64 {
	limit := float64(m.rows)*m.rowHeight - m.height
	if offset > limit {
		offset = limit
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}
