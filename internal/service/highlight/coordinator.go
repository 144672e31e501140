// Package highlight owns the transient highlight of a deep-linked segment:
// announcement, delayed focus, timed clearing and abort on collapse.
package highlight

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"transcript-navigator/internal/config"
	"transcript-navigator/internal/models"
	"transcript-navigator/internal/observability/logging"
	"transcript-navigator/internal/observability/metrics"
	"transcript-navigator/internal/service/viewport"
)

// Outcome is reported once a highlight cycle ends. Identity is the target
// identity the highlight was started for.
type Outcome struct {
	Identity  uint64
	SegmentID int64
	Aborted   bool
}

// Aborter is the resolver surface used when the panel collapses.
type Aborter interface {
	Identity() uint64
	Abort() bool
	AbortPending() bool
}

// Style is the presentation of a single row.
type Style struct {
	Highlighted bool
	FadeOut     bool
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock injects the clock used for focus and expiry timers.
func WithClock(c clockwork.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(co *Coordinator) { co.metrics = m }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(co *Coordinator) { co.log = l }
}

// Coordinator manages at most one highlighted segment.
type Coordinator struct {
	mu        sync.Mutex
	viewport  viewport.Viewport
	announcer viewport.Announcer
	cfg       config.FetchConfig
	onDone    func(Outcome)
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	log       zerolog.Logger

	active      bool
	identity    uint64
	highlighted int64
	gen         uint64
	focusTimer  clockwork.Timer
	expiryTimer clockwork.Timer
	closed      bool
}

// New creates a coordinator. onDone receives every finished cycle, outside
// the coordinator's lock.
func New(vp viewport.Viewport, announcer viewport.Announcer, cfg config.FetchConfig, onDone func(Outcome), opts ...Option) *Coordinator {
	c := &Coordinator{
		viewport:  vp,
		announcer: announcer,
		cfg:       cfg,
		onDone:    onDone,
		clock:     clockwork.NewRealClock(),
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("highlight"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onDone == nil {
		c.onDone = func(Outcome) {}
	}
	return c
}

// Announcement formats the message announced for a jump to seg.
func Announcement(seg models.Segment) string {
	return fmt.Sprintf("Jumped to transcript segment at %s", models.FormatTimestamp(seg.StartTime))
}

// Highlight marks seg as highlighted for target identity, announces it, moves
// focus to index after FocusDelay and clears everything after HighlightDuration.
func (c *Coordinator) Highlight(identity uint64, index int, seg models.Segment) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopTimersLocked()
	replaced := c.active
	c.active = true
	c.identity = identity
	c.highlighted = seg.ID
	c.gen++
	gen := c.gen
	c.focusTimer = c.clock.AfterFunc(c.cfg.FocusDelay, func() { c.focus(gen, index) })
	c.expiryTimer = c.clock.AfterFunc(c.cfg.HighlightDuration, func() { c.expire(gen) })
	c.mu.Unlock()

	c.announcer.Announce(Announcement(seg))
	if !replaced {
		c.metrics.RecordHighlightStart()
	}
	c.log.Debug().
		Int("index", index).
		Int64("segmentId", seg.ID).
		Dur("duration", c.cfg.HighlightDuration).
		Msg("Highlight set")
}

func (c *Coordinator) focus(gen uint64, index int) {
	c.mu.Lock()
	if c.closed || !c.active || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.focusTimer = nil
	c.mu.Unlock()

	c.viewport.Focus(index)
}

func (c *Coordinator) expire(gen uint64) {
	c.mu.Lock()
	if c.closed || !c.active || gen != c.gen {
		c.mu.Unlock()
		return
	}
	identity, id := c.identity, c.clearLocked()
	c.mu.Unlock()

	c.announcer.Announce("")
	c.metrics.RecordHighlightEnd()
	c.log.Debug().Int64("segmentId", id).Msg("Highlight expired")
	c.onDone(Outcome{Identity: identity, SegmentID: id})
}

// Clear drops an active highlight without reporting an outcome. It is used
// when the target identity changes under a running highlight.
func (c *Coordinator) Clear() bool {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return false
	}
	id := c.clearLocked()
	c.mu.Unlock()

	c.announcer.Announce("")
	c.metrics.RecordHighlightEnd()
	c.log.Debug().Int64("segmentId", id).Msg("Highlight cleared")
	return true
}

// Collapse handles the panel being hidden. An active highlight is cleared and
// the resolver aborted when it still owns the highlighted identity; a resolved
// target still waiting for its scroll handoff is aborted too. It reports
// whether anything was aborted.
func (c *Coordinator) Collapse(resolver Aborter) bool {
	c.mu.Lock()
	if c.active {
		identity, id := c.identity, c.clearLocked()
		c.mu.Unlock()

		c.announcer.Announce("")
		c.metrics.RecordHighlightEnd()
		if resolver != nil && resolver.Identity() == identity {
			resolver.Abort()
		}
		c.metrics.RecordAborted()
		c.log.Info().Int64("segmentId", id).Msg("Highlight aborted by collapse")
		c.onDone(Outcome{Identity: identity, SegmentID: id, Aborted: true})
		return true
	}
	c.mu.Unlock()

	if resolver != nil && resolver.AbortPending() {
		c.metrics.RecordAborted()
		c.log.Info().Msg("Pending deep link aborted by collapse")
		c.onDone(Outcome{Identity: resolver.Identity(), Aborted: true})
		return true
	}
	return false
}

// Style returns the presentation of the row holding segment id.
func (c *Coordinator) Style(id int64) Style {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || id != c.highlighted {
		return Style{}
	}
	return Style{Highlighted: true, FadeOut: !c.cfg.ReducedMotion}
}

// HighlightedID returns the highlighted segment id, if any.
func (c *Coordinator) HighlightedID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlighted, c.active
}

// Close stops timers without reporting an outcome.
func (c *Coordinator) Close() {
	c.mu.Lock()
	wasActive := c.active
	c.clearLocked()
	c.closed = true
	c.mu.Unlock()

	if wasActive {
		c.metrics.RecordHighlightEnd()
	}
}

func (c *Coordinator) clearLocked() int64 {
	id := c.highlighted
	c.stopTimersLocked()
	c.active = false
	c.identity = 0
	c.highlighted = 0
	c.gen++
	return id
}

func (c *Coordinator) stopTimersLocked() {
	if c.focusTimer != nil {
		c.focusTimer.Stop()
		c.focusTimer = nil
	}
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
		c.expiryTimer = nil
	}
}
