package deeplink

import (
	"context"
	"math"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"transcript-navigator/internal/config"
	"transcript-navigator/internal/models"
	"transcript-navigator/internal/observability/logging"
	"transcript-navigator/internal/observability/metrics"
	"transcript-navigator/internal/service/render"
	"transcript-navigator/internal/service/segments"
	"transcript-navigator/internal/service/viewport"
)

// Source is the read side of the segment store plus the two ways the
// resolver can ask it for more data.
type Source interface {
	Snapshot() segments.Snapshot
	FetchNextPage()
	SeekToTimestamp(ctx context.Context, timestamp float64) (bool, error)
}

// Highlighter receives the resolved row once it has been scrolled to.
type Highlighter interface {
	Highlight(identity uint64, index int, segment models.Segment)
}

// Resolution describes how a target identity was settled.
type Resolution struct {
	Identity          uint64
	Target            models.DeepLinkTarget
	Index             int // -1 when nothing matched
	Segment           models.Segment
	Strategy          Strategy
	SequentialFetches int
	Seeked            bool
}

// Found reports whether the resolution points at a row.
func (r Resolution) Found() bool {
	return r.Index >= 0
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithClock injects the clock used for the scroll handoff delay.
func WithClock(c clockwork.Clock) Option {
	return func(r *Resolver) { r.clock = c }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// Resolver is the deep-link state machine for one panel. Evaluate is called
// on every store change; each call either settles the target from loaded
// data or performs exactly one asynchronous step and waits for the store
// change that step produces.
type Resolver struct {
	mu          sync.Mutex
	source      Source
	viewport    viewport.Viewport
	highlighter Highlighter
	onResolved  func(Resolution)
	cfg         config.FetchConfig
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	log         zerolog.Logger

	identity      uint64
	target        models.DeepLinkTarget
	state         State
	fetches       int
	seekAttempted bool
	issuing       bool

	handoff    clockwork.Timer
	seekCancel context.CancelFunc
	closed     bool
}

// New creates a resolver. onResolved is called once per target identity when
// it reaches StateResolved, outside the resolver's lock.
func New(source Source, vp viewport.Viewport, hl Highlighter, cfg config.FetchConfig, onResolved func(Resolution), opts ...Option) *Resolver {
	r := &Resolver{
		source:      source,
		viewport:    vp,
		highlighter: hl,
		onResolved:  onResolved,
		cfg:         cfg,
		clock:       clockwork.NewRealClock(),
		metrics:     metrics.DefaultMetrics,
		log:         logging.WithComponent("deeplink"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.onResolved == nil {
		r.onResolved = func(Resolution) {}
	}
	return r
}

// Reset arms the resolver for a new target identity. Repeating the current
// identity is a no-op, which keeps resolution one-shot across re-renders.
func (r *Resolver) Reset(identity uint64, target models.DeepLinkTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || identity == r.identity {
		return
	}
	r.stopLocked()
	r.identity = identity
	r.target = target
	r.state = StateIdle
	r.fetches = 0
	r.seekAttempted = false
	r.issuing = false

	r.log.Debug().
		Uint64("identity", identity).
		Int64("segmentId", target.SegmentID).
		Bool("hasTimestamp", target.HasTimestamp).
		Float64("timestamp", target.Timestamp).
		Msg("Deep link target armed")
}

// State returns the current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Identity returns the target identity being resolved.
func (r *Resolver) Identity() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

// SequentialFetches returns how many next-page requests the resolver issued
// for the current identity.
func (r *Resolver) SequentialFetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

// Evaluate runs one step of the resolution algorithm against the current
// store snapshot.
func (r *Resolver) Evaluate() {
	r.mu.Lock()
	if r.closed || r.state.IsTerminal() || r.state == StateSeeking || r.issuing || r.target.IsEmpty() {
		r.mu.Unlock()
		return
	}
	snap := r.source.Snapshot()
	if !snap.InitialLoaded || snap.IsFetching() || snap.Err != nil {
		r.mu.Unlock()
		return
	}
	action := r.decideLocked(snap)
	r.mu.Unlock()

	if action != nil {
		action()
	}
}

func (r *Resolver) decideLocked(snap segments.Snapshot) func() {
	r.state = StateSearching

	if r.target.HasSegmentID() {
		if idx := indexOfID(snap.Segments, r.target.SegmentID); idx >= 0 {
			return r.resolveLocked(snap, idx, StrategyExactID)
		}

		if snap.HasNextPage() && r.fetches < r.cfg.SequentialFetchCap {
			r.fetches++
			r.state = StateSequentialFetch
			r.issuing = true
			r.log.Debug().
				Int64("segmentId", r.target.SegmentID).
				Int("attempt", r.fetches).
				Int("loaded", len(snap.Segments)).
				Msg("Target not loaded, fetching next page")
			return r.fetchNext
		}

		if !r.seekAttempted && r.target.HasTimestamp && snap.HasNextPage() {
			r.seekAttempted = true
			r.state = StateSeeking
			ctx, cancel := context.WithCancel(context.Background())
			r.seekCancel = cancel
			identity, ts := r.identity, r.target.Timestamp
			r.log.Debug().
				Int64("segmentId", r.target.SegmentID).
				Float64("timestamp", ts).
				Int("fetches", r.fetches).
				Msg("Sequential fetches exhausted, seeking")
			return func() { go r.seek(ctx, identity, ts) }
		}
	}

	if r.target.HasTimestamp {
		if idx := nearestIndex(snap.Segments, r.target.Timestamp); idx >= 0 {
			return r.resolveLocked(snap, idx, StrategyNearestTimestamp)
		}
	}

	r.state = StateResolved
	res := Resolution{
		Identity:          r.identity,
		Target:            r.target,
		Index:             -1,
		Strategy:          StrategyNone,
		SequentialFetches: r.fetches,
		Seeked:            r.seekAttempted,
	}
	return func() { r.finish(res) }
}

// resolveLocked settles the target at idx and schedules the scroll handoff.
func (r *Resolver) resolveLocked(snap segments.Snapshot, idx int, strategy Strategy) func() {
	r.state = StateResolved
	res := Resolution{
		Identity:          r.identity,
		Target:            r.target,
		Index:             idx,
		Segment:           snap.Segments[idx],
		Strategy:          strategy,
		SequentialFetches: r.fetches,
		Seeked:            r.seekAttempted,
	}

	windowed := render.IsWindowed(len(snap.Segments), r.cfg)
	delay := r.cfg.DirectScrollDelay
	if windowed {
		delay = r.cfg.WindowedScrollDelay
	}
	identity := r.identity
	r.handoff = r.clock.AfterFunc(delay, func() { r.handoffTo(identity, res) })

	return func() {
		if windowed {
			// Bring the neighbourhood into the materialized window first.
			r.viewport.ScrollTo(float64(idx)*r.cfg.EstimatedRowHeightPx, viewport.Instant)
		}
		r.finish(res)
	}
}

func (r *Resolver) finish(res Resolution) {
	r.metrics.RecordResolution(string(res.Strategy), res.SequentialFetches)
	r.log.Info().
		Uint64("identity", res.Identity).
		Str("strategy", string(res.Strategy)).
		Int("index", res.Index).
		Int64("segmentId", res.Segment.ID).
		Int("fetches", res.SequentialFetches).
		Bool("seeked", res.Seeked).
		Msg("Deep link resolved")
	r.onResolved(res)
}

func (r *Resolver) fetchNext() {
	r.source.FetchNextPage()

	r.mu.Lock()
	r.issuing = false
	r.mu.Unlock()

	// A request that started is observed through the store notification; one
	// that was refused leaves the snapshot idle, so step again.
	r.Evaluate()
}

func (r *Resolver) seek(ctx context.Context, identity uint64, timestamp float64) {
	found, err := r.source.SeekToTimestamp(ctx, timestamp)

	r.mu.Lock()
	if r.closed || r.identity != identity || r.state != StateSeeking {
		r.mu.Unlock()
		return
	}
	if r.seekCancel != nil {
		r.seekCancel()
		r.seekCancel = nil
	}
	r.state = StateSearching
	r.mu.Unlock()

	switch {
	case err != nil:
		r.metrics.RecordSeek("error")
		r.log.Warn().Err(err).Float64("timestamp", timestamp).Msg("Seek failed, using loaded segments")
	case found:
		r.metrics.RecordSeek("found")
	default:
		r.metrics.RecordSeek("not_found")
	}

	r.Evaluate()
}

func (r *Resolver) handoffTo(identity uint64, res Resolution) {
	r.mu.Lock()
	if r.closed || r.identity != identity || r.state != StateResolved || r.handoff == nil {
		r.mu.Unlock()
		return
	}
	r.handoff = nil
	r.mu.Unlock()

	r.viewport.ScrollToIndex(res.Index, viewport.Smooth)
	r.highlighter.Highlight(res.Identity, res.Index, res.Segment)
}

// Abort marks the current identity aborted. It reports whether the state
// changed.
func (r *Resolver) Abort() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateAborted || r.target.IsEmpty() {
		return false
	}
	r.stopLocked()
	r.state = StateAborted
	return true
}

// AbortPending aborts a resolution whose scroll handoff has not fired yet.
func (r *Resolver) AbortPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateResolved || r.handoff == nil {
		return false
	}
	r.stopLocked()
	r.state = StateAborted
	return true
}

// Close stops timers and any in-flight seek. The resolver is inert afterwards.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.closed = true
}

func (r *Resolver) stopLocked() {
	if r.handoff != nil {
		r.handoff.Stop()
		r.handoff = nil
	}
	if r.seekCancel != nil {
		r.seekCancel()
		r.seekCancel = nil
	}
}

func indexOfID(segs []models.Segment, id int64) int {
	for i := range segs {
		if segs[i].ID == id {
			return i
		}
	}
	return -1
}

// nearestIndex returns the segment whose start time is closest to ts. Ties go
// to the earliest index.
func nearestIndex(segs []models.Segment, ts float64) int {
	best := -1
	bestDiff := math.Inf(1)
	for i := range segs {
		diff := math.Abs(segs[i].StartTime - ts)
		if diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return best
}
