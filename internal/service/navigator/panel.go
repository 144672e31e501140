// Package navigator composes the segment store, deep-link resolver, highlight
// coordinator, list renderer and keyboard controller into one transcript panel.
package navigator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"transcript-navigator/internal/config"
	"transcript-navigator/internal/models"
	"transcript-navigator/internal/observability/logging"
	"transcript-navigator/internal/observability/metrics"
	"transcript-navigator/internal/service/deeplink"
	"transcript-navigator/internal/service/highlight"
	"transcript-navigator/internal/service/keyboard"
	"transcript-navigator/internal/service/render"
	"transcript-navigator/internal/service/segments"
	"transcript-navigator/internal/service/viewport"
)

const publishTimeout = 10 * time.Second

// Params are the caller-controlled inputs of a panel.
type Params struct {
	VideoID  string
	Language string
	Target   models.DeepLinkTarget
	// OnDeepLinkComplete fires once per target identity, when the highlight
	// ends, is aborted, or nothing matched.
	OnDeepLinkComplete func()
	Expanded           bool
}

// Publisher receives navigation and failure events.
type Publisher interface {
	PublishNavigation(ctx context.Context, key string, event any) error
	PublishFailure(ctx context.Context, key string, event any) error
}

// rowSetter is implemented by viewports that size themselves from the row count.
type rowSetter interface {
	SetRows(n int)
}

// Deps wires a panel to its collaborators. Clock, Metrics and Logger are optional.
type Deps struct {
	Fetcher   segments.Fetcher
	Viewport  viewport.Viewport
	Announcer viewport.Announcer
	Publisher Publisher
	Config    config.FetchConfig
	Clock     clockwork.Clock
	Metrics   *metrics.Metrics
	Logger    *zerolog.Logger
}

// State is a point-in-time summary of a panel.
type State struct {
	SessionID     string `json:"sessionId"`
	VideoID       string `json:"videoId"`
	Language      string `json:"language"`
	Expanded      bool   `json:"expanded"`
	Identity      uint64 `json:"identity"`
	ResolverState string `json:"resolverState"`
	Segments      int    `json:"segments"`
	Total         int    `json:"total"`
	HasNextPage   bool   `json:"hasNextPage"`
	Loading       string `json:"loading"`
	Error         string `json:"error,omitempty"`
	HighlightedID int64  `json:"highlightedId,omitempty"`
	Windowed      bool   `json:"windowed"`
}

// Panel is one mounted transcript navigator.
type Panel struct {
	id          string
	cfg         config.FetchConfig
	viewport    viewport.Viewport
	publisher   Publisher
	store       *segments.Store
	resolver    *deeplink.Resolver
	highlighter *highlight.Coordinator
	renderer    *render.Renderer
	trigger     *render.LoadMoreTrigger
	keys        *keyboard.Controller
	log         zerolog.Logger
	unsubscribe func()
	publishing  sync.WaitGroup

	mu          sync.Mutex
	params      Params
	identity    uint64
	completed   bool
	resolution  deeplink.Resolution
	reportedErr error
	closed      bool
}

// New creates a panel. Nothing is fetched until the first Update.
func New(deps Deps) *Panel {
	p := &Panel{
		id:        uuid.NewString(),
		cfg:       deps.Config,
		viewport:  deps.Viewport,
		publisher: deps.Publisher,
	}
	if deps.Logger != nil {
		p.log = deps.Logger.With().Str("component", "navigator").Str("sessionId", p.id).Logger()
	} else {
		p.log = logging.WithSession("navigator", p.id)
	}

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	announcer := deps.Announcer
	if announcer == nil {
		announcer = nopAnnouncer{}
	}

	p.store = segments.New(deps.Fetcher, deps.Config,
		segments.WithClock(clock), segments.WithMetrics(m), segments.WithLogger(p.log))
	p.highlighter = highlight.New(deps.Viewport, announcer, deps.Config, p.onHighlightDone,
		highlight.WithClock(clock), highlight.WithMetrics(m), highlight.WithLogger(p.log))
	p.resolver = deeplink.New(p.store, deps.Viewport, p.highlighter, deps.Config, p.onResolved,
		deeplink.WithClock(clock), deeplink.WithMetrics(m), deeplink.WithLogger(p.log))
	p.renderer = render.NewRenderer(deps.Config)
	p.trigger = render.NewLoadMoreTrigger(p.store, deps.Config.InfiniteScrollTriggerPx, m)
	p.keys = keyboard.New(deps.Viewport, deps.Config.EstimatedRowHeightPx)
	p.unsubscribe = p.store.Subscribe(p.onStoreChange)

	return p
}

// SessionID returns the panel's unique session id.
func (p *Panel) SessionID() string {
	return p.id
}

// Update applies new caller parameters.
func (p *Panel) Update(params Params) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	prev := p.params
	p.params = params

	keyChanged := params.VideoID != prev.VideoID || params.Language != prev.Language
	targetChanged := params.Target != prev.Target
	if targetChanged {
		p.identity++
		p.completed = false
		p.resolution = deeplink.Resolution{}
	}
	identity := p.identity
	collapsed := prev.Expanded && !params.Expanded
	p.mu.Unlock()

	if keyChanged {
		p.log.Info().
			Str("videoId", params.VideoID).
			Str("language", params.Language).
			Msg("Loading transcript")
		p.store.Load(params.VideoID, params.Language)
	}
	if targetChanged {
		p.resolver.Reset(identity, params.Target)
		// The previous identity's highlight must not complete the new one.
		p.highlighter.Clear()
	}
	if collapsed {
		p.highlighter.Collapse(p.resolver)
	}
	if params.Expanded {
		p.resolver.Evaluate()
	}
}

func (p *Panel) onStoreChange(snap segments.Snapshot) {
	if rs, ok := p.viewport.(rowSetter); ok {
		rs.SetRows(len(snap.Segments))
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	expanded := p.params.Expanded
	var failure error
	if snap.Err != nil && snap.Err != p.reportedErr {
		failure = snap.Err
	}
	p.reportedErr = snap.Err
	p.mu.Unlock()

	if failure != nil {
		p.reportFailure(snap, failure)
	}
	if expanded {
		p.resolver.Evaluate()
	}
}

func (p *Panel) onResolved(res deeplink.Resolution) {
	p.mu.Lock()
	if res.Identity == p.identity {
		p.resolution = res
	}
	p.mu.Unlock()

	if !res.Found() {
		p.complete(res.Identity, false)
	}
}

func (p *Panel) onHighlightDone(out highlight.Outcome) {
	p.complete(out.Identity, out.Aborted)
}

// complete reports the end of the current target identity exactly once.
func (p *Panel) complete(identity uint64, aborted bool) {
	p.mu.Lock()
	if p.closed || p.completed || identity != p.identity {
		p.mu.Unlock()
		return
	}
	p.completed = true
	params := p.params
	res := p.resolution
	p.mu.Unlock()

	if params.OnDeepLinkComplete != nil {
		params.OnDeepLinkComplete()
	}

	event := models.DeepLinkCompleted{
		EventType:         models.EventDeepLinkCompleted,
		SessionID:         p.id,
		VideoID:           params.VideoID,
		Language:          params.Language,
		Identity:          identity,
		TargetSegmentID:   params.Target.SegmentID,
		ResolvedSegmentID: res.Segment.ID,
		Strategy:          string(res.Strategy),
		SequentialFetches: res.SequentialFetches,
		Seeked:            res.Seeked,
		Aborted:           aborted,
		Timestamp:         time.Now().UnixMilli(),
	}
	if params.Target.HasTimestamp {
		ts := params.Target.Timestamp
		event.TargetTimestamp = &ts
	}

	p.log.Info().
		Uint64("identity", identity).
		Bool("aborted", aborted).
		Str("strategy", event.Strategy).
		Msg("Deep link complete")

	p.goPublish(func(ctx context.Context) error {
		return p.publisher.PublishNavigation(ctx, p.id, event)
	})
}

func (p *Panel) reportFailure(snap segments.Snapshot, err error) {
	event := models.FetchFailed{
		EventType: models.EventFetchFailed,
		SessionID: p.id,
		VideoID:   snap.Key.VideoID,
		Language:  snap.Key.Language,
		Message:   err.Error(),
		Timestamp: time.Now().UnixMilli(),
	}
	var fe *segments.FetchError
	if errors.As(err, &fe) {
		event.Operation = fe.Op.String()
		event.Offset = fe.Offset
		event.ErrorKind = fe.Kind.String()
	}

	p.log.Warn().
		Err(err).
		Str("op", event.Operation).
		Int("offset", event.Offset).
		Bool("firstPage", snap.ErrOnFirstPage).
		Msg("Segment page request failed")

	p.goPublish(func(ctx context.Context) error {
		return p.publisher.PublishFailure(ctx, p.id, event)
	})
}

// goPublish runs fn in a goroutine that Close waits for. Nothing is started
// once the panel is closed.
func (p *Panel) goPublish(fn func(context.Context) error) {
	if p.publisher == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.publishing.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.publishing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			p.log.Warn().Err(err).Msg("Failed to publish event")
		}
	}()
}

// View renders the list at the current scroll position.
func (p *Panel) View() render.ListView {
	view := p.renderer.Render(p.store.Snapshot(), p.viewport.ScrollOffset(), p.viewport.Height())
	for i := range view.Rows {
		style := p.highlighter.Style(view.Rows[i].Segment.ID)
		view.Rows[i].Highlighted = style.Highlighted
		view.Rows[i].FadeOut = style.FadeOut
	}
	return view
}

// HandleKey applies a navigation key and reports whether it was handled.
func (p *Panel) HandleKey(k keyboard.Key) bool {
	if !p.keys.Handle(k) {
		return false
	}
	p.OnScroll()
	return true
}

// OnScroll runs the scroll-distance load-more check.
func (p *Panel) OnScroll() bool {
	return p.trigger.CheckScroll(p.viewport.ScrollOffset(), p.viewport.Height(), p.viewport.ScrollHeight())
}

// SentinelVisible reports that the list tail sentinel entered the viewport.
func (p *Panel) SentinelVisible() bool {
	return p.trigger.SentinelVisible()
}

// Retry re-issues the last failed request.
func (p *Panel) Retry() {
	p.store.Retry()
}

// Snapshot returns the store's current state.
func (p *Panel) Snapshot() segments.Snapshot {
	return p.store.Snapshot()
}

// State summarizes the panel.
func (p *Panel) State() State {
	snap := p.store.Snapshot()

	p.mu.Lock()
	params := p.params
	identity := p.identity
	p.mu.Unlock()

	st := State{
		SessionID:     p.id,
		VideoID:       params.VideoID,
		Language:      params.Language,
		Expanded:      params.Expanded,
		Identity:      identity,
		ResolverState: p.resolver.State().String(),
		Segments:      len(snap.Segments),
		Total:         snap.Cursor.Total,
		HasNextPage:   snap.HasNextPage(),
		Loading:       snap.Loading.String(),
		Windowed:      render.IsWindowed(len(snap.Segments), p.cfg),
	}
	if snap.Err != nil {
		st.Error = snap.Err.Error()
	}
	if id, ok := p.highlighter.HighlightedID(); ok {
		st.HighlightedID = id
	}
	return st
}

// Close unmounts the panel: requests, timers and subscriptions are released
// and in-flight event publishes are waited for.
func (p *Panel) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.unsubscribe()
	p.store.Close()
	p.resolver.Close()
	p.highlighter.Close()
	p.publishing.Wait()
	p.log.Debug().Msg("Panel closed")
}

type nopAnnouncer struct{}

func (nopAnnouncer) Announce(string) {}
