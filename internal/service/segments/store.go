// Package segments provides the paginated segment store: it fetches and
// accumulates transcript pages for one (video, language) key and owns
// cancellation, debouncing, retry and positional seek.
package segments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"transcript-navigator/internal/config"
	"transcript-navigator/internal/models"
	"transcript-navigator/internal/observability/logging"
	"transcript-navigator/internal/observability/metrics"
)

// Key identifies one paged sequence.
type Key struct {
	VideoID  string
	Language string
}

// Valid reports whether both parts of the key are set.
func (k Key) Valid() bool {
	return k.VideoID != "" && k.Language != ""
}

func (k Key) String() string {
	return k.VideoID + "/" + k.Language
}

// Fetcher is the transport behind the store.
type Fetcher interface {
	// FetchPage loads limit segments starting at offset.
	FetchPage(ctx context.Context, key Key, offset, limit int) (models.Page, error)

	// Seek loads every segment from offset `from` through the end of the page
	// whose range contains timestamp. An empty page means not found.
	Seek(ctx context.Context, key Key, timestamp float64, from int) (models.Page, error)
}

// LoadKind names the request currently in flight.
type LoadKind int

const (
	LoadNone LoadKind = iota
	LoadInitial
	LoadNext
	LoadSeek
)

// String returns the string representation of the load kind.
func (k LoadKind) String() string {
	switch k {
	case LoadNone:
		return "none"
	case LoadInitial:
		return "initial"
	case LoadNext:
		return "next"
	case LoadSeek:
		return "seek"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Snapshot is an immutable view of the store.
type Snapshot struct {
	Key            Key
	Generation     uint64
	Segments       []models.Segment
	Cursor         models.Cursor
	InitialLoaded  bool
	Loading        LoadKind
	Err            error
	ErrOnFirstPage bool
}

// HasNextPage reports whether more pages exist after the loaded ones.
func (s Snapshot) HasNextPage() bool {
	return s.InitialLoaded && s.Cursor.HasMore
}

// IsFetching reports whether any request is in flight or scheduled.
func (s Snapshot) IsFetching() bool {
	return s.Loading != LoadNone
}

// IsFetchingNextPage reports whether a request after the first page is in flight.
func (s Snapshot) IsFetchingNextPage() bool {
	return s.Loading == LoadNext || s.Loading == LoadSeek
}

type request struct {
	kind   LoadKind
	offset int
	limit  int
}

// Option customizes a Store.
type Option func(*Store)

// WithClock injects the clock used for the debounce timer.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithMetrics injects the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger injects the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Store owns the segment array and pagination cursor of one key at a time.
// Thread-safe. Listeners are invoked outside the lock.
type Store struct {
	fetcher Fetcher
	cfg     config.FetchConfig
	clock   clockwork.Clock
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu             sync.Mutex
	key            Key
	generation     uint64
	segments       []models.Segment
	cursor         models.Cursor
	initialLoaded  bool
	loading        LoadKind
	err            error
	errOnFirstPage bool
	// resumable is the last request that failed or was cancelled; Retry re-issues it.
	resumable *request

	// Only one request is active at a time; completions with another seq are stale.
	seq       uint64
	active    uint64
	activeReq request
	cancel    context.CancelFunc
	debounce  clockwork.Timer
	closed    bool

	nextListener int
	listeners    map[int]func(Snapshot)
	pending      []Snapshot
	delivering   bool
}

// New creates a store over fetcher.
func New(fetcher Fetcher, cfg config.FetchConfig, opts ...Option) *Store {
	s := &Store{
		fetcher:   fetcher,
		cfg:       cfg,
		clock:     clockwork.NewRealClock(),
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("segment_store"),
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for change notifications and returns its remover.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	n := len(s.segments)
	return Snapshot{
		Key:        s.key,
		Generation: s.generation,
		// Capacity is clipped so later appends never alias into a published view.
		Segments:       s.segments[:n:n],
		Cursor:         s.cursor,
		InitialLoaded:  s.initialLoaded,
		Loading:        s.loading,
		Err:            s.err,
		ErrOnFirstPage: s.errOnFirstPage,
	}
}

// notify queues the current state for listeners. Snapshots are delivered in
// the order they were taken by a single goroutine at a time; a notify raised
// from inside a listener is queued and delivered after it returns.
func (s *Store) notify() {
	s.mu.Lock()
	s.pending = append(s.pending, s.snapshotLocked())
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true

	for len(s.pending) > 0 {
		snap := s.pending[0]
		s.pending = s.pending[1:]
		fns := make([]func(Snapshot), 0, len(s.listeners))
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
		s.mu.Unlock()

		for _, fn := range fns {
			fn(snap)
		}
		s.mu.Lock()
	}
	s.pending = nil
	s.delivering = false
	s.mu.Unlock()
}

// Load starts a new paged sequence for (videoID, language). Calling it again
// with the current key is a no-op; a different key discards all prior pages
// and cancels whatever was in flight for the old key.
func (s *Store) Load(videoID, language string) {
	key := Key{VideoID: videoID, Language: language}

	s.mu.Lock()
	if s.closed || (key == s.key && s.generation > 0) {
		s.mu.Unlock()
		return
	}

	s.abortLocked()
	s.generation++
	s.key = key
	s.segments = nil
	s.cursor = models.Cursor{}
	s.initialLoaded = false
	s.err = nil
	s.errOnFirstPage = false
	s.resumable = nil

	if !key.Valid() {
		s.mu.Unlock()
		s.notify()
		return
	}

	req := request{kind: LoadInitial, offset: 0, limit: s.cfg.InitialBatchSize}
	seq := s.beginLocked(req)
	if d := s.cfg.LanguageSwitchDebounce; d > 0 {
		s.debounce = s.clock.AfterFunc(d, func() { s.launch(seq, req) })
		s.mu.Unlock()
		s.log.Debug().Str("key", key.String()).Dur("debounce", d).Msg("Initial load scheduled")
		s.notify()
		return
	}
	s.mu.Unlock()

	s.notify()
	s.launch(seq, req)
}

// FetchNextPage requests the page after the loaded ones. No-op when there are
// no more pages or a request is already in flight.
func (s *Store) FetchNextPage() {
	s.mu.Lock()
	if s.closed || !s.initialLoaded || !s.cursor.HasMore || s.loading != LoadNone {
		s.mu.Unlock()
		return
	}
	req := request{kind: LoadNext, offset: s.cursor.Next(), limit: s.cfg.SubsequentBatchSize}
	seq := s.beginLocked(req)
	s.mu.Unlock()

	s.notify()
	s.launch(seq, req)
}

// Retry re-issues the most recent failed (or cancelled) request with the same
// offset and limit. Loaded segments are kept.
func (s *Store) Retry() {
	s.mu.Lock()
	if s.closed || s.resumable == nil || s.loading != LoadNone || !s.key.Valid() {
		s.mu.Unlock()
		return
	}
	req := *s.resumable
	s.resumable = nil
	seq := s.beginLocked(req)
	key := s.key
	s.mu.Unlock()

	s.log.Info().
		Str("key", key.String()).
		Str("op", req.kind.String()).
		Int("offset", req.offset).
		Msg("Retrying page request")
	s.notify()
	s.launch(seq, req)
}

// CancelRequests aborts the in-flight request and any pending debounce for
// the current key. The aborted request stays resumable through Retry.
func (s *Store) CancelRequests() {
	s.mu.Lock()
	changed := s.abortLocked()
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Close tears the store down: cancels requests, stops timers and drops listeners.
func (s *Store) Close() {
	s.mu.Lock()
	s.abortLocked()
	s.closed = true
	s.listeners = make(map[int]func(Snapshot))
	s.mu.Unlock()
}

// SeekToTimestamp issues one request that loads every segment from the
// current end of the list through the page containing timestamp. It returns
// whether such a page was found and appended.
func (s *Store) SeekToTimestamp(ctx context.Context, timestamp float64) (bool, error) {
	s.mu.Lock()
	if s.closed || !s.initialLoaded || !s.cursor.HasMore {
		s.mu.Unlock()
		return false, nil
	}
	if s.loading != LoadNone {
		s.mu.Unlock()
		return false, fmt.Errorf("seek to %.3f: %w", timestamp, errBusy)
	}
	from := s.cursor.Next()
	req := request{kind: LoadSeek, offset: from}
	seq := s.beginLocked(req)
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	s.cancel = cancel
	key := s.key
	s.mu.Unlock()
	s.notify()

	started := time.Now()
	page, err := s.fetcher.Seek(reqCtx, key, timestamp, from)
	cancel()
	latency := time.Since(started).Seconds()

	s.mu.Lock()
	if seq != s.active {
		s.mu.Unlock()
		s.metrics.RecordStaleResponse()
		return false, &FetchError{Kind: KindCancelled, Op: LoadSeek, Offset: from, Err: ErrCancelled}
	}
	s.clearActiveLocked()

	if err != nil {
		fe := &FetchError{Kind: Classify(err), Op: LoadSeek, Offset: from, Err: err}
		s.mu.Unlock()
		s.metrics.RecordPageFetch(LoadSeek.String(), fe.Kind.String(), latency)
		s.notify()
		return false, fe
	}

	if len(page.Items) == 0 {
		s.mu.Unlock()
		s.metrics.RecordPageFetch(LoadSeek.String(), "", latency)
		s.notify()
		return false, nil
	}
	if page.Offset != from {
		s.mu.Unlock()
		s.metrics.RecordPageFetch(LoadSeek.String(), KindServer.String(), latency)
		s.notify()
		return false, &FetchError{
			Kind:   KindServer,
			Op:     LoadSeek,
			Offset: from,
			Err:    fmt.Errorf("seek page starts at %d, expected %d", page.Offset, from),
		}
	}

	s.appendLocked(page.Items)
	s.cursor = models.Cursor{
		Offset:  page.Offset,
		Limit:   len(page.Items),
		Total:   page.Total,
		HasMore: page.HasMore,
	}
	loaded := len(s.segments)
	s.mu.Unlock()

	s.metrics.RecordPageFetch(LoadSeek.String(), "", latency)
	s.metrics.RecordSegmentsLoaded(len(page.Items))
	s.log.Debug().
		Str("key", key.String()).
		Float64("timestamp", timestamp).
		Int("from", from).
		Int("loaded", loaded).
		Msg("Seek loaded covering page")
	s.notify()
	return true, nil
}

// beginLocked marks req as the single active request and returns its seq.
func (s *Store) beginLocked(req request) uint64 {
	s.seq++
	s.active = s.seq
	s.activeReq = req
	s.loading = req.kind
	s.err = nil
	s.errOnFirstPage = false
	return s.seq
}

func (s *Store) clearActiveLocked() {
	s.active = 0
	s.loading = LoadNone
	s.cancel = nil
}

// abortLocked cancels whatever is active. Returns true if anything was.
func (s *Store) abortLocked() bool {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.active == 0 {
		return false
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.metrics.RecordCancelled()
	req := s.activeReq
	if req.kind != LoadSeek {
		s.resumable = &req
	}
	s.clearActiveLocked()
	return true
}

func (s *Store) launch(seq uint64, req request) {
	s.mu.Lock()
	if s.closed || seq != s.active {
		s.mu.Unlock()
		return
	}
	s.debounce = nil
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	s.cancel = cancel
	key := s.key
	s.mu.Unlock()

	go s.run(ctx, cancel, seq, key, req)
}

func (s *Store) run(ctx context.Context, cancel context.CancelFunc, seq uint64, key Key, req request) {
	started := time.Now()
	page, err := s.fetcher.FetchPage(ctx, key, req.offset, req.limit)
	if err != nil && ctx.Err() != nil {
		// The request context is the authority on timeout vs cancellation.
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	cancel()
	s.complete(seq, key, req, page, err, time.Since(started).Seconds())
}

func (s *Store) complete(seq uint64, key Key, req request, page models.Page, err error, latency float64) {
	s.mu.Lock()
	if s.closed || seq != s.active {
		s.mu.Unlock()
		s.metrics.RecordStaleResponse()
		s.log.Debug().
			Str("key", key.String()).
			Str("op", req.kind.String()).
			Int("offset", req.offset).
			Msg("Dropped response for superseded request")
		return
	}
	s.clearActiveLocked()

	if err != nil {
		fe := &FetchError{Kind: Classify(err), Op: req.kind, Offset: req.offset, Err: err}
		s.resumable = &req
		if fe.Kind != KindCancelled {
			s.err = fe
			s.errOnFirstPage = !s.initialLoaded
		}
		s.mu.Unlock()

		s.metrics.RecordPageFetch(req.kind.String(), fe.Kind.String(), latency)
		if fe.Kind == KindCancelled {
			s.log.Debug().Str("key", key.String()).Str("op", req.kind.String()).Msg("Page request cancelled")
		} else {
			s.log.Warn().
				Err(err).
				Str("key", key.String()).
				Str("op", req.kind.String()).
				Str("kind", fe.Kind.String()).
				Int("offset", req.offset).
				Msg("Page request failed")
		}
		s.notify()
		return
	}

	s.appendLocked(page.Items)
	s.cursor = page.Cursor()
	if s.cursor.Limit == 0 && s.cursor.HasMore {
		s.cursor.Limit = req.limit
	}
	s.initialLoaded = true
	s.resumable = nil
	loaded := len(s.segments)
	s.mu.Unlock()

	s.metrics.RecordPageFetch(req.kind.String(), "", latency)
	s.metrics.RecordSegmentsLoaded(len(page.Items))
	s.log.Debug().
		Str("key", key.String()).
		Str("op", req.kind.String()).
		Int("offset", page.Offset).
		Int("received", len(page.Items)).
		Int("loaded", loaded).
		Int("total", page.Total).
		Bool("hasMore", page.HasMore).
		Msg("Page loaded")
	s.notify()
}

// appendLocked appends in page order. Out-of-order data is reported, not re-sorted.
func (s *Store) appendLocked(items []models.Segment) {
	if n := len(s.segments); n > 0 && len(items) > 0 && items[0].StartTime < s.segments[n-1].StartTime {
		s.log.Warn().Int64("segmentId", items[0].ID).Msg("Page starts before the previous page ends")
	}
	if !models.IsOrdered(items) {
		s.log.Warn().Str("key", s.key.String()).Msg("Page segments are not ordered by start_time")
	}
	s.segments = append(s.segments, items...)
}
