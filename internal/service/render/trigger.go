package render

import (
	"transcript-navigator/internal/observability/metrics"
	"transcript-navigator/internal/service/segments"
)

// PageLoader is the part of the segment store the trigger drives.
type PageLoader interface {
	Snapshot() segments.Snapshot
	FetchNextPage()
}

// LoadMoreTrigger requests the next page from either of two signals: the
// tail sentinel entering the viewport, or the remaining scroll distance
// dropping below the trigger threshold.
type LoadMoreTrigger struct {
	loader    PageLoader
	triggerPx float64
	metrics   *metrics.Metrics
}

// NewLoadMoreTrigger creates a trigger over loader.
func NewLoadMoreTrigger(loader PageLoader, triggerPx float64, m *metrics.Metrics) *LoadMoreTrigger {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &LoadMoreTrigger{loader: loader, triggerPx: triggerPx, metrics: m}
}

// SentinelVisible handles the sentinel intersection signal.
func (t *LoadMoreTrigger) SentinelVisible() bool {
	return t.fire("sentinel")
}

// CheckScroll handles a scroll position update.
func (t *LoadMoreTrigger) CheckScroll(scrollOffset, viewportHeight, scrollHeight float64) bool {
	remaining := scrollHeight - (scrollOffset + viewportHeight)
	if remaining >= t.triggerPx {
		return false
	}
	return t.fire("scroll")
}

func (t *LoadMoreTrigger) fire(source string) bool {
	snap := t.loader.Snapshot()
	if !snap.HasNextPage() || snap.IsFetching() || snap.Err != nil {
		return false
	}
	t.loader.FetchNextPage()
	t.metrics.RecordLoadMore(source)
	return true
}
