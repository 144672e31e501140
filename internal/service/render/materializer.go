// Package render turns store snapshots into list view models, choosing between
// direct and windowed materialization, and drives "load more" triggering.
package render

import (
	"math"

	"transcript-navigator/internal/config"
)

// Materializer decides which rows exist for a given scroll offset.
type Materializer interface {
	// MaterializedRange returns the half-open index range [start, end).
	MaterializedRange(scrollOffset float64) (start, end int)
	// Windowed reports whether rows are absolutely positioned.
	Windowed() bool
}

// Direct materializes every row.
type Direct struct {
	Count int
}

func (d Direct) MaterializedRange(float64) (int, int) {
	return 0, d.Count
}

func (d Direct) Windowed() bool {
	return false
}

// Window materializes the rows intersecting the viewport plus Overscan rows
// on each side, using a fixed row height estimate.
type Window struct {
	Count          int
	RowHeight      float64
	ViewportHeight float64
	Overscan       int
}

func (w Window) MaterializedRange(scrollOffset float64) (int, int) {
	if w.Count == 0 || w.RowHeight <= 0 {
		return 0, 0
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	first := int(math.Floor(scrollOffset / w.RowHeight))
	last := int(math.Ceil((scrollOffset + w.ViewportHeight) / w.RowHeight))

	start := first - w.Overscan
	if start < 0 {
		start = 0
	}
	end := last + w.Overscan
	if end > w.Count {
		end = w.Count
	}
	if start > end {
		start = end
	}
	return start, end
}

func (w Window) Windowed() bool {
	return true
}

// IsWindowed reports whether a list of count rows uses windowed rendering.
func IsWindowed(count int, cfg config.FetchConfig) bool {
	return count >= cfg.VirtualizationThreshold
}

// NewMaterializer picks the strategy for count rows.
func NewMaterializer(count int, viewportHeight float64, cfg config.FetchConfig) Materializer {
	if !IsWindowed(count, cfg) {
		return Direct{Count: count}
	}
	return Window{
		Count:          count,
		RowHeight:      cfg.EstimatedRowHeightPx,
		ViewportHeight: viewportHeight,
		Overscan:       cfg.OverscanRows,
	}
}
