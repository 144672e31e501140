package render

import (
	"transcript-navigator/internal/config"
	"transcript-navigator/internal/models"
	"transcript-navigator/internal/service/segments"
)

// ErrorTreatment selects how a load failure is presented.
type ErrorTreatment int

const (
	ErrorNone ErrorTreatment = iota
	// ErrorFullWidth replaces the list: nothing was loaded.
	ErrorFullWidth
	// ErrorInline sits below loaded rows, which stay visible.
	ErrorInline
)

func (e ErrorTreatment) String() string {
	switch e {
	case ErrorFullWidth:
		return "full_width"
	case ErrorInline:
		return "inline"
	default:
		return "none"
	}
}

// Row is one materialized segment.
type Row struct {
	Index     int
	Segment   models.Segment
	Timestamp string
	// Top is the absolute position of the row; only meaningful when windowed.
	Top float64

	Highlighted bool
	FadeOut     bool
}

// ListView is everything a front end needs to draw the list.
type ListView struct {
	Rows        []Row
	Count       int
	Windowed    bool
	TotalHeight float64

	Placeholders int
	EndOfContent bool
	Error        ErrorTreatment
	ErrorMessage string

	// SentinelIndex is the row whose visibility requests more pages, or -1.
	SentinelIndex int
}

// Renderer builds list views from store snapshots.
type Renderer struct {
	cfg config.FetchConfig
}

// NewRenderer creates a renderer.
func NewRenderer(cfg config.FetchConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// Render materializes the rows visible at scrollOffset.
func (r *Renderer) Render(snap segments.Snapshot, scrollOffset, viewportHeight float64) ListView {
	count := len(snap.Segments)
	view := ListView{
		Count:         count,
		SentinelIndex: -1,
	}

	if count == 0 {
		switch {
		case snap.Err != nil:
			view.Error = ErrorFullWidth
			view.ErrorMessage = snap.Err.Error()
		case snap.IsFetching():
			view.Placeholders = r.cfg.PlaceholderRows
		}
		return view
	}

	m := NewMaterializer(count, viewportHeight, r.cfg)
	start, end := m.MaterializedRange(scrollOffset)
	view.Windowed = m.Windowed()
	view.TotalHeight = float64(count) * r.cfg.EstimatedRowHeightPx
	view.Rows = make([]Row, 0, end-start)
	for i := start; i < end; i++ {
		row := Row{
			Index:     i,
			Segment:   snap.Segments[i],
			Timestamp: models.FormatTimestamp(snap.Segments[i].StartTime),
		}
		if view.Windowed {
			row.Top = float64(i) * r.cfg.EstimatedRowHeightPx
		}
		view.Rows = append(view.Rows, row)
	}

	if snap.IsFetchingNextPage() {
		view.Placeholders = r.cfg.PlaceholderRows
	}
	if snap.Err != nil {
		view.Error = ErrorInline
		view.ErrorMessage = snap.Err.Error()
	}
	if snap.HasNextPage() {
		view.SentinelIndex = count - 1
	}
	view.EndOfContent = snap.InitialLoaded && !snap.Cursor.HasMore && snap.Err == nil && !snap.IsFetching()
	return view
}
