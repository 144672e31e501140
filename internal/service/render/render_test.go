package render

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"transcript-navigator/internal/config"
	"transcript-navigator/internal/models"
	"transcript-navigator/internal/observability/metrics"
	"transcript-navigator/internal/service/segments"
)

func makeSegments(n int) []models.Segment {
	segs := make([]models.Segment, n)
	for i := range segs {
		start := float64(i * 10)
		segs[i] = models.Segment{
			ID:        int64(i + 1),
			Text:      fmt.Sprintf("segment %d", i),
			StartTime: start,
			EndTime:   start + 9,
			Duration:  9,
		}
	}
	return segs
}

func loadedSnapshot(n, total int) segments.Snapshot {
	return segments.Snapshot{
		Key:           segments.Key{VideoID: "v1", Language: "en"},
		Segments:      makeSegments(n),
		Cursor:        models.Cursor{Offset: 0, Limit: n, Total: total, HasMore: n < total},
		InitialLoaded: true,
	}
}

func TestNewMaterializer_ThresholdBoundary(t *testing.T) {
	cfg := config.DefaultFetchConfig()

	tests := []struct {
		count    int
		windowed bool
	}{
		{0, false},
		{499, false},
		{500, true},
		{501, true},
		{5000, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("count_%d", tt.count), func(t *testing.T) {
			m := NewMaterializer(tt.count, 480, cfg)
			if m.Windowed() != tt.windowed {
				t.Errorf("expected windowed=%v for %d rows, got %v", tt.windowed, tt.count, m.Windowed())
			}
		})
	}
}

func TestDirect_MaterializesEverything(t *testing.T) {
	start, end := Direct{Count: 499}.MaterializedRange(12345)
	if start != 0 || end != 499 {
		t.Errorf("expected [0, 499), got [%d, %d)", start, end)
	}
}

func TestWindow_MaterializedRange(t *testing.T) {
	w := Window{Count: 1000, RowHeight: 48, ViewportHeight: 480, Overscan: 5}

	tests := []struct {
		name   string
		offset float64
		start  int
		end    int
	}{
		{"top", 0, 0, 15},
		{"middle", 4800, 95, 115},
		{"partial row", 4824, 95, 116},
		{"bottom", 47520, 985, 1000},
		{"negative offset", -100, 0, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := w.MaterializedRange(tt.offset)
			if start != tt.start || end != tt.end {
				t.Errorf("expected [%d, %d), got [%d, %d)", tt.start, tt.end, start, end)
			}
		})
	}
}

func TestRender_DirectList(t *testing.T) {
	r := NewRenderer(config.DefaultFetchConfig())
	view := r.Render(loadedSnapshot(50, 150), 0, 480)

	if view.Windowed {
		t.Error("expected direct rendering for 50 rows")
	}
	if len(view.Rows) != 50 {
		t.Fatalf("expected 50 rows, got %d", len(view.Rows))
	}
	if view.Rows[3].Timestamp != "0:30" {
		t.Errorf("expected timestamp 0:30, got %s", view.Rows[3].Timestamp)
	}
	if view.SentinelIndex != 49 {
		t.Errorf("expected sentinel at 49, got %d", view.SentinelIndex)
	}
	if view.EndOfContent {
		t.Error("expected no end marker while more pages exist")
	}
}

func TestRender_WindowedPositionsRows(t *testing.T) {
	r := NewRenderer(config.DefaultFetchConfig())
	view := r.Render(loadedSnapshot(600, 600), 4800, 480)

	if !view.Windowed {
		t.Fatal("expected windowed rendering for 600 rows")
	}
	if view.TotalHeight != 600*48 {
		t.Errorf("expected total height %v, got %v", 600*48, view.TotalHeight)
	}
	if len(view.Rows) != 20 {
		t.Fatalf("expected 20 materialized rows, got %d", len(view.Rows))
	}
	first := view.Rows[0]
	if first.Index != 95 || first.Top != 95*48 {
		t.Errorf("expected first row 95 at %v, got %d at %v", 95*48, first.Index, first.Top)
	}
	if !view.EndOfContent {
		t.Error("expected end marker when every page is loaded")
	}
	if view.SentinelIndex != -1 {
		t.Errorf("expected no sentinel, got %d", view.SentinelIndex)
	}
}

func TestRender_Placeholders(t *testing.T) {
	r := NewRenderer(config.DefaultFetchConfig())

	initial := segments.Snapshot{Loading: segments.LoadInitial}
	if view := r.Render(initial, 0, 480); view.Placeholders != 3 || len(view.Rows) != 0 {
		t.Errorf("expected 3 placeholders and no rows, got %d and %d", view.Placeholders, len(view.Rows))
	}

	next := loadedSnapshot(50, 150)
	next.Loading = segments.LoadNext
	view := r.Render(next, 0, 480)
	if view.Placeholders != 3 {
		t.Errorf("expected 3 trailing placeholders, got %d", view.Placeholders)
	}
	if len(view.Rows) != 50 {
		t.Errorf("expected loaded rows to stay visible, got %d", len(view.Rows))
	}
}

func TestRender_ErrorTreatment(t *testing.T) {
	r := NewRenderer(config.DefaultFetchConfig())
	failure := &segments.FetchError{Kind: segments.KindServer, Op: segments.LoadInitial, Err: errors.New("500")}

	first := segments.Snapshot{Err: failure, ErrOnFirstPage: true}
	if view := r.Render(first, 0, 480); view.Error != ErrorFullWidth {
		t.Errorf("expected full width error, got %s", view.Error)
	}

	later := loadedSnapshot(50, 150)
	later.Err = failure
	view := r.Render(later, 0, 480)
	if view.Error != ErrorInline {
		t.Errorf("expected inline error, got %s", view.Error)
	}
	if len(view.Rows) != 50 {
		t.Errorf("expected rows kept under inline error, got %d", len(view.Rows))
	}
	if view.EndOfContent {
		t.Error("expected no end marker alongside an error")
	}
}

type fakeLoader struct {
	snap  segments.Snapshot
	calls int
}

func (f *fakeLoader) Snapshot() segments.Snapshot { return f.snap }
func (f *fakeLoader) FetchNextPage()              { f.calls++ }

func TestLoadMoreTrigger_Conditions(t *testing.T) {
	tests := []struct {
		name  string
		snap  func() segments.Snapshot
		fires bool
	}{
		{"more pages", func() segments.Snapshot { return loadedSnapshot(50, 150) }, true},
		{"no more pages", func() segments.Snapshot { return loadedSnapshot(50, 50) }, false},
		{"already fetching", func() segments.Snapshot {
			s := loadedSnapshot(50, 150)
			s.Loading = segments.LoadNext
			return s
		}, false},
		{"after error", func() segments.Snapshot {
			s := loadedSnapshot(50, 150)
			s.Err = errors.New("boom")
			return s
		}, false},
		{"before initial load", func() segments.Snapshot { return segments.Snapshot{} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &fakeLoader{snap: tt.snap()}
			m := metrics.NewMetrics(prometheus.NewRegistry())
			trigger := NewLoadMoreTrigger(loader, 200, m)

			if got := trigger.SentinelVisible(); got != tt.fires {
				t.Errorf("expected fired=%v, got %v", tt.fires, got)
			}
			want := 0
			if tt.fires {
				want = 1
			}
			if loader.calls != want {
				t.Errorf("expected %d fetches, got %d", want, loader.calls)
			}
		})
	}
}

func TestLoadMoreTrigger_ScrollDistance(t *testing.T) {
	loader := &fakeLoader{snap: loadedSnapshot(50, 150)}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	trigger := NewLoadMoreTrigger(loader, 200, m)

	// 2400 tall, 480 viewport: 200px remaining at offset 1720.
	if trigger.CheckScroll(1720, 480, 2400) {
		t.Error("expected no trigger at exactly the threshold")
	}
	if !trigger.CheckScroll(1721, 480, 2400) {
		t.Error("expected trigger inside the threshold")
	}
	if loader.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", loader.calls)
	}
	if got := testutil.ToFloat64(m.LoadMoreTriggers.WithLabelValues("scroll")); got != 1 {
		t.Errorf("expected 1 scroll trigger recorded, got %v", got)
	}
}
