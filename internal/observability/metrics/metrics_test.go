package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPageFetch(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPageFetch("initial", "", 0.1)
	m.RecordPageFetch("next", "timeout", 5)
	m.RecordPageFetch("next", "", 0.2)

	if got := testutil.ToFloat64(m.PageFetchesTotal.WithLabelValues("next")); got != 2 {
		t.Errorf("expected 2 next-page fetches, got %v", got)
	}
	if got := testutil.ToFloat64(m.PageFetchErrors.WithLabelValues("next", "timeout")); got != 1 {
		t.Errorf("expected 1 timeout error, got %v", got)
	}
	if got := testutil.ToFloat64(m.PageFetchErrors.WithLabelValues("initial", "timeout")); got != 0 {
		t.Errorf("expected no initial errors, got %v", got)
	}
}

func TestHighlightGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHighlightStart()
	m.RecordHighlightStart()
	m.RecordHighlightEnd()

	if got := testutil.ToFloat64(m.HighlightsActive); got != 1 {
		t.Errorf("expected 1 active highlight, got %v", got)
	}
}

func TestRecordKafkaPublish(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordKafkaPublish("nav", "resolved", nil, 0.01)
	m.RecordKafkaPublish("nav", "resolved", errors.New("broker down"), 0.5)

	if got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("nav", "resolved")); got != 2 {
		t.Errorf("expected 2 publishes, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("nav", "resolved")); got != 1 {
		t.Errorf("expected 1 publish error, got %v", got)
	}
}
