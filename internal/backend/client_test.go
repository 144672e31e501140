package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"transcript-navigator/internal/models"
	"transcript-navigator/internal/observability/metrics"
	"transcript-navigator/internal/service/segments"
)

var key = segments.Key{VideoID: "vid-1", Language: "en"}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	c, err := New(Config{BaseURL: srv.URL + "/api", Principal: "test-svc", Metrics: m})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c, m
}

func writePage(w http.ResponseWriter, page models.Page) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "  "}); err == nil {
		t.Error("expected error for empty base url")
	}
}

func TestClient_FetchPage(t *testing.T) {
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/videos/vid-1/transcripts/en/segments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("offset") != "50" || r.URL.Query().Get("limit") != "25" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-Principal") != "test-svc" {
			t.Errorf("expected principal header, got %q", r.Header.Get("X-Principal"))
		}
		writePage(w, models.Page{
			Items:   []models.Segment{{ID: 51, Text: "hi", StartTime: 500, EndTime: 505, Duration: 5}},
			Total:   150,
			Offset:  50,
			Limit:   25,
			HasMore: true,
		})
	})

	page, err := c.FetchPage(context.Background(), key, 50, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != 51 {
		t.Errorf("unexpected items %+v", page.Items)
	}
	if page.Total != 150 || !page.HasMore {
		t.Errorf("unexpected page metadata %+v", page)
	}
	if got := testutil.ToFloat64(m.BackendRequests.WithLabelValues("segments", "200")); got != 1 {
		t.Errorf("expected 1 segments request recorded, got %v", got)
	}
}

func TestClient_FetchPage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    segments.Kind
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}, segments.KindServer},
		{"bad request", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad", http.StatusBadRequest)
		}, segments.KindServer},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}, segments.KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler)

			_, err := c.FetchPage(context.Background(), key, 0, 50)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := segments.Classify(err); got != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, got)
			}
		})
	}
}

func TestClient_FetchPage_Timeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.FetchPage(ctx, key, 0, 50)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got := segments.Classify(err); got != segments.KindTimeout {
		t.Errorf("expected timeout, got %s (%v)", got, err)
	}
}

func TestClient_FetchPage_Cancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writePage(w, models.Page{})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchPage(ctx, key, 0, 50)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !segments.IsCancelled(err) {
		t.Error("expected cancellation to classify as cancelled")
	}
}

func TestClient_Seek(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/videos/vid-1/transcripts/en/segments/seek" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("timestamp") != "2000.5" || r.URL.Query().Get("from") != "75" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		writePage(w, models.Page{
			Items:   make([]models.Segment, 150),
			Total:   1000,
			Offset:  75,
			Limit:   150,
			HasMore: true,
		})
	})

	page, err := c.Seek(context.Background(), key, 2000.5, 75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Offset != 75 || len(page.Items) != 150 {
		t.Errorf("unexpected page offset %d with %d items", page.Offset, len(page.Items))
	}
}

func TestClient_Seek_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})

	page, err := c.Seek(context.Background(), key, 99999, 50)
	if err != nil {
		t.Fatalf("expected 404 to mean not found, got %v", err)
	}
	if len(page.Items) != 0 {
		t.Errorf("expected empty page, got %d items", len(page.Items))
	}
}
