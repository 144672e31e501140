package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"transcript-navigator/internal/config"
	"transcript-navigator/internal/models"
	"transcript-navigator/internal/observability/metrics"
	"transcript-navigator/internal/service/navigator"
	"transcript-navigator/internal/service/viewport"
)

func transcriptServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		page := models.Page{Total: total, Offset: offset, Limit: limit}
		for i := offset; i < offset+limit && i < total; i++ {
			page.Items = append(page.Items, models.Segment{
				ID: int64(i + 1), Text: "line", StartTime: float64(i * 10), EndTime: float64(i*10 + 9), Duration: 9,
			})
		}
		page.HasMore = offset+limit < total
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, baseURL string) *Application {
	t.Helper()
	cfg := config.Defaults()
	cfg.Backend.BaseURL = baseURL
	cfg.Navigator.LanguageSwitchDebounce = 10 * time.Millisecond
	cfg.Navigator.HighlightDuration = 50 * time.Millisecond
	cfg.Navigator.FocusDelay = 10 * time.Millisecond
	cfg.Navigator.DirectScrollDelay = 10 * time.Millisecond

	a, err := New(cfg, WithMetrics(metrics.NewMetrics(prometheus.NewRegistry()), prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(a.Shutdown)
	return a
}

func TestNew_LogFileError(t *testing.T) {
	cfg := config.Defaults()
	cfg.Observability.LogFile = t.TempDir() + "/missing/dir/nav.log"

	if _, err := New(cfg); err == nil {
		t.Error("expected error for unwritable log file")
	}
}

func TestApplication_DeepLinkEndToEnd(t *testing.T) {
	srv := transcriptServer(t, 120)
	a := newTestApp(t, srv.URL)

	vp := viewport.NewMemory(480, 48)
	panel, err := a.NewPanel(vp, vp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan struct{})
	err = a.Run(context.Background(), func(ctx context.Context) error {
		panel.Update(navigator.Params{
			VideoID:            "video-1",
			Language:           "en",
			Target:             models.NewDeepLinkTarget(60, nil),
			Expanded:           true,
			OnDeepLinkComplete: func() { close(done) },
		})
		select {
		case <-done:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("deep link did not complete")
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	states := a.States()
	if len(states) != 1 {
		t.Fatalf("expected 1 panel state, got %d", len(states))
	}
	if states[0].ResolverState != "RESOLVED" {
		t.Errorf("expected RESOLVED, got %s", states[0].ResolverState)
	}
	if states[0].Segments < 60 {
		t.Errorf("expected target page loaded, got %d segments", states[0].Segments)
	}
	if vp.Focused() != 59 {
		t.Errorf("expected focus on index 59, got %d", vp.Focused())
	}

	a.ReleasePanel(panel)
	if len(a.States()) != 0 {
		t.Error("expected no panels after release")
	}
}

func TestApplication_RunPropagatesError(t *testing.T) {
	a := newTestApp(t, "http://localhost:1")
	want := errors.New("boom")

	if err := a.Run(context.Background(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestApplication_RunCancelled(t *testing.T) {
	a := newTestApp(t, "http://localhost:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Errorf("expected nil on cancellation, got %v", err)
	}
}
