// Package app wires configuration, logging, the transcript API client, the
// event publisher and the metrics server around navigator panels.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"transcript-navigator/internal/backend"
	"transcript-navigator/internal/config"
	"transcript-navigator/internal/events"
	apphttp "transcript-navigator/internal/http"
	"transcript-navigator/internal/observability"
	"transcript-navigator/internal/observability/logging"
	"transcript-navigator/internal/observability/metrics"
	"transcript-navigator/internal/service/navigator"
	"transcript-navigator/internal/service/viewport"
)

const shutdownTimeout = 5 * time.Second

// Application holds process-wide state for the navigator.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
	Publisher   *events.Publisher

	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logFile  io.Closer

	mu     sync.Mutex
	panels map[string]*navigator.Panel
}

// Option customizes an Application.
type Option func(*Application)

// WithMetrics replaces the default metrics sink and the gatherer served on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(a *Application) {
		a.metrics = m
		a.gatherer = gatherer
	}
}

// New constructs an Application from the provided configuration.
func New(cfg *config.Configuration, opts ...Option) (*Application, error) {
	a := &Application{
		Cfg:      cfg,
		metrics:  metrics.DefaultMetrics,
		gatherer: prometheus.DefaultGatherer,
		panels:   make(map[string]*navigator.Panel),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.setupLogger(); err != nil {
		return nil, err
	}

	a.Publisher = events.NewWithMetrics(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicNavigation: cfg.Kafka.TopicNavigation,
		TopicFailures:   cfg.Kafka.TopicFailures,
		Principal:       cfg.Kafka.Principal,
	}, a.metrics)

	a.Logger.Info().
		Str("backend", cfg.Backend.BaseURL).
		Bool("kafka", a.Publisher.Enabled()).
		Msg("Transcript navigator application created")
	return a, nil
}

// setupLogger configures zerolog from the observability settings. A log file
// keeps output off the terminal when the interactive viewer owns it.
func (a *Application) setupLogger() error {
	obs := a.Cfg.Observability
	lc := logging.Config{
		Level:  obs.LogLevel,
		Format: obs.LogFormat,
	}
	if obs.LogFile != "" {
		f, err := os.OpenFile(obs.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		lc.Output = f
	}
	logging.Init(lc)

	a.Logger = logging.WithComponent("application").With().
		Str("service", a.Cfg.Service.Principal).
		Logger()
	return nil
}

// NewPanel builds a navigator panel bound to the given viewport and registers
// it for state inspection. Callers release it with ReleasePanel.
func (a *Application) NewPanel(vp viewport.Viewport, announcer viewport.Announcer) (*navigator.Panel, error) {
	client, err := backend.New(backend.Config{
		BaseURL:   a.Cfg.Backend.BaseURL,
		Principal: a.Cfg.Service.Principal,
		Metrics:   a.metrics,
	})
	if err != nil {
		return nil, err
	}

	panel := navigator.New(navigator.Deps{
		Fetcher:   client,
		Viewport:  vp,
		Announcer: announcer,
		Publisher: a.Publisher,
		Config:    a.Cfg.Navigator,
		Metrics:   a.metrics,
	})

	a.mu.Lock()
	a.panels[panel.SessionID()] = panel
	a.mu.Unlock()

	a.Logger.Debug().Str("sessionId", panel.SessionID()).Msg("Panel mounted")
	return panel, nil
}

// ReleasePanel closes a panel and forgets it.
func (a *Application) ReleasePanel(panel *navigator.Panel) {
	a.mu.Lock()
	delete(a.panels, panel.SessionID())
	a.mu.Unlock()
	panel.Close()
}

// States summarizes every mounted panel.
func (a *Application) States() []navigator.State {
	a.mu.Lock()
	panels := make([]*navigator.Panel, 0, len(a.panels))
	for _, p := range a.panels {
		panels = append(panels, p)
	}
	a.mu.Unlock()

	states := make([]navigator.State, 0, len(panels))
	for _, p := range panels {
		states = append(states, p.State())
	}
	return states
}

// Run starts the metrics server when configured and runs fn until it returns
// or ctx is cancelled. The server is stopped before Run returns.
func (a *Application) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().Time("startupTime", a.StartupTime).Msg("Transcript navigator starting")

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if addr := a.Cfg.Observability.MetricsAddr; addr != "" {
		srv := observability.NewServer(addr, apphttp.NewRouter(a, a.gatherer))
		g.Go(func() error {
			a.Logger.Info().Str("addr", srv.Addr()).Msg("Metrics server listening")
			return srv.ListenAndServe()
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer stop()
		err := fn(runCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

// Shutdown closes every panel, the publisher and the log file.
func (a *Application) Shutdown() {
	a.mu.Lock()
	panels := a.panels
	a.panels = make(map[string]*navigator.Panel)
	a.mu.Unlock()

	for _, p := range panels {
		p.Close()
	}
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Error closing publisher")
	}

	a.Logger.Info().Int("panels", len(panels)).Msg("Transcript navigator shutting down")

	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
