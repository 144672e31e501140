// Package config loads navigator configuration from defaults, an optional TOML
// file and environment variables, in that order of precedence (env wins).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full runtime configuration.
type Configuration struct {
	Service       ServiceConfig
	Backend       BackendConfig
	Navigator     FetchConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies this process in logs and events.
type ServiceConfig struct {
	Principal string
}

// BackendConfig points at the transcript API.
type BackendConfig struct {
	BaseURL string
}

// KafkaConfig controls the navigation event publisher.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicNavigation string
	TopicFailures   string
	Principal       string
}

// ObservabilityConfig controls logging and the metrics server.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	LogFile     string
	MetricsAddr string
}

// FetchConfig holds the tunables of the segment delivery and navigation engine.
type FetchConfig struct {
	InitialBatchSize        int
	SubsequentBatchSize     int
	RequestTimeout          time.Duration
	LanguageSwitchDebounce  time.Duration
	SequentialFetchCap      int
	HighlightDuration       time.Duration
	InfiniteScrollTriggerPx float64
	VirtualizationThreshold int
	EstimatedRowHeightPx    float64
	OverscanRows            int

	WindowedScrollDelay time.Duration
	DirectScrollDelay   time.Duration
	FocusDelay          time.Duration
	PlaceholderRows     int
	ReducedMotion       bool
}

// DefaultFetchConfig returns the stock engine tunables.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		InitialBatchSize:        50,
		SubsequentBatchSize:     25,
		RequestTimeout:          5 * time.Second,
		LanguageSwitchDebounce:  150 * time.Millisecond,
		SequentialFetchCap:      3,
		HighlightDuration:       3 * time.Second,
		InfiniteScrollTriggerPx: 200,
		VirtualizationThreshold: 500,
		EstimatedRowHeightPx:    48,
		OverscanRows:            5,
		WindowedScrollDelay:     150 * time.Millisecond,
		DirectScrollDelay:       50 * time.Millisecond,
		FocusDelay:              250 * time.Millisecond,
		PlaceholderRows:         3,
	}
}

// Defaults returns a configuration populated with built-in defaults only.
func Defaults() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal: "svc-transcript-navigator",
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8080/api",
		},
		Navigator: DefaultFetchConfig(),
		Kafka: KafkaConfig{
			Enabled:         false,
			Brokers:         []string{"localhost:9092"},
			TopicNavigation: "transcript.navigation",
			TopicFailures:   "transcript.fetch.failed",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load reads configuration from environment variables over the defaults.
func Load() *Configuration {
	cfg := Defaults()
	applyEnv(cfg)
	return cfg
}

// LoadWithFile reads an optional TOML file and then applies environment
// overrides. An empty path behaves like Load.
func LoadWithFile(path string) (*Configuration, error) {
	cfg := Defaults()
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Configuration) {
	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Backend.BaseURL = envOrDefault("TRANSCRIPT_API_URL", cfg.Backend.BaseURL)

	n := &cfg.Navigator
	n.InitialBatchSize = envOrDefaultInt("NAV_INITIAL_BATCH_SIZE", n.InitialBatchSize)
	n.SubsequentBatchSize = envOrDefaultInt("NAV_SUBSEQUENT_BATCH_SIZE", n.SubsequentBatchSize)
	n.RequestTimeout = envOrDefaultDuration("NAV_REQUEST_TIMEOUT", n.RequestTimeout)
	n.LanguageSwitchDebounce = envOrDefaultDuration("NAV_LANGUAGE_DEBOUNCE", n.LanguageSwitchDebounce)
	n.SequentialFetchCap = envOrDefaultInt("NAV_SEQUENTIAL_FETCH_CAP", n.SequentialFetchCap)
	n.HighlightDuration = envOrDefaultDuration("NAV_HIGHLIGHT_DURATION", n.HighlightDuration)
	n.InfiniteScrollTriggerPx = envOrDefaultFloat("NAV_INFINITE_SCROLL_TRIGGER_PX", n.InfiniteScrollTriggerPx)
	n.VirtualizationThreshold = envOrDefaultInt("NAV_VIRTUALIZATION_THRESHOLD", n.VirtualizationThreshold)
	n.EstimatedRowHeightPx = envOrDefaultFloat("NAV_ROW_HEIGHT_PX", n.EstimatedRowHeightPx)
	n.OverscanRows = envOrDefaultInt("NAV_OVERSCAN_ROWS", n.OverscanRows)
	n.ReducedMotion = envOrDefaultBool("NAV_REDUCED_MOTION", n.ReducedMotion)

	cfg.Kafka.Enabled = envOrDefaultBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.Brokers = envOrDefaultList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.TopicNavigation = envOrDefault("KAFKA_TOPIC_NAVIGATION", cfg.Kafka.TopicNavigation)
	cfg.Kafka.TopicFailures = envOrDefault("KAFKA_TOPIC_FAILURES", cfg.Kafka.TopicFailures)
	// Kafka principal falls back to the service principal
	cfg.Kafka.Principal = envOrDefault("KAFKA_PRINCIPAL", cfg.Kafka.Principal)
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	cfg.Observability.LogLevel = envOrDefault("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = envOrDefault("LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.LogFile = envOrDefault("LOG_FILE", cfg.Observability.LogFile)
	cfg.Observability.MetricsAddr = envOrDefault("METRICS_ADDR", cfg.Observability.MetricsAddr)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
