package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var navigatorEnvVars = []string{
	"SERVICE_PRINCIPAL", "TRANSCRIPT_API_URL",
	"NAV_INITIAL_BATCH_SIZE", "NAV_SUBSEQUENT_BATCH_SIZE", "NAV_REQUEST_TIMEOUT",
	"NAV_LANGUAGE_DEBOUNCE", "NAV_SEQUENTIAL_FETCH_CAP", "NAV_HIGHLIGHT_DURATION",
	"NAV_INFINITE_SCROLL_TRIGGER_PX", "NAV_VIRTUALIZATION_THRESHOLD", "NAV_ROW_HEIGHT_PX",
	"NAV_OVERSCAN_ROWS", "NAV_REDUCED_MOTION",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_NAVIGATION", "KAFKA_TOPIC_FAILURES", "KAFKA_PRINCIPAL",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "METRICS_ADDR",
}

func clearEnv() {
	for _, v := range navigatorEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "svc-transcript-navigator" {
		t.Errorf("expected default principal 'svc-transcript-navigator', got %s", cfg.Service.Principal)
	}
	if cfg.Backend.BaseURL != "http://localhost:8080/api" {
		t.Errorf("expected default base URL, got %s", cfg.Backend.BaseURL)
	}

	n := cfg.Navigator
	if n.InitialBatchSize != 50 {
		t.Errorf("expected initial batch 50, got %d", n.InitialBatchSize)
	}
	if n.SubsequentBatchSize != 25 {
		t.Errorf("expected subsequent batch 25, got %d", n.SubsequentBatchSize)
	}
	if n.RequestTimeout != 5*time.Second {
		t.Errorf("expected request timeout 5s, got %v", n.RequestTimeout)
	}
	if n.LanguageSwitchDebounce != 150*time.Millisecond {
		t.Errorf("expected debounce 150ms, got %v", n.LanguageSwitchDebounce)
	}
	if n.SequentialFetchCap != 3 {
		t.Errorf("expected sequential fetch cap 3, got %d", n.SequentialFetchCap)
	}
	if n.HighlightDuration != 3*time.Second {
		t.Errorf("expected highlight duration 3s, got %v", n.HighlightDuration)
	}
	if n.InfiniteScrollTriggerPx != 200 {
		t.Errorf("expected trigger 200px, got %v", n.InfiniteScrollTriggerPx)
	}
	if n.VirtualizationThreshold != 500 {
		t.Errorf("expected virtualization threshold 500, got %d", n.VirtualizationThreshold)
	}
	if n.EstimatedRowHeightPx != 48 {
		t.Errorf("expected row height 48, got %v", n.EstimatedRowHeightPx)
	}
	if n.OverscanRows != 5 {
		t.Errorf("expected overscan 5, got %d", n.OverscanRows)
	}
	if n.ReducedMotion {
		t.Error("expected reduced motion off by default")
	}

	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Observability.MetricsAddr != "" {
		t.Errorf("expected metrics server disabled by default, got %q", cfg.Observability.MetricsAddr)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("TRANSCRIPT_API_URL", "https://api.example.test")
	os.Setenv("NAV_INITIAL_BATCH_SIZE", "100")
	os.Setenv("NAV_REQUEST_TIMEOUT", "2s")
	os.Setenv("NAV_LANGUAGE_DEBOUNCE", "200ms")
	os.Setenv("NAV_SEQUENTIAL_FETCH_CAP", "5")
	os.Setenv("NAV_ROW_HEIGHT_PX", "32.5")
	os.Setenv("NAV_REDUCED_MOTION", "true")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	os.Setenv("LOG_LEVEL", "debug")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Backend.BaseURL != "https://api.example.test" {
		t.Errorf("expected custom base URL, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Navigator.InitialBatchSize != 100 {
		t.Errorf("expected initial batch 100, got %d", cfg.Navigator.InitialBatchSize)
	}
	if cfg.Navigator.RequestTimeout != 2*time.Second {
		t.Errorf("expected request timeout 2s, got %v", cfg.Navigator.RequestTimeout)
	}
	if cfg.Navigator.LanguageSwitchDebounce != 200*time.Millisecond {
		t.Errorf("expected debounce 200ms, got %v", cfg.Navigator.LanguageSwitchDebounce)
	}
	if cfg.Navigator.SequentialFetchCap != 5 {
		t.Errorf("expected cap 5, got %d", cfg.Navigator.SequentialFetchCap)
	}
	if cfg.Navigator.EstimatedRowHeightPx != 32.5 {
		t.Errorf("expected row height 32.5, got %v", cfg.Navigator.EstimatedRowHeightPx)
	}
	if !cfg.Navigator.ReducedMotion {
		t.Error("expected reduced motion on")
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("NAV_INITIAL_BATCH_SIZE", "not-a-number")
	os.Setenv("NAV_REQUEST_TIMEOUT", "invalid")
	os.Setenv("NAV_ROW_HEIGHT_PX", "tall")
	os.Setenv("NAV_REDUCED_MOTION", "maybe")
	os.Setenv("KAFKA_BROKERS", " , ")
	defer clearEnv()

	cfg := Load()

	if cfg.Navigator.InitialBatchSize != 50 {
		t.Errorf("expected default initial batch on invalid input, got %d", cfg.Navigator.InitialBatchSize)
	}
	if cfg.Navigator.RequestTimeout != 5*time.Second {
		t.Errorf("expected default timeout on invalid input, got %v", cfg.Navigator.RequestTimeout)
	}
	if cfg.Navigator.EstimatedRowHeightPx != 48 {
		t.Errorf("expected default row height on invalid input, got %v", cfg.Navigator.EstimatedRowHeightPx)
	}
	if cfg.Navigator.ReducedMotion {
		t.Error("expected default reduced motion on invalid input")
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("expected default brokers on blank list, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	clearEnv()
	dir := t.TempDir()
	path := filepath.Join(dir, "navigator.toml")
	content := `
[backend]
base_url = "https://file.example.test"

[navigator]
initial_batch_size = 80
highlight_duration = "5s"
reduced_motion = true

[kafka]
enabled = true
brokers = ["file-broker:9092"]

[observability]
log_level = "warn"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	os.Setenv("LOG_LEVEL", "error")
	defer clearEnv()

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Backend.BaseURL != "https://file.example.test" {
		t.Errorf("expected base URL from file, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Navigator.InitialBatchSize != 80 {
		t.Errorf("expected initial batch 80 from file, got %d", cfg.Navigator.InitialBatchSize)
	}
	if cfg.Navigator.SubsequentBatchSize != 25 {
		t.Errorf("expected untouched default subsequent batch, got %d", cfg.Navigator.SubsequentBatchSize)
	}
	if cfg.Navigator.HighlightDuration != 5*time.Second {
		t.Errorf("expected highlight duration 5s from file, got %v", cfg.Navigator.HighlightDuration)
	}
	if !cfg.Navigator.ReducedMotion {
		t.Error("expected reduced motion from file")
	}
	if !cfg.Kafka.Enabled || cfg.Kafka.Brokers[0] != "file-broker:9092" {
		t.Errorf("expected Kafka settings from file, got %+v", cfg.Kafka)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("expected env to override file log level, got %s", cfg.Observability.LogLevel)
	}
}

func TestLoadWithFile_Errors(t *testing.T) {
	clearEnv()
	dir := t.TempDir()

	if _, err := LoadWithFile(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("[navigator]\nrequest_timeout = \"soon\"\n"), 0o600)
	if _, err := LoadWithFile(bad); err == nil {
		t.Error("expected error for unparseable duration")
	}

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("expected empty path to succeed, got %v", err)
	}
	if cfg.Navigator.InitialBatchSize != 50 {
		t.Errorf("expected defaults for empty path, got %d", cfg.Navigator.InitialBatchSize)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}
