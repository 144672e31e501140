package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors the TOML layout. Pointer fields distinguish "unset" from
// zero values so that only keys present in the file override defaults.
type fileConfig struct {
	Service struct {
		Principal *string `toml:"principal"`
	} `toml:"service"`
	Backend struct {
		BaseURL *string `toml:"base_url"`
	} `toml:"backend"`
	Navigator struct {
		InitialBatchSize        *int     `toml:"initial_batch_size"`
		SubsequentBatchSize     *int     `toml:"subsequent_batch_size"`
		RequestTimeout          *string  `toml:"request_timeout"`
		LanguageSwitchDebounce  *string  `toml:"language_switch_debounce"`
		SequentialFetchCap      *int     `toml:"sequential_fetch_cap"`
		HighlightDuration       *string  `toml:"highlight_duration"`
		InfiniteScrollTriggerPx *float64 `toml:"infinite_scroll_trigger_px"`
		VirtualizationThreshold *int     `toml:"virtualization_threshold"`
		EstimatedRowHeightPx    *float64 `toml:"estimated_row_height_px"`
		OverscanRows            *int     `toml:"overscan_rows"`
		ReducedMotion           *bool    `toml:"reduced_motion"`
	} `toml:"navigator"`
	Kafka struct {
		Enabled         *bool    `toml:"enabled"`
		Brokers         []string `toml:"brokers"`
		TopicNavigation *string  `toml:"topic_navigation"`
		TopicFailures   *string  `toml:"topic_failures"`
		Principal       *string  `toml:"principal"`
	} `toml:"kafka"`
	Observability struct {
		LogLevel    *string `toml:"log_level"`
		LogFormat   *string `toml:"log_format"`
		LogFile     *string `toml:"log_file"`
		MetricsAddr *string `toml:"metrics_addr"`
	} `toml:"observability"`
}

func applyFile(cfg *Configuration, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Service.Principal, fc.Service.Principal)
	setString(&cfg.Backend.BaseURL, fc.Backend.BaseURL)

	n := &cfg.Navigator
	setInt(&n.InitialBatchSize, fc.Navigator.InitialBatchSize)
	setInt(&n.SubsequentBatchSize, fc.Navigator.SubsequentBatchSize)
	setInt(&n.SequentialFetchCap, fc.Navigator.SequentialFetchCap)
	setInt(&n.VirtualizationThreshold, fc.Navigator.VirtualizationThreshold)
	setInt(&n.OverscanRows, fc.Navigator.OverscanRows)
	if v := fc.Navigator.InfiniteScrollTriggerPx; v != nil {
		n.InfiniteScrollTriggerPx = *v
	}
	if v := fc.Navigator.EstimatedRowHeightPx; v != nil {
		n.EstimatedRowHeightPx = *v
	}
	if v := fc.Navigator.ReducedMotion; v != nil {
		n.ReducedMotion = *v
	}
	for _, d := range []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"request_timeout", fc.Navigator.RequestTimeout, &n.RequestTimeout},
		{"language_switch_debounce", fc.Navigator.LanguageSwitchDebounce, &n.LanguageSwitchDebounce},
		{"highlight_duration", fc.Navigator.HighlightDuration, &n.HighlightDuration},
	} {
		if d.src == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("navigator.%s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if v := fc.Kafka.Enabled; v != nil {
		cfg.Kafka.Enabled = *v
	}
	if len(fc.Kafka.Brokers) > 0 {
		cfg.Kafka.Brokers = fc.Kafka.Brokers
	}
	setString(&cfg.Kafka.TopicNavigation, fc.Kafka.TopicNavigation)
	setString(&cfg.Kafka.TopicFailures, fc.Kafka.TopicFailures)
	setString(&cfg.Kafka.Principal, fc.Kafka.Principal)

	setString(&cfg.Observability.LogLevel, fc.Observability.LogLevel)
	setString(&cfg.Observability.LogFormat, fc.Observability.LogFormat)
	setString(&cfg.Observability.LogFile, fc.Observability.LogFile)
	setString(&cfg.Observability.MetricsAddr, fc.Observability.MetricsAddr)
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
