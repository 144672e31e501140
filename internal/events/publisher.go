// Package events publishes navigator events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"transcript-navigator/internal/observability/metrics"
)

// Publisher publishes navigation and fetch-failure events to separate topics.
type Publisher struct {
	writerNavigation *kafka.Writer
	writerFailures   *kafka.Writer
	principal        string
	topicNavigation  string
	topicFailures    string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicNavigation string
	TopicFailures   string
	Principal       string
	Enabled         bool
}

// New creates a publisher. A nil or disabled config yields a log-only publisher.
func New(cfg *Config) *Publisher {
	return NewWithMetrics(cfg, metrics.DefaultMetrics)
}

// NewWithMetrics is New with an explicit metrics sink.
func NewWithMetrics(cfg *Config, m *metrics.Metrics) *Publisher {
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicNavigation: cfg.TopicNavigation,
			topicFailures:   cfg.TopicFailures,
			enabled:         false,
			metrics:         m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p := &Publisher{
		writerNavigation: newWriter(cfg.Brokers, cfg.TopicNavigation, transport),
		writerFailures:   newWriter(cfg.Brokers, cfg.TopicFailures, transport),
		principal:        cfg.Principal,
		topicNavigation:  cfg.TopicNavigation,
		topicFailures:    cfg.TopicFailures,
		enabled:          true,
		metrics:          m,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicNavigation", cfg.TopicNavigation).
		Str("topicFailures", cfg.TopicFailures).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// PublishNavigation publishes a deep-link outcome to the navigation topic.
func (p *Publisher) PublishNavigation(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerNavigation, p.topicNavigation, "navigation", key, event)
}

// PublishFailure publishes a fetch failure to the failures topic.
func (p *Publisher) PublishFailure(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerFailures, p.topicFailures, "failure", key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerNavigation != nil {
		if e := p.writerNavigation.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing navigation writer")
			err = e
		}
	}
	if p.writerFailures != nil {
		if e := p.writerFailures.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing failures writer")
			err = e
		}
	}
	return err
}
