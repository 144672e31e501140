package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"transcript-navigator/internal/models"
)

const readRetryDelay = time.Second

// Record is one decoded navigator event read back from Kafka.
type Record struct {
	Topic      string
	Key        string
	EventType  string
	Navigation *models.DeepLinkCompleted
	Failure    *models.FetchFailed
}

// String renders a one-line summary of the event.
func (r Record) String() string {
	switch {
	case r.Navigation != nil:
		n := r.Navigation
		status := "resolved"
		if n.Aborted {
			status = "aborted"
		}
		return fmt.Sprintf("%s %s/%s identity=%d %s strategy=%s segment=%d fetches=%d seeked=%t",
			n.SessionID, n.VideoID, n.Language, n.Identity, status, n.Strategy,
			n.ResolvedSegmentID, n.SequentialFetches, n.Seeked)
	case r.Failure != nil:
		f := r.Failure
		return fmt.Sprintf("%s %s/%s %s failed at offset %d (%s): %s",
			f.SessionID, f.VideoID, f.Language, f.Operation, f.Offset, f.ErrorKind, f.Message)
	default:
		return fmt.Sprintf("%s unknown event %q", r.Key, r.EventType)
	}
}

// Decode parses a message written by Publisher.
func Decode(msg kafka.Message) (Record, error) {
	rec := Record{Topic: msg.Topic, Key: string(msg.Key)}

	var head struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(msg.Value, &head); err != nil {
		return rec, fmt.Errorf("decode event: %w", err)
	}
	rec.EventType = head.EventType

	switch head.EventType {
	case models.EventDeepLinkCompleted:
		var ev models.DeepLinkCompleted
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return rec, fmt.Errorf("decode %s: %w", head.EventType, err)
		}
		rec.Navigation = &ev
	case models.EventFetchFailed:
		var ev models.FetchFailed
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return rec, fmt.Errorf("decode %s: %w", head.EventType, err)
		}
		rec.Failure = &ev
	}
	return rec, nil
}

// Consume tails topic from partition 0, starting since ago, and hands every
// decoded record to fn until ctx is cancelled.
func Consume(ctx context.Context, brokers []string, topic string, since time.Duration, fn func(Record)) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		return fmt.Errorf("seek %s: %w", topic, err)
	}

	log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming navigator events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readRetryDelay):
			}
			continue
		}

		rec, err := Decode(msg)
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Int64("offset", msg.Offset).Msg("Skipping undecodable event")
			continue
		}
		fn(rec)
	}
}
