// Package kafkabus publishes suggested actions to a Kafka topic.
package kafkabus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sportai/fincast/internal/domain"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ActionMessage is the JSON value of each published record
type ActionMessage struct {
	RunID      uuid.UUID         `json:"run_id"`
	Seq        int               `json:"seq"`
	TS         string            `json:"ts"`
	ZoneID     string            `json:"zone_id"`
	ActionType domain.ActionType `json:"action_type"`
	Before     string            `json:"before"`
	After      string            `json:"after"`
	Rationale  string            `json:"rationale"`
}

// Publisher implements domain.ActionPublisher. Records are keyed by zone so
// one zone's actions stay ordered within a partition.
type Publisher struct {
	w MessageWriter
}

// NewPublisher creates a publisher writing to topic on brokers
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafkabus: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafkabus: no topic configured")
	}
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}), nil
}

// NewPublisherWithWriter wraps an existing writer
func NewPublisherWithWriter(w MessageWriter) *Publisher {
	return &Publisher{w: w}
}

// PublishActions writes one record per action in a single batch
func (p *Publisher) PublishActions(ctx context.Context, runID uuid.UUID, actions []domain.SuggestedAction) error {
	if len(actions) == 0 {
		return nil
	}
	now := time.Now()
	msgs := make([]kafka.Message, 0, len(actions))
	for i, a := range actions {
		b, err := json.Marshal(ActionMessage{
			RunID:      runID,
			Seq:        i,
			TS:         a.TS.UTC().Format(time.RFC3339),
			ZoneID:     a.ZoneID,
			ActionType: a.ActionType,
			Before:     a.Before,
			After:      a.After,
			Rationale:  a.Rationale,
		})
		if err != nil {
			return fmt.Errorf("kafkabus: failed to encode action: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(a.ZoneID), Value: b, Time: now})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafkabus: failed to publish %d actions: %w", len(msgs), err)
	}
	return nil
}

// Close flushes and closes the underlying writer
func (p *Publisher) Close() error {
	return p.w.Close()
}
