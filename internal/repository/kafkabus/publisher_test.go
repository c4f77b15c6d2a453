package kafkabus_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sportai/fincast/internal/domain"
	"github.com/sportai/fincast/internal/repository/kafkabus"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishActions(t *testing.T) {
	w := &fakeWriter{}
	p := kafkabus.NewPublisherWithWriter(w)
	runID := uuid.New()
	actions := []domain.SuggestedAction{
		{TS: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), ZoneID: "Z1", ActionType: domain.ActionStaffIncrease, Before: "baseline", After: "+1"},
		{TS: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), ZoneID: "Z2", ActionType: domain.ActionStaffReduce, Before: "baseline", After: "-1"},
	}
	if err := p.PublishActions(context.Background(), runID, actions); err != nil {
		t.Fatalf("PublishActions: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("wrote %d messages, want 2", len(w.msgs))
	}
	if string(w.msgs[1].Key) != "Z2" {
		t.Fatalf("key = %q, want Z2", w.msgs[1].Key)
	}
	var got kafkabus.ActionMessage
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != runID || got.Seq != 0 || got.TS != "2024-01-01T10:00:00Z" || got.ActionType != domain.ActionStaffIncrease {
		t.Fatalf("unexpected message: %+v", got)
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("Close: err=%v closed=%v", err, w.closed)
	}
}

func TestPublishActionsWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := kafkabus.NewPublisherWithWriter(&fakeWriter{err: boom})
	err := p.PublishActions(context.Background(), uuid.New(), []domain.SuggestedAction{{ZoneID: "Z1"}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	if _, err := kafkabus.NewPublisher(nil, "actions"); err == nil {
		t.Fatal("expected error without brokers")
	}
}
