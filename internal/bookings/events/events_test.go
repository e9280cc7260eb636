package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"tripshare/pkg/kafka"
)

type mockProducer struct {
	publishFunc func(ctx context.Context, msg kafka.Message) error
}

func (m *mockProducer) Publish(ctx context.Context, msg kafka.Message) error {
	if m.publishFunc != nil {
		return m.publishFunc(ctx, msg)
	}
	return nil
}

func TestKafkaPublisher_RoundTrip(t *testing.T) {
	event := Event{
		ID:         EventID("b-1", Participated),
		Type:       Participated,
		BookingID:  7,
		Actor:      "alice",
		BundleID:   "b-1",
		Round:      12,
		Amount:     20_000,
		Capacity:   20,
		Remaining:  980,
		Phase:      "ready",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	var sent kafka.Message
	p := NewKafkaPublisher(&mockProducer{publishFunc: func(_ context.Context, msg kafka.Message) error {
		sent = msg
		return nil
	}})
	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sent.Key != "7" {
		t.Errorf("expected key 7, got %s", sent.Key)
	}
	if sent.GetEventID() != "b-1:booking.participated" {
		t.Errorf("unexpected event id %s", sent.GetEventID())
	}
	if sent.GetCorrelationID() != "b-1" {
		t.Errorf("expected correlation id b-1, got %s", sent.GetCorrelationID())
	}
	if got := sent.Headers[HeaderRound]; got != "12" {
		t.Errorf("expected round header 12, got %q", got)
	}

	decoded, err := Decode(sent)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !decoded.OccurredAt.Equal(event.OccurredAt) {
		t.Errorf("expected occurred_at %s, got %s", event.OccurredAt, decoded.OccurredAt)
	}
	decoded.OccurredAt = event.OccurredAt
	if decoded != event {
		t.Errorf("expected %+v, got %+v", event, decoded)
	}
}

func TestKafkaPublisher_PropagatesFailure(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisher(&mockProducer{publishFunc: func(context.Context, kafka.Message) error { return boom }})

	err := p.Publish(context.Background(), Event{ID: "x", Type: Created, BookingID: 1})
	if !errors.Is(err, boom) {
		t.Errorf("expected broker error, got %v", err)
	}
}

func TestDecode_RejectsInvalidPayload(t *testing.T) {
	_, err := Decode(kafka.Message{Value: []byte(`{"booking_id":1}`), Headers: map[string]string{}})
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("expected permanent error, got %v", err)
	}
}
