// Package events publishes committed booking transitions for downstream consumers.
package events

import (
	"context"
	"strconv"
	"time"

	"tripshare/pkg/kafka"
)

type Type string

const (
	Created           Type = "booking.created"
	EscrowInitialized Type = "booking.escrow_initialized"
	EscrowFunded      Type = "booking.escrow_funded"
	Updated           Type = "booking.updated"
	OptedIn           Type = "booking.opted_in"
	Participated      Type = "booking.participated"
	Cancelled         Type = "booking.participation_cancelled"
	Started           Type = "booking.started"
	Finished          Type = "booking.finished"
	Deleted           Type = "booking.deleted"
	ClosedOut         Type = "booking.closed_out"
)

const (
	SchemaVersion = "1"
	Source        = "tripshare-bookings"

	// HeaderRound carries the commit round so consumers can order events without decoding.
	HeaderRound = "ledger-round"
)

// Event describes one committed bundle. ID is derived from the bundle id, so replays of the
// same commit carry the same ID.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	BookingID  uint64    `json:"booking_id"`
	Actor      string    `json:"actor"`
	BundleID   string    `json:"bundle_id"`
	Round      uint64    `json:"round"`
	Amount     uint64    `json:"amount,omitempty"`
	Capacity   uint64    `json:"capacity,omitempty"`
	Remaining  uint64    `json:"remaining_capacity"`
	Phase      string    `json:"phase"`
	OccurredAt time.Time `json:"occurred_at"`
}

func EventID(bundleID string, t Type) string {
	return bundleID + ":" + string(t)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher writes events keyed by booking id, so each booking's events stay ordered
// within one partition.
type KafkaPublisher struct {
	producer producer
}

func NewKafkaPublisher(p producer) *KafkaPublisher {
	return &KafkaPublisher{producer: p}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := NewMessage(e)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func NewMessage(e Event) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(strconv.FormatUint(e.BookingID, 10)).
		WithValue(e).
		WithEventID(e.ID).
		WithEventType(string(e.Type)).
		WithCorrelationID(e.BundleID).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithTimestamp(e.OccurredAt).
		WithHeader(HeaderRound, strconv.FormatUint(e.Round, 10)).
		Build()
}

// Decode reads an event back from a consumed message.
func Decode(msg kafka.Message) (Event, error) {
	var e Event
	if err := msg.DecodeValue(&e); err != nil {
		return Event{}, err
	}
	if e.ID == "" {
		e.ID = msg.GetEventID()
	}
	if e.ID == "" || e.Type == "" {
		return Event{}, kafka.NewPermanentError("event without id or type", kafka.ErrInvalidMessage)
	}
	return e, nil
}
