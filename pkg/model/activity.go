package model

import "time"

// Activity is one indexed booking event, as stored by the indexer.
type Activity struct {
	EventID    string    `json:"event_id" bson:"_id"`
	Type       string    `json:"type" bson:"type"`
	BookingID  uint64    `json:"booking_id" bson:"booking_id"`
	Actor      string    `json:"actor" bson:"actor"`
	BundleID   string    `json:"bundle_id" bson:"bundle_id"`
	Round      uint64    `json:"round" bson:"round"`
	Amount     uint64    `json:"amount,omitempty" bson:"amount,omitempty"`
	Capacity   uint64    `json:"capacity,omitempty" bson:"capacity,omitempty"`
	Remaining  uint64    `json:"remaining_capacity" bson:"remaining_capacity"`
	Phase      string    `json:"phase" bson:"phase"`
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`
	IndexedAt  time.Time `json:"indexed_at" bson:"indexed_at"`
}
