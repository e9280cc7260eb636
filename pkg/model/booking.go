package model

import "time"

// CreateBookingRequest offers capacity on a trip. Times are wall-clock and converted to
// ledger rounds by the orchestrator.
type CreateBookingRequest struct {
	CreatorName string    `json:"creator_name" validate:"required,min=1,max=128"`
	Origin      string    `json:"origin" validate:"required,min=1,max=128"`
	Destination string    `json:"destination" validate:"required,min=1,max=128,nefield=Origin"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	UnitCost    uint64    `json:"unit_cost" validate:"required,gt=0"`
	Capacity    uint64    `json:"capacity" validate:"required,gt=0"`
}

// UpdateBookingRequest replaces every mutable field; it is only accepted before anyone books.
type UpdateBookingRequest CreateBookingRequest

type ParticipateRequest struct {
	Capacity uint64 `json:"capacity" validate:"required,gt=0"`
}

// Booking is the decoded ledger state of one booking instance.
type Booking struct {
	ID                uint64 `json:"id"`
	Creator           string `json:"creator"`
	CreatorName       string `json:"creator_name"`
	Origin            string `json:"origin"`
	Destination       string `json:"destination"`
	StartDate         string `json:"start_date"`
	StartRound        uint64 `json:"start_round"`
	EndDate           string `json:"end_date"`
	EndRound          uint64 `json:"end_round"`
	UnitCost          uint64 `json:"unit_cost"`
	MaxCapacity       uint64 `json:"max_capacity"`
	RemainingCapacity uint64 `json:"remaining_capacity"`
	Escrow            string `json:"escrow,omitempty"`
	EscrowBalance     uint64 `json:"escrow_balance"`
	Phase             string `json:"phase"`
	Version           uint64 `json:"version"`
}

type Participation struct {
	BookingID uint64 `json:"booking_id"`
	Account   string `json:"account"`
	OptedIn   bool   `json:"opted_in"`
	Booked    uint64 `json:"booked_capacity"`
}

type Balance struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	Round   uint64 `json:"round"`
}

// Receipt confirms a committed bundle.
type Receipt struct {
	BundleID    string    `json:"bundle_id"`
	GroupID     string    `json:"group_id"`
	Round       uint64    `json:"round"`
	CommittedAt time.Time `json:"committed_at"`
	Duplicate   bool      `json:"duplicate,omitempty"`
}

// Result is returned by every state-changing booking operation. Booking is absent after a delete.
type Result struct {
	Booking       *Booking       `json:"booking,omitempty"`
	Participation *Participation `json:"participation,omitempty"`
	Receipts      []Receipt      `json:"receipts"`
}
