package contract

import (
	"fmt"

	contracterrors "tripshare/internal/contract/errors"
	"tripshare/internal/ledger"
)

// Global keys.
const (
	KeyCreator           = "creator"
	KeyCreatorName       = "creator_name"
	KeyOrigin            = "origin"
	KeyDestination       = "destination"
	KeyStartDate         = "start_date"
	KeyStartRound        = "start_round"
	KeyEndDate           = "end_date"
	KeyEndRound          = "end_round"
	KeyUnitCost          = "unit_cost"
	KeyMaxCapacity       = "max_capacity"
	KeyRemainingCapacity = "remaining_capacity"
	KeyPhase             = "phase"
	KeyEscrow            = "escrow"
)

// KeyBookedCapacity is the only local key.
const KeyBookedCapacity = "booked_capacity"

// Instance is the typed view of a booking's global state.
type Instance struct {
	Creator           ledger.Address
	Params            Params
	MaxCapacity       uint64
	RemainingCapacity uint64
	Escrow            ledger.Address
	Phase             Phase
}

func (s Instance) HasEscrow() bool {
	return !s.Escrow.IsZero()
}

// Booked is the capacity currently held by participants.
func (s Instance) Booked() uint64 {
	return s.MaxCapacity - s.RemainingCapacity
}

// Participant is the typed view of a caller's local record. Zero means not participating.
type Participant struct {
	Booked uint64
}

// Decode reads an Instance from global storage and checks its invariants.
func Decode(kv ledger.KeyValue) (Instance, error) {
	var s Instance
	creator, ok := kv.Bytes(KeyCreator)
	if !ok {
		return Instance{}, fmt.Errorf("%w: missing %s", contracterrors.ErrCorruptState, KeyCreator)
	}
	addr, err := ledger.AddressFromBytes(creator)
	if err != nil {
		return Instance{}, fmt.Errorf("%w: %v", contracterrors.ErrCorruptState, err)
	}
	s.Creator = addr

	texts := []struct {
		key string
		dst *string
	}{
		{KeyCreatorName, &s.Params.CreatorName},
		{KeyOrigin, &s.Params.Origin},
		{KeyDestination, &s.Params.Destination},
		{KeyStartDate, &s.Params.StartDate},
		{KeyEndDate, &s.Params.EndDate},
	}
	for _, t := range texts {
		b, ok := kv.Bytes(t.key)
		if !ok {
			return Instance{}, fmt.Errorf("%w: missing %s", contracterrors.ErrCorruptState, t.key)
		}
		*t.dst = string(b)
	}

	var start, end, phase uint64
	uints := []struct {
		key string
		dst *uint64
	}{
		{KeyStartRound, &start},
		{KeyEndRound, &end},
		{KeyUnitCost, &s.Params.UnitCost},
		{KeyMaxCapacity, &s.MaxCapacity},
		{KeyRemainingCapacity, &s.RemainingCapacity},
		{KeyPhase, &phase},
	}
	for _, u := range uints {
		n, ok := kv.Uint(u.key)
		if !ok {
			return Instance{}, fmt.Errorf("%w: missing %s", contracterrors.ErrCorruptState, u.key)
		}
		*u.dst = n
	}
	s.Params.StartRound, s.Params.EndRound = ledger.Round(start), ledger.Round(end)
	s.Params.Capacity = s.MaxCapacity
	s.Phase = Phase(phase)

	if escrow, ok := kv.Bytes(KeyEscrow); ok {
		if s.Escrow, err = ledger.AddressFromBytes(escrow); err != nil {
			return Instance{}, fmt.Errorf("%w: %v", contracterrors.ErrCorruptState, err)
		}
	}

	if !s.Phase.Valid() || s.RemainingCapacity > s.MaxCapacity {
		return Instance{}, contracterrors.ErrCorruptState
	}
	return s, nil
}

// Encode writes every field of s into kv.
func (s Instance) Encode(kv ledger.KeyValue) {
	kv.SetBytes(KeyCreator, s.Creator[:])
	kv.SetBytes(KeyCreatorName, []byte(s.Params.CreatorName))
	kv.SetBytes(KeyOrigin, []byte(s.Params.Origin))
	kv.SetBytes(KeyDestination, []byte(s.Params.Destination))
	kv.SetBytes(KeyStartDate, []byte(s.Params.StartDate))
	kv.SetUint(KeyStartRound, uint64(s.Params.StartRound))
	kv.SetBytes(KeyEndDate, []byte(s.Params.EndDate))
	kv.SetUint(KeyEndRound, uint64(s.Params.EndRound))
	kv.SetUint(KeyUnitCost, s.Params.UnitCost)
	kv.SetUint(KeyMaxCapacity, s.MaxCapacity)
	kv.SetUint(KeyRemainingCapacity, s.RemainingCapacity)
	kv.SetUint(KeyPhase, uint64(s.Phase))
	if s.HasEscrow() {
		kv.SetBytes(KeyEscrow, s.Escrow[:])
	} else {
		kv.Delete(KeyEscrow)
	}
}

func DecodeParticipant(kv ledger.KeyValue) Participant {
	n, _ := kv.Uint(KeyBookedCapacity)
	return Participant{Booked: n}
}

func (p Participant) Encode(kv ledger.KeyValue) {
	kv.SetUint(KeyBookedCapacity, p.Booked)
}
