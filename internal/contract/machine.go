package contract

import (
	contracterrors "tripshare/internal/contract/errors"
	"tripshare/internal/ledger"
)

const (
	// EscrowReserve is the amount the creator deposits when funding the escrow.
	EscrowReserve uint64 = 1_000_000
	// StartPayout is the flat amount Start releases to the creator.
	StartPayout = EscrowReserve
)

// Transfer is the payment a method must be paired with. A zero CloseTo forbids
// close-remainder; a non-zero CloseTo permits it to that address only.
type Transfer struct {
	Sender   ledger.Address
	Receiver ledger.Address
	Amount   uint64
	CloseTo  ledger.Address
}

func validateParams(now ledger.Round, p Params) error {
	if p.StartRound < now || p.StartRound >= p.EndRound {
		return contracterrors.ErrInvalidSchedule
	}
	if p.Capacity == 0 {
		return contracterrors.ErrZeroCapacity
	}
	if _, err := checkedMul(p.UnitCost, p.Capacity); err != nil {
		return err
	}
	return nil
}

// Create builds a fresh instance owned by creator.
func Create(creator ledger.Address, now ledger.Round, p Params) (Instance, error) {
	if err := validateParams(now, p); err != nil {
		return Instance{}, err
	}
	return Instance{
		Creator:           creator,
		Params:            p,
		MaxCapacity:       p.Capacity,
		RemainingCapacity: p.Capacity,
		Phase:             PhaseNotInitialized,
	}, nil
}

func (s Instance) requireCreator(caller ledger.Address) error {
	if caller != s.Creator {
		return contracterrors.ErrNotCreator
	}
	return nil
}

func (s Instance) requirePhase(p Phase) error {
	if s.Phase != p {
		return contracterrors.ErrWrongPhase
	}
	return nil
}

func (s Instance) advance(to Phase) (Instance, error) {
	if !s.Phase.CanTransition(to) {
		return Instance{}, contracterrors.ErrWrongPhase
	}
	s.Phase = to
	return s, nil
}

// InitializeEscrow records the escrow account once and moves to Initialized.
func (s Instance) InitializeEscrow(caller, escrow ledger.Address) (Instance, error) {
	if err := s.requireCreator(caller); err != nil {
		return Instance{}, err
	}
	if err := s.requirePhase(PhaseNotInitialized); err != nil {
		return Instance{}, err
	}
	if s.HasEscrow() {
		return Instance{}, contracterrors.ErrEscrowAlreadySet
	}
	if escrow.IsZero() {
		return Instance{}, contracterrors.ErrMalformedArgument
	}
	s.Escrow = escrow
	return s.advance(PhaseInitialized)
}

// FundEscrow moves to Ready against the creator's reserve deposit.
func (s Instance) FundEscrow(caller ledger.Address) (Instance, Transfer, error) {
	if err := s.requireCreator(caller); err != nil {
		return Instance{}, Transfer{}, err
	}
	if err := s.requirePhase(PhaseInitialized); err != nil {
		return Instance{}, Transfer{}, err
	}
	next, err := s.advance(PhaseReady)
	if err != nil {
		return Instance{}, Transfer{}, err
	}
	return next, Transfer{Sender: caller, Receiver: s.Escrow, Amount: EscrowReserve}, nil
}

func (s Instance) requireBookable(caller ledger.Address, now ledger.Round) error {
	if err := s.requirePhase(PhaseReady); err != nil {
		return err
	}
	if caller == s.Creator {
		return contracterrors.ErrCreatorNotAllowed
	}
	if now > s.Params.StartRound {
		return contracterrors.ErrDeadlinePassed
	}
	return nil
}

// OptIn checks that caller may allocate a participant record.
func (s Instance) OptIn(caller ledger.Address, now ledger.Round) (Participant, error) {
	if err := s.requireBookable(caller, now); err != nil {
		return Participant{}, err
	}
	if s.RemainingCapacity == 0 {
		return Participant{}, contracterrors.ErrNoCapacity
	}
	return Participant{}, nil
}

// ParticipationCost is unit_cost times requested.
func (s Instance) ParticipationCost(requested uint64) (uint64, error) {
	return checkedMul(s.Params.UnitCost, requested)
}

// Participate reserves requested capacity for caller against payment into the escrow.
func (s Instance) Participate(caller ledger.Address, now ledger.Round, rec Participant, requested uint64) (Instance, Participant, Transfer, error) {
	if err := s.requireBookable(caller, now); err != nil {
		return Instance{}, Participant{}, Transfer{}, err
	}
	if rec.Booked != 0 {
		return Instance{}, Participant{}, Transfer{}, contracterrors.ErrAlreadyParticipating
	}
	if requested == 0 {
		return Instance{}, Participant{}, Transfer{}, contracterrors.ErrZeroRequest
	}
	if requested > s.RemainingCapacity {
		return Instance{}, Participant{}, Transfer{}, contracterrors.ErrInsufficientCapacity
	}
	cost, err := s.ParticipationCost(requested)
	if err != nil {
		return Instance{}, Participant{}, Transfer{}, err
	}
	remaining, err := checkedSub(s.RemainingCapacity, requested)
	if err != nil {
		return Instance{}, Participant{}, Transfer{}, err
	}
	s.RemainingCapacity = remaining
	return s, Participant{Booked: requested}, Transfer{Sender: caller, Receiver: s.Escrow, Amount: cost}, nil
}

// Cancel returns caller's booked capacity and refunds it from the escrow.
func (s Instance) Cancel(caller ledger.Address, now ledger.Round, rec Participant) (Instance, Participant, Transfer, error) {
	if err := s.requireBookable(caller, now); err != nil {
		return Instance{}, Participant{}, Transfer{}, err
	}
	if rec.Booked == 0 {
		return Instance{}, Participant{}, Transfer{}, contracterrors.ErrNotParticipating
	}
	refund, err := s.ParticipationCost(rec.Booked)
	if err != nil {
		return Instance{}, Participant{}, Transfer{}, err
	}
	remaining, err := checkedAdd(s.RemainingCapacity, rec.Booked)
	if err != nil {
		return Instance{}, Participant{}, Transfer{}, err
	}
	if remaining > s.MaxCapacity {
		return Instance{}, Participant{}, Transfer{}, contracterrors.ErrOverflow
	}
	s.RemainingCapacity = remaining
	return s, Participant{}, Transfer{Sender: s.Escrow, Receiver: caller, Amount: refund}, nil
}

func (s Instance) settle(caller ledger.Address, now ledger.Round) (Instance, error) {
	if err := s.requireCreator(caller); err != nil {
		return Instance{}, err
	}
	if err := s.requirePhase(PhaseReady); err != nil {
		return Instance{}, err
	}
	if now < s.Params.StartRound {
		return Instance{}, contracterrors.ErrNotStarted
	}
	return s.advance(PhaseFinished)
}

// Start releases the flat StartPayout to the creator and finishes the booking.
func (s Instance) Start(caller ledger.Address, now ledger.Round) (Instance, Transfer, error) {
	next, err := s.settle(caller, now)
	if err != nil {
		return Instance{}, Transfer{}, err
	}
	return next, Transfer{Sender: s.Escrow, Receiver: s.Creator, Amount: StartPayout}, nil
}

// FinishPayout is unit_cost times the booked capacity.
func (s Instance) FinishPayout() (uint64, error) {
	return checkedMul(s.Params.UnitCost, s.Booked())
}

// Finish pays out every booking to the creator. The escrow may be closed to the creator.
func (s Instance) Finish(caller ledger.Address, now ledger.Round) (Instance, Transfer, error) {
	next, err := s.settle(caller, now)
	if err != nil {
		return Instance{}, Transfer{}, err
	}
	payout, err := s.FinishPayout()
	if err != nil {
		return Instance{}, Transfer{}, err
	}
	return next, Transfer{Sender: s.Escrow, Receiver: s.Creator, Amount: payout, CloseTo: s.Creator}, nil
}

// Update rewrites the booking fields while nobody has booked.
func (s Instance) Update(caller ledger.Address, now ledger.Round, p Params) (Instance, error) {
	if err := s.requireCreator(caller); err != nil {
		return Instance{}, err
	}
	if err := s.requirePhase(PhaseReady); err != nil {
		return Instance{}, err
	}
	if s.RemainingCapacity != s.MaxCapacity {
		return Instance{}, contracterrors.ErrActiveBookings
	}
	if err := validateParams(now, p); err != nil {
		return Instance{}, err
	}
	s.Params = p
	s.MaxCapacity = p.Capacity
	s.RemainingCapacity = p.Capacity
	return s, nil
}

// Delete reports whether caller may destroy the instance.
func (s Instance) Delete(caller ledger.Address) error {
	if err := s.requireCreator(caller); err != nil {
		return err
	}
	if s.RemainingCapacity != s.MaxCapacity && s.Phase != PhaseFinished {
		return contracterrors.ErrActiveBookings
	}
	return nil
}

// CloseOut reports whether a participant may release its record.
func (s Instance) CloseOut() error {
	return s.requirePhase(PhaseFinished)
}
