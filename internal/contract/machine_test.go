package contract

import (
	"errors"
	"math"
	"testing"

	contracterrors "tripshare/internal/contract/errors"
	"tripshare/internal/ledger"
	ledgererrors "tripshare/internal/ledger/errors"
)

var (
	creator = ledger.Address{1}
	alice   = ledger.Address{2}
	bob     = ledger.Address{3}
	vault   = ledger.Address{9}
)

func testParams() Params {
	return Params{
		CreatorName: "Dana",
		Origin:      "Lisbon",
		Destination: "Porto",
		StartDate:   "2026-11-02 08:00",
		StartRound:  100,
		EndDate:     "2026-11-02 12:00",
		EndRound:    200,
		UnitCost:    1_000,
		Capacity:    1_000,
	}
}

// readyInstance walks a fresh instance to Ready at round 10.
func readyInstance(t *testing.T, p Params) Instance {
	t.Helper()
	s, err := Create(creator, 10, p)
	if err != nil {
		t.Fatalf("create: unexpected error: %v", err)
	}
	if s, err = s.InitializeEscrow(creator, vault); err != nil {
		t.Fatalf("initialize escrow: unexpected error: %v", err)
	}
	if s, _, err = s.FundEscrow(creator); err != nil {
		t.Fatalf("fund escrow: unexpected error: %v", err)
	}
	return s
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Params)
		now     ledger.Round
		wantErr error
	}{
		{name: "valid", mutate: func(p *Params) {}, now: 10},
		{name: "start equals now", mutate: func(p *Params) { p.StartRound = 10 }, now: 10},
		{name: "start in the past", mutate: func(p *Params) { p.StartRound = 5 }, now: 10, wantErr: contracterrors.ErrInvalidSchedule},
		{name: "start equals end", mutate: func(p *Params) { p.EndRound = p.StartRound }, now: 10, wantErr: contracterrors.ErrInvalidSchedule},
		{name: "zero capacity", mutate: func(p *Params) { p.Capacity = 0 }, now: 10, wantErr: contracterrors.ErrZeroCapacity},
		{name: "cost overflow", mutate: func(p *Params) { p.UnitCost = math.MaxUint64 / 2; p.Capacity = 3 }, now: 10, wantErr: contracterrors.ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			s, err := Create(creator, tt.now, p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Phase != PhaseNotInitialized {
				t.Errorf("expected phase %s, got %s", PhaseNotInitialized, s.Phase)
			}
			if s.RemainingCapacity != p.Capacity || s.MaxCapacity != p.Capacity {
				t.Errorf("expected remaining=max=%d, got %d/%d", p.Capacity, s.RemainingCapacity, s.MaxCapacity)
			}
		})
	}
}

func TestLifecycle_EscrowSetup(t *testing.T) {
	s, err := Create(creator, 10, testParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.InitializeEscrow(alice, vault); !errors.Is(err, contracterrors.ErrNotCreator) {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
	if _, _, err := s.FundEscrow(creator); !errors.Is(err, contracterrors.ErrWrongPhase) {
		t.Errorf("expected ErrWrongPhase funding before initialize, got %v", err)
	}

	s, err = s.InitializeEscrow(creator, vault)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Phase != PhaseInitialized || s.Escrow != vault {
		t.Fatalf("expected initialized with escrow, got %s %s", s.Phase, s.Escrow)
	}
	if _, err := s.InitializeEscrow(creator, bob); !errors.Is(err, contracterrors.ErrWrongPhase) {
		t.Errorf("expected escrow to be set once, got %v", err)
	}

	ready, transfer, err := s.FundEscrow(creator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready.Phase != PhaseReady {
		t.Errorf("expected phase ready, got %s", ready.Phase)
	}
	want := Transfer{Sender: creator, Receiver: vault, Amount: EscrowReserve}
	if transfer != want {
		t.Errorf("expected transfer %+v, got %+v", want, transfer)
	}

	_, _, err = ready.FundEscrow(creator)
	if !errors.Is(err, contracterrors.ErrWrongPhase) {
		t.Errorf("expected second fund to fail on phase, got %v", err)
	}
}

func TestParticipateAndCancel_RestoresCapacity(t *testing.T) {
	s := readyInstance(t, testParams())

	booked, rec, pay, err := s.Participate(alice, 50, Participant{}, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booked.RemainingCapacity != 980 || rec.Booked != 20 {
		t.Errorf("expected 980/20, got %d/%d", booked.RemainingCapacity, rec.Booked)
	}
	if pay.Amount != 20_000 || pay.Sender != alice || pay.Receiver != vault {
		t.Errorf("unexpected payment %+v", pay)
	}

	cancelled, rec, refund, err := booked.Cancel(alice, 50, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.RemainingCapacity != 1000 || rec.Booked != 0 {
		t.Errorf("expected 1000/0, got %d/%d", cancelled.RemainingCapacity, rec.Booked)
	}
	if refund.Amount != 20_000 || refund.Sender != vault || refund.Receiver != alice {
		t.Errorf("unexpected refund %+v", refund)
	}

	if _, _, _, err := cancelled.Cancel(alice, 50, rec); !errors.Is(err, contracterrors.ErrNotParticipating) {
		t.Errorf("expected double refund to fail, got %v", err)
	}
}

func TestParticipate_Oversell(t *testing.T) {
	s := readyInstance(t, testParams())

	s, _, _, err := s.Participate(alice, 50, Participant{}, 900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, _, err = s.Participate(bob, 50, Participant{}, 200)
	if !errors.Is(err, contracterrors.ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v", err)
	}
	if s.RemainingCapacity != 100 {
		t.Errorf("expected remaining 100, got %d", s.RemainingCapacity)
	}
}

func TestParticipate_ExhaustsCapacity(t *testing.T) {
	s := readyInstance(t, testParams())

	s, aliceRec, _, err := s.Participate(alice, 50, Participant{}, s.RemainingCapacity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.RemainingCapacity != 0 {
		t.Fatalf("expected remaining 0, got %d", s.RemainingCapacity)
	}
	if _, _, _, err := s.Participate(bob, 50, Participant{}, 1); !errors.Is(err, contracterrors.ErrInsufficientCapacity) {
		t.Errorf("expected ErrInsufficientCapacity, got %v", err)
	}
	if _, err := s.OptIn(bob, 50); !errors.Is(err, contracterrors.ErrNoCapacity) {
		t.Errorf("expected opt-in to fail with no capacity, got %v", err)
	}

	s, _, _, err = s.Cancel(alice, 50, aliceRec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, _, err := s.Participate(bob, 50, Participant{}, 1); err != nil {
		t.Errorf("expected participate after cancel to succeed, got %v", err)
	}
}

func TestParticipate_Preconditions(t *testing.T) {
	ready := readyInstance(t, testParams())
	notReady, _ := Create(creator, 10, testParams())

	tests := []struct {
		name    string
		s       Instance
		caller  ledger.Address
		now     ledger.Round
		rec     Participant
		request uint64
		wantErr error
	}{
		{name: "not ready", s: notReady, caller: alice, now: 50, request: 1, wantErr: contracterrors.ErrWrongPhase},
		{name: "creator", s: ready, caller: creator, now: 50, request: 1, wantErr: contracterrors.ErrCreatorNotAllowed},
		{name: "after start", s: ready, caller: alice, now: 101, request: 1, wantErr: contracterrors.ErrDeadlinePassed},
		{name: "at start", s: ready, caller: alice, now: 100, request: 1},
		{name: "zero request", s: ready, caller: alice, now: 50, request: 0, wantErr: contracterrors.ErrZeroRequest},
		{name: "already booked", s: ready, caller: alice, now: 50, rec: Participant{Booked: 3}, request: 1, wantErr: contracterrors.ErrAlreadyParticipating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := tt.s.Participate(tt.caller, tt.now, tt.rec, tt.request)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ledgererrors.ErrValidation) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestParticipate_SumOfBookingsNeverExceedsMax(t *testing.T) {
	p := testParams()
	p.Capacity = 50
	s := readyInstance(t, p)

	requests := []uint64{7, 13, 1, 30, 9, 2, 5}
	var total uint64
	for i, r := range requests {
		caller := ledger.Address{byte(100 + i)}
		next, rec, _, err := s.Participate(caller, 50, Participant{}, r)
		if err != nil {
			if !errors.Is(err, contracterrors.ErrInsufficientCapacity) {
				t.Fatalf("request %d: unexpected error: %v", i, err)
			}
			continue
		}
		s = next
		total += rec.Booked
		if total > s.MaxCapacity {
			t.Fatalf("booked %d exceeds max %d", total, s.MaxCapacity)
		}
		if s.RemainingCapacity != s.MaxCapacity-total {
			t.Fatalf("expected remaining %d, got %d", s.MaxCapacity-total, s.RemainingCapacity)
		}
	}
}

func TestSettlement(t *testing.T) {
	initialized, _ := Create(creator, 10, testParams())
	initialized, _ = initialized.InitializeEscrow(creator, vault)

	if _, _, err := initialized.Finish(creator, 150); !errors.Is(err, contracterrors.ErrWrongPhase) {
		t.Errorf("expected finish while initialized to fail, got %v", err)
	}

	s := readyInstance(t, testParams())
	s, _, _, _ = s.Participate(alice, 50, Participant{}, 30)

	if _, _, err := s.Finish(creator, 99); !errors.Is(err, contracterrors.ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
	if _, _, err := s.Finish(alice, 150); !errors.Is(err, contracterrors.ErrNotCreator) {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}

	finished, payout, err := s.Finish(creator, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finished.Phase != PhaseFinished {
		t.Errorf("expected finished, got %s", finished.Phase)
	}
	want := Transfer{Sender: vault, Receiver: creator, Amount: 30_000, CloseTo: creator}
	if payout != want {
		t.Errorf("expected %+v, got %+v", want, payout)
	}

	started, startPayout, err := s.Start(creator, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Phase != PhaseFinished || startPayout.Amount != StartPayout || !startPayout.CloseTo.IsZero() {
		t.Errorf("unexpected start result %s %+v", started.Phase, startPayout)
	}
	if _, _, err := started.Start(creator, 150); !errors.Is(err, contracterrors.ErrWrongPhase) {
		t.Errorf("expected second start to fail, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	s := readyInstance(t, testParams())

	p := testParams()
	p.Destination = "Faro"
	p.Capacity = 40
	updated, err := s.Update(creator, 20, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Params.Destination != "Faro" || updated.MaxCapacity != 40 || updated.RemainingCapacity != 40 {
		t.Errorf("unexpected update result %+v", updated)
	}

	booked, _, _, _ := s.Participate(alice, 20, Participant{}, 1)
	if _, err := booked.Update(creator, 20, p); !errors.Is(err, contracterrors.ErrActiveBookings) {
		t.Errorf("expected ErrActiveBookings, got %v", err)
	}
	if _, err := s.Update(alice, 20, p); !errors.Is(err, contracterrors.ErrNotCreator) {
		t.Errorf("expected ErrNotCreator, got %v", err)
	}
	p.StartRound = 5
	if _, err := s.Update(creator, 20, p); !errors.Is(err, contracterrors.ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := readyInstance(t, testParams())
	booked, _, _, _ := s.Participate(alice, 20, Participant{}, 5)
	finished, _, _ := booked.Finish(creator, 150)

	tests := []struct {
		name    string
		s       Instance
		caller  ledger.Address
		wantErr error
	}{
		{name: "untouched", s: s, caller: creator},
		{name: "active bookings", s: booked, caller: creator, wantErr: contracterrors.ErrActiveBookings},
		{name: "finished with bookings", s: finished, caller: creator},
		{name: "not creator", s: s, caller: alice, wantErr: contracterrors.ErrNotCreator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Delete(tt.caller)
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInstance_EncodeDecode(t *testing.T) {
	s := readyInstance(t, testParams())
	s.RemainingCapacity = 700

	kv := ledger.KeyValue{}
	s.Encode(kv)
	got, err := Decode(kv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != s {
		t.Errorf("expected %+v, got %+v", s, got)
	}

	kv.SetUint(KeyRemainingCapacity, 2_000)
	if _, err := Decode(kv); !errors.Is(err, contracterrors.ErrCorruptState) {
		t.Errorf("expected ErrCorruptState, got %v", err)
	}
}

func TestPhase_CanTransition(t *testing.T) {
	if !PhaseNotInitialized.CanTransition(PhaseInitialized) {
		t.Error("expected NotInitialized -> Initialized")
	}
	if PhaseNotInitialized.CanTransition(PhaseReady) {
		t.Error("expected phases not to be skipped")
	}
	if PhaseFinished.CanTransition(PhaseNotInitialized) {
		t.Error("expected Finished to be terminal")
	}
}

func TestParseMethod(t *testing.T) {
	for m, name := range methodNames {
		got, err := ParseMethod([]byte(name))
		if err != nil || got != m {
			t.Errorf("expected %s, got %v (%v)", name, got, err)
		}
	}
	if _, err := ParseMethod([]byte("participate ")); !errors.Is(err, contracterrors.ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod for near match, got %v", err)
	}
}
