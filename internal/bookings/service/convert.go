package service

import (
	"math"
	"math/bits"
	"time"

	bookingserrors "tripshare/internal/bookings/errors"
	"tripshare/internal/contract"
	"tripshare/internal/ledger"
	"tripshare/pkg/model"
	"tripshare/pkg/sanitizer"
)

func sanitizeRequest(req *model.CreateBookingRequest) {
	req.CreatorName = sanitizer.SanitizeText(req.CreatorName)
	req.Origin = sanitizer.SanitizeText(req.Origin)
	req.Destination = sanitizer.SanitizeText(req.Destination)
}

// params converts a request's wall-clock times into rounds relative to the current round.
func (s *bookingService) params(round ledger.Round, req *model.CreateBookingRequest) (contract.Params, error) {
	now := s.now()
	startRound, err := toRound(now, round, req.StartTime, s.settings.RoundDuration)
	if err != nil {
		return contract.Params{}, err
	}
	endRound, err := toRound(now, round, req.EndTime, s.settings.RoundDuration)
	if err != nil {
		return contract.Params{}, err
	}
	return contract.Params{
		CreatorName: req.CreatorName,
		Origin:      req.Origin,
		Destination: req.Destination,
		StartDate:   req.StartTime.UTC().Format(time.RFC3339),
		StartRound:  startRound,
		EndDate:     req.EndTime.UTC().Format(time.RFC3339),
		EndRound:    endRound,
		UnitCost:    req.UnitCost,
		Capacity:    req.Capacity,
	}, nil
}

// toRound is current + ceil((t - now) / roundDuration).
func toRound(now time.Time, current ledger.Round, t time.Time, roundDuration time.Duration) (ledger.Round, error) {
	if t.Before(now) {
		return 0, bookingserrors.ErrStartInPast
	}
	if roundDuration <= 0 {
		return current, nil
	}
	delta := t.Sub(now)
	// Sub saturates, so a delta at the limit means the real distance is unknown.
	if delta == time.Duration(math.MaxInt64) {
		return 0, bookingserrors.ErrTimeOutOfRange
	}
	rounds := delta / roundDuration
	if delta%roundDuration != 0 {
		rounds++
	}
	sum, carry := bits.Add64(uint64(current), uint64(rounds), 0)
	if carry != 0 {
		return 0, bookingserrors.ErrTimeOutOfRange
	}
	return ledger.Round(sum), nil
}

func toBooking(app *ledger.Application, inst contract.Instance) *model.Booking {
	b := &model.Booking{
		ID:                uint64(app.ID),
		Creator:           inst.Creator.String(),
		CreatorName:       inst.Params.CreatorName,
		Origin:            inst.Params.Origin,
		Destination:       inst.Params.Destination,
		StartDate:         inst.Params.StartDate,
		StartRound:        uint64(inst.Params.StartRound),
		EndDate:           inst.Params.EndDate,
		EndRound:          uint64(inst.Params.EndRound),
		UnitCost:          inst.Params.UnitCost,
		MaxCapacity:       inst.MaxCapacity,
		RemainingCapacity: inst.RemainingCapacity,
		Phase:             inst.Phase.String(),
		Version:           app.Version,
	}
	if inst.HasEscrow() {
		b.Escrow = inst.Escrow.String()
	}
	return b
}

func toParticipation(id ledger.AppID, addr ledger.Address, rec *contract.Participant) *model.Participation {
	p := &model.Participation{BookingID: uint64(id), Account: addr.String()}
	if rec != nil {
		p.OptedIn = true
		p.Booked = rec.Booked
	}
	return p
}

func toReceipt(r *ledger.Receipt) model.Receipt {
	return model.Receipt{
		BundleID:    r.BundleID,
		GroupID:     r.GroupID.String(),
		Round:       uint64(r.Round),
		CommittedAt: r.CommittedAt,
		Duplicate:   r.Duplicate,
	}
}
