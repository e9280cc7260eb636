package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	bookingserrors "tripshare/internal/bookings/errors"
	"tripshare/internal/bookings/events"
	"tripshare/internal/bookings/flow"
	"tripshare/internal/contract"
	contracterrors "tripshare/internal/contract/errors"
	"tripshare/internal/escrow"
	"tripshare/internal/keys"
	"tripshare/internal/ledger"
	ledgererrors "tripshare/internal/ledger/errors"
	"tripshare/pkg/model"
)

const (
	methodCreate           = "create"
	methodInitializeEscrow = "initializeEscrow"
	methodFundEscrow       = "fundEscrow"
	methodUpdate           = "update"
	methodOptIn            = "optIn"
	methodParticipate      = "participate"
	methodCancel           = "cancelParticipation"
	methodStart            = "start"
	methodFinish           = "finish"
	methodDelete           = "delete"
	methodCloseOut         = "closeOut"
)

// operation is the state one flow run threads through its steps.
type operation struct {
	method    string
	actorRef  string
	appID     ledger.AppID
	create    *model.CreateBookingRequest
	update    *model.UpdateBookingRequest
	requested uint64

	actor  *keys.Account
	round  ledger.Round
	inst   contract.Instance
	record *contract.Participant
	// participant marks operations whose result carries the actor's record.
	participant bool
	program     []byte

	bundle   *ledger.Bundle
	event    events.Event
	receipts []*ledger.Receipt
}

func (op *operation) lastReceipt() *ledger.Receipt {
	if len(op.receipts) == 0 {
		return nil
	}
	return op.receipts[len(op.receipts)-1]
}

func (s *bookingService) buildFlows() map[string]*flow.Flow[operation] {
	resolve := flow.NewStep("resolve", s.stepResolve)
	load := flow.NewStep("load", s.stepLoad)
	record := flow.NewStep("participant", s.stepParticipant)
	verify := flow.NewStep("verify", s.stepVerifyEscrow)
	submit := flow.NewStep("submit", s.stepSubmit)
	publish := flow.NewStep("publish", s.stepPublish)
	build := func(fn func(context.Context, *operation) error) flow.Step[operation] {
		return flow.NewStep("build", fn)
	}

	flows := []*flow.Flow[operation]{
		flow.New(methodCreate, resolve, flow.NewStep("round", s.stepRound), build(s.buildCreate), submit, flow.NewStep("confirm", s.stepConfirmCreate), publish),
		flow.New(methodInitializeEscrow, resolve, load, build(s.buildInitializeEscrow), submit, publish),
		flow.New(methodFundEscrow, resolve, load, verify, build(s.buildFundEscrow), submit, publish),
		flow.New(methodUpdate, resolve, load, build(s.buildUpdate), submit, publish),
		flow.New(methodOptIn, resolve, load, record, build(s.buildOptIn), submit, publish),
		flow.New(methodParticipate, resolve, load, record, verify, flow.NewStep("optin", s.stepAutoOptIn), build(s.buildParticipate), submit, publish),
		flow.New(methodCancel, resolve, load, record, verify, build(s.buildCancel), submit, publish),
		flow.New(methodStart, resolve, load, verify, build(s.buildStart), submit, publish),
		flow.New(methodFinish, resolve, load, verify, build(s.buildFinish), submit, publish),
		flow.New(methodDelete, resolve, load, build(s.buildDelete), submit, publish),
		flow.New(methodCloseOut, resolve, load, record, build(s.buildCloseOut), submit, publish),
	}

	m := make(map[string]*flow.Flow[operation], len(flows))
	for _, f := range flows {
		m[f.Name()] = f
	}
	return m
}

func (s *bookingService) stepResolve(_ context.Context, op *operation) error {
	acct, err := s.resolveActor(op.actorRef)
	if err != nil {
		return err
	}
	op.actor = acct
	return nil
}

func (s *bookingService) stepRound(ctx context.Context, op *operation) error {
	round, err := s.ledger.Round(ctx)
	if err != nil {
		return err
	}
	op.round = round
	return nil
}

func (s *bookingService) stepLoad(ctx context.Context, op *operation) error {
	if err := s.stepRound(ctx, op); err != nil {
		return err
	}
	_, inst, err := s.load(ctx, op.appID)
	if err != nil {
		return err
	}
	op.inst = inst
	return nil
}

func (s *bookingService) stepParticipant(ctx context.Context, op *operation) error {
	rec, err := s.participant(ctx, op.appID, op.actor.Address())
	if err != nil {
		return err
	}
	op.record = rec
	op.participant = true
	return nil
}

// stepVerifyEscrow refuses to move funds through an escrow other than the one derived from the
// booking id, and prepares the program that authorizes the escrow's payments.
func (s *bookingService) stepVerifyEscrow(_ context.Context, op *operation) error {
	derived := escrow.New(op.appID)
	if op.inst.HasEscrow() && op.inst.Escrow != derived.Address() {
		return fmt.Errorf("%w: booking %d stores %s, derived %s",
			bookingserrors.ErrEscrowMismatch, op.appID, op.inst.Escrow, derived.Address())
	}
	op.program = derived.Bytes()
	return nil
}

func (s *bookingService) stepSubmit(ctx context.Context, op *operation) error {
	if err := s.authorize(op); err != nil {
		return err
	}
	receipt, err := s.submit(ctx, op.method, op.bundle)
	if err != nil {
		return err
	}
	op.receipts = append(op.receipts, receipt)
	return nil
}

func (s *bookingService) stepConfirmCreate(_ context.Context, op *operation) error {
	r := op.lastReceipt()
	if r == nil || r.AppID == 0 {
		return bookingserrors.ErrMissingCreatedApp
	}
	op.appID = r.AppID
	return nil
}

// stepPublish announces the committed bundle. The commit stands whether or not the event is
// delivered.
func (s *bookingService) stepPublish(ctx context.Context, op *operation) error {
	r := op.lastReceipt()
	if r == nil {
		return nil
	}
	e := op.event
	e.ID = events.EventID(r.BundleID, e.Type)
	e.BookingID = uint64(op.appID)
	e.Actor = op.actor.Address().String()
	e.BundleID = r.BundleID
	e.Round = uint64(r.Round)
	e.OccurredAt = r.CommittedAt

	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Error("Failed to publish booking event",
			"event_id", e.ID,
			"type", string(e.Type),
			"booking_id", e.BookingID,
			"error", err,
		)
	}
	return nil
}

// stepAutoOptIn allocates the actor's participant record first when it has none.
func (s *bookingService) stepAutoOptIn(ctx context.Context, op *operation) error {
	if op.record != nil {
		return nil
	}
	if err := s.buildOptIn(ctx, op); err != nil {
		return err
	}
	if err := s.stepSubmit(ctx, op); err != nil {
		return err
	}
	if err := s.stepPublish(ctx, op); err != nil {
		return err
	}
	op.record = &contract.Participant{}
	return nil
}

func (s *bookingService) authorize(op *operation) error {
	for i, signed := range op.bundle.Operations {
		switch {
		case signed.Sender == op.actor.Address():
			if err := op.bundle.Sign(i, op.actor); err != nil {
				return err
			}
		case op.program != nil:
			if err := op.bundle.AttachProgram(i, op.program); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: no authorization for operation %d", ledgererrors.ErrMissingAuthorization, i)
		}
	}
	return nil
}

// prepare starts a fresh bundle valid from the loaded round for the configured window.
func (s *bookingService) prepare(op *operation, t events.Type, ops ...ledger.Operation) {
	op.bundle = ledger.NewBundle(uuid.NewString(), ops...)
	op.bundle.SetValidity(op.round, op.round+s.settings.ValidityWindow)
	op.event = events.Event{
		Type:      t,
		Remaining: op.inst.RemainingCapacity,
		Phase:     op.inst.Phase.String(),
	}
}

func call(sender ledger.Address, id ledger.AppID, m contract.Method, args ...[]byte) ledger.Operation {
	return ledger.NewAppCall(sender, id, ledger.NoOp, append([][]byte{m.Bytes()}, args...)...)
}

func payment(t contract.Transfer) ledger.Operation {
	op := ledger.NewPayment(t.Sender, t.Receiver, t.Amount)
	op.Payment.CloseRemainderTo = t.CloseTo
	return op
}

func (s *bookingService) buildCreate(_ context.Context, op *operation) error {
	params, err := s.params(op.round, op.create)
	if err != nil {
		return err
	}
	inst, err := contract.Create(op.actor.Address(), op.round, params)
	if err != nil {
		return err
	}
	op.inst = inst
	s.prepare(op, events.Created,
		ledger.NewAppCreate(op.actor.Address(), s.settings.ExpectedProgram, contract.CreateArgs(params)...))
	op.event.Capacity = params.Capacity
	op.event.Amount = params.UnitCost
	return nil
}

func (s *bookingService) buildUpdate(_ context.Context, op *operation) error {
	params, err := s.params(op.round, (*model.CreateBookingRequest)(op.update))
	if err != nil {
		return err
	}
	next, err := op.inst.Update(op.actor.Address(), op.round, params)
	if err != nil {
		return err
	}
	op.inst = next
	s.prepare(op, events.Updated, ledger.NewAppCall(op.actor.Address(), op.appID, ledger.NoOp, contract.UpdateArgs(params)...))
	op.event.Capacity = params.Capacity
	op.event.Amount = params.UnitCost
	return nil
}

func (s *bookingService) buildInitializeEscrow(_ context.Context, op *operation) error {
	addr := escrow.New(op.appID).Address()
	next, err := op.inst.InitializeEscrow(op.actor.Address(), addr)
	if err != nil {
		return err
	}
	op.inst = next
	s.prepare(op, events.EscrowInitialized, call(op.actor.Address(), op.appID, contract.MethodInitializeEscrow, addr[:]))
	return nil
}

func (s *bookingService) buildFundEscrow(_ context.Context, op *operation) error {
	next, transfer, err := op.inst.FundEscrow(op.actor.Address())
	if err != nil {
		return err
	}
	op.inst = next
	s.prepare(op, events.EscrowFunded,
		call(op.actor.Address(), op.appID, contract.MethodFundEscrow),
		payment(transfer))
	op.event.Amount = transfer.Amount
	return nil
}

func (s *bookingService) buildOptIn(_ context.Context, op *operation) error {
	if op.record != nil {
		return ledgererrors.ErrAlreadyOptedIn
	}
	if _, err := op.inst.OptIn(op.actor.Address(), op.round); err != nil {
		return err
	}
	s.prepare(op, events.OptedIn, ledger.NewAppCall(op.actor.Address(), op.appID, ledger.OptIn))
	return nil
}

func (s *bookingService) buildParticipate(_ context.Context, op *operation) error {
	next, _, transfer, err := op.inst.Participate(op.actor.Address(), op.round, *op.record, op.requested)
	if err != nil {
		return err
	}
	op.inst = next
	s.prepare(op, events.Participated,
		call(op.actor.Address(), op.appID, contract.MethodParticipate, contract.Itob(op.requested)),
		payment(transfer))
	op.event.Amount = transfer.Amount
	op.event.Capacity = op.requested
	return nil
}

func (s *bookingService) buildCancel(_ context.Context, op *operation) error {
	if op.record == nil {
		return contracterrors.ErrNotOptedIn
	}
	booked := op.record.Booked
	next, _, transfer, err := op.inst.Cancel(op.actor.Address(), op.round, *op.record)
	if err != nil {
		return err
	}
	op.inst = next
	s.prepare(op, events.Cancelled,
		call(op.actor.Address(), op.appID, contract.MethodCancelParticipation),
		payment(transfer))
	op.event.Amount = transfer.Amount
	op.event.Capacity = booked
	return nil
}

func (s *bookingService) buildStart(_ context.Context, op *operation) error {
	next, transfer, err := op.inst.Start(op.actor.Address(), op.round)
	if err != nil {
		return err
	}
	op.inst = next
	s.prepare(op, events.Started,
		call(op.actor.Address(), op.appID, contract.MethodStart),
		payment(transfer))
	op.event.Amount = transfer.Amount
	return nil
}

func (s *bookingService) buildFinish(_ context.Context, op *operation) error {
	booked := op.inst.Booked()
	next, transfer, err := op.inst.Finish(op.actor.Address(), op.round)
	if err != nil {
		return err
	}
	op.inst = next
	s.prepare(op, events.Finished,
		call(op.actor.Address(), op.appID, contract.MethodFinish),
		payment(transfer))
	op.event.Amount = transfer.Amount
	op.event.Capacity = booked
	return nil
}

func (s *bookingService) buildDelete(_ context.Context, op *operation) error {
	if err := op.inst.Delete(op.actor.Address()); err != nil {
		return err
	}
	s.prepare(op, events.Deleted, ledger.NewAppCall(op.actor.Address(), op.appID, ledger.DeleteApplication))
	return nil
}

func (s *bookingService) buildCloseOut(_ context.Context, op *operation) error {
	if op.record == nil {
		return contracterrors.ErrNotOptedIn
	}
	if err := op.inst.CloseOut(); err != nil {
		return err
	}
	s.prepare(op, events.ClosedOut, ledger.NewAppCall(op.actor.Address(), op.appID, ledger.CloseOut))
	op.event.Capacity = op.record.Booked
	return nil
}
