package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "tripshare/internal/bookings/errors"
	"tripshare/internal/bookings/events"
	"tripshare/internal/bookings/flow"
	"tripshare/internal/bookings/validator"
	"tripshare/internal/contract"
	"tripshare/internal/keys"
	"tripshare/internal/ledger"
	ledgererrors "tripshare/internal/ledger/errors"
	"tripshare/pkg/config"
	apperrors "tripshare/pkg/errors"
	"tripshare/pkg/logger"
	"tripshare/pkg/metrics"
	"tripshare/pkg/model"
)

type BookingService interface {
	Create(ctx context.Context, actor string, req *model.CreateBookingRequest) (*model.Result, error)
	Get(ctx context.Context, id uint64) (*model.Booking, error)
	InitializeEscrow(ctx context.Context, actor string, id uint64) (*model.Result, error)
	FundEscrow(ctx context.Context, actor string, id uint64) (*model.Result, error)
	Update(ctx context.Context, actor string, id uint64, req *model.UpdateBookingRequest) (*model.Result, error)
	OptIn(ctx context.Context, actor string, id uint64) (*model.Result, error)
	Participate(ctx context.Context, actor string, id uint64, req *model.ParticipateRequest) (*model.Result, error)
	CancelParticipation(ctx context.Context, actor string, id uint64) (*model.Result, error)
	Start(ctx context.Context, actor string, id uint64) (*model.Result, error)
	Finish(ctx context.Context, actor string, id uint64) (*model.Result, error)
	Delete(ctx context.Context, actor string, id uint64) (*model.Result, error)
	CloseOut(ctx context.Context, actor string, id uint64) (*model.Result, error)
	GetParticipant(ctx context.Context, id uint64, account string) (*model.Participation, error)
	Balance(ctx context.Context, account string) (*model.Balance, error)
}

// LedgerClient is the part of the ledger the orchestrator talks to.
type LedgerClient interface {
	Submit(ctx context.Context, b *ledger.Bundle) (*ledger.Receipt, error)
	Receipt(ctx context.Context, bundleID string) (*ledger.Receipt, error)
	Round(ctx context.Context) (ledger.Round, error)
	Application(ctx context.Context, id ledger.AppID) (*ledger.Application, error)
	LocalState(ctx context.Context, id ledger.AppID, addr ledger.Address) (ledger.KeyValue, error)
	Balance(ctx context.Context, addr ledger.Address) (uint64, error)
}

// Accounts resolves a keyring name or address to a signing account.
type Accounts interface {
	Account(ref string) (*keys.Account, bool)
}

type Settings struct {
	RoundDuration   time.Duration
	ValidityWindow  ledger.Round
	SubmitTimeout   time.Duration
	MaxAttempts     int
	Backoff         time.Duration
	ExpectedProgram ledger.Digest
	MaxInFlight     int
}

const defaultMaxInFlight = 8

// SettingsFromConfig reads the orchestrator settings. An empty expected program hash trusts the
// approval program compiled into this binary.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	expected := contract.ProgramHash()
	if cfg.ExpectedProgramHash != "" {
		d, err := ledger.ParseDigest(cfg.ExpectedProgramHash)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid expected program hash: %w", err)
		}
		expected = d
	}
	return Settings{
		RoundDuration:   cfg.RoundDuration,
		ValidityWindow:  ledger.Round(cfg.ValidityWindow),
		SubmitTimeout:   cfg.SubmitTimeout,
		MaxAttempts:     cfg.SubmitMaxAttempts,
		Backoff:         cfg.SubmitBackoff,
		ExpectedProgram: expected,
		MaxInFlight:     defaultMaxInFlight,
	}, nil
}

type Option func(*bookingService)

func WithMetrics(m *metrics.Orchestrator) Option {
	return func(s *bookingService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *bookingService) { s.now = now }
}

type bookingService struct {
	ledger    LedgerClient
	accounts  Accounts
	validator *validator.BookingValidator
	publisher events.Publisher
	settings  Settings
	metrics   *metrics.Orchestrator
	log       *logger.Logger
	now       func() time.Time
	limiter   *flow.Limiter
	flows     map[string]*flow.Flow[operation]
}

func NewBookingService(
	ledgerClient LedgerClient,
	accounts Accounts,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	settings Settings,
	log *logger.Logger,
	opts ...Option,
) BookingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &bookingService{
		ledger:    ledgerClient,
		accounts:  accounts,
		validator: validator,
		publisher: publisher,
		settings:  settings,
		log:       log.Component("booking-orchestrator"),
		now:       time.Now,
		limiter:   flow.NewLimiter(settings.MaxInFlight),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.flows = s.buildFlows()
	return s
}

func (s *bookingService) Create(ctx context.Context, actor string, req *model.CreateBookingRequest) (*model.Result, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Booking request body is required")
	}
	sanitizeRequest(req)
	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, s.invalid("create", err)
	}
	return s.execute(ctx, methodCreate, &operation{actorRef: actor, create: req})
}

func (s *bookingService) Update(ctx context.Context, actor string, id uint64, req *model.UpdateBookingRequest) (*model.Result, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Booking request body is required")
	}
	sanitizeRequest((*model.CreateBookingRequest)(req))
	if err := s.validator.ValidateUpdate(req); err != nil {
		return nil, s.invalid("update", err)
	}
	return s.execute(ctx, methodUpdate, &operation{actorRef: actor, appID: ledger.AppID(id), update: req})
}

func (s *bookingService) InitializeEscrow(ctx context.Context, actor string, id uint64) (*model.Result, error) {
	return s.execute(ctx, methodInitializeEscrow, &operation{actorRef: actor, appID: ledger.AppID(id)})
}

func (s *bookingService) FundEscrow(ctx context.Context, actor string, id uint64) (*model.Result, error) {
	return s.execute(ctx, methodFundEscrow, &operation{actorRef: actor, appID: ledger.AppID(id)})
}

func (s *bookingService) OptIn(ctx context.Context, actor string, id uint64) (*model.Result, error) {
	return s.execute(ctx, methodOptIn, &operation{actorRef: actor, appID: ledger.AppID(id)})
}

func (s *bookingService) Participate(ctx context.Context, actor string, id uint64, req *model.ParticipateRequest) (*model.Result, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("Participation request body is required")
	}
	if err := s.validator.ValidateParticipate(req); err != nil {
		return nil, s.invalid("participate", err)
	}
	return s.execute(ctx, methodParticipate, &operation{actorRef: actor, appID: ledger.AppID(id), requested: req.Capacity})
}

func (s *bookingService) CancelParticipation(ctx context.Context, actor string, id uint64) (*model.Result, error) {
	return s.execute(ctx, methodCancel, &operation{actorRef: actor, appID: ledger.AppID(id)})
}

func (s *bookingService) Start(ctx context.Context, actor string, id uint64) (*model.Result, error) {
	return s.execute(ctx, methodStart, &operation{actorRef: actor, appID: ledger.AppID(id)})
}

func (s *bookingService) Finish(ctx context.Context, actor string, id uint64) (*model.Result, error) {
	return s.execute(ctx, methodFinish, &operation{actorRef: actor, appID: ledger.AppID(id)})
}

func (s *bookingService) Delete(ctx context.Context, actor string, id uint64) (*model.Result, error) {
	return s.execute(ctx, methodDelete, &operation{actorRef: actor, appID: ledger.AppID(id)})
}

func (s *bookingService) CloseOut(ctx context.Context, actor string, id uint64) (*model.Result, error) {
	return s.execute(ctx, methodCloseOut, &operation{actorRef: actor, appID: ledger.AppID(id)})
}

func (s *bookingService) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	app, inst, err := s.load(ctx, ledger.AppID(id))
	if err != nil {
		return nil, bookingserrors.ToAppError(err)
	}
	return s.describe(ctx, app, inst)
}

func (s *bookingService) GetParticipant(ctx context.Context, id uint64, account string) (*model.Participation, error) {
	addr, err := s.resolveAddress(account)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.load(ctx, ledger.AppID(id)); err != nil {
		return nil, bookingserrors.ToAppError(err)
	}
	rec, err := s.participant(ctx, ledger.AppID(id), addr)
	if err != nil {
		return nil, bookingserrors.ToAppError(err)
	}
	return toParticipation(ledger.AppID(id), addr, rec), nil
}

func (s *bookingService) Balance(ctx context.Context, account string) (*model.Balance, error) {
	addr, err := s.resolveAddress(account)
	if err != nil {
		return nil, err
	}
	amount, err := s.ledger.Balance(ctx, addr)
	if err != nil {
		return nil, bookingserrors.ToAppError(err)
	}
	round, err := s.ledger.Round(ctx)
	if err != nil {
		return nil, bookingserrors.ToAppError(err)
	}
	return &model.Balance{Account: addr.String(), Amount: amount, Round: uint64(round)}, nil
}

// execute runs the named flow and assembles the result from the committed state. A failure to
// read back state after commit does not turn a committed operation into an error.
func (s *bookingService) execute(ctx context.Context, method string, op *operation) (*model.Result, error) {
	f, ok := s.flows[method]
	if !ok {
		return nil, apperrors.Internal("Unknown booking operation", fmt.Errorf("no flow for %s", method))
	}
	op.method = method

	if err := f.Run(ctx, op); err != nil {
		s.log.Warn("Booking operation failed",
			"method", method,
			"booking_id", uint64(op.appID),
			"actor", op.actorRef,
			"category", ledgererrors.CategoryName(err),
			"error", err,
		)
		return nil, bookingserrors.ToAppError(err)
	}

	result := &model.Result{Receipts: make([]model.Receipt, 0, len(op.receipts))}
	for _, r := range op.receipts {
		result.Receipts = append(result.Receipts, toReceipt(r))
	}

	s.log.Info("Booking operation committed",
		"method", method,
		"booking_id", uint64(op.appID),
		"actor", op.actor.Address().String(),
		"bundles", len(op.receipts),
	)

	if method != methodDelete {
		booking, err := s.Get(ctx, uint64(op.appID))
		if err != nil {
			s.log.Warn("Failed to read booking after commit", "booking_id", uint64(op.appID), "error", err)
		} else {
			result.Booking = booking
		}
	}
	if op.participant {
		rec, err := s.participant(ctx, op.appID, op.actor.Address())
		if err != nil {
			s.log.Warn("Failed to read participant after commit", "booking_id", uint64(op.appID), "error", err)
		} else {
			result.Participation = toParticipation(op.appID, op.actor.Address(), rec)
		}
	}
	return result, nil
}

func (s *bookingService) invalid(method string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		s.log.Warn("Booking request validation failed", "method", method, "error", err)
		return apperrors.Validation("Invalid booking request", verrs.Details())
	}
	return apperrors.Internal("Failed to validate booking request", err)
}

func (s *bookingService) resolveActor(ref string) (*keys.Account, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: no acting account given", bookingserrors.ErrUnknownAccount)
	}
	acct, ok := s.accounts.Account(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrUnknownAccount, ref)
	}
	return acct, nil
}

// resolveAddress accepts a keyring name or any encoded address; reads need no key.
func (s *bookingService) resolveAddress(ref string) (ledger.Address, error) {
	if acct, ok := s.accounts.Account(ref); ok {
		return acct.Address(), nil
	}
	addr, err := ledger.ParseAddress(ref)
	if err != nil {
		return ledger.Address{}, apperrors.InvalidInput(fmt.Sprintf("Unknown account or malformed address: %s", ref))
	}
	return addr, nil
}

// load reads the application, refuses it unless it runs the expected approval program, and
// decodes the booking state.
func (s *bookingService) load(ctx context.Context, id ledger.AppID) (*ledger.Application, contract.Instance, error) {
	if id == 0 {
		return nil, contract.Instance{}, apperrors.InvalidInput("Booking ID must be positive")
	}
	app, err := s.ledger.Application(ctx, id)
	if err != nil {
		if errors.Is(err, ledgererrors.ErrNotFound) {
			return nil, contract.Instance{}, apperrors.NotFoundWithID("Booking", fmt.Sprint(uint64(id)))
		}
		return nil, contract.Instance{}, err
	}
	if app.ProgramHash != s.settings.ExpectedProgram {
		return nil, contract.Instance{}, fmt.Errorf("%w: application %d runs %s", bookingserrors.ErrUntrustedProgram, id, app.ProgramHash)
	}
	inst, err := contract.Decode(app.Global)
	if err != nil {
		return nil, contract.Instance{}, err
	}
	return app, inst, nil
}

// participant returns addr's record, or nil when addr has not opted in.
func (s *bookingService) participant(ctx context.Context, id ledger.AppID, addr ledger.Address) (*contract.Participant, error) {
	kv, err := s.ledger.LocalState(ctx, id, addr)
	if err != nil {
		if errors.Is(err, ledgererrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rec := contract.DecodeParticipant(kv)
	return &rec, nil
}

func (s *bookingService) describe(ctx context.Context, app *ledger.Application, inst contract.Instance) (*model.Booking, error) {
	booking := toBooking(app, inst)
	if inst.HasEscrow() {
		bal, err := s.ledger.Balance(ctx, inst.Escrow)
		if err != nil {
			return nil, bookingserrors.ToAppError(err)
		}
		booking.EscrowBalance = bal
	}
	return booking, nil
}
