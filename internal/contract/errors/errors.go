package errors

import (
	"fmt"

	ledgererrors "tripshare/internal/ledger/errors"
)

var (
	ErrUnknownMethod        = fmt.Errorf("%w: unknown method", ledgererrors.ErrValidation)
	ErrArgumentCount        = fmt.Errorf("%w: wrong number of arguments", ledgererrors.ErrValidation)
	ErrMalformedArgument    = fmt.Errorf("%w: malformed argument", ledgererrors.ErrValidation)
	ErrWrongPhase           = fmt.Errorf("%w: booking is not in the required phase", ledgererrors.ErrValidation)
	ErrNotCreator           = fmt.Errorf("%w: caller is not the creator", ledgererrors.ErrValidation)
	ErrCreatorNotAllowed    = fmt.Errorf("%w: creator cannot participate", ledgererrors.ErrValidation)
	ErrInvalidSchedule      = fmt.Errorf("%w: start must be now or later and before end", ledgererrors.ErrValidation)
	ErrZeroCapacity         = fmt.Errorf("%w: capacity must be positive", ledgererrors.ErrValidation)
	ErrZeroRequest          = fmt.Errorf("%w: requested capacity must be positive", ledgererrors.ErrValidation)
	ErrInsufficientCapacity = fmt.Errorf("%w: requested capacity exceeds remaining capacity", ledgererrors.ErrValidation)
	ErrNoCapacity           = fmt.Errorf("%w: no remaining capacity", ledgererrors.ErrValidation)
	ErrDeadlinePassed       = fmt.Errorf("%w: booking has already started", ledgererrors.ErrValidation)
	ErrNotStarted           = fmt.Errorf("%w: booking has not started yet", ledgererrors.ErrValidation)
	ErrAlreadyParticipating = fmt.Errorf("%w: caller already participates", ledgererrors.ErrValidation)
	ErrNotParticipating     = fmt.Errorf("%w: caller does not participate", ledgererrors.ErrValidation)
	ErrNotOptedIn           = fmt.Errorf("%w: caller has not opted in", ledgererrors.ErrValidation)
	ErrEscrowAlreadySet     = fmt.Errorf("%w: escrow already set", ledgererrors.ErrValidation)
	ErrActiveBookings       = fmt.Errorf("%w: booking has active participants", ledgererrors.ErrValidation)
	ErrBundleShape          = fmt.Errorf("%w: unexpected bundle size or position", ledgererrors.ErrValidation)
	ErrOverflow             = fmt.Errorf("%w: arithmetic overflow", ledgererrors.ErrValidation)
	ErrUnderflow            = fmt.Errorf("%w: arithmetic underflow", ledgererrors.ErrValidation)
	ErrCorruptState         = fmt.Errorf("%w: stored booking state is inconsistent", ledgererrors.ErrValidation)

	ErrPaymentMissing  = fmt.Errorf("%w: paired operation is not a payment", ledgererrors.ErrPairing)
	ErrPaymentAmount   = fmt.Errorf("%w: payment amount mismatch", ledgererrors.ErrPairing)
	ErrPaymentReceiver = fmt.Errorf("%w: payment receiver mismatch", ledgererrors.ErrPairing)
	ErrPaymentSender   = fmt.Errorf("%w: payment sender mismatch", ledgererrors.ErrPairing)
	ErrPaymentCloseTo  = fmt.Errorf("%w: payment close-remainder not allowed", ledgererrors.ErrPairing)
)
