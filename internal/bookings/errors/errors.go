package errors

import (
	"errors"
	"fmt"
	"net/http"

	ledgererrors "tripshare/internal/ledger/errors"
	apperrors "tripshare/pkg/errors"
)

var (
	ErrUnknownAccount    = errors.New("unknown account")
	ErrUntrustedProgram  = fmt.Errorf("%w: application is not bound to the expected approval program", ledgererrors.ErrAuthorization)
	ErrEscrowMismatch    = fmt.Errorf("%w: stored escrow does not match the derived escrow address", ledgererrors.ErrAuthorization)
	ErrOutcomeUnknown    = fmt.Errorf("%w: bundle outcome unknown after retries", ledgererrors.ErrTransport)
	ErrBundleExpired     = fmt.Errorf("%w: bundle validity window passed without commitment", ledgererrors.ErrTransport)
	ErrStartInPast       = fmt.Errorf("%w: start time is in the past", ledgererrors.ErrValidation)
	ErrTimeOutOfRange    = fmt.Errorf("%w: time is too far in the future", ledgererrors.ErrValidation)
	ErrMissingCreatedApp = errors.New("create receipt carries no application id")
)

// ToAppError maps ledger and orchestrator errors onto API errors by rejection category.
func ToAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, ErrUnknownAccount) {
		return apperrors.Unauthorized(err.Error())
	}
	if errors.Is(err, ledgererrors.ErrNotFound) {
		return apperrors.Wrap(err, apperrors.CodeNotFound, err.Error(), http.StatusNotFound)
	}
	if errors.Is(err, ledgererrors.ErrAlreadyOptedIn) || errors.Is(err, ledgererrors.ErrBundleIDConflict) {
		return apperrors.Wrap(err, apperrors.CodeConflict, err.Error(), http.StatusConflict)
	}

	switch ledgererrors.Category(err) {
	case ledgererrors.ErrValidation:
		return apperrors.Rejected(apperrors.CodeValidation, err)
	case ledgererrors.ErrPairing:
		return apperrors.Rejected(apperrors.CodePairing, err)
	case ledgererrors.ErrAuthorization:
		return apperrors.Rejected(apperrors.CodeAuthorization, err)
	case ledgererrors.ErrTransport:
		return apperrors.Transport("ledger outcome unavailable", err)
	default:
		return apperrors.Internal("unexpected booking error", err)
	}
}
