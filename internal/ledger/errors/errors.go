package errors

import (
	"errors"
	"fmt"
)

// Rejection categories. Every error returned by bundle evaluation wraps exactly one of them.
var (
	ErrValidation    = errors.New("validation error")
	ErrPairing       = errors.New("pairing error")
	ErrAuthorization = errors.New("authorization error")
	ErrTransport     = errors.New("transport error")
)

var (
	ErrEmptyBundle        = fmt.Errorf("%w: bundle has no operations", ErrValidation)
	ErrBundleTooLarge     = fmt.Errorf("%w: bundle exceeds maximum size", ErrValidation)
	ErrMissingBundleID    = fmt.Errorf("%w: bundle id is required", ErrValidation)
	ErrMalformedOperation = fmt.Errorf("%w: malformed operation", ErrValidation)
	ErrMalformedAddress   = fmt.Errorf("%w: malformed address", ErrValidation)
	ErrOutsideValidity    = fmt.Errorf("%w: current round outside operation validity window", ErrValidation)
	ErrValidityTooLong    = fmt.Errorf("%w: validity window too long", ErrValidation)
	ErrInsufficientFunds  = fmt.Errorf("%w: insufficient funds", ErrValidation)
	ErrBalanceOverflow    = fmt.Errorf("%w: balance overflow", ErrValidation)
	ErrUnknownApplication = fmt.Errorf("%w: unknown application", ErrValidation)
	ErrUnknownProgram     = fmt.Errorf("%w: unknown approval program", ErrValidation)
	ErrAlreadyOptedIn     = fmt.Errorf("%w: account already opted in", ErrValidation)
	ErrNotOptedIn         = fmt.Errorf("%w: account not opted in", ErrValidation)
	ErrBundleIDConflict   = fmt.Errorf("%w: bundle id already used by a different bundle", ErrValidation)

	ErrMissingAuthorization = fmt.Errorf("%w: operation carries no authorization", ErrAuthorization)
	ErrBadSignature         = fmt.Errorf("%w: signature does not verify", ErrAuthorization)
	ErrProgramAddress       = fmt.Errorf("%w: program does not hash to sender address", ErrAuthorization)
	ErrProgramRejected      = fmt.Errorf("%w: program rejected the bundle", ErrAuthorization)
	ErrSignerMismatch       = fmt.Errorf("%w: signer is not the operation sender", ErrAuthorization)
)

// ErrNotFound is returned by reads. It is not a rejection category.
var ErrNotFound = errors.New("not found")

// Category returns the rejection category err belongs to, or nil.
func Category(err error) error {
	for _, c := range []error{ErrValidation, ErrPairing, ErrAuthorization, ErrTransport} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

// CategoryName is the metrics/log label for err's category.
func CategoryName(err error) string {
	switch Category(err) {
	case ErrValidation:
		return "validation"
	case ErrPairing:
		return "pairing"
	case ErrAuthorization:
		return "authorization"
	case ErrTransport:
		return "transport"
	default:
		return "unknown"
	}
}
