// Package escrow implements the program account that custodies a booking's funds. The escrow
// has no key; the ledger lets it spend only when Authorize accepts the bundle.
package escrow

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"tripshare/internal/ledger"
	ledgererrors "tripshare/internal/ledger/errors"
)

const (
	prefix  = "tripshare/escrow"
	Version = byte(1)

	programLength = len(prefix) + 1 + 8
)

var (
	ErrMalformedProgram = fmt.Errorf("%w: malformed escrow program", ledgererrors.ErrAuthorization)
	ErrGroupShape       = fmt.Errorf("%w: escrow spends only as the second of two operations", ledgererrors.ErrAuthorization)
	ErrNotBoundCall     = fmt.Errorf("%w: escrow spend is not paired with a call to its booking", ledgererrors.ErrAuthorization)
	ErrNotPayment       = fmt.Errorf("%w: escrow may only send payments", ledgererrors.ErrAuthorization)
)

// Program is the escrow of one booking instance.
type Program struct {
	AppID ledger.AppID
}

func New(app ledger.AppID) Program {
	return Program{AppID: app}
}

// Bytes is the canonical program: prefix, version and the bound application id.
func (p Program) Bytes() []byte {
	b := make([]byte, 0, programLength)
	b = append(b, prefix...)
	b = append(b, Version)
	return binary.BigEndian.AppendUint64(b, uint64(p.AppID))
}

func (p Program) Hash() ledger.Digest {
	return ledger.HashProgram(p.Bytes())
}

// Address is the escrow account. Anyone can recompute it from the application id.
func (p Program) Address() ledger.Address {
	return ledger.ProgramAddress(p.Bytes())
}

// Authorize accepts exactly [call to AppID, payment from the escrow] with the escrow at index 1.
// Whether the payment matches the call is the booking contract's decision.
func (p Program) Authorize(group []ledger.Operation, index int) error {
	if len(group) != 2 || index != 1 {
		return ErrGroupShape
	}
	call := group[0]
	if !call.IsAppCall() || call.AppCall.AppID != p.AppID || call.AppCall.OnCompletion != ledger.NoOp {
		return ErrNotBoundCall
	}
	if !group[1].IsPayment() {
		return ErrNotPayment
	}
	return nil
}

// Load decodes program bytes into a verifier. It is the ledger's program loader.
func Load(program []byte) (ledger.Verifier, error) {
	if len(program) != programLength || !bytes.HasPrefix(program, []byte(prefix)) {
		return nil, ErrMalformedProgram
	}
	if v := program[len(prefix)]; v != Version {
		return nil, fmt.Errorf("%w: version %d", ErrMalformedProgram, v)
	}
	app := ledger.AppID(binary.BigEndian.Uint64(program[len(prefix)+1:]))
	if app == 0 {
		return nil, fmt.Errorf("%w: application id 0", ErrMalformedProgram)
	}
	return Program{AppID: app}, nil
}
