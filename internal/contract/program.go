package contract

import (
	"fmt"

	contracterrors "tripshare/internal/contract/errors"
	"tripshare/internal/ledger"
)

// Identity is hashed into the approval program digest that applications are bound to.
const Identity = "tripshare/booking-approval/v1"

var programHash = ledger.HashProgram([]byte(Identity))

// Program is the booking approval program.
type Program struct{}

func NewProgram() *Program {
	return &Program{}
}

// ProgramHash is the digest of the approval program built into this binary.
func ProgramHash() ledger.Digest {
	return programHash
}

func (p *Program) Hash() ledger.Digest {
	return programHash
}

// Approve runs the transition selected by the call and writes the result into call.Global and
// call.Local.
func (p *Program) Approve(c *ledger.Call) error {
	if c.Creating {
		return p.create(c)
	}

	s, err := Decode(c.Global)
	if err != nil {
		return err
	}

	switch c.OnCompletion {
	case ledger.OptIn:
		if err := alone(c); err != nil {
			return err
		}
		rec, err := s.OptIn(c.Sender, c.Round)
		if err != nil {
			return err
		}
		rec.Encode(c.Local)
		return nil
	case ledger.CloseOut:
		if err := alone(c); err != nil {
			return err
		}
		return s.CloseOut()
	case ledger.DeleteApplication:
		if err := alone(c); err != nil {
			return err
		}
		return s.Delete(c.Sender)
	case ledger.NoOp:
		return p.dispatch(c, s)
	default:
		return fmt.Errorf("%w: on-completion %s", contracterrors.ErrUnknownMethod, c.OnCompletion)
	}
}

func (p *Program) create(c *ledger.Call) error {
	if err := alone(c); err != nil {
		return err
	}
	params, err := parseParams(c.Args)
	if err != nil {
		return err
	}
	s, err := Create(c.Sender, c.Round, params)
	if err != nil {
		return err
	}
	s.Encode(c.Global)
	return nil
}

func (p *Program) dispatch(c *ledger.Call, s Instance) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("%w: method name required", contracterrors.ErrArgumentCount)
	}
	method, err := ParseMethod(c.Args[0])
	if err != nil {
		return err
	}
	args := c.Args[1:]

	var (
		next     Instance
		transfer Transfer
	)
	switch method {
	case MethodInitializeEscrow:
		if err := alone(c); err != nil {
			return err
		}
		if err := argCount(args, 1); err != nil {
			return err
		}
		escrow, err := ledger.AddressFromBytes(args[0])
		if err != nil {
			return fmt.Errorf("%w: escrow: %v", contracterrors.ErrMalformedArgument, err)
		}
		if next, err = s.InitializeEscrow(c.Sender, escrow); err != nil {
			return err
		}
		next.Encode(c.Global)
		return nil

	case MethodUpdate:
		if err := alone(c); err != nil {
			return err
		}
		params, err := parseParams(args)
		if err != nil {
			return fmt.Errorf("%w (update takes %d arguments)", err, updateArgCount)
		}
		if next, err = s.Update(c.Sender, c.Round, params); err != nil {
			return err
		}
		next.Encode(c.Global)
		return nil

	case MethodFundEscrow:
		if err := argCount(args, 0); err != nil {
			return err
		}
		if next, transfer, err = s.FundEscrow(c.Sender); err != nil {
			return err
		}

	case MethodParticipate:
		if err := argCount(args, 1); err != nil {
			return err
		}
		requested, err := Btoi(args[0])
		if err != nil {
			return err
		}
		if c.Local == nil {
			return contracterrors.ErrNotOptedIn
		}
		var rec Participant
		if next, rec, transfer, err = s.Participate(c.Sender, c.Round, DecodeParticipant(c.Local), requested); err != nil {
			return err
		}
		if err := paired(c, transfer); err != nil {
			return err
		}
		rec.Encode(c.Local)
		next.Encode(c.Global)
		return nil

	case MethodCancelParticipation:
		if err := argCount(args, 0); err != nil {
			return err
		}
		if c.Local == nil {
			return contracterrors.ErrNotOptedIn
		}
		var rec Participant
		if next, rec, transfer, err = s.Cancel(c.Sender, c.Round, DecodeParticipant(c.Local)); err != nil {
			return err
		}
		if err := paired(c, transfer); err != nil {
			return err
		}
		rec.Encode(c.Local)
		next.Encode(c.Global)
		return nil

	case MethodStart:
		if err := argCount(args, 0); err != nil {
			return err
		}
		if next, transfer, err = s.Start(c.Sender, c.Round); err != nil {
			return err
		}

	case MethodFinish:
		if err := argCount(args, 0); err != nil {
			return err
		}
		if next, transfer, err = s.Finish(c.Sender, c.Round); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %s", contracterrors.ErrUnknownMethod, method)
	}

	if err := paired(c, transfer); err != nil {
		return err
	}
	next.Encode(c.Global)
	return nil
}

func argCount(args [][]byte, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: expected %d, got %d", contracterrors.ErrArgumentCount, n, len(args))
	}
	return nil
}

// alone requires the call to be the only operation of its bundle.
func alone(c *ledger.Call) error {
	if len(c.Group) != 1 || c.Index != 0 {
		return fmt.Errorf("%w: call must be submitted alone", contracterrors.ErrBundleShape)
	}
	return nil
}

// paired requires the call at index 0 and a payment matching want at index 1.
func paired(c *ledger.Call, want Transfer) error {
	if len(c.Group) != 2 || c.Index != 0 {
		return fmt.Errorf("%w: call must be followed by exactly one payment", contracterrors.ErrBundleShape)
	}
	return CheckTransfer(c.Group[1], want)
}

// CheckTransfer matches a payment operation against the transfer a method expects.
func CheckTransfer(op ledger.Operation, want Transfer) error {
	if !op.IsPayment() {
		return contracterrors.ErrPaymentMissing
	}
	pay := op.Payment
	if op.Sender != want.Sender {
		return fmt.Errorf("%w: expected %s, got %s", contracterrors.ErrPaymentSender, want.Sender, op.Sender)
	}
	if pay.Receiver != want.Receiver {
		return fmt.Errorf("%w: expected %s, got %s", contracterrors.ErrPaymentReceiver, want.Receiver, pay.Receiver)
	}
	if pay.Amount != want.Amount {
		return fmt.Errorf("%w: expected %d, got %d", contracterrors.ErrPaymentAmount, want.Amount, pay.Amount)
	}
	if !pay.CloseRemainderTo.IsZero() && (want.CloseTo.IsZero() || pay.CloseRemainderTo != want.CloseTo) {
		return contracterrors.ErrPaymentCloseTo
	}
	return nil
}
