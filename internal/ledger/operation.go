package ledger

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	ledgererrors "tripshare/internal/ledger/errors"
)

type (
	Round uint64
	AppID uint64
)

const (
	MaxArgs      = 16
	MaxArgsBytes = 2048
)

type OpType uint8

const (
	OpPayment OpType = iota + 1
	OpAppCall
)

func (t OpType) String() string {
	switch t {
	case OpPayment:
		return "payment"
	case OpAppCall:
		return "app_call"
	default:
		return fmt.Sprintf("op_type(%d)", uint8(t))
	}
}

type OnCompletion uint8

const (
	NoOp OnCompletion = iota
	OptIn
	CloseOut
	DeleteApplication
)

func (oc OnCompletion) String() string {
	switch oc {
	case NoOp:
		return "noop"
	case OptIn:
		return "optin"
	case CloseOut:
		return "closeout"
	case DeleteApplication:
		return "delete"
	default:
		return fmt.Sprintf("on_completion(%d)", uint8(oc))
	}
}

type Payment struct {
	Receiver Address `json:"receiver"`
	Amount   uint64  `json:"amount"`
	// CloseRemainderTo, when set, receives the sender's whole remaining balance.
	CloseRemainderTo Address `json:"close_remainder_to"`
}

type AppCall struct {
	AppID        AppID        `json:"app_id"`
	OnCompletion OnCompletion `json:"on_completion"`
	Args         [][]byte     `json:"args,omitempty"`
	// ProgramHash selects the approval program when AppID is zero.
	ProgramHash Digest `json:"program_hash"`
}

type Operation struct {
	Type       OpType   `json:"type"`
	Sender     Address  `json:"sender"`
	FirstValid Round    `json:"first_valid"`
	LastValid  Round    `json:"last_valid"`
	Payment    *Payment `json:"payment,omitempty"`
	AppCall    *AppCall `json:"app_call,omitempty"`
}

func NewPayment(sender, receiver Address, amount uint64) Operation {
	return Operation{
		Type:    OpPayment,
		Sender:  sender,
		Payment: &Payment{Receiver: receiver, Amount: amount},
	}
}

func NewAppCall(sender Address, app AppID, oc OnCompletion, args ...[]byte) Operation {
	return Operation{
		Type:    OpAppCall,
		Sender:  sender,
		AppCall: &AppCall{AppID: app, OnCompletion: oc, Args: args},
	}
}

func NewAppCreate(sender Address, program Digest, args ...[]byte) Operation {
	return Operation{
		Type:    OpAppCall,
		Sender:  sender,
		AppCall: &AppCall{OnCompletion: NoOp, Args: args, ProgramHash: program},
	}
}

func (op Operation) IsPayment() bool {
	return op.Type == OpPayment && op.Payment != nil
}

func (op Operation) IsAppCall() bool {
	return op.Type == OpAppCall && op.AppCall != nil
}

// Describe names the operation in rejections and logs.
func (op Operation) Describe() string {
	switch {
	case op.IsPayment():
		return fmt.Sprintf("payment %d to %s", op.Payment.Amount, op.Payment.Receiver)
	case op.IsAppCall():
		ac := op.AppCall
		if ac.AppID == 0 {
			return "app_call create"
		}
		desc := fmt.Sprintf("app_call %s app=%d", ac.OnCompletion, ac.AppID)
		if len(ac.Args) > 0 && utf8.Valid(ac.Args[0]) && len(ac.Args[0]) <= 32 {
			desc += " method=" + string(ac.Args[0])
		}
		return desc
	default:
		return op.Type.String()
	}
}

func (op Operation) validate() error {
	if op.LastValid < op.FirstValid {
		return fmt.Errorf("%w: last valid %d before first valid %d", ledgererrors.ErrMalformedOperation, op.LastValid, op.FirstValid)
	}
	if op.LastValid-op.FirstValid > MaxValidityWindow {
		return ledgererrors.ErrValidityTooLong
	}
	switch op.Type {
	case OpPayment:
		if op.Payment == nil || op.AppCall != nil {
			return fmt.Errorf("%w: payment body mismatch", ledgererrors.ErrMalformedOperation)
		}
	case OpAppCall:
		if op.AppCall == nil || op.Payment != nil {
			return fmt.Errorf("%w: app call body mismatch", ledgererrors.ErrMalformedOperation)
		}
		if len(op.AppCall.Args) > MaxArgs {
			return fmt.Errorf("%w: %d arguments exceeds %d", ledgererrors.ErrMalformedOperation, len(op.AppCall.Args), MaxArgs)
		}
		total := 0
		for _, a := range op.AppCall.Args {
			total += len(a)
		}
		if total > MaxArgsBytes {
			return fmt.Errorf("%w: arguments exceed %d bytes", ledgererrors.ErrMalformedOperation, MaxArgsBytes)
		}
		if op.AppCall.AppID == 0 && op.AppCall.OnCompletion != NoOp {
			return fmt.Errorf("%w: create must use noop", ledgererrors.ErrMalformedOperation)
		}
	default:
		return fmt.Errorf("%w: unknown type %d", ledgererrors.ErrMalformedOperation, op.Type)
	}
	return nil
}

// Encode returns the canonical byte form signed by the sender and hashed into the group id.
func (op Operation) Encode() []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, byte(op.Type))
	buf = append(buf, op.Sender[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(op.FirstValid))
	buf = binary.BigEndian.AppendUint64(buf, uint64(op.LastValid))
	switch {
	case op.Payment != nil:
		buf = append(buf, 'P')
		buf = append(buf, op.Payment.Receiver[:]...)
		buf = binary.BigEndian.AppendUint64(buf, op.Payment.Amount)
		buf = append(buf, op.Payment.CloseRemainderTo[:]...)
	case op.AppCall != nil:
		buf = append(buf, 'A')
		buf = binary.BigEndian.AppendUint64(buf, uint64(op.AppCall.AppID))
		buf = append(buf, byte(op.AppCall.OnCompletion))
		buf = append(buf, op.AppCall.ProgramHash[:]...)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(op.AppCall.Args)))
		for _, a := range op.AppCall.Args {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(a)))
			buf = append(buf, a...)
		}
	}
	return buf
}
