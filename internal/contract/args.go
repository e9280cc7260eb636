package contract

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"unicode/utf8"

	contracterrors "tripshare/internal/contract/errors"
	"tripshare/internal/ledger"
)

const (
	createArgCount = 9
	updateArgCount = createArgCount + 1
	maxTextLength  = 128
)

// Itob is the 8-byte big-endian integer argument encoding.
func Itob(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

// Btoi decodes up to 8 big-endian bytes.
func Btoi(b []byte) (uint64, error) {
	if len(b) > 8 {
		return 0, fmt.Errorf("%w: integer argument of %d bytes", contracterrors.ErrMalformedArgument, len(b))
	}
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n, nil
}

func text(field string, b []byte) (string, error) {
	if len(b) == 0 || len(b) > maxTextLength || !utf8.Valid(b) {
		return "", fmt.Errorf("%w: %s must be 1-%d bytes of UTF-8", contracterrors.ErrMalformedArgument, field, maxTextLength)
	}
	return string(b), nil
}

// Params are the creator-supplied booking fields shared by Create and Update.
type Params struct {
	CreatorName string
	Origin      string
	Destination string
	StartDate   string
	StartRound  ledger.Round
	EndDate     string
	EndRound    ledger.Round
	UnitCost    uint64
	Capacity    uint64
}

// CreateArgs encodes p in the order Create expects.
func CreateArgs(p Params) [][]byte {
	return [][]byte{
		[]byte(p.CreatorName),
		[]byte(p.Origin),
		[]byte(p.Destination),
		[]byte(p.StartDate),
		Itob(uint64(p.StartRound)),
		[]byte(p.EndDate),
		Itob(uint64(p.EndRound)),
		Itob(p.UnitCost),
		Itob(p.Capacity),
	}
}

// UpdateArgs prefixes the Create layout with the update method name.
func UpdateArgs(p Params) [][]byte {
	return append([][]byte{MethodUpdate.Bytes()}, CreateArgs(p)...)
}

func parseParams(args [][]byte) (Params, error) {
	if len(args) != createArgCount {
		return Params{}, fmt.Errorf("%w: expected %d, got %d", contracterrors.ErrArgumentCount, createArgCount, len(args))
	}
	var (
		p   Params
		err error
	)
	if p.CreatorName, err = text("creator_name", args[0]); err != nil {
		return Params{}, err
	}
	if p.Origin, err = text("origin", args[1]); err != nil {
		return Params{}, err
	}
	if p.Destination, err = text("destination", args[2]); err != nil {
		return Params{}, err
	}
	if p.StartDate, err = text("start_date", args[3]); err != nil {
		return Params{}, err
	}
	start, err := Btoi(args[4])
	if err != nil {
		return Params{}, err
	}
	if p.EndDate, err = text("end_date", args[5]); err != nil {
		return Params{}, err
	}
	end, err := Btoi(args[6])
	if err != nil {
		return Params{}, err
	}
	if p.UnitCost, err = Btoi(args[7]); err != nil {
		return Params{}, err
	}
	if p.Capacity, err = Btoi(args[8]); err != nil {
		return Params{}, err
	}
	p.StartRound, p.EndRound = ledger.Round(start), ledger.Round(end)
	return p, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, contracterrors.ErrOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, contracterrors.ErrUnderflow
	}
	return diff, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, contracterrors.ErrOverflow
	}
	return lo, nil
}
