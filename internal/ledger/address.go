package ledger

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	ledgererrors "tripshare/internal/ledger/errors"
)

const (
	AddressLength  = 32
	checksumLength = 4
	programDomain  = "Program"
)

// Address identifies a ledger account. Key accounts use their ed25519 public key, program
// accounts use ProgramAddress.
type Address [AddressLength]byte

var ZeroAddress Address

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	sum := blake2b.Sum256(a[:])
	buf := make([]byte, 0, AddressLength+checksumLength)
	buf = append(buf, a[:]...)
	buf = append(buf, sum[len(sum)-checksumLength:]...)
	return base58.Encode(buf)
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes the base58 text form and verifies its checksum.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ledgererrors.ErrMalformedAddress, err)
	}
	if len(raw) != AddressLength+checksumLength {
		return Address{}, fmt.Errorf("%w: decoded length %d", ledgererrors.ErrMalformedAddress, len(raw))
	}
	var a Address
	copy(a[:], raw[:AddressLength])
	sum := blake2b.Sum256(a[:])
	if !bytes.Equal(raw[AddressLength:], sum[len(sum)-checksumLength:]) {
		return Address{}, fmt.Errorf("%w: checksum mismatch", ledgererrors.ErrMalformedAddress)
	}
	return a, nil
}

// AddressFromBytes accepts the raw 32-byte form used inside operation arguments.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ledgererrors.ErrMalformedAddress, AddressLength, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// ProgramAddress is the account whose spend authority is program.
func ProgramAddress(program []byte) Address {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(programDomain))
	h.Write(program)
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// Digest is a blake2b-256 hash: group ids and program hashes.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func ParseDigest(s string) (Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest: %w", err)
	}
	if len(raw) != len(Digest{}) {
		return Digest{}, fmt.Errorf("invalid digest length %d", len(raw))
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}

// HashProgram returns the identity hash of approval or escrow program bytes.
func HashProgram(program []byte) Digest {
	return blake2b.Sum256(program)
}
