package ledger

import (
	"fmt"

	"golang.org/x/crypto/blake2b"

	ledgererrors "tripshare/internal/ledger/errors"
)

const (
	MaxBundleSize     = 16
	MaxValidityWindow = Round(1000)

	groupDomain = "BG"
	opDomain    = "OP"
)

// Signer produces ed25519 signatures for one account.
type Signer interface {
	Address() Address
	Sign(message []byte) []byte
}

// Authorization carries either a key signature or the program bytes of a program account.
type Authorization struct {
	Signature []byte `json:"signature,omitempty"`
	Program   []byte `json:"program,omitempty"`
}

type SignedOperation struct {
	Operation
	Auth Authorization `json:"auth"`
}

// Bundle is an ordered group of operations committed or aborted as one unit. ID doubles as the
// idempotency key: the ledger commits a given ID at most once.
type Bundle struct {
	ID         string            `json:"id"`
	Operations []SignedOperation `json:"operations"`
}

func NewBundle(id string, ops ...Operation) *Bundle {
	b := &Bundle{ID: id, Operations: make([]SignedOperation, len(ops))}
	for i, op := range ops {
		b.Operations[i] = SignedOperation{Operation: op}
	}
	return b
}

func (b *Bundle) Ops() []Operation {
	ops := make([]Operation, len(b.Operations))
	for i := range b.Operations {
		ops[i] = b.Operations[i].Operation
	}
	return ops
}

func (b *Bundle) GroupID() Digest {
	return GroupID(b.ID, b.Ops())
}

// SetValidity applies one validity window to every operation. It must run before signing.
func (b *Bundle) SetValidity(first, last Round) {
	for i := range b.Operations {
		b.Operations[i].FirstValid = first
		b.Operations[i].LastValid = last
	}
}

// Sign authorizes operation index with signer's key over the bundle's group id.
func (b *Bundle) Sign(index int, signer Signer) error {
	if index < 0 || index >= len(b.Operations) {
		return fmt.Errorf("operation index %d out of range", index)
	}
	if signer.Address() != b.Operations[index].Sender {
		return ledgererrors.ErrSignerMismatch
	}
	msg := SigningBytes(b.GroupID(), b.Operations[index].Operation)
	b.Operations[index].Auth = Authorization{Signature: signer.Sign(msg)}
	return nil
}

// AttachProgram authorizes operation index with the program that owns its sender account.
func (b *Bundle) AttachProgram(index int, program []byte) error {
	if index < 0 || index >= len(b.Operations) {
		return fmt.Errorf("operation index %d out of range", index)
	}
	if ProgramAddress(program) != b.Operations[index].Sender {
		return ledgererrors.ErrProgramAddress
	}
	b.Operations[index].Auth = Authorization{Program: append([]byte(nil), program...)}
	return nil
}

func GroupID(id string, ops []Operation) Digest {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(groupDomain))
	h.Write([]byte(id))
	h.Write([]byte{0})
	for _, op := range ops {
		h.Write(op.Encode())
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func SigningBytes(group Digest, op Operation) []byte {
	enc := op.Encode()
	msg := make([]byte, 0, len(opDomain)+len(group)+len(enc))
	msg = append(msg, opDomain...)
	msg = append(msg, group[:]...)
	return append(msg, enc...)
}
