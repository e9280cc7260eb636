package ledger

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"testing"

	ledgererrors "tripshare/internal/ledger/errors"
	"tripshare/pkg/logger"
)

type testSigner struct {
	priv ed25519.PrivateKey
	addr Address
}

func newTestSigner(seed byte) *testSigner {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	priv := ed25519.NewKeyFromSeed(s)
	signer := &testSigner{priv: priv}
	copy(signer.addr[:], priv.Public().(ed25519.PublicKey))
	return signer
}

func (s *testSigner) Address() Address      { return s.addr }
func (s *testSigner) Sign(msg []byte) []byte { return ed25519.Sign(s.priv, msg) }

// counterProgram increments "count" on every NoOp and fails when the first argument is "fail".
type counterProgram struct{}

func (counterProgram) Hash() Digest { return HashProgram([]byte("counter")) }

func (counterProgram) Approve(c *Call) error {
	if len(c.Args) > 0 && string(c.Args[0]) == "fail" {
		return ledgererrors.ErrValidation
	}
	n, _ := c.Global.Uint("count")
	c.Global.SetUint("count", n+1)
	if c.Local != nil {
		c.Local.SetUint("seen", 1)
	}
	return nil
}

// openVerifier lets a program account spend only at index 1.
type openVerifier struct{}

func (openVerifier) Authorize(group []Operation, index int) error {
	if index != 1 {
		return ledgererrors.ErrProgramRejected
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard, Service: "test"})
}

func newTestLedger(t *testing.T, store Store) *Ledger {
	t.Helper()
	l, err := New(context.Background(), store, testLogger(),
		WithApprovalProgram(counterProgram{}),
		WithProgramLoader(func(program []byte) (Verifier, error) {
			if string(program) != "open" {
				return nil, errors.New("unknown program")
			}
			return openVerifier{}, nil
		}),
	)
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	return l
}

func signedBundle(t *testing.T, id string, signers map[Address]Signer, ops ...Operation) *Bundle {
	t.Helper()
	b := NewBundle(id, ops...)
	b.SetValidity(0, 100)
	for i, op := range ops {
		if s, ok := signers[op.Sender]; ok {
			if err := b.Sign(i, s); err != nil {
				t.Fatalf("sign: %v", err)
			}
		}
	}
	return b
}

func TestSubmit_PaymentAndAtomicity(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, NewMemoryStore())
	a, b := newTestSigner(1), newTestSigner(2)
	signers := map[Address]Signer{a.Address(): a, b.Address(): b}

	if err := l.Genesis(ctx, map[Address]uint64{a.Address(): 100}); err != nil {
		t.Fatalf("genesis: %v", err)
	}

	if _, err := l.Submit(ctx, signedBundle(t, "pay-1", signers, NewPayment(a.Address(), b.Address(), 40))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Second payment overdraws, so the first must not land either.
	_, err := l.Submit(ctx, signedBundle(t, "pay-2", signers,
		NewPayment(a.Address(), b.Address(), 10),
		NewPayment(b.Address(), a.Address(), 500),
	))
	if !errors.Is(err, ledgererrors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Index != 1 {
		t.Errorf("expected rejection at index 1, got %v", err)
	}

	balA, _ := l.Balance(ctx, a.Address())
	balB, _ := l.Balance(ctx, b.Address())
	if balA != 60 || balB != 40 {
		t.Errorf("expected 60/40, got %d/%d", balA, balB)
	}
}

func TestSubmit_Idempotency(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, NewMemoryStore())
	a, b := newTestSigner(1), newTestSigner(2)
	signers := map[Address]Signer{a.Address(): a}
	_ = l.Genesis(ctx, map[Address]uint64{a.Address(): 100})

	bundle := signedBundle(t, "same-id", signers, NewPayment(a.Address(), b.Address(), 10))
	first, err := l.Submit(ctx, bundle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := l.Submit(ctx, bundle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Duplicate || second.GroupID != first.GroupID {
		t.Errorf("expected duplicate receipt for the same group, got %+v", second)
	}
	if bal, _ := l.Balance(ctx, b.Address()); bal != 10 {
		t.Errorf("expected payment applied once, got %d", bal)
	}

	other := signedBundle(t, "same-id", signers, NewPayment(a.Address(), b.Address(), 20))
	if _, err := l.Submit(ctx, other); !errors.Is(err, ledgererrors.ErrBundleIDConflict) {
		t.Errorf("expected ErrBundleIDConflict, got %v", err)
	}
}

// ambiguousStore persists a commit and then reports failure, the way a write that landed but
// timed out before acknowledgement looks to the caller.
type ambiguousStore struct {
	*MemoryStore
	failNext bool
}

func (s *ambiguousStore) Commit(ctx context.Context, d *Delta) error {
	if err := s.MemoryStore.Commit(ctx, d); err != nil {
		return err
	}
	if s.failNext {
		s.failNext = false
		return errors.New("write acknowledgement timed out")
	}
	return nil
}

func TestSubmit_ReloadsAfterAmbiguousCommit(t *testing.T) {
	ctx := context.Background()
	store := &ambiguousStore{MemoryStore: NewMemoryStore()}
	l := newTestLedger(t, store)
	a, b := newTestSigner(1), newTestSigner(2)
	signers := map[Address]Signer{a.Address(): a}
	if err := l.Genesis(ctx, map[Address]uint64{a.Address(): 100}); err != nil {
		t.Fatalf("genesis: %v", err)
	}

	store.failNext = true
	bundle := signedBundle(t, "ambiguous", signers, NewPayment(a.Address(), b.Address(), 30))
	if _, err := l.Submit(ctx, bundle); !errors.Is(err, ledgererrors.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	if _, err := l.Receipt(ctx, "ambiguous"); err != nil {
		t.Errorf("expected receipt of the persisted bundle, got %v", err)
	}
	if bal, _ := l.Balance(ctx, a.Address()); bal != 70 {
		t.Errorf("expected sender balance 70 after reload, got %d", bal)
	}

	again, err := l.Submit(ctx, bundle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !again.Duplicate {
		t.Errorf("expected resubmission to report a duplicate, got %+v", again)
	}

	if _, err := l.Submit(ctx, signedBundle(t, "next", signers, NewPayment(a.Address(), b.Address(), 50))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	balA, _ := l.Balance(ctx, a.Address())
	balB, _ := l.Balance(ctx, b.Address())
	if balA != 20 || balB != 80 {
		t.Errorf("expected 20/80, got %d/%d", balA, balB)
	}

	// A fresh ledger over the same store must agree with the reloaded one.
	fresh := newTestLedger(t, store)
	if bal, _ := fresh.Balance(ctx, a.Address()); bal != balA {
		t.Errorf("expected persisted balance %d, got %d", balA, bal)
	}
}

func TestAdvanceRound_ReloadsAfterAmbiguousCommit(t *testing.T) {
	ctx := context.Background()
	store := &ambiguousStore{MemoryStore: NewMemoryStore()}
	l := newTestLedger(t, store)

	store.failNext = true
	if _, err := l.AdvanceRound(ctx, 3); !errors.Is(err, ledgererrors.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if r, _ := l.Round(ctx); r != 3 {
		t.Errorf("expected round 3 after reload, got %d", r)
	}
}

func TestSubmit_Authorization(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, NewMemoryStore())
	a, b := newTestSigner(1), newTestSigner(2)
	prog := ProgramAddress([]byte("open"))
	_ = l.Genesis(ctx, map[Address]uint64{a.Address(): 100, prog: 100})

	t.Run("unsigned", func(t *testing.T) {
		_, err := l.Submit(ctx, signedBundle(t, "unsigned", nil, NewPayment(a.Address(), b.Address(), 1)))
		if !errors.Is(err, ledgererrors.ErrMissingAuthorization) {
			t.Errorf("expected ErrMissingAuthorization, got %v", err)
		}
	})

	t.Run("signed by someone else", func(t *testing.T) {
		bundle := NewBundle("forged", NewPayment(a.Address(), b.Address(), 1))
		bundle.SetValidity(0, 100)
		bundle.Operations[0].Auth.Signature = b.Sign(SigningBytes(bundle.GroupID(), bundle.Operations[0].Operation))
		if _, err := l.Submit(ctx, bundle); !errors.Is(err, ledgererrors.ErrBadSignature) {
			t.Errorf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("signature from another bundle", func(t *testing.T) {
		donor := signedBundle(t, "donor", map[Address]Signer{a.Address(): a}, NewPayment(a.Address(), b.Address(), 1))
		bundle := NewBundle("replay", NewPayment(a.Address(), b.Address(), 1))
		bundle.SetValidity(0, 100)
		bundle.Operations[0].Auth = donor.Operations[0].Auth
		if _, err := l.Submit(ctx, bundle); !errors.Is(err, ledgererrors.ErrBadSignature) {
			t.Errorf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("program account", func(t *testing.T) {
		bundle := signedBundle(t, "program-ok", map[Address]Signer{a.Address(): a},
			NewPayment(a.Address(), b.Address(), 1),
			NewPayment(prog, b.Address(), 5),
		)
		if err := bundle.AttachProgram(1, []byte("open")); err != nil {
			t.Fatalf("attach: %v", err)
		}
		if _, err := l.Submit(ctx, bundle); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("program refuses position", func(t *testing.T) {
		bundle := NewBundle("program-bad", NewPayment(prog, b.Address(), 5))
		bundle.SetValidity(0, 100)
		if err := bundle.AttachProgram(0, []byte("open")); err != nil {
			t.Fatalf("attach: %v", err)
		}
		if _, err := l.Submit(ctx, bundle); !errors.Is(err, ledgererrors.ErrAuthorization) {
			t.Errorf("expected authorization error, got %v", err)
		}
	})

	t.Run("program for another account", func(t *testing.T) {
		bundle := NewBundle("program-mismatch", NewPayment(a.Address(), b.Address(), 5))
		if err := bundle.AttachProgram(0, []byte("open")); !errors.Is(err, ledgererrors.ErrProgramAddress) {
			t.Errorf("expected ErrProgramAddress, got %v", err)
		}
	})
}

func TestSubmit_ValidityWindow(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, NewMemoryStore())
	a, b := newTestSigner(1), newTestSigner(2)
	_ = l.Genesis(ctx, map[Address]uint64{a.Address(): 100})

	if _, err := l.AdvanceRound(ctx, 200); err != nil {
		t.Fatalf("advance: %v", err)
	}

	expired := signedBundle(t, "expired", map[Address]Signer{a.Address(): a}, NewPayment(a.Address(), b.Address(), 1))
	if _, err := l.Submit(ctx, expired); !errors.Is(err, ledgererrors.ErrOutsideValidity) {
		t.Errorf("expected ErrOutsideValidity, got %v", err)
	}

	long := NewBundle("long", NewPayment(a.Address(), b.Address(), 1))
	long.SetValidity(200, 200+MaxValidityWindow+1)
	_ = long.Sign(0, a)
	if _, err := l.Submit(ctx, long); !errors.Is(err, ledgererrors.ErrValidityTooLong) {
		t.Errorf("expected ErrValidityTooLong, got %v", err)
	}
}

func TestSubmit_ApplicationLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := newTestLedger(t, store)
	a := newTestSigner(1)
	signers := map[Address]Signer{a.Address(): a}
	hash := counterProgram{}.Hash()

	r, err := l.Submit(ctx, signedBundle(t, "create", signers, NewAppCreate(a.Address(), hash)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.AppID != 1 {
		t.Fatalf("expected app id 1, got %d", r.AppID)
	}

	if _, err := l.Submit(ctx, signedBundle(t, "call-before-optin", signers, NewAppCall(a.Address(), 1, NoOp))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := l.Submit(ctx, signedBundle(t, "optin", signers, NewAppCall(a.Address(), 1, OptIn))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := l.Submit(ctx, signedBundle(t, "optin-again", signers, NewAppCall(a.Address(), 1, OptIn))); !errors.Is(err, ledgererrors.ErrAlreadyOptedIn) {
		t.Errorf("expected ErrAlreadyOptedIn, got %v", err)
	}
	if _, err := l.Submit(ctx, signedBundle(t, "failing", signers, NewAppCall(a.Address(), 1, NoOp, []byte("fail")))); !errors.Is(err, ledgererrors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	app, err := l.Application(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := app.Global.Uint("count"); n != 3 {
		t.Errorf("expected count 3, got %d", n)
	}
	if app.Version != 3 {
		t.Errorf("expected version 3, got %d", app.Version)
	}
	local, err := l.LocalState(ctx, 1, a.Address())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := local.Uint("seen"); n != 1 {
		t.Errorf("expected local seen=1, got %d", n)
	}

	// A fresh ledger over the same store resumes with identical state.
	reloaded := newTestLedger(t, store)
	app2, err := reloaded.Application(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app2.Version != app.Version {
		t.Errorf("expected version %d after reload, got %d", app.Version, app2.Version)
	}
	if _, err := reloaded.Receipt(ctx, "create"); err != nil {
		t.Errorf("expected receipt to survive reload, got %v", err)
	}

	if _, err := reloaded.Submit(ctx, signedBundle(t, "delete", signers, NewAppCall(a.Address(), 1, DeleteApplication))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := reloaded.Application(ctx, 1); !errors.Is(err, ledgererrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := reloaded.LocalState(ctx, 1, a.Address()); !errors.Is(err, ledgererrors.ErrNotFound) {
		t.Errorf("expected local state released, got %v", err)
	}
}

func TestAddress_TextRoundTrip(t *testing.T) {
	a := newTestSigner(7).Address()
	parsed, err := ParseAddress(a.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != a {
		t.Errorf("expected %s, got %s", a, parsed)
	}

	other := newTestSigner(8).Address().String()
	tampered := a.String()[:10] + other[10:]
	if _, err := ParseAddress(tampered); !errors.Is(err, ledgererrors.ErrMalformedAddress) {
		t.Errorf("expected ErrMalformedAddress for tampered text, got %v", err)
	}
}
