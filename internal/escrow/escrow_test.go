package escrow

import (
	"errors"
	"testing"

	"tripshare/internal/ledger"
	ledgererrors "tripshare/internal/ledger/errors"
)

func TestAddress_Deterministic(t *testing.T) {
	if New(7).Address() != New(7).Address() {
		t.Error("expected the same app id to derive the same address")
	}
	if New(7).Address() == New(8).Address() {
		t.Error("expected different app ids to derive different addresses")
	}
	if New(7).Address() != ledger.ProgramAddress(New(7).Bytes()) {
		t.Error("expected address to be the program address of the program bytes")
	}
}

func TestLoad(t *testing.T) {
	v, err := Load(New(42).Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := v.(Program)
	if !ok || p.AppID != 42 {
		t.Errorf("expected program bound to 42, got %#v", v)
	}

	bad := New(42).Bytes()
	bad[len(prefix)] = 9
	tests := map[string][]byte{
		"empty":       nil,
		"truncated":   New(42).Bytes()[:10],
		"bad version": bad,
		"zero app":    New(0).Bytes(),
		"foreign":     []byte("someone-else/escrow\x01\x00\x00\x00\x00\x00\x00\x00\x01"),
	}
	for name, program := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(program); !errors.Is(err, ErrMalformedProgram) {
				t.Errorf("expected ErrMalformedProgram, got %v", err)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	p := New(5)
	esc := p.Address()
	user := ledger.Address{1}

	call := ledger.NewAppCall(user, 5, ledger.NoOp, []byte("cancelParticipation"))
	refund := ledger.NewPayment(esc, user, 10)

	tests := []struct {
		name    string
		group   []ledger.Operation
		index   int
		wantErr error
	}{
		{name: "call then payment", group: []ledger.Operation{call, refund}, index: 1},
		{name: "payment alone", group: []ledger.Operation{refund}, index: 0, wantErr: ErrGroupShape},
		{name: "escrow first", group: []ledger.Operation{refund, call}, index: 0, wantErr: ErrGroupShape},
		{name: "three operations", group: []ledger.Operation{call, refund, refund}, index: 1, wantErr: ErrGroupShape},
		{name: "other application", group: []ledger.Operation{ledger.NewAppCall(user, 6, ledger.NoOp), refund}, index: 1, wantErr: ErrNotBoundCall},
		{name: "delete call", group: []ledger.Operation{ledger.NewAppCall(user, 5, ledger.DeleteApplication), refund}, index: 1, wantErr: ErrNotBoundCall},
		{name: "payment first", group: []ledger.Operation{ledger.NewPayment(user, esc, 1), refund}, index: 1, wantErr: ErrNotBoundCall},
		{name: "escrow calls", group: []ledger.Operation{call, ledger.NewAppCall(esc, 5, ledger.NoOp)}, index: 1, wantErr: ErrNotPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Authorize(tt.group, tt.index)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ledgererrors.ErrAuthorization) {
				t.Errorf("expected an authorization error, got %v", err)
			}
		})
	}
}
