package ledger

import (
	"math/bits"

	ledgererrors "tripshare/internal/ledger/errors"
)

// overlay is the copy-on-write view a bundle is evaluated against. Nothing reaches the base
// state unless the whole bundle succeeds.
type overlay struct {
	base      *State
	nextAppID AppID
	balances  map[Address]uint64
	apps      map[AppID]*Application
	locals    map[LocalKey]KeyValue
}

func newOverlay(base *State) *overlay {
	return &overlay{
		base:      base,
		nextAppID: base.NextAppID,
		balances:  make(map[Address]uint64),
		apps:      make(map[AppID]*Application),
		locals:    make(map[LocalKey]KeyValue),
	}
}

func (o *overlay) balance(addr Address) uint64 {
	if b, ok := o.balances[addr]; ok {
		return b
	}
	return o.base.Balances[addr]
}

func (o *overlay) app(id AppID) (*Application, bool) {
	if a, ok := o.apps[id]; ok {
		return a, a != nil
	}
	a, ok := o.base.Apps[id]
	return a, ok
}

func (o *overlay) local(id AppID, addr Address) (KeyValue, bool) {
	key := LocalKey{App: id, Account: addr}
	if kv, ok := o.locals[key]; ok {
		return kv, kv != nil
	}
	if a, touched := o.apps[id]; touched && a == nil {
		return nil, false
	}
	return o.base.local(id, addr)
}

func (o *overlay) allocateAppID() AppID {
	id := o.nextAppID
	o.nextAppID++
	return id
}

func (o *overlay) putApp(a *Application) {
	o.apps[a.ID] = a
}

func (o *overlay) putLocal(id AppID, addr Address, kv KeyValue) {
	o.locals[LocalKey{App: id, Account: addr}] = kv
}

func (o *overlay) releaseLocal(id AppID, addr Address) {
	o.locals[LocalKey{App: id, Account: addr}] = nil
}

// deleteApp removes the application and releases every local record allocated against it.
func (o *overlay) deleteApp(id AppID) {
	o.apps[id] = nil
	for addr := range o.base.Locals[id] {
		o.releaseLocal(id, addr)
	}
	for key := range o.locals {
		if key.App == id {
			o.locals[key] = nil
		}
	}
}

func (o *overlay) pay(from Address, p Payment) error {
	bal := o.balance(from)
	if bal < p.Amount {
		return ledgererrors.ErrInsufficientFunds
	}
	o.balances[from] = bal - p.Amount
	if err := o.credit(p.Receiver, p.Amount); err != nil {
		return err
	}
	if p.CloseRemainderTo.IsZero() {
		return nil
	}
	rest := o.balance(from)
	o.balances[from] = 0
	return o.credit(p.CloseRemainderTo, rest)
}

func (o *overlay) credit(to Address, amount uint64) error {
	sum, carry := bits.Add64(o.balance(to), amount, 0)
	if carry != 0 {
		return ledgererrors.ErrBalanceOverflow
	}
	o.balances[to] = sum
	return nil
}

func (o *overlay) delta(round Round, receipt *Receipt) *Delta {
	d := &Delta{
		Round:        round,
		NextAppID:    o.nextAppID,
		Balances:     o.balances,
		Apps:         o.apps,
		PrevVersions: make(map[AppID]uint64, len(o.apps)),
		Locals:       o.locals,
		Receipt:      receipt,
	}
	for id := range o.apps {
		if prev, ok := o.base.Apps[id]; ok {
			d.PrevVersions[id] = prev.Version
		}
	}
	return d
}
