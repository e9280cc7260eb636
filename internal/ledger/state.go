package ledger

import (
	"bytes"
	"time"
)

type ValueType uint8

const (
	TypeBytes ValueType = iota + 1
	TypeUint
)

type Value struct {
	Type  ValueType `json:"type"`
	Bytes []byte    `json:"bytes,omitempty"`
	Uint  uint64    `json:"uint,omitempty"`
}

func (v Value) Equal(o Value) bool {
	return v.Type == o.Type && v.Uint == o.Uint && bytes.Equal(v.Bytes, o.Bytes)
}

// KeyValue is application global or local storage.
type KeyValue map[string]Value

func (kv KeyValue) Clone() KeyValue {
	if kv == nil {
		return nil
	}
	out := make(KeyValue, len(kv))
	for k, v := range kv {
		if v.Bytes != nil {
			v.Bytes = append([]byte(nil), v.Bytes...)
		}
		out[k] = v
	}
	return out
}

func (kv KeyValue) Uint(key string) (uint64, bool) {
	v, ok := kv[key]
	if !ok || v.Type != TypeUint {
		return 0, false
	}
	return v.Uint, true
}

func (kv KeyValue) Bytes(key string) ([]byte, bool) {
	v, ok := kv[key]
	if !ok || v.Type != TypeBytes {
		return nil, false
	}
	return v.Bytes, true
}

func (kv KeyValue) SetUint(key string, n uint64) {
	kv[key] = Value{Type: TypeUint, Uint: n}
}

func (kv KeyValue) SetBytes(key string, b []byte) {
	kv[key] = Value{Type: TypeBytes, Bytes: append([]byte(nil), b...)}
}

func (kv KeyValue) Delete(key string) {
	delete(kv, key)
}

// Application is the ledger record of one contract instance. Version increments on every
// committed write and guards compare-and-commit in persistent stores.
type Application struct {
	ID           AppID    `json:"id"`
	Creator      Address  `json:"creator"`
	ProgramHash  Digest   `json:"program_hash"`
	Global       KeyValue `json:"global"`
	CreatedRound Round    `json:"created_round"`
	Version      uint64   `json:"version"`
}

func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	c.Global = a.Global.Clone()
	return &c
}

type LocalKey struct {
	App     AppID
	Account Address
}

type State struct {
	Round     Round
	NextAppID AppID
	Balances  map[Address]uint64
	Apps      map[AppID]*Application
	Locals    map[AppID]map[Address]KeyValue
}

func NewState() *State {
	return &State{
		NextAppID: 1,
		Balances:  make(map[Address]uint64),
		Apps:      make(map[AppID]*Application),
		Locals:    make(map[AppID]map[Address]KeyValue),
	}
}

func (s *State) local(app AppID, addr Address) (KeyValue, bool) {
	kv, ok := s.Locals[app][addr]
	return kv, ok
}

// Apply folds a committed delta into the state.
func (s *State) Apply(d *Delta) {
	s.Round = d.Round
	if d.NextAppID > s.NextAppID {
		s.NextAppID = d.NextAppID
	}
	for addr, bal := range d.Balances {
		if bal == 0 {
			delete(s.Balances, addr)
			continue
		}
		s.Balances[addr] = bal
	}
	for id, app := range d.Apps {
		if app == nil {
			delete(s.Apps, id)
			delete(s.Locals, id)
			continue
		}
		s.Apps[id] = app.Clone()
	}
	for key, kv := range d.Locals {
		if kv == nil {
			if m, ok := s.Locals[key.App]; ok {
				delete(m, key.Account)
			}
			continue
		}
		m, ok := s.Locals[key.App]
		if !ok {
			m = make(map[Address]KeyValue)
			s.Locals[key.App] = m
		}
		m[key.Account] = kv.Clone()
	}
}

// Delta is the write set of one commit. A nil application or local entry marks a deletion.
// PrevVersions holds each touched application's version before the commit (0 if new).
type Delta struct {
	Round        Round
	NextAppID    AppID
	Balances     map[Address]uint64
	Apps         map[AppID]*Application
	PrevVersions map[AppID]uint64
	Locals       map[LocalKey]KeyValue
	Receipt      *Receipt
}

type Receipt struct {
	BundleID    string    `json:"bundle_id"`
	GroupID     Digest    `json:"group_id"`
	Round       Round     `json:"round"`
	AppID       AppID     `json:"app_id,omitempty"`
	Operations  int       `json:"operations"`
	CommittedAt time.Time `json:"committed_at"`
	// Duplicate is set when the ledger answered a resubmission with the original receipt.
	Duplicate bool `json:"duplicate,omitempty"`
}
