package ledger

import (
	"context"
	"sync"
)

// Store persists committed deltas. The ledger applies a delta to memory only after Commit returns
// nil. When Commit fails the ledger reloads from Load, so a store that cannot tell whether a
// write landed still converges.
type Store interface {
	Load(ctx context.Context) (*State, []*Receipt, error)
	Commit(ctx context.Context, d *Delta) error
}

// MemoryStore keeps its own copy of committed state, so a new Ledger over the same store
// resumes where the previous one stopped.
type MemoryStore struct {
	mu       sync.Mutex
	state    *State
	receipts []*Receipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: NewState()}
}

func (m *MemoryStore) Load(ctx context.Context) (*State, []*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := NewState()
	s.Apply(&Delta{
		Round:     m.state.Round,
		NextAppID: m.state.NextAppID,
		Balances:  m.state.Balances,
		Apps:      m.state.Apps,
		Locals:    flattenLocals(m.state.Locals),
	})
	receipts := make([]*Receipt, len(m.receipts))
	for i, r := range m.receipts {
		c := *r
		receipts[i] = &c
	}
	return s, receipts, nil
}

func (m *MemoryStore) Commit(ctx context.Context, d *Delta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Apply(d)
	if d.Receipt != nil {
		c := *d.Receipt
		m.receipts = append(m.receipts, &c)
	}
	return nil
}

func flattenLocals(locals map[AppID]map[Address]KeyValue) map[LocalKey]KeyValue {
	out := make(map[LocalKey]KeyValue)
	for app, byAddr := range locals {
		for addr, kv := range byAddr {
			out[LocalKey{App: app, Account: addr}] = kv
		}
	}
	return out
}
