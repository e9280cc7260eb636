package ledger

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	ledgererrors "tripshare/internal/ledger/errors"
	"tripshare/pkg/logger"
	"tripshare/pkg/metrics"
)

const reloadTimeout = 10 * time.Second

// Rejection reports which operation of a bundle failed evaluation.
type Rejection struct {
	BundleID  string
	Index     int
	Operation string
	Err       error
}

func (r *Rejection) Error() string {
	if r.Index < 0 {
		return fmt.Sprintf("bundle %s rejected: %v", r.BundleID, r.Err)
	}
	return fmt.Sprintf("bundle %s rejected at operation %d (%s): %v", r.BundleID, r.Index, r.Operation, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

type Option func(*Ledger)

func WithProgramLoader(loader ProgramLoader) Option {
	return func(l *Ledger) {
		l.loader = loader
	}
}

func WithApprovalProgram(p ApprovalProgram) Option {
	return func(l *Ledger) {
		l.programs[p.Hash()] = p
	}
}

func WithMetrics(m *metrics.Ledger) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger is a single-node simulated ledger. Bundles are serialized into one global order and
// each is evaluated against one snapshot, then committed indivisibly.
type Ledger struct {
	mu       sync.Mutex
	state    *State
	receipts map[string]*Receipt
	store    Store
	loader   ProgramLoader
	programs map[Digest]ApprovalProgram
	metrics  *metrics.Ledger
	log      *logger.Logger
	now      func() time.Time
}

func New(ctx context.Context, store Store, log *logger.Logger, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		receipts: make(map[string]*Receipt),
		store:    store,
		programs: make(map[Digest]ApprovalProgram),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	state, receipts, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}
	l.state = state
	for _, r := range receipts {
		l.receipts[r.BundleID] = r
	}
	l.metrics.RoundAdvanced(uint64(state.Round))

	l.log.Info("Ledger loaded",
		"round", state.Round,
		"applications", len(state.Apps),
		"accounts", len(state.Balances),
		"receipts", len(receipts),
	)
	return l, nil
}

// Genesis funds accounts on an empty ledger. It is a no-op once any account holds a balance.
func (l *Ledger) Genesis(ctx context.Context, balances map[Address]uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.state.Balances) > 0 || len(l.state.Apps) > 0 {
		l.log.Info("Ledger already initialized, skipping genesis")
		return nil
	}
	d := &Delta{
		Round:     l.state.Round,
		NextAppID: l.state.NextAppID,
		Balances:  make(map[Address]uint64, len(balances)),
	}
	for addr, amount := range balances {
		d.Balances[addr] = amount
	}
	if err := l.store.Commit(ctx, d); err != nil {
		l.reload(ctx)
		return fmt.Errorf("%w: failed to persist genesis: %v", ledgererrors.ErrTransport, err)
	}
	l.state.Apply(d)
	l.log.Info("Genesis applied", "accounts", len(balances))
	return nil
}

// Submit evaluates and commits b, or rejects it with no state change. Resubmitting a committed
// bundle returns its original receipt with Duplicate set.
func (l *Ledger) Submit(ctx context.Context, b *Bundle) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ledgererrors.ErrTransport, err)
	}
	if b.ID == "" {
		return nil, &Rejection{Index: -1, Err: ledgererrors.ErrMissingBundleID}
	}

	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	group := b.GroupID()
	if prev, ok := l.receipts[b.ID]; ok {
		if prev.GroupID != group {
			return nil, &Rejection{BundleID: b.ID, Index: -1, Err: ledgererrors.ErrBundleIDConflict}
		}
		l.metrics.BundleDuplicate()
		dup := *prev
		dup.Duplicate = true
		return &dup, nil
	}

	ov := newOverlay(l.state)
	created, err := l.evaluate(ov, b, group)
	if err != nil {
		l.metrics.BundleRejected(ledgererrors.CategoryName(err), time.Since(start))
		l.log.Warn("Bundle rejected",
			"bundle_id", b.ID,
			"round", l.state.Round,
			"category", ledgererrors.CategoryName(err),
			"error", err,
		)
		return nil, err
	}

	receipt := &Receipt{
		BundleID:    b.ID,
		GroupID:     group,
		Round:       l.state.Round,
		AppID:       created,
		Operations:  len(b.Operations),
		CommittedAt: l.now().UTC(),
	}
	d := ov.delta(l.state.Round, receipt)
	if err := l.store.Commit(ctx, d); err != nil {
		l.metrics.BundleRejected(ledgererrors.CategoryName(ledgererrors.ErrTransport), time.Since(start))
		l.log.Error("Failed to persist bundle", "bundle_id", b.ID, "error", err)
		l.reload(ctx)
		return nil, fmt.Errorf("%w: failed to persist bundle %s: %v", ledgererrors.ErrTransport, b.ID, err)
	}
	l.state.Apply(d)
	l.receipts[b.ID] = receipt
	l.metrics.BundleCommitted(time.Since(start))

	l.log.Info("Bundle committed",
		"bundle_id", b.ID,
		"group_id", group.String(),
		"round", receipt.Round,
		"operations", receipt.Operations,
		"app_id", receipt.AppID,
	)
	out := *receipt
	return &out, nil
}

func (l *Ledger) evaluate(ov *overlay, b *Bundle, group Digest) (AppID, error) {
	if len(b.Operations) == 0 {
		return 0, &Rejection{BundleID: b.ID, Index: -1, Err: ledgererrors.ErrEmptyBundle}
	}
	if len(b.Operations) > MaxBundleSize {
		return 0, &Rejection{BundleID: b.ID, Index: -1, Err: ledgererrors.ErrBundleTooLarge}
	}

	ops := b.Ops()
	for i, sop := range b.Operations {
		if err := sop.validate(); err != nil {
			return 0, l.reject(b, i, err)
		}
		if l.state.Round < sop.FirstValid || l.state.Round > sop.LastValid {
			return 0, l.reject(b, i, fmt.Errorf("%w: round %d not in [%d, %d]",
				ledgererrors.ErrOutsideValidity, l.state.Round, sop.FirstValid, sop.LastValid))
		}
		if err := l.authorize(ops, i, group, sop); err != nil {
			return 0, l.reject(b, i, err)
		}
	}

	var created AppID
	for i, op := range ops {
		switch op.Type {
		case OpPayment:
			if err := ov.pay(op.Sender, *op.Payment); err != nil {
				return 0, l.reject(b, i, err)
			}
		case OpAppCall:
			id, err := l.call(ov, ops, i)
			if err != nil {
				return 0, l.reject(b, i, err)
			}
			if id != 0 {
				created = id
			}
		}
	}
	return created, nil
}

func (l *Ledger) reject(b *Bundle, index int, err error) error {
	return &Rejection{BundleID: b.ID, Index: index, Operation: b.Operations[index].Describe(), Err: err}
}

func (l *Ledger) authorize(group []Operation, index int, gid Digest, sop SignedOperation) error {
	switch {
	case len(sop.Auth.Program) > 0:
		if ProgramAddress(sop.Auth.Program) != sop.Sender {
			return ledgererrors.ErrProgramAddress
		}
		if l.loader == nil {
			return fmt.Errorf("%w: no program loader configured", ledgererrors.ErrProgramRejected)
		}
		v, err := l.loader(sop.Auth.Program)
		if err != nil {
			return fmt.Errorf("%w: %v", ledgererrors.ErrProgramRejected, err)
		}
		if err := v.Authorize(group, index); err != nil {
			if errors.Is(err, ledgererrors.ErrAuthorization) {
				return err
			}
			return fmt.Errorf("%w: %v", ledgererrors.ErrProgramRejected, err)
		}
		return nil
	case len(sop.Auth.Signature) > 0:
		if !ed25519.Verify(ed25519.PublicKey(sop.Sender[:]), SigningBytes(gid, sop.Operation), sop.Auth.Signature) {
			return ledgererrors.ErrBadSignature
		}
		return nil
	default:
		return ledgererrors.ErrMissingAuthorization
	}
}

// call runs the approval program for group[index] against the overlay and returns the id of a
// newly created application, if any.
func (l *Ledger) call(ov *overlay, group []Operation, index int) (AppID, error) {
	op := group[index]
	ac := op.AppCall

	if ac.AppID == 0 {
		prog, ok := l.programs[ac.ProgramHash]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ledgererrors.ErrUnknownProgram, ac.ProgramHash)
		}
		id := ov.allocateAppID()
		c := &Call{
			AppID:        id,
			Creator:      op.Sender,
			Sender:       op.Sender,
			OnCompletion: NoOp,
			Args:         ac.Args,
			Round:        l.state.Round,
			Group:        group,
			Index:        index,
			Creating:     true,
			Global:       KeyValue{},
		}
		if err := prog.Approve(c); err != nil {
			return 0, err
		}
		ov.putApp(&Application{
			ID:           id,
			Creator:      op.Sender,
			ProgramHash:  ac.ProgramHash,
			Global:       c.Global,
			CreatedRound: l.state.Round,
			Version:      1,
		})
		return id, nil
	}

	app, ok := ov.app(ac.AppID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ledgererrors.ErrUnknownApplication, ac.AppID)
	}
	prog, ok := l.programs[app.ProgramHash]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ledgererrors.ErrUnknownProgram, app.ProgramHash)
	}

	local, optedIn := ov.local(app.ID, op.Sender)
	switch ac.OnCompletion {
	case OptIn:
		if optedIn {
			return 0, ledgererrors.ErrAlreadyOptedIn
		}
		local = KeyValue{}
	case CloseOut:
		if !optedIn {
			return 0, ledgererrors.ErrNotOptedIn
		}
	}

	c := &Call{
		AppID:        app.ID,
		Creator:      app.Creator,
		Sender:       op.Sender,
		OnCompletion: ac.OnCompletion,
		Args:         ac.Args,
		Round:        l.state.Round,
		Group:        group,
		Index:        index,
		Global:       app.Global.Clone(),
		Local:        local.Clone(),
	}
	if err := prog.Approve(c); err != nil {
		return 0, err
	}

	if ac.OnCompletion == DeleteApplication {
		ov.deleteApp(app.ID)
		return 0, nil
	}
	updated := app.Clone()
	updated.Global = c.Global
	updated.Version++
	ov.putApp(updated)

	switch {
	case ac.OnCompletion == CloseOut:
		ov.releaseLocal(app.ID, op.Sender)
	case c.Local != nil:
		ov.putLocal(app.ID, op.Sender, c.Local)
	}
	return 0, nil
}

// AdvanceRound moves the logical clock forward by n rounds.
func (l *Ledger) AdvanceRound(ctx context.Context, n uint64) (Round, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.state.Round + Round(n)
	d := &Delta{Round: next, NextAppID: l.state.NextAppID}
	if err := l.store.Commit(ctx, d); err != nil {
		l.reload(ctx)
		return l.state.Round, fmt.Errorf("%w: failed to persist round: %v", ledgererrors.ErrTransport, err)
	}
	l.state.Apply(d)
	l.metrics.RoundAdvanced(uint64(next))
	return next, nil
}

// reload replaces the in-memory view with the store's after a failed Commit, since the store may
// have applied the delta before reporting the error. Callers must hold l.mu.
func (l *Ledger) reload(ctx context.Context) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), reloadTimeout)
		defer cancel()
	}
	state, receipts, err := l.store.Load(ctx)
	if err != nil {
		l.log.Error("Failed to reload ledger state after commit error", "error", err)
		return
	}
	l.state = state
	l.receipts = make(map[string]*Receipt, len(receipts))
	for _, r := range receipts {
		l.receipts[r.BundleID] = r
	}
	l.log.Warn("Ledger state reloaded after commit error",
		"round", state.Round,
		"receipts", len(receipts),
	)
}

// RunClock advances one round per interval until ctx is done.
func (l *Ledger) RunClock(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.log.Info("Ledger clock started", "round_duration", interval)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("Ledger clock stopped")
			return
		case <-ticker.C:
			if _, err := l.AdvanceRound(ctx, 1); err != nil {
				l.log.Error("Failed to advance round", "error", err)
			}
		}
	}
}

func (l *Ledger) Round(ctx context.Context) (Round, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ledgererrors.ErrTransport, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Round, nil
}

func (l *Ledger) Application(ctx context.Context, id AppID) (*Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ledgererrors.ErrTransport, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	app, ok := l.state.Apps[id]
	if !ok {
		return nil, fmt.Errorf("application %d: %w", id, ledgererrors.ErrNotFound)
	}
	return app.Clone(), nil
}

// LocalState returns addr's record in application id, or ErrNotFound when it has not opted in.
func (l *Ledger) LocalState(ctx context.Context, id AppID, addr Address) (KeyValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ledgererrors.ErrTransport, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	kv, ok := l.state.local(id, addr)
	if !ok {
		return nil, fmt.Errorf("local state of %s in application %d: %w", addr, id, ledgererrors.ErrNotFound)
	}
	return kv.Clone(), nil
}

func (l *Ledger) Balance(ctx context.Context, addr Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ledgererrors.ErrTransport, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Balances[addr], nil
}

func (l *Ledger) Receipt(ctx context.Context, bundleID string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ledgererrors.ErrTransport, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.receipts[bundleID]
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", bundleID, ledgererrors.ErrNotFound)
	}
	out := *r
	return &out, nil
}
