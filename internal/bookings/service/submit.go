package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "tripshare/internal/bookings/errors"
	"tripshare/internal/ledger"
	ledgererrors "tripshare/internal/ledger/errors"
)

const (
	outcomeCommitted = "committed"
	outcomeRejected  = "rejected"
	outcomeExpired   = "expired"
	outcomeUnknown   = "unknown"
)

// submit delivers b and confirms its outcome from the receipt. A definitive rejection returns at
// once. After a transport failure the receipt decides: present means committed, absent within
// the validity window means the same signed bundle is sent again.
func (s *bookingService) submit(ctx context.Context, method string, b *ledger.Bundle) (*ledger.Receipt, error) {
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= max(s.settings.MaxAttempts, 1); attempt++ {
		if attempt > 1 {
			s.metrics.Retried(method)
			s.log.Warn("Resubmitting bundle",
				"method", method,
				"bundle_id", b.ID,
				"attempt", attempt,
				"error", lastErr,
			)
			if err := sleep(ctx, s.settings.Backoff*time.Duration(attempt-1)); err != nil {
				break
			}
		}

		receipt, err := s.send(ctx, b)
		if err == nil {
			s.metrics.Submitted(method, outcomeCommitted, time.Since(start))
			return receipt, nil
		}
		if !isTransport(err) {
			s.metrics.Submitted(method, outcomeRejected, time.Since(start))
			return nil, err
		}
		lastErr = err

		receipt, err = s.confirm(ctx, b)
		if err != nil {
			s.metrics.Submitted(method, outcomeExpired, time.Since(start))
			return nil, err
		}
		if receipt != nil {
			s.metrics.Submitted(method, outcomeCommitted, time.Since(start))
			return receipt, nil
		}
	}

	s.metrics.Submitted(method, outcomeUnknown, time.Since(start))
	return nil, fmt.Errorf("%w: bundle %s: %v", bookingserrors.ErrOutcomeUnknown, b.ID, lastErr)
}

func (s *bookingService) send(ctx context.Context, b *ledger.Bundle) (*ledger.Receipt, error) {
	var receipt *ledger.Receipt
	err := s.limiter.Do(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.settings.SubmitTimeout)
		defer cancel()

		var err error
		receipt, err = s.ledger.Submit(attemptCtx, b)
		return err
	})
	return receipt, err
}

// confirm reads b's receipt. It returns the receipt when b committed, nil when b may safely be
// resent, and ErrBundleExpired once the ledger is past b's last valid round.
func (s *bookingService) confirm(ctx context.Context, b *ledger.Bundle) (*ledger.Receipt, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.settings.SubmitTimeout)
	defer cancel()

	receipt, err := s.ledger.Receipt(readCtx, b.ID)
	if err == nil {
		if receipt.GroupID != b.GroupID() {
			return nil, fmt.Errorf("%w: bundle %s", ledgererrors.ErrBundleIDConflict, b.ID)
		}
		return receipt, nil
	}
	if !errors.Is(err, ledgererrors.ErrNotFound) {
		return nil, nil
	}

	round, err := s.ledger.Round(readCtx)
	if err != nil {
		return nil, nil
	}
	if len(b.Operations) > 0 && round > b.Operations[0].LastValid {
		return nil, fmt.Errorf("%w: bundle %s expired at round %d", bookingserrors.ErrBundleExpired, b.ID, b.Operations[0].LastValid)
	}
	return nil, nil
}

func isTransport(err error) bool {
	return errors.Is(err, ledgererrors.ErrTransport) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
