package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "tripshare/pkg/errors"
	"tripshare/pkg/logger"
)

// AccountHeader names the acting account of a request.
const AccountHeader = "X-Account"

type KeyExtractor func(r *http.Request) string

type accountLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// AccountRateLimiter allows limit requests per window for each account, with bursts up to
// limit. Requests without an account are not limited.
type AccountRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*accountLimiter
	limit    rate.Limit
	burst    int
	window   time.Duration
	extract  KeyExtractor
	log      *logger.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewAccountRateLimiter(limit int, window time.Duration, extractor KeyExtractor, log *logger.Logger) *AccountRateLimiter {
	if extractor == nil {
		extractor = DefaultAccountExtractor
	}
	rl := &AccountRateLimiter{
		limiters: make(map[string]*accountLimiter),
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		window:   window,
		extract:  extractor,
		log:      log,
		stopCh:   make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *AccountRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, l := range rl.limiters {
				if time.Since(l.lastSeen) > rl.window {
					delete(rl.limiters, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *AccountRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *AccountRateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	rl.mu.Lock()
	l, ok := rl.limiters[key]
	if !ok {
		l = &accountLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = l
	}
	l.lastSeen = time.Now()
	rl.mu.Unlock()

	return l.limiter.Allow()
}

func AccountRateLimit(limiter *AccountRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := limiter.extract(r)
			if !limiter.Allow(account) {
				rejectRateLimited(w, limiter.log, r, account, limiter.window)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, account string, window time.Duration) {
	log.Warn("Rate limit exceeded",
		"request_id", GetRequestID(r.Context()),
		"account", account,
		"path", r.URL.Path,
	)

	if err := apperrors.WriteError(w, apperrors.RateLimited(window.String())); err != nil {
		log.Error("failed to write error response", "handler", "AccountRateLimit", "operation", "WriteError", "error", err)
	}
}

func DefaultAccountExtractor(r *http.Request) string {
	return r.Header.Get(AccountHeader)
}
