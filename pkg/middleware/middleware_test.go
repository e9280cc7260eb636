package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tripshare/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"n":1}`))
	})
}

func TestAccountRateLimit(t *testing.T) {
	limiter := NewAccountRateLimiter(2, time.Hour, nil, testLogger())
	defer limiter.Stop()

	calls := 0
	h := AccountRateLimit(limiter)(okHandler(&calls))

	do := func(account string) int {
		req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
		if account != "" {
			req.Header.Set(AccountHeader, account)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("alice"); code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, code)
		}
	}
	if code := do("alice"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after burst, got %d", code)
	}
	if code := do("bob"); code != http.StatusCreated {
		t.Errorf("expected other account unaffected, got %d", code)
	}
	if code := do(""); code != http.StatusCreated {
		t.Errorf("expected anonymous request to pass, got %d", code)
	}
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	calls := 0
	h := Idempotency(store)(okHandler(&calls))

	send := func(account string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/bookings/7/participate", nil)
		req.Header.Set(IdempotencyHeader, "k-1")
		req.Header.Set(AccountHeader, account)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("alice")
	second := send("alice")
	if calls != 1 {
		t.Errorf("expected handler called once, got %d", calls)
	}
	if second.Code != first.Code || second.Body.String() != first.Body.String() {
		t.Errorf("expected replayed response, got %d %q", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replay") != "true" {
		t.Error("expected replay header")
	}

	send("bob")
	if calls != 2 {
		t.Errorf("expected keys scoped per account, got %d calls", calls)
	}
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Minute)
	defer store.Stop()

	calls := 0
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
		req.Header.Set(IdempotencyHeader, "k-2")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Errorf("expected failures to be retried, got %d calls", calls)
	}
}

func TestContentTypeValidation(t *testing.T) {
	calls := 0
	h := ContentTypeValidation(testLogger())(okHandler(&calls))

	tests := []struct {
		name        string
		body        string
		contentType string
		expected    int
	}{
		{"json body", `{}`, "application/json; charset=utf-8", http.StatusCreated},
		{"text body", `{}`, "text/plain", http.StatusUnsupportedMediaType},
		{"empty body", ``, "", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("expected error code in body, got %s", rec.Body.String())
	}
}

func TestRequestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	h := RequestLogging(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc" {
		t.Errorf("expected request id abc, got %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != "abc" {
		t.Errorf("expected response header abc, got %q", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}
