package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   New(CodeNotFound, "booking not found", http.StatusNotFound),
			expected: "NOT_FOUND: booking not found",
		},
		{
			name:     "with underlying error",
			appErr:   Wrap(errors.New("connection reset"), CodeInternal, "internal error", http.StatusInternalServerError),
			expected: "INTERNAL_ERROR: internal error (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRejected_StatusByCode(t *testing.T) {
	cause := errors.New("payment amount mismatch")
	tests := []struct {
		code   string
		status int
	}{
		{CodeValidation, http.StatusUnprocessableEntity},
		{CodePairing, http.StatusUnprocessableEntity},
		{CodeAuthorization, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			appErr := Rejected(tt.code, cause)
			if appErr.HTTPStatus != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, appErr.HTTPStatus)
			}
			if !errors.Is(appErr, cause) {
				t.Error("expected rejection to wrap its cause")
			}
		})
	}
}

func TestTransport(t *testing.T) {
	appErr := Transport("ledger unreachable", errors.New("timeout"))
	if appErr.Code != CodeTransport || appErr.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected %s/503, got %s/%d", CodeTransport, appErr.Code, appErr.HTTPStatus)
	}
}

func TestAsAppError(t *testing.T) {
	inner := NotFoundWithID("booking", "7")
	wrapped := fmt.Errorf("get booking: %w", inner)

	if !IsAppError(wrapped) {
		t.Error("expected wrapped AppError to be detected")
	}
	if got := AsAppError(wrapped); got != inner {
		t.Errorf("expected the wrapped AppError, got %v", got)
	}

	plain := errors.New("boom")
	if IsAppError(plain) {
		t.Error("expected plain error not to be an AppError")
	}
	if got := AsAppError(plain); got.Code != CodeInternal || got.Err != plain {
		t.Errorf("expected internal error wrapping the cause, got %+v", got)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteError(rec, Validation("invalid booking", map[string]any{"capacity": "must be positive"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", rec.Code)
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != CodeValidation || body.Details["capacity"] != "must be positive" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestRateLimited(t *testing.T) {
	appErr := RateLimited("1s")
	if appErr.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", appErr.HTTPStatus)
	}
	var decoded ErrorResponse
	if err := json.Unmarshal(appErr.ToJSON(), &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Details["retry_after"] != "1s" {
		t.Errorf("expected retry_after 1s, got %v", decoded.Details["retry_after"])
	}
}
