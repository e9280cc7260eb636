package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"

	"tripshare/internal/bookings/events"
	apperrors "tripshare/pkg/errors"
	"tripshare/pkg/kafka"
	"tripshare/pkg/logger"
	"tripshare/pkg/model"
)

type mockActivityService struct {
	listFunc func(ctx context.Context, bookingID uint64, limit int, offset int64) ([]*model.Activity, int64, error)
}

func (m *mockActivityService) Handle(ctx context.Context, msg kafka.Message) error {
	return nil
}

func (m *mockActivityService) Index(ctx context.Context, e events.Event) error {
	return nil
}

func (m *mockActivityService) ListByBooking(ctx context.Context, bookingID uint64, limit int, offset int64) ([]*model.Activity, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, bookingID, limit, offset)
	}
	return []*model.Activity{}, 0, nil
}

func newRouter(svc *mockActivityService) *httprouter.Router {
	router := httprouter.New()
	log := logger.New(logger.Config{Level: "error", Output: io.Discard, Service: "test"})
	NewActivityHandler(svc, log).RegisterRoutes(router)
	return router
}

func TestListByBooking_PassesPagination(t *testing.T) {
	var gotID uint64
	var gotLimit int
	var gotOffset int64
	svc := &mockActivityService{
		listFunc: func(_ context.Context, bookingID uint64, limit int, offset int64) ([]*model.Activity, int64, error) {
			gotID, gotLimit, gotOffset = bookingID, limit, offset
			return []*model.Activity{{EventID: "e1", BookingID: bookingID}}, 5, nil
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/9/activity?limit=2&offset=3", nil)
	w := httptest.NewRecorder()

	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if gotID != 9 || gotLimit != 2 || gotOffset != 3 {
		t.Errorf("expected id 9 limit 2 offset 3, got %d %d %d", gotID, gotLimit, gotOffset)
	}

	var resp struct {
		Data       []model.Activity `json:"data"`
		TotalCount int64            `json:"total_count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TotalCount != 5 || len(resp.Data) != 1 || resp.Data[0].EventID != "e1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestListByBooking_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "non numeric id", path: "/api/v1/bookings/id/x/activity"},
		{name: "bad limit", path: "/api/v1/bookings/id/9/activity?limit=many"},
		{name: "bad offset", path: "/api/v1/bookings/id/9/activity?offset=-x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockActivityService{
				listFunc: func(context.Context, uint64, int, int64) ([]*model.Activity, int64, error) {
					called = true
					return nil, 0, nil
				},
			}
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			newRouter(svc).ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if called {
				t.Error("expected service not to be called")
			}
		})
	}
}

func TestListByBooking_ServiceError(t *testing.T) {
	svc := &mockActivityService{
		listFunc: func(context.Context, uint64, int, int64) ([]*model.Activity, int64, error) {
			return nil, 0, apperrors.Internal("Failed to retrieve activities", nil)
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/id/9/activity", nil)
	w := httptest.NewRecorder()

	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}
