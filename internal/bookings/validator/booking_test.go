package validator

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"tripshare/pkg/logger"
	"tripshare/pkg/model"
)

func newTestValidator() *BookingValidator {
	return NewBookingValidator(logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}))
}

func validRequest() model.CreateBookingRequest {
	start := time.Now().Add(time.Hour)
	return model.CreateBookingRequest{
		CreatorName: "Dana",
		Origin:      "Tel Aviv",
		Destination: "Haifa",
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		UnitCost:    1_000,
		Capacity:    20,
	}
}

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(r *model.CreateBookingRequest)
		expectField string
	}{
		{name: "valid", mutate: func(r *model.CreateBookingRequest) {}},
		{name: "missing name", mutate: func(r *model.CreateBookingRequest) { r.CreatorName = "" }, expectField: "creator_name"},
		{name: "same origin and destination", mutate: func(r *model.CreateBookingRequest) { r.Destination = r.Origin }, expectField: "destination"},
		{name: "end before start", mutate: func(r *model.CreateBookingRequest) { r.EndTime = r.StartTime.Add(-time.Minute) }, expectField: "end_time"},
		{name: "zero capacity", mutate: func(r *model.CreateBookingRequest) { r.Capacity = 0 }, expectField: "capacity"},
		{name: "zero unit cost", mutate: func(r *model.CreateBookingRequest) { r.UnitCost = 0 }, expectField: "unit_cost"},
		{name: "total cost overflow", mutate: func(r *model.CreateBookingRequest) { r.UnitCost = math.MaxUint64 / 2 }, expectField: "capacity"},
	}

	v := newTestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := v.ValidateCreate(&req)
			if tt.expectField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.expectField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.expectField, verrs)
			}
		})
	}
}

func TestValidateParticipate(t *testing.T) {
	v := newTestValidator()
	if err := v.ValidateParticipate(&model.ParticipateRequest{Capacity: 3}); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	if err := v.ValidateParticipate(&model.ParticipateRequest{}); err == nil {
		t.Error("expected zero capacity to be rejected")
	}
}

func TestValidationErrors_Details(t *testing.T) {
	errs := ValidationErrors{{Field: "capacity", Message: "capacity is required"}}
	fields, ok := errs.Details()["fields"].(map[string]any)
	if !ok || fields["capacity"] != "capacity is required" {
		t.Errorf("unexpected details %v", errs.Details())
	}
}
