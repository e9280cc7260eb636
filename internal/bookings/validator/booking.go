package validator

import (
	"errors"
	"fmt"
	"math/bits"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"tripshare/pkg/logger"
	"tripshare/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details renders the errors for an API error body.
func (v ValidationErrors) Details() map[string]any {
	fields := make(map[string]any, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return map[string]any{"fields": fields}
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateTotalCost, model.CreateBookingRequest{}, model.UpdateBookingRequest{})

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// validateTotalCost rejects offers whose full price does not fit in a uint64.
func validateTotalCost(sl validator.StructLevel) {
	var unitCost, capacity uint64
	switch req := sl.Current().Interface().(type) {
	case model.CreateBookingRequest:
		unitCost, capacity = req.UnitCost, req.Capacity
	case model.UpdateBookingRequest:
		unitCost, capacity = req.UnitCost, req.Capacity
	default:
		return
	}
	if hi, _ := bits.Mul64(unitCost, capacity); hi != 0 {
		sl.ReportError(capacity, "capacity", "Capacity", "total_cost", "")
	}
}

func (v *BookingValidator) ValidateCreate(req *model.CreateBookingRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidateUpdate(req *model.UpdateBookingRequest) error {
	return v.check(req)
}

func (v *BookingValidator) ValidateParticipate(req *model.ParticipateRequest) error {
	return v.check(req)
}

func (v *BookingValidator) check(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return translate(validationErrs)
	}
	return err
}

func translate(errs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(errs))
	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), jsonName(err.Param()))
		case "nefield":
			message = fmt.Sprintf("%s must differ from %s", err.Field(), jsonName(err.Param()))
		case "total_cost":
			message = "unit_cost multiplied by capacity overflows"
		}

		out = append(out, ValidationError{Field: err.Field(), Message: message})
	}
	return out
}

var jsonNames = map[string]string{
	"StartTime": "start_time",
	"Origin":    "origin",
}

func jsonName(field string) string {
	if name, ok := jsonNames[field]; ok {
		return name
	}
	return field
}
