package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/HatiCode/meteocache/pkg/openmeteo"
)

// ValidationError is returned before any cache or network activity when a
// request is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Reason
}

var validate = validator.New()

// checkStruct runs the struct tags of req and converts the first failure into
// a *ValidationError.
func checkStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Reason: err.Error()}
	}

	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Reason: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Field() {
	case "Latitude":
		return fmt.Sprintf("latitude must be in range [-90.0, 90.0], got %v", fe.Value())
	case "Longitude":
		return fmt.Sprintf("longitude must be in range [-180.0, 180.0], got %v", fe.Value())
	case "Days":
		return fmt.Sprintf("days must be in range [1, %d], got %v", openmeteo.MaxForecastDays, fe.Value())
	case "End":
		if fe.Tag() == "gtefield" {
			return "start date must be on or before end date"
		}
	case "Resolution":
		return fmt.Sprintf("resolution must be hourly or daily, got %q", fe.Value())
	}
	return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
}

// dateOf truncates t to its calendar date, keeping the date t shows in its
// own location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
