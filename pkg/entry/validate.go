package entry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid entry")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}

	return v
}

// Validate checks an entry against the strict schema: required fields, enums, score range,
// market codes, and the date ordering invariant
func Validate(e *Entry) error {
	if err := validate.Struct(e); err != nil {
		return validationError(err)
	}

	if e.FirstDetected.IsZero() {
		return fmt.Errorf("%w: first_detected is required", ErrInvalid)
	}
	if e.LastUpdated.IsZero() {
		return fmt.Errorf("%w: last_updated is required", ErrInvalid)
	}
	if e.FirstDetected.After(e.LastUpdated) {
		return fmt.Errorf("%w: first_detected %s is after last_updated %s", ErrInvalid, e.FirstDetected, e.LastUpdated)
	}

	return nil
}

// validationError flattens validator output into a single wrapped error
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s=%s' (got '%v')", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s' (got '%v')", fe.Field(), fe.Tag(), fe.Value()))
		}
	}

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
