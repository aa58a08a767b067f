package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their form name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs v against s and wraps the first failure in ErrValidation.
func ValidateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return &FieldError{Fields: fieldMessages(fieldErrs), message: describe(fieldErrs[0])}
}

// FieldError lists per-field validation messages. It matches ErrValidation.
type FieldError struct {
	Fields  map[string]string
	message string
}

// NewFieldError reports a single invalid field.
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Fields: map[string]string{field: capitalize(message)}, message: message}
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.message)
}

// Is reports ErrValidation.
func (e *FieldError) Is(target error) bool { return target == ErrValidation }

// UserMessage implements SafeError.
func (e *FieldError) UserMessage() string {
	return capitalize(e.message)
}

// FieldErrors extracts per-field messages from err, or nil.
func FieldErrors(err error) map[string]string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}

func fieldMessages(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		if _, ok := out[fe.Field()]; !ok {
			out[fe.Field()] = capitalize(describe(fe))
		}
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s needs at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "eqfield":
		return field + " does not match"
	case "dive":
		return field + " is invalid"
	default:
		return field + " is invalid"
	}
}
