package errors

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// Rules used by session navigation and answer checks.
const (
	RuleAnswerRequired = "answer_required"
	RuleIndexRange     = "index_range"
	RuleOptionRange    = "option_range"
	RuleLastQuestion   = "last_question"
	RuleNonEmpty       = "non_empty"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

func (pe *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", pe.Field, pe.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewValidationErrorWithRule creates a new validation error with rule
func NewValidationErrorWithRule(field, message, rule string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    rule,
	}
}

// IsValidationError reports whether err carries a ValidationError or ValidationErrors.
func IsValidationError(err error) bool {
	var single *ValidationError
	if errors.As(err, &single) {
		return true
	}
	var many ValidationErrors
	return errors.As(err, &many)
}

// ToValidationErrors converts validator.ValidationErrors to our custom type
func ToValidationErrors(err error) ValidationErrors {
	var result ValidationErrors

	var validatorErr validator.ValidationErrors
	if errors.As(err, &validatorErr) {
		for _, fe := range validatorErr {
			result = append(result, ValidationError{
				Field:   fe.Field(),
				Message: getErrorMessage(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
	}

	return result
}

// getErrorMessage returns user-friendly error messages
func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "len":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("must have exactly %s items", err.Param())
		}
		return fmt.Sprintf("must be exactly %s characters", err.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "uuid":
		return "must be a valid UUID"

	// Custom validators
	case "option_index":
		return "must be between 0 and 3"
	case "not_blank":
		return "must not be blank"

	default:
		return fmt.Sprintf("validation failed for rule '%s'", err.Tag())
	}
}
