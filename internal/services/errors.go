package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/skills-assessment-service/internal/errors"
	"github.com/SAP-F-2025/skills-assessment-service/internal/proctoring"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("resource conflict")

	// Session specific errors
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionNotActive   = errors.New("session is not in progress")
	ErrSessionNotStarted  = errors.New("session not started")
	ErrSessionTimeExpired = errors.New("session time has expired")
	ErrSessionAbandoned   = errors.New("session was abandoned")
	ErrSessionCompleted   = errors.New("session already completed")
	ErrFinalizeInProgress = errors.New("session is already being finalized")

	// Result specific errors
	ErrResultNotFound = errors.New("test result not found")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// GenerationError means no valid question could be produced for a role.
type GenerationError struct {
	Key      string
	Rejected int
	Err      error
}

func (ge *GenerationError) Error() string {
	if ge.Err != nil {
		return fmt.Sprintf("question generation failed for %q: %v", ge.Key, ge.Err)
	}
	return fmt.Sprintf("question generation failed for %q: no valid candidates (%d rejected)", ge.Key, ge.Rejected)
}

func (ge *GenerationError) Unwrap() error {
	return ge.Err
}

// PersistenceError means the result transaction failed and was rolled back.
type PersistenceError struct {
	ApplicationID string
	Err           error
}

func (pe *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist result for application %s: %v", pe.ApplicationID, pe.Err)
}

func (pe *PersistenceError) Unwrap() error {
	return pe.Err
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func newRuleError(field, message, rule string, value interface{}) *ValidationError {
	return apperrors.NewValidationErrorWithRule(field, message, rule, value)
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrResultNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidationFailed) || apperrors.IsValidationError(err)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrSessionNotStarted) ||
		errors.Is(err, ErrSessionTimeExpired) ||
		errors.Is(err, ErrSessionAbandoned) ||
		errors.Is(err, ErrSessionCompleted) ||
		errors.Is(err, ErrFinalizeInProgress)
}

func IsGeneration(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func IsResource(err error) bool {
	return proctoring.IsResourceError(err)
}
