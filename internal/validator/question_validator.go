package validator

import (
	"encoding/json"
	"fmt"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// QuestionValidator checks raw generator candidates
type QuestionValidator struct {
	validate *validator.Validate
}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator(validate *validator.Validate) *QuestionValidator {
	return &QuestionValidator{validate: validate}
}

// ValidateCandidate decodes and validates one raw candidate.
func (v *QuestionValidator) ValidateCandidate(raw json.RawMessage) (models.QuestionItem, error) {
	var candidate models.CandidateQuestion
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return models.QuestionItem{}, fmt.Errorf("failed to decode candidate: %w", err)
	}

	if err := v.validate.Struct(&candidate); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return models.QuestionItem{}, errs
		}
		return models.QuestionItem{}, err
	}

	return candidate.ToQuestionItem(), nil
}

// RejectedCandidate records why a candidate was dropped.
type RejectedCandidate struct {
	Position int
	Err      error
}

// FilterCandidates keeps the valid candidates in their original order.
func (v *QuestionValidator) FilterCandidates(raws []json.RawMessage) ([]models.QuestionItem, []RejectedCandidate) {
	valid := make([]models.QuestionItem, 0, len(raws))
	var rejected []RejectedCandidate

	for i, raw := range raws {
		item, err := v.ValidateCandidate(raw)
		if err != nil {
			rejected = append(rejected, RejectedCandidate{Position: i, Err: err})
			continue
		}
		valid = append(valid, item)
	}

	return valid, rejected
}
