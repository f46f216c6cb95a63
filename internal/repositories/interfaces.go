package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type TestResultFilters struct {
	ApplicationID *string    `json:"application_id"`
	DateFrom      *time.Time `json:"date_from"`
	DateTo        *time.Time `json:"date_to"`
	MinScore      *float64   `json:"min_score"`
	Limit         int        `json:"limit"`
	Offset        int        `json:"offset"`
	SortBy        string     `json:"sort_by"`    // "completed_at", "score", "violations_count"
	SortOrder     string     `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORIES =====

// TestResultRepository manages the latest result row of each application.
// Methods accept an optional transaction; nil runs on the base connection.
type TestResultRepository interface {
	// Upsert inserts the row or overwrites status, score, violations, end reason
	// and completion time of the existing row with the same application id.
	// result.ID is set to the id of the stored row.
	Upsert(ctx context.Context, tx *gorm.DB, result *models.TestResult) error
	GetByApplicationID(ctx context.Context, tx *gorm.DB, applicationID string) (*models.TestResult, error)
	List(ctx context.Context, tx *gorm.DB, filters TestResultFilters) ([]*models.TestResult, int64, error)
}

// AnswerLogRepository appends and reads per-attempt answer logs.
type AnswerLogRepository interface {
	Create(ctx context.Context, tx *gorm.DB, log *models.AnswerLog) error
	ListByTestResult(ctx context.Context, tx *gorm.DB, testResultID uint) ([]*models.AnswerLog, error)
	CountByTestResult(ctx context.Context, tx *gorm.DB, testResultID uint) (int64, error)
}

// Repository groups the repositories and runs transactions across them.
type Repository interface {
	TestResult() TestResultRepository
	AnswerLog() AnswerLogRepository
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IsNotFoundError reports whether err is gorm's record-not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
