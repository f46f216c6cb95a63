package postgres

import (
	"context"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db         *gorm.DB
	testResult repositories.TestResultRepository
	answerLog  repositories.AnswerLogRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:         db,
		testResult: NewTestResultPostgreSQL(db),
		answerLog:  NewAnswerLogPostgreSQL(db),
	}
}

func (r *repository) TestResult() repositories.TestResultRepository {
	return r.testResult
}

func (r *repository) AnswerLog() repositories.AnswerLogRepository {
	return r.answerLog
}

func (r *repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// AutoMigrate creates or updates the result tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.TestResult{}, &models.AnswerLog{})
}
