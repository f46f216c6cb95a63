package postgres

import (
	"context"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories"
	"gorm.io/gorm"
)

type AnswerLogPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerLogPostgreSQL(db *gorm.DB) repositories.AnswerLogRepository {
	return &AnswerLogPostgreSQL{db: db}
}

func (a AnswerLogPostgreSQL) Create(ctx context.Context, tx *gorm.DB, log *models.AnswerLog) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Create(log).Error
}

func (a AnswerLogPostgreSQL) ListByTestResult(ctx context.Context, tx *gorm.DB, testResultID uint) ([]*models.AnswerLog, error) {
	db := a.getDB(tx)
	var logs []*models.AnswerLog
	if err := db.WithContext(ctx).
		Where("test_result_id = ?", testResultID).
		Order("completed_at desc").
		Order("id desc").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (a AnswerLogPostgreSQL) CountByTestResult(ctx context.Context, tx *gorm.DB, testResultID uint) (int64, error) {
	db := a.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.AnswerLog{}).
		Where("test_result_id = ?", testResultID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (a AnswerLogPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}
