package postgres

import (
	"context"
	"strings"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TestResultPostgreSQL struct {
	db *gorm.DB
}

func NewTestResultPostgreSQL(db *gorm.DB) repositories.TestResultRepository {
	return &TestResultPostgreSQL{db: db}
}

func (t TestResultPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, result *models.TestResult) error {
	db := t.getDB(tx).WithContext(ctx)

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "application_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "score", "violations_count", "end_reason", "completed_at", "updated_at",
		}),
	}).Create(result).Error
	if err != nil {
		return err
	}

	// The id returned by an upsert that hit the conflict branch is not portable
	// across drivers, so read it back.
	var stored models.TestResult
	if err := db.Select("id", "created_at").
		Where("application_id = ?", result.ApplicationID).
		First(&stored).Error; err != nil {
		return err
	}
	result.ID = stored.ID
	result.CreatedAt = stored.CreatedAt
	return nil
}

func (t TestResultPostgreSQL) GetByApplicationID(ctx context.Context, tx *gorm.DB, applicationID string) (*models.TestResult, error) {
	var result models.TestResult
	if err := t.getDB(tx).WithContext(ctx).
		Where("application_id = ?", applicationID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (t TestResultPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.TestResultFilters) ([]*models.TestResult, int64, error) {
	var results []*models.TestResult
	var total int64

	// apply filter first
	query := t.getDB(tx).WithContext(ctx).Model(&models.TestResult{})
	query = t.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = t.applyPaginationAndSort(query, filters)

	if err := query.Find(&results).Error; err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func (t TestResultPostgreSQL) applyFilters(query *gorm.DB, filters repositories.TestResultFilters) *gorm.DB {
	if filters.ApplicationID != nil {
		query = query.Where("application_id = ?", *filters.ApplicationID)
	}
	if filters.DateFrom != nil {
		query = query.Where("completed_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("completed_at <= ?", *filters.DateTo)
	}
	if filters.MinScore != nil {
		query = query.Where("score >= ?", *filters.MinScore)
	}
	return query
}

func (t TestResultPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.TestResultFilters) *gorm.DB {
	sortBy := "completed_at"
	switch filters.SortBy {
	case "score", "violations_count", "completed_at":
		sortBy = filters.SortBy
	}

	sortOrder := "desc"
	if strings.EqualFold(filters.SortOrder, "asc") {
		sortOrder = "asc"
	}

	query = query.Order(sortBy + " " + sortOrder).Order("id " + sortOrder)

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}

func (t TestResultPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return t.db
}
