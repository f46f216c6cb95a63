package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet    = "Results"
	maxExportRows   = 10000
	exportTimestamp = "2006-01-02 15:04:05"
)

type resultService struct {
	repo   repositories.Repository
	logger *ServiceLogger
}

func NewResultService(repo repositories.Repository, logger *slog.Logger) ResultService {
	return &resultService{
		repo:   repo,
		logger: NewServiceLogger(logger, LogConfig{Service: "assessment", Component: "results"}),
	}
}

// GetResult returns the persisted result of an application with its answer logs.
func (s *resultService) GetResult(ctx context.Context, applicationID string) (*models.TestResult, error) {
	result, err := s.repo.TestResult().GetByApplicationID(ctx, nil, applicationID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get test result: %w", err)
	}

	logs, err := s.repo.AnswerLog().ListByTestResult(ctx, nil, result.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answer logs: %w", err)
	}
	result.AnswerLogs = make([]models.AnswerLog, len(logs))
	for i, log := range logs {
		result.AnswerLogs[i] = *log
	}

	return result, nil
}

func (s *resultService) ListResults(ctx context.Context, filters repositories.TestResultFilters) ([]*models.TestResult, int64, error) {
	results, total, err := s.repo.TestResult().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list test results: %w", err)
	}
	return results, total, nil
}

// ExportResultsToExcel renders the filtered results as an xlsx workbook.
func (s *resultService) ExportResultsToExcel(ctx context.Context, filters repositories.TestResultFilters) ([]byte, error) {
	op := s.logger.WithOperation(ctx, "export_results", "", "")

	if filters.Limit <= 0 || filters.Limit > maxExportRows {
		filters.Limit = maxExportRows
	}
	results, _, err := s.ListResults(ctx, filters)
	if err != nil {
		op.LogResult(err)
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(resultsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headers := []string{
		"Application ID", "Status", "Score (%)", "Violations", "End Reason", "Verdict", "Completed At",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve header cell: %w", err)
		}
		f.SetCellValue(resultsSheet, cell, header)
	}

	for rowIndex, result := range results {
		row := []interface{}{
			result.ApplicationID,
			string(result.Status),
			result.Score,
			result.ViolationsCount,
			string(result.EndReason),
			string(models.VerdictFor(result.Score/100, result.ViolationsCount)),
			result.CompletedAt.Format(exportTimestamp),
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIndex+2)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve row cell: %w", err)
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write result row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		err = fmt.Errorf("failed to write Excel file: %w", err)
		op.LogResult(err)
		return nil, err
	}

	op.LogResult(nil)
	return buf.Bytes(), nil
}
