package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/skills-assessment-service/internal/events"
	"github.com/SAP-F-2025/skills-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FinalizeRequest carries the values an attempt is scored with. A session
// keeps the same request across finalize retries.
type FinalizeRequest struct {
	SessionID       string
	ApplicationID   string
	Questions       []models.QuestionItem
	Responses       map[int]models.Response
	ViolationsCount int
	ViolationCounts models.ViolationCounts
	Flagged         bool
	EndReason       models.EndReason
}

// Score counts correct responses. Unanswered questions are incorrect.
func Score(questions []models.QuestionItem, responses map[int]models.Response) (int, float64) {
	if len(questions) == 0 {
		return 0, 0
	}
	correct := 0
	for i, q := range questions {
		if resp, ok := responses[i]; ok && resp.SelectedOption == q.CorrectIndex {
			correct++
		}
	}
	return correct, float64(correct) / float64(len(questions))
}

// Breakdown lists per-question correctness in question order.
func Breakdown(questions []models.QuestionItem, responses map[int]models.Response) []models.QuestionOutcome {
	out := make([]models.QuestionOutcome, len(questions))
	for i, q := range questions {
		row := models.QuestionOutcome{
			QuestionIndex: i,
			Question:      q.Text,
			CorrectOption: q.CorrectIndex,
			CorrectAnswer: q.OptionText(q.CorrectIndex),
		}
		if resp, ok := responses[i]; ok {
			selected := resp.SelectedOption
			row.SelectedOption = &selected
			row.SelectedAnswer = q.OptionText(selected)
			row.IsCorrect = selected == q.CorrectIndex
		}
		out[i] = row
	}
	return out
}

type scoringService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *ServiceLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewScoringService returns the Finalizer that scores and persists attempts.
// publisher may be nil.
func NewScoringService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger) Finalizer {
	return &scoringService{
		repo:      repo,
		publisher: publisher,
		logger:    NewServiceLogger(logger, LogConfig{Service: "assessment", Component: "scoring"}),
		metrics:   metrics.NewMetrics(),
		now:       time.Now,
	}
}

// Finalize writes the result row and an answer log in one transaction.
func (s *scoringService) Finalize(ctx context.Context, req FinalizeRequest) (*models.TestOutcome, error) {
	op := s.logger.WithOperation(ctx, "finalize", req.SessionID, req.ApplicationID)
	start := time.Now()

	correct, score := Score(req.Questions, req.Responses)
	breakdown := Breakdown(req.Questions, req.Responses)
	completedAt := s.now()

	outcome := &models.TestOutcome{
		ApplicationID:   req.ApplicationID,
		Score:           score,
		ScorePercent:    percent(correct, len(req.Questions)),
		CorrectCount:    correct,
		TotalQuestions:  len(req.Questions),
		ViolationsCount: req.ViolationsCount,
		ViolationCounts: violationCounts(req.ViolationCounts),
		Flagged:         req.Flagged,
		EndReason:       req.EndReason,
		Verdict:         models.VerdictFor(score, req.ViolationsCount),
		Breakdown:       breakdown,
		CompletedAt:     completedAt,
	}

	answers, err := json.Marshal(answerEntries(breakdown))
	if err != nil {
		err = &PersistenceError{ApplicationID: req.ApplicationID, Err: fmt.Errorf("failed to encode answers: %w", err)}
		op.LogResult(err)
		return nil, err
	}
	violations, err := json.Marshal(outcome.ViolationCounts)
	if err != nil {
		err = &PersistenceError{ApplicationID: req.ApplicationID, Err: fmt.Errorf("failed to encode violations: %w", err)}
		op.LogResult(err)
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		result := &models.TestResult{
			ApplicationID:   req.ApplicationID,
			Status:          models.ResultCompleted,
			Score:           outcome.ScorePercent,
			ViolationsCount: req.ViolationsCount,
			EndReason:       req.EndReason,
			CompletedAt:     completedAt,
		}
		if err := s.repo.TestResult().Upsert(ctx, tx, result); err != nil {
			return fmt.Errorf("failed to upsert test result: %w", err)
		}

		log := &models.AnswerLog{
			TestResultID:    result.ID,
			Answers:         datatypes.JSON(answers),
			Score:           outcome.ScorePercent,
			ViolationsCount: req.ViolationsCount,
			Violations:      datatypes.JSON(violations),
			CompletedAt:     completedAt,
		}
		if err := s.repo.AnswerLog().Create(ctx, tx, log); err != nil {
			return fmt.Errorf("failed to create answer log: %w", err)
		}

		outcome.TestResultID = result.ID
		outcome.AnswerLogID = log.ID
		return nil
	})
	s.metrics.FinalizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.FinalizeFailures.Inc()
		err = &PersistenceError{ApplicationID: req.ApplicationID, Err: err}
		op.LogResult(err)
		return nil, err
	}
	op.LogResult(nil)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewSessionCompletedEvent(req.SessionID, outcome)); err != nil {
			s.logger.Logger().Warn("Failed to publish session completed event",
				"session_id", req.SessionID,
				"error", err)
		}
	}

	return outcome, nil
}

func percent(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) * 100 / float64(total)
}

// violationCounts lists every kind, zero when it never fired.
func violationCounts(counts models.ViolationCounts) models.ViolationCounts {
	out := models.ViolationCounts{
		models.ViolationNoFace:           0,
		models.ViolationMultipleFaces:    0,
		models.ViolationSuspiciousObject: 0,
	}
	for kind, n := range counts {
		out[kind] = n
	}
	return out
}

func answerEntries(breakdown []models.QuestionOutcome) []models.AnswerEntry {
	entries := make([]models.AnswerEntry, len(breakdown))
	for i, row := range breakdown {
		entries[i] = models.AnswerEntry{
			QuestionIndex:  row.QuestionIndex,
			Question:       row.Question,
			SelectedOption: row.SelectedOption,
			SelectedAnswer: row.SelectedAnswer,
			CorrectOption:  row.CorrectOption,
			CorrectAnswer:  row.CorrectAnswer,
			IsCorrect:      row.IsCorrect,
		}
	}
	return entries
}
