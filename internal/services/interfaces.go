package services

import (
	"context"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories"
)

// ===== QUESTION PROVIDER =====

type QuestionProvider interface {
	GetQuestions(ctx context.Context, roleDescription string) ([]models.QuestionItem, error)
	SelectForAttempt(ctx context.Context, roleDescription string) ([]models.QuestionItem, error)
}

// ===== PROCTORING =====

// SessionDetector is the part of a proctoring detector a session drives.
type SessionDetector interface {
	Tick(ctx context.Context) proctoring.TickReport
	Tally() (int, bool)
	ViolationCounts() models.ViolationCounts
	Release() error
}

// DetectorOpener acquires the camera for a session handle.
type DetectorOpener func(ctx context.Context, handle string) (SessionDetector, error)

// MonitorOpener adapts a proctoring monitor to a DetectorOpener.
func MonitorOpener(monitor *proctoring.Monitor) DetectorOpener {
	return func(ctx context.Context, handle string) (SessionDetector, error) {
		detector, err := monitor.Open(ctx, handle)
		if err != nil {
			return nil, err
		}
		return detector, nil
	}
}

// ===== SCORING =====

type Finalizer interface {
	Finalize(ctx context.Context, req FinalizeRequest) (*models.TestOutcome, error)
}

// ===== SESSIONS =====

type SessionService interface {
	Start(ctx context.Context, applicationID, jobDescription string) (*StartedSession, error)
	Get(sessionID string) (*TestSession, error)
	Snapshot(sessionID string) (*models.SessionSnapshot, error)
	Tick(ctx context.Context, sessionID string) (*models.SessionSnapshot, error)
	SelectAnswer(sessionID string, questionIndex, option int) (*models.SessionSnapshot, error)
	Next(sessionID string) (*models.SessionSnapshot, error)
	Previous(sessionID string) (*models.SessionSnapshot, error)
	Submit(ctx context.Context, sessionID string) (*models.TestOutcome, error)
	Abort(ctx context.Context, sessionID string) error
	Sweep(ctx context.Context) SweepStats
	Active() int
}

// ===== RESULTS =====

type ResultService interface {
	GetResult(ctx context.Context, applicationID string) (*models.TestResult, error)
	ListResults(ctx context.Context, filters repositories.TestResultFilters) ([]*models.TestResult, int64, error)
	ExportResultsToExcel(ctx context.Context, filters repositories.TestResultFilters) ([]byte, error)
}
