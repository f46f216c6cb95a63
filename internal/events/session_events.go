package events

import (
	"time"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/google/uuid"
)

// EventType represents the lifecycle events of a test session
type EventType string

const (
	EventSessionStarted   EventType = "assessment.session_started"
	EventSessionFlagged   EventType = "assessment.session_flagged"
	EventSessionCompleted EventType = "assessment.session_completed"
	EventSessionAbandoned EventType = "assessment.session_abandoned"
)

const (
	eventSource  = "skills-assessment-service"
	eventVersion = "1.0"
)

// AssessmentEvent is the envelope for every published event
type AssessmentEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type SessionStartedEvent struct {
	SessionID      string    `json:"session_id"`
	ApplicationID  string    `json:"application_id"`
	QuestionCount  int       `json:"question_count"`
	StartedAt      time.Time `json:"started_at"`
	DurationBudget int       `json:"duration_budget"` // seconds
}

type SessionFlaggedEvent struct {
	SessionID     string    `json:"session_id"`
	ApplicationID string    `json:"application_id"`
	Violations    int       `json:"violations"`
	FlaggedAt     time.Time `json:"flagged_at"`
}

type SessionCompletedEvent struct {
	SessionID       string           `json:"session_id"`
	ApplicationID   string           `json:"application_id"`
	TestResultID    uint             `json:"test_result_id"`
	ScorePercent    float64          `json:"score_percent"`
	ViolationsCount int              `json:"violations_count"`
	Flagged         bool             `json:"flagged"`
	EndReason       models.EndReason `json:"end_reason"`
	Verdict         models.Verdict   `json:"verdict"`
	CompletedAt     time.Time        `json:"completed_at"`
}

type SessionAbandonedEvent struct {
	SessionID     string    `json:"session_id"`
	ApplicationID string    `json:"application_id"`
	Reason        string    `json:"reason"`
	AbandonedAt   time.Time `json:"abandoned_at"`
}

// Event factory functions

func newEvent(eventType EventType, data interface{}) *AssessmentEvent {
	return &AssessmentEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewSessionStartedEvent(sessionID, applicationID string, questionCount int, startedAt time.Time, budget time.Duration) *AssessmentEvent {
	return newEvent(EventSessionStarted, SessionStartedEvent{
		SessionID:      sessionID,
		ApplicationID:  applicationID,
		QuestionCount:  questionCount,
		StartedAt:      startedAt,
		DurationBudget: int(budget.Seconds()),
	})
}

func NewSessionFlaggedEvent(sessionID, applicationID string, violations int, flaggedAt time.Time) *AssessmentEvent {
	return newEvent(EventSessionFlagged, SessionFlaggedEvent{
		SessionID:     sessionID,
		ApplicationID: applicationID,
		Violations:    violations,
		FlaggedAt:     flaggedAt,
	})
}

func NewSessionCompletedEvent(sessionID string, outcome *models.TestOutcome) *AssessmentEvent {
	return newEvent(EventSessionCompleted, SessionCompletedEvent{
		SessionID:       sessionID,
		ApplicationID:   outcome.ApplicationID,
		TestResultID:    outcome.TestResultID,
		ScorePercent:    outcome.ScorePercent,
		ViolationsCount: outcome.ViolationsCount,
		Flagged:         outcome.Flagged,
		EndReason:       outcome.EndReason,
		Verdict:         outcome.Verdict,
		CompletedAt:     outcome.CompletedAt,
	})
}

func NewSessionAbandonedEvent(sessionID, applicationID, reason string, abandonedAt time.Time) *AssessmentEvent {
	return newEvent(EventSessionAbandoned, SessionAbandonedEvent{
		SessionID:     sessionID,
		ApplicationID: applicationID,
		Reason:        reason,
		AbandonedAt:   abandonedAt,
	})
}

// GenerateEventID returns a new random event id
func GenerateEventID() string {
	return uuid.NewString()
}
