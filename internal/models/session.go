package models

import "time"

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionSubmitted  SessionStatus = "submitted"
	SessionTimedOut   SessionStatus = "timed_out"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// IsTerminal reports whether no further transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

type EndReason string

const (
	EndReasonSubmitted EndReason = "submitted"
	EndReasonTimeout   EndReason = "timeout"
)

// Response is the candidate's answer for one question index.
type Response struct {
	QuestionIndex  int `json:"question_index"`
	SelectedOption int `json:"selected_option"`
	CorrectOption  int `json:"correct_option"`
}

func (r Response) IsCorrect() bool {
	return r.SelectedOption == r.CorrectOption
}

type Verdict string

const (
	VerdictExcellent        Verdict = "excellent"
	VerdictGood             Verdict = "good"
	VerdictNeedsImprovement Verdict = "needs_improvement"
)

// VerdictFor grades an attempt by score in [0,1] and the violation tally.
func VerdictFor(score float64, violations int) Verdict {
	switch {
	case score >= 0.8 && violations <= 2:
		return VerdictExcellent
	case score >= 0.6 && violations <= 5:
		return VerdictGood
	default:
		return VerdictNeedsImprovement
	}
}

// QuestionOutcome is one row of the per-question correctness breakdown.
type QuestionOutcome struct {
	QuestionIndex  int    `json:"question_index"`
	Question       string `json:"question"`
	SelectedOption *int   `json:"selected_option"`
	SelectedAnswer string `json:"selected_answer,omitempty"`
	CorrectOption  int    `json:"correct_option"`
	CorrectAnswer  string `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
}

// TestOutcome is returned to collaborators once an attempt is scored.
type TestOutcome struct {
	ApplicationID   string            `json:"application_id"`
	TestResultID    uint              `json:"test_result_id"`
	AnswerLogID     uint              `json:"answer_log_id"`
	Score           float64           `json:"score"`
	ScorePercent    float64           `json:"score_percent"`
	CorrectCount    int               `json:"correct_count"`
	TotalQuestions  int               `json:"total_questions"`
	ViolationsCount int               `json:"violations_count"`
	ViolationCounts ViolationCounts   `json:"violations_by_kind"`
	Flagged         bool              `json:"flagged"`
	EndReason       EndReason         `json:"end_reason"`
	Verdict         Verdict           `json:"verdict"`
	Breakdown       []QuestionOutcome `json:"breakdown"`
	CompletedAt     time.Time         `json:"completed_at"`
}

// SessionSnapshot is a read-only view of a running session.
type SessionSnapshot struct {
	SessionID        string          `json:"session_id"`
	ApplicationID    string          `json:"application_id"`
	Status           SessionStatus   `json:"status"`
	CurrentIndex     int             `json:"current_index"`
	TotalQuestions   int             `json:"total_questions"`
	AnsweredCount    int             `json:"answered_count"`
	CurrentAnswer    *int            `json:"current_answer"`
	RemainingSeconds int             `json:"remaining_seconds"`
	ViolationsCount  int             `json:"violations_count"`
	ViolationCounts  ViolationCounts `json:"violations_by_kind,omitempty"`
	Flagged          bool            `json:"flagged"`
	EndReason        EndReason       `json:"end_reason,omitempty"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	Outcome          *TestOutcome    `json:"outcome,omitempty"`
}
