package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	apperrors "github.com/SAP-F-2025/skills-assessment-service/internal/errors"
	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/proctoring"
)

const DefaultTestDuration = 600 * time.Second

type TestSessionConfig struct {
	ID            string
	ApplicationID string
	Questions     []models.QuestionItem
	Duration      time.Duration
	Opener        DetectorOpener
	Finalizer     Finalizer
	Logger        *slog.Logger
	Now           func() time.Time
}

// TickResult describes one scheduler tick.
type TickResult struct {
	Remaining time.Duration
	// Detection is nil when no detector pass ran.
	Detection *proctoring.TickReport
	// Outcome is set when this tick finished the attempt on timeout.
	Outcome *models.TestOutcome
}

// TestSession is one candidate attempt. All methods are safe for concurrent
// use; finalize I/O and detector passes run outside the session lock.
type TestSession struct {
	id            string
	applicationID string
	questions     []models.QuestionItem
	budget        time.Duration
	opener        DetectorOpener
	finalizer     Finalizer
	logger        *slog.Logger
	now           func() time.Time

	mu            sync.Mutex
	status        models.SessionStatus
	endReason     models.EndReason
	responses     map[int]models.Response
	currentIndex  int
	startTime     time.Time
	lastRemaining time.Duration
	lastActivity  time.Time
	detector      SessionDetector
	violations    int
	byKind        models.ViolationCounts
	flagged       bool
	finalizing    bool
	pending       *FinalizeRequest
	outcome       *models.TestOutcome
}

func NewTestSession(cfg TestSessionConfig) *TestSession {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultTestDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	questions := make([]models.QuestionItem, len(cfg.Questions))
	copy(questions, cfg.Questions)

	return &TestSession{
		id:            cfg.ID,
		applicationID: cfg.ApplicationID,
		questions:     questions,
		budget:        cfg.Duration,
		opener:        cfg.Opener,
		finalizer:     cfg.Finalizer,
		logger:        cfg.Logger.With("session_id", cfg.ID, "application_id", cfg.ApplicationID),
		now:           cfg.Now,
		status:        models.SessionNotStarted,
		responses:     make(map[int]models.Response),
		lastRemaining: cfg.Duration,
		lastActivity:  cfg.Now(),
	}
}

func (s *TestSession) ID() string            { return s.id }
func (s *TestSession) ApplicationID() string { return s.applicationID }

func (s *TestSession) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *TestSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Expired reports an in-progress attempt whose time budget has run out but
// which no tick has submitted yet.
func (s *TestSession) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == models.SessionInProgress && !s.finalizing && s.remainingLocked() <= 0
}

// PublicQuestions returns the question set without answers.
func (s *TestSession) PublicQuestions() []models.PublicQuestion {
	out := make([]models.PublicQuestion, len(s.questions))
	for i, q := range s.questions {
		out[i] = q.Public(i)
	}
	return out
}

// Start acquires the camera and starts the clock. On failure the session
// stays NotStarted.
func (s *TestSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.SessionNotStarted {
		return fmt.Errorf("%w: session already started", ErrConflict)
	}
	if len(s.questions) == 0 {
		return newRuleError("questions", "at least one question is required", apperrors.RuleNonEmpty, 0)
	}

	detector, err := s.opener(ctx, s.id)
	if err != nil {
		return err
	}

	s.detector = detector
	s.startTime = s.now()
	s.lastActivity = s.startTime
	s.lastRemaining = s.budget
	s.transitionLocked(models.SessionInProgress)

	s.logger.Info("Session started", "questions", len(s.questions), "budget", s.budget)
	return nil
}

// SelectAnswer records or replaces the response for a question.
func (s *TestSession) SelectAnswer(questionIndex, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActiveLocked(); err != nil {
		return err
	}
	if questionIndex < 0 || questionIndex >= len(s.questions) {
		return newRuleError("question_index", fmt.Sprintf("must be between 0 and %d", len(s.questions)-1), apperrors.RuleIndexRange, questionIndex)
	}
	if option < 0 || option >= models.OptionsPerQuestion {
		return newRuleError("option", fmt.Sprintf("must be between 0 and %d", models.OptionsPerQuestion-1), apperrors.RuleOptionRange, option)
	}

	s.responses[questionIndex] = models.Response{
		QuestionIndex:  questionIndex,
		SelectedOption: option,
		CorrectOption:  s.questions[questionIndex].CorrectIndex,
	}
	s.lastActivity = s.now()
	return nil
}

// Next advances to the following question once the current one is answered.
func (s *TestSession) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActiveLocked(); err != nil {
		return err
	}
	if s.currentIndex >= len(s.questions)-1 {
		return newRuleError("current_index", "already at the last question", apperrors.RuleLastQuestion, s.currentIndex)
	}
	if _, ok := s.responses[s.currentIndex]; !ok {
		return newRuleError("answer", "select an answer before moving on", apperrors.RuleAnswerRequired, s.currentIndex)
	}

	s.currentIndex++
	s.lastActivity = s.now()
	return nil
}

func (s *TestSession) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActiveLocked(); err != nil {
		return err
	}
	if s.currentIndex == 0 {
		return newRuleError("current_index", "already at the first question", apperrors.RuleIndexRange, s.currentIndex)
	}

	s.currentIndex--
	s.lastActivity = s.now()
	return nil
}

// Tick updates the remaining time and runs one detector pass. When the time
// is up the attempt is submitted automatically, once.
func (s *TestSession) Tick(ctx context.Context) (*TickResult, error) {
	s.mu.Lock()

	switch s.status {
	case models.SessionNotStarted:
		s.mu.Unlock()
		return nil, ErrSessionNotStarted
	case models.SessionAbandoned:
		s.mu.Unlock()
		return nil, ErrSessionAbandoned
	case models.SessionSubmitted, models.SessionTimedOut, models.SessionCompleted:
		result := &TickResult{Remaining: s.lastRemaining}
		s.mu.Unlock()
		return result, nil
	}

	remaining := s.remainingLocked()
	if remaining > 0 {
		detector := s.detector
		s.lastActivity = s.now()
		s.mu.Unlock()

		report := detector.Tick(ctx)
		s.applyReport(report)
		return &TickResult{Remaining: remaining, Detection: &report}, nil
	}

	if err := s.beginTimeoutLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.logger.Info("Time budget exhausted, submitting automatically")
	outcome, err := s.finalize(ctx)
	if err != nil {
		return &TickResult{Remaining: 0}, err
	}
	return &TickResult{Remaining: 0, Outcome: outcome}, nil
}

func (s *TestSession) applyReport(report proctoring.TickReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.Tally > s.violations {
		s.violations = report.Tally
	}
	if report.ByKind != nil && report.ByKind.Total() >= s.byKind.Total() {
		s.byKind = report.ByKind
	}
	if report.Flagged {
		s.flagged = true
	}
}

// Submit ends the attempt manually, or retries a failed finalize. After
// Completed it returns the stored outcome.
func (s *TestSession) Submit(ctx context.Context) (*models.TestOutcome, error) {
	s.mu.Lock()

	switch s.status {
	case models.SessionNotStarted:
		s.mu.Unlock()
		return nil, ErrSessionNotStarted
	case models.SessionAbandoned:
		s.mu.Unlock()
		return nil, ErrSessionAbandoned
	case models.SessionCompleted:
		outcome := s.outcome
		s.mu.Unlock()
		return outcome, nil
	case models.SessionInProgress:
		if s.remainingLocked() <= 0 {
			if err := s.beginTimeoutLocked(); err != nil {
				s.mu.Unlock()
				return nil, err
			}
			break
		}
		if err := s.checkSubmittableLocked(); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if s.finalizing {
			s.mu.Unlock()
			return nil, ErrFinalizeInProgress
		}
		s.transitionLocked(models.SessionSubmitted)
		s.endReason = models.EndReasonSubmitted
		s.finalizing = true
	default:
		// Submitted with a failed finalize: retry.
		if s.finalizing {
			s.mu.Unlock()
			return nil, ErrFinalizeInProgress
		}
		s.finalizing = true
	}
	s.lastActivity = s.now()
	s.mu.Unlock()

	return s.finalize(ctx)
}

// Abort abandons the attempt. Nothing is persisted.
func (s *TestSession) Abort() error {
	s.mu.Lock()

	switch {
	case s.status == models.SessionCompleted:
		s.mu.Unlock()
		return ErrSessionCompleted
	case s.status == models.SessionAbandoned:
		s.mu.Unlock()
		return nil
	case s.finalizing:
		s.mu.Unlock()
		return ErrFinalizeInProgress
	}

	s.transitionLocked(models.SessionAbandoned)
	s.responses = make(map[int]models.Response)
	s.pending = nil
	s.lastActivity = s.now()
	detector := s.detector
	s.mu.Unlock()

	s.logger.Info("Session abandoned")
	if detector != nil {
		if err := detector.Release(); err != nil {
			s.logger.Warn("Failed to release camera", "error", err)
		}
	}
	return nil
}

// Snapshot returns a read-only view of the session.
func (s *TestSession) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := s.lastRemaining
	if s.status == models.SessionInProgress {
		remaining = s.remainingLocked()
	}

	snapshot := models.SessionSnapshot{
		SessionID:        s.id,
		ApplicationID:    s.applicationID,
		Status:           s.status,
		CurrentIndex:     s.currentIndex,
		TotalQuestions:   len(s.questions),
		AnsweredCount:    len(s.responses),
		RemainingSeconds: int(math.Ceil(remaining.Seconds())),
		ViolationsCount:  s.violations,
		ViolationCounts:  s.byKind.Clone(),
		Flagged:          s.flagged,
		EndReason:        s.endReason,
		Outcome:          s.outcome,
	}
	if resp, ok := s.responses[s.currentIndex]; ok {
		selected := resp.SelectedOption
		snapshot.CurrentAnswer = &selected
	}
	if !s.startTime.IsZero() {
		started := s.startTime
		snapshot.StartedAt = &started
	}
	return snapshot
}

// ===== INTERNAL =====

// finalize runs with s.finalizing set by the caller.
func (s *TestSession) finalize(ctx context.Context) (*models.TestOutcome, error) {
	if err := s.detector.Release(); err != nil {
		s.logger.Warn("Failed to release camera", "error", err)
	}
	violations, flagged := s.detector.Tally()
	byKind := s.detector.ViolationCounts()

	s.mu.Lock()
	if s.pending == nil {
		responses := make(map[int]models.Response, len(s.responses))
		for k, v := range s.responses {
			responses[k] = v
		}
		s.pending = &FinalizeRequest{
			SessionID:       s.id,
			ApplicationID:   s.applicationID,
			Questions:       s.questions,
			Responses:       responses,
			ViolationsCount: violations,
			ViolationCounts: byKind,
			Flagged:         flagged,
			EndReason:       s.endReason,
		}
		s.violations = violations
		s.byKind = byKind.Clone()
		s.flagged = flagged
	}
	req := *s.pending
	s.mu.Unlock()

	outcome, err := s.finalizer.Finalize(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizing = false
	if err != nil {
		s.logger.Error("Failed to finalize session", "status", s.status, "error", err)
		return nil, err
	}

	s.outcome = outcome
	s.transitionLocked(models.SessionCompleted)
	return outcome, nil
}

// beginTimeoutLocked passes through TimedOut into Submitted so a failed
// finalize leaves the attempt retryable like a manual submit.
func (s *TestSession) beginTimeoutLocked() error {
	if s.finalizing {
		return ErrFinalizeInProgress
	}
	s.lastRemaining = 0
	s.lastActivity = s.now()
	s.endReason = models.EndReasonTimeout
	s.transitionLocked(models.SessionTimedOut)
	s.transitionLocked(models.SessionSubmitted)
	s.finalizing = true
	return nil
}

func (s *TestSession) transitionLocked(to models.SessionStatus) {
	s.logger.Debug("Session status changed", "from", s.status, "to", to, "end_reason", s.endReason)
	s.status = to
}

// remainingLocked is clamped at zero and never grows between calls.
func (s *TestSession) remainingLocked() time.Duration {
	remaining := s.budget - s.now().Sub(s.startTime)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > s.lastRemaining {
		remaining = s.lastRemaining
	}
	s.lastRemaining = remaining
	return remaining
}

func (s *TestSession) checkActiveLocked() error {
	switch s.status {
	case models.SessionNotStarted:
		return ErrSessionNotStarted
	case models.SessionCompleted:
		return ErrSessionCompleted
	case models.SessionAbandoned:
		return ErrSessionAbandoned
	case models.SessionSubmitted, models.SessionTimedOut:
		return ErrSessionNotActive
	}
	if s.remainingLocked() <= 0 {
		return ErrSessionTimeExpired
	}
	return nil
}

func (s *TestSession) checkSubmittableLocked() error {
	last := len(s.questions) - 1
	if s.currentIndex != last {
		return newRuleError("current_index", "submit is only allowed on the last question", apperrors.RuleLastQuestion, s.currentIndex)
	}
	if _, ok := s.responses[last]; !ok {
		return newRuleError("answer", "select an answer before submitting", apperrors.RuleAnswerRequired, last)
	}
	return nil
}
