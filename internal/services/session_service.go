package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "github.com/SAP-F-2025/skills-assessment-service/internal/errors"
	"github.com/SAP-F-2025/skills-assessment-service/internal/events"
	"github.com/SAP-F-2025/skills-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultSessionIdleTimeout = 15 * time.Minute
	DefaultSessionRetention   = 30 * time.Minute
)

type SessionServiceConfig struct {
	Provider  QuestionProvider
	Opener    DetectorOpener
	Finalizer Finalizer
	// Publisher may be nil.
	Publisher   events.EventPublisher
	Logger      *slog.Logger
	Duration    time.Duration
	IdleTimeout time.Duration
	Retention   time.Duration
	Now         func() time.Time
}

// StartedSession is returned by Start: the first snapshot and the questions
// without answers.
type StartedSession struct {
	Snapshot  models.SessionSnapshot  `json:"session"`
	Questions []models.PublicQuestion `json:"questions"`
}

type SweepStats struct {
	Abandoned int `json:"abandoned"`
	TimedOut  int `json:"timed_out"`
	Evicted   int `json:"evicted"`
}

type sessionService struct {
	provider    QuestionProvider
	opener      DetectorOpener
	finalizer   Finalizer
	publisher   events.EventPublisher
	logger      *ServiceLogger
	metrics     *metrics.Metrics
	duration    time.Duration
	idleTimeout time.Duration
	retention   time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*TestSession
}

func NewSessionService(cfg SessionServiceConfig) SessionService {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultTestDuration
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultSessionIdleTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultSessionRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &sessionService{
		provider:    cfg.Provider,
		opener:      cfg.Opener,
		finalizer:   cfg.Finalizer,
		publisher:   cfg.Publisher,
		logger:      NewServiceLogger(cfg.Logger, LogConfig{Service: "assessment", Component: "sessions"}),
		metrics:     metrics.NewMetrics(),
		duration:    cfg.Duration,
		idleTimeout: cfg.IdleTimeout,
		retention:   cfg.Retention,
		now:         cfg.Now,
		sessions:    make(map[string]*TestSession),
	}
}

// Start builds the question set, acquires the camera and registers the
// session. Nothing is registered when any step fails.
func (s *sessionService) Start(ctx context.Context, applicationID, jobDescription string) (*StartedSession, error) {
	op := s.logger.WithOperation(ctx, "start_session", "", applicationID)

	if strings.TrimSpace(applicationID) == "" {
		err := newRuleError("application_id", "is required", apperrors.RuleNonEmpty, applicationID)
		s.metrics.SessionsStartFail.WithLabelValues("validation").Inc()
		op.LogResult(err)
		return nil, err
	}

	questions, err := s.provider.SelectForAttempt(ctx, jobDescription)
	if err != nil {
		s.metrics.SessionsStartFail.WithLabelValues(startFailReason(err)).Inc()
		op.LogResult(err)
		return nil, err
	}

	sessionID := uuid.NewString()
	session := NewTestSession(TestSessionConfig{
		ID:            sessionID,
		ApplicationID: applicationID,
		Questions:     questions,
		Duration:      s.duration,
		Opener:        s.opener,
		Finalizer:     s.finalizer,
		Logger:        s.logger.Logger(),
		Now:           s.now,
	})
	if err := session.Start(ctx); err != nil {
		s.metrics.SessionsStartFail.WithLabelValues(startFailReason(err)).Inc()
		op.LogResult(err)
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sessionID] = session
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SessionsStarted.Inc()
	s.metrics.SessionsActive.Set(float64(active))

	snapshot := session.Snapshot()
	startedAt := s.now()
	if snapshot.StartedAt != nil {
		startedAt = *snapshot.StartedAt
	}
	s.publish(ctx, events.NewSessionStartedEvent(sessionID, applicationID, len(questions), startedAt, s.duration))

	op.LogResult(nil)
	return &StartedSession{
		Snapshot:  snapshot,
		Questions: session.PublicQuestions(),
	}, nil
}

func (s *sessionService) Get(sessionID string) (*TestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *sessionService) Snapshot(sessionID string) (*models.SessionSnapshot, error) {
	session, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot := session.Snapshot()
	return &snapshot, nil
}

func (s *sessionService) Tick(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	session, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}

	result, err := session.Tick(ctx)
	if err != nil {
		return nil, err
	}

	if result.Detection != nil && result.Detection.Flagged {
		s.publish(ctx, events.NewSessionFlaggedEvent(sessionID, session.ApplicationID(), result.Detection.Tally, s.now()))
	}
	if result.Outcome != nil {
		s.metrics.SessionsFinished.WithLabelValues(string(result.Outcome.EndReason)).Inc()
	}

	snapshot := session.Snapshot()
	return &snapshot, nil
}

func (s *sessionService) SelectAnswer(sessionID string, questionIndex, option int) (*models.SessionSnapshot, error) {
	return s.mutate(sessionID, func(session *TestSession) error {
		return session.SelectAnswer(questionIndex, option)
	})
}

func (s *sessionService) Next(sessionID string) (*models.SessionSnapshot, error) {
	return s.mutate(sessionID, (*TestSession).Next)
}

func (s *sessionService) Previous(sessionID string) (*models.SessionSnapshot, error) {
	return s.mutate(sessionID, (*TestSession).Previous)
}

func (s *sessionService) mutate(sessionID string, fn func(*TestSession) error) (*models.SessionSnapshot, error) {
	session, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	snapshot := session.Snapshot()
	return &snapshot, nil
}

func (s *sessionService) Submit(ctx context.Context, sessionID string) (*models.TestOutcome, error) {
	session, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}

	op := s.logger.WithOperation(ctx, "submit_session", sessionID, session.ApplicationID())
	wasCompleted := session.Status() == models.SessionCompleted

	outcome, err := session.Submit(ctx)
	op.LogResult(err)
	if err != nil {
		return nil, err
	}

	if !wasCompleted {
		s.metrics.SessionsFinished.WithLabelValues(string(outcome.EndReason)).Inc()
	}
	return outcome, nil
}

func (s *sessionService) Abort(ctx context.Context, sessionID string) error {
	session, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	return s.abort(ctx, session, "aborted")
}

func (s *sessionService) abort(ctx context.Context, session *TestSession, reason string) error {
	if session.Status() == models.SessionAbandoned {
		return nil
	}
	if err := session.Abort(); err != nil {
		return err
	}

	s.metrics.SessionsFinished.WithLabelValues("abandoned").Inc()
	s.publish(ctx, events.NewSessionAbandonedEvent(session.ID(), session.ApplicationID(), reason, s.now()))
	return nil
}

// Sweep submits in-progress sessions whose budget ran out without a tick,
// abandons sessions that never started once idle past the idle timeout and
// evicts finished sessions after the retention period. An in-progress
// session inside its budget is never abandoned.
func (s *sessionService) Sweep(ctx context.Context) SweepStats {
	now := s.now()
	var stats SweepStats

	s.mu.RLock()
	candidates := make([]*TestSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		candidates = append(candidates, session)
	}
	s.mu.RUnlock()

	var evict []string
	for _, session := range candidates {
		idle := now.Sub(session.LastActivity())

		switch session.Status() {
		case models.SessionInProgress:
			if !session.Expired() {
				continue
			}
			if _, err := s.Tick(ctx, session.ID()); err != nil {
				s.logger.Logger().Warn("Failed to submit expired session",
					"session_id", session.ID(),
					"application_id", session.ApplicationID(),
					"error", err)
				continue
			}
			stats.TimedOut++
		case models.SessionNotStarted:
			if idle < s.idleTimeout {
				continue
			}
			if err := s.abort(ctx, session, "idle"); err != nil {
				s.logger.Logger().Debug("Skipping idle session", "session_id", session.ID(), "error", err)
				continue
			}
			stats.Abandoned++
		case models.SessionSubmitted, models.SessionTimedOut:
			if idle >= s.retention {
				s.logger.Logger().Warn("Evicting session with unsaved result",
					"session_id", session.ID(),
					"application_id", session.ApplicationID())
				evict = append(evict, session.ID())
			}
		default:
			if idle >= s.retention {
				evict = append(evict, session.ID())
			}
		}
	}

	s.mu.Lock()
	for _, id := range evict {
		delete(s.sessions, id)
	}
	active := len(s.sessions)
	s.mu.Unlock()

	stats.Evicted = len(evict)
	s.metrics.SessionsActive.Set(float64(active))

	if stats.Abandoned > 0 || stats.TimedOut > 0 || stats.Evicted > 0 {
		s.logger.Logger().Info("Swept sessions",
			"abandoned", stats.Abandoned,
			"timed_out", stats.TimedOut,
			"evicted", stats.Evicted,
			"active", active)
	}
	return stats
}

func (s *sessionService) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *sessionService) publish(ctx context.Context, event *events.AssessmentEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Logger().Warn("Failed to publish event", "type", event.Type, "error", err)
	}
}

func startFailReason(err error) string {
	switch {
	case IsGeneration(err):
		return "generation"
	case IsResource(err):
		return "resource"
	case IsValidation(err):
		return "validation"
	default:
		return "other"
	}
}
