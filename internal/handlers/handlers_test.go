package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/SAP-F-2025/skills-assessment-service/internal/errors"
	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/proctoring"
	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/skills-assessment-service/internal/services"
	"github.com/SAP-F-2025/skills-assessment-service/internal/utils"
	"github.com/SAP-F-2025/skills-assessment-service/internal/validator"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Start(ctx context.Context, applicationID, jobDescription string) (*services.StartedSession, error) {
	args := m.Called(ctx, applicationID, jobDescription)
	started, _ := args.Get(0).(*services.StartedSession)
	return started, args.Error(1)
}

func (m *MockSessionService) Get(sessionID string) (*services.TestSession, error) {
	args := m.Called(sessionID)
	session, _ := args.Get(0).(*services.TestSession)
	return session, args.Error(1)
}

func (m *MockSessionService) snapshot(args mock.Arguments) (*models.SessionSnapshot, error) {
	snapshot, _ := args.Get(0).(*models.SessionSnapshot)
	return snapshot, args.Error(1)
}

func (m *MockSessionService) Snapshot(sessionID string) (*models.SessionSnapshot, error) {
	return m.snapshot(m.Called(sessionID))
}

func (m *MockSessionService) Tick(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	return m.snapshot(m.Called(ctx, sessionID))
}

func (m *MockSessionService) SelectAnswer(sessionID string, questionIndex, option int) (*models.SessionSnapshot, error) {
	return m.snapshot(m.Called(sessionID, questionIndex, option))
}

func (m *MockSessionService) Next(sessionID string) (*models.SessionSnapshot, error) {
	return m.snapshot(m.Called(sessionID))
}

func (m *MockSessionService) Previous(sessionID string) (*models.SessionSnapshot, error) {
	return m.snapshot(m.Called(sessionID))
}

func (m *MockSessionService) Submit(ctx context.Context, sessionID string) (*models.TestOutcome, error) {
	args := m.Called(ctx, sessionID)
	outcome, _ := args.Get(0).(*models.TestOutcome)
	return outcome, args.Error(1)
}

func (m *MockSessionService) Abort(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockSessionService) Sweep(ctx context.Context) services.SweepStats {
	return m.Called(ctx).Get(0).(services.SweepStats)
}

func (m *MockSessionService) Active() int {
	return m.Called().Int(0)
}

type MockResultService struct {
	mock.Mock
}

func (m *MockResultService) GetResult(ctx context.Context, applicationID string) (*models.TestResult, error) {
	args := m.Called(ctx, applicationID)
	result, _ := args.Get(0).(*models.TestResult)
	return result, args.Error(1)
}

func (m *MockResultService) ListResults(ctx context.Context, filters repositories.TestResultFilters) ([]*models.TestResult, int64, error) {
	args := m.Called(ctx, filters)
	results, _ := args.Get(0).([]*models.TestResult)
	return results, args.Get(1).(int64), args.Error(2)
}

func (m *MockResultService) ExportResultsToExcel(ctx context.Context, filters repositories.TestResultFilters) ([]byte, error) {
	args := m.Called(ctx, filters)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type stubTokenParser struct {
	claims *casdoorsdk.Claims
	err    error
}

func (s stubTokenParser) ParseJwtToken(string) (*casdoorsdk.Claims, error) {
	return s.claims, s.err
}

type testServer struct {
	router   *gin.Engine
	sessions *MockSessionService
	results  *MockResultService
	hub      *proctoring.FrameHub
}

func newTestServer(t *testing.T, auth TokenParser) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub := proctoring.NewFrameHub(proctoring.FrameHubConfig{MaxStreams: 4})
	t.Cleanup(hub.Close)

	ts := &testServer{
		router:   gin.New(),
		sessions: new(MockSessionService),
		results:  new(MockResultService),
		hub:      hub,
	}
	ts.router.Use(utils.ContextLogger(logger))

	manager := NewHandlerManager(ts.sessions, ts.results, hub, auth, validator.New(), logger)
	manager.SetupRoutes(ts.router)
	return ts
}

func (ts *testServer) do(method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestStartSession(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		ts := newTestServer(t, nil)
		started := &services.StartedSession{
			Snapshot: models.SessionSnapshot{
				SessionID:        "s-1",
				ApplicationID:    "app-1",
				Status:           models.SessionInProgress,
				TotalQuestions:   10,
				RemainingSeconds: 600,
			},
		}
		ts.sessions.On("Start", mock.Anything, "app-1", "Backend Go engineer").Return(started, nil)

		w := ts.do(http.MethodPost, "/api/v1/sessions",
			strings.NewReader(`{"application_id":"app-1","job_description":"Backend Go engineer"}`))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotEmpty(t, w.Header().Get(utils.RequestIDHeader))

		var body map[string]map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "s-1", body["session"]["session_id"])
		assert.EqualValues(t, 600, body["session"]["remaining_seconds"])
		ts.sessions.AssertExpectations(t)
	})

	t.Run("blank job description", func(t *testing.T) {
		ts := newTestServer(t, nil)

		w := ts.do(http.MethodPost, "/api/v1/sessions",
			strings.NewReader(`{"application_id":"app-1","job_description":"   "}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
		ts.sessions.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("generation failure", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.sessions.On("Start", mock.Anything, "app-1", "Data engineer").
			Return(nil, &services.GenerationError{Key: "Data engineer", Rejected: 7})

		w := ts.do(http.MethodPost, "/api/v1/sessions",
			strings.NewReader(`{"application_id":"app-1","job_description":"Data engineer"}`))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "QUESTION_GENERATION_FAILED", decodeError(t, w).Code)
	})

	t.Run("camera unavailable", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.sessions.On("Start", mock.Anything, "app-1", "Data engineer").
			Return(nil, &proctoring.ResourceError{Resource: "camera", Err: proctoring.ErrStreamLimit})

		w := ts.do(http.MethodPost, "/api/v1/sessions",
			strings.NewReader(`{"application_id":"app-1","job_description":"Data engineer"}`))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "CAMERA_UNAVAILABLE", decodeError(t, w).Code)
	})
}

func TestNavigation(t *testing.T) {
	t.Run("next without answer is rejected", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.sessions.On("Next", "s-1").Return(nil,
			apperrors.NewValidationErrorWithRule("answer", "select an answer before continuing", apperrors.RuleAnswerRequired, 0))

		w := ts.do(http.MethodPost, "/api/v1/sessions/s-1/next", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		details, ok := resp.Details.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, apperrors.RuleAnswerRequired, details["rule"])
	})

	t.Run("unknown session", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.sessions.On("Previous", "missing").Return(nil, services.ErrSessionNotFound)

		w := ts.do(http.MethodPost, "/api/v1/sessions/missing/previous", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "SESSION_NOT_FOUND", decodeError(t, w).Code)
	})

	t.Run("select answer", func(t *testing.T) {
		ts := newTestServer(t, nil)
		selected := 2
		ts.sessions.On("SelectAnswer", "s-1", 3, 2).
			Return(&models.SessionSnapshot{SessionID: "s-1", CurrentIndex: 3, CurrentAnswer: &selected}, nil)

		w := ts.do(http.MethodPut, "/api/v1/sessions/s-1/answers/3", strings.NewReader(`{"option":2}`))

		assert.Equal(t, http.StatusOK, w.Code)
		ts.sessions.AssertExpectations(t)
	})

	t.Run("select answer requires option", func(t *testing.T) {
		ts := newTestServer(t, nil)

		w := ts.do(http.MethodPut, "/api/v1/sessions/s-1/answers/0", strings.NewReader(`{}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative index", func(t *testing.T) {
		ts := newTestServer(t, nil)

		w := ts.do(http.MethodPut, "/api/v1/sessions/s-1/answers/-1", strings.NewReader(`{"option":0}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_PARAMETER", decodeError(t, w).Code)
	})
}

func TestSubmit(t *testing.T) {
	t.Run("returns outcome", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.sessions.On("Submit", mock.Anything, "s-1").Return(&models.TestOutcome{
			ApplicationID:  "app-1",
			Score:          0.7,
			ScorePercent:   70,
			CorrectCount:   7,
			TotalQuestions: 10,
			EndReason:      models.EndReasonSubmitted,
			Verdict:        models.VerdictGood,
		}, nil)

		w := ts.do(http.MethodPost, "/api/v1/sessions/s-1/submit", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var outcome models.TestOutcome
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
		assert.Equal(t, 7, outcome.CorrectCount)
		assert.Equal(t, models.VerdictGood, outcome.Verdict)
	})

	t.Run("persistence failure is retryable", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.sessions.On("Submit", mock.Anything, "s-1").
			Return(nil, &services.PersistenceError{ApplicationID: "app-1", Err: errors.New("connection reset")})

		w := ts.do(http.MethodPost, "/api/v1/sessions/s-1/submit", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, "RESULT_NOT_SAVED", resp.Code)
		assert.Equal(t, map[string]interface{}{"retryable": true}, resp.Details)
	})

	t.Run("expired session", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.sessions.On("Submit", mock.Anything, "s-1").Return(nil, services.ErrSessionAbandoned)

		w := ts.do(http.MethodPost, "/api/v1/sessions/s-1/submit", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestAbort(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.sessions.On("Abort", mock.Anything, "s-1").Return(nil)
	ts.sessions.On("Abort", mock.Anything, "s-2").Return(services.ErrSessionCompleted)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/v1/sessions/s-1", nil).Code)
	assert.Equal(t, http.StatusConflict, ts.do(http.MethodDelete, "/api/v1/sessions/s-2", nil).Code)
}

func TestPushFrame(t *testing.T) {
	ts := newTestServer(t, nil)
	camera, err := ts.hub.Acquire(context.Background(), "s-1")
	require.NoError(t, err)
	defer camera.Release()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	assert.Equal(t, http.StatusAccepted,
		ts.do(http.MethodPost, "/api/v1/sessions/s-1/frames", bytes.NewReader(buf.Bytes())).Code)
	assert.Equal(t, http.StatusBadRequest,
		ts.do(http.MethodPost, "/api/v1/sessions/s-1/frames", strings.NewReader("not an image")).Code)
	assert.Equal(t, http.StatusNotFound,
		ts.do(http.MethodPost, "/api/v1/sessions/other/frames", bytes.NewReader(buf.Bytes())).Code)
}

func TestResults(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.results.On("GetResult", mock.Anything, "app-9").Return(nil, services.ErrResultNotFound)

		w := ts.do(http.MethodGet, "/api/v1/results/app-9", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "RESULT_NOT_FOUND", decodeError(t, w).Code)
	})

	t.Run("list applies filters", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.results.On("ListResults", mock.Anything, mock.MatchedBy(func(f repositories.TestResultFilters) bool {
			return f.MinScore != nil && *f.MinScore == 60 && f.Limit == 5
		})).Return([]*models.TestResult{{ApplicationID: "app-1", Score: 80}}, int64(1), nil)

		w := ts.do(http.MethodGet, "/api/v1/results?min_score=60&limit=5", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		ts.results.AssertExpectations(t)
	})

	t.Run("export", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.results.On("ExportResultsToExcel", mock.Anything, mock.Anything).Return([]byte("xlsx-bytes"), nil)

		w := ts.do(http.MethodGet, "/api/v1/results/export", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
		assert.Equal(t, "xlsx-bytes", w.Body.String())
	})
}

func TestAuthMiddleware(t *testing.T) {
	claims := &casdoorsdk.Claims{}
	claims.Id = "user-1"
	claims.Owner = "sap"
	claims.Name = "hr"

	t.Run("missing token", func(t *testing.T) {
		ts := newTestServer(t, stubTokenParser{claims: claims})

		w := ts.do(http.MethodGet, "/api/v1/sessions/s-1", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		ts.sessions.AssertNotCalled(t, "Snapshot", mock.Anything)
	})

	t.Run("invalid token", func(t *testing.T) {
		ts := newTestServer(t, stubTokenParser{err: errors.New("token expired")})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1", nil)
		req.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()

		ts.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		ts := newTestServer(t, stubTokenParser{claims: claims})
		ts.sessions.On("Snapshot", "s-1").Return(&models.SessionSnapshot{SessionID: "s-1"}, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s-1", nil)
		req.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()

		ts.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		ts := newTestServer(t, stubTokenParser{err: errors.New("unused")})

		assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", nil).Code)
	})
}
