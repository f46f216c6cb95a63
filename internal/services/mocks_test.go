package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockFinalizer is a mock implementation of Finalizer
type MockFinalizer struct {
	mock.Mock
}

func (m *MockFinalizer) Finalize(ctx context.Context, req FinalizeRequest) (*models.TestOutcome, error) {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(context.Context, FinalizeRequest) *models.TestOutcome); ok {
		return fn(ctx, req), args.Error(1)
	}
	outcome, _ := args.Get(0).(*models.TestOutcome)
	return outcome, args.Error(1)
}

// MockGenerator is a mock implementation of llm.Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, roleDescription string) ([]json.RawMessage, error) {
	args := m.Called(ctx, roleDescription)
	raws, _ := args.Get(0).([]json.RawMessage)
	return raws, args.Error(1)
}

// MockQuestionProvider is a mock implementation of QuestionProvider
type MockQuestionProvider struct {
	mock.Mock
}

func (m *MockQuestionProvider) GetQuestions(ctx context.Context, roleDescription string) ([]models.QuestionItem, error) {
	args := m.Called(ctx, roleDescription)
	items, _ := args.Get(0).([]models.QuestionItem)
	return items, args.Error(1)
}

func (m *MockQuestionProvider) SelectForAttempt(ctx context.Context, roleDescription string) ([]models.QuestionItem, error) {
	args := m.Called(ctx, roleDescription)
	items, _ := args.Get(0).([]models.QuestionItem)
	return items, args.Error(1)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sampleQuestions builds n questions whose correct option is i%4.
func sampleQuestions(n int) []models.QuestionItem {
	items := make([]models.QuestionItem, n)
	for i := range items {
		items[i] = models.QuestionItem{
			Text:         fmt.Sprintf("Question %d", i+1),
			Options:      []string{"alpha", "beta", "gamma", "delta"},
			CorrectIndex: i % models.OptionsPerQuestion,
			Explanation:  "because",
		}
	}
	return items
}

func wrongOption(q models.QuestionItem) int {
	return (q.CorrectIndex + 1) % models.OptionsPerQuestion
}

func candidateJSON(text string, correct int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"question_text":%q,"options":["a","b","c","d"],"correct_answer":%d,"explanation":"why"}`,
		text, correct))
}

func stubOutcome(req FinalizeRequest) *models.TestOutcome {
	correct, score := Score(req.Questions, req.Responses)
	return &models.TestOutcome{
		ApplicationID:   req.ApplicationID,
		Score:           score,
		CorrectCount:    correct,
		TotalQuestions:  len(req.Questions),
		ViolationsCount: req.ViolationsCount,
		ViolationCounts: req.ViolationCounts,
		EndReason:       req.EndReason,
	}
}
