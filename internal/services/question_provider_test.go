package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/SAP-F-2025/skills-assessment-service/internal/cache"
	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const roleDescription = "Senior Go engineer building distributed payment systems with Kafka and Postgres"

func newTestProvider(t *testing.T, generator *MockGenerator, perAttempt int) (QuestionProvider, *cache.FileQuestionCache) {
	t.Helper()
	store, err := cache.NewFileQuestionCache(filepath.Join(t.TempDir(), "questions.json"), testLogger())
	require.NoError(t, err)

	provider := NewQuestionProvider(QuestionProviderConfig{
		Cache:               store,
		Generator:           generator,
		Validator:           validator.New().Question(),
		Logger:              testLogger(),
		QuestionsPerAttempt: perAttempt,
		Shuffle:             func(int, func(i, j int)) {},
	})
	return provider, store
}

func validCandidates(n int) []json.RawMessage {
	raws := make([]json.RawMessage, n)
	for i := range raws {
		raws[i] = candidateJSON(fmt.Sprintf("Q%d", i), i%4)
	}
	return raws
}

func TestQuestionProvider_GetQuestions(t *testing.T) {
	ctx := context.Background()

	t.Run("miss generates, validates and caches", func(t *testing.T) {
		generator := new(MockGenerator)
		raws := append(validCandidates(3),
			json.RawMessage(`{"question_text":"bad","options":["a","b"],"correct_answer":0,"explanation":"x"}`),
			json.RawMessage(`{"question_text":"no answer","options":["a","b","c","d"],"explanation":"x"}`),
		)
		generator.On("Generate", mock.Anything, roleDescription).Return(raws, nil).Once()
		provider, store := newTestProvider(t, generator, 10)

		items, err := provider.GetQuestions(ctx, roleDescription)
		require.NoError(t, err)
		assert.Len(t, items, 3)
		assert.Equal(t, 1, store.Len())

		cached, found, err := store.Get(ctx, cache.Key(roleDescription))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, items, cached)

		t.Run("hit skips generation", func(t *testing.T) {
			again, err := provider.GetQuestions(ctx, "  "+roleDescription+" with extra trailing words")
			require.NoError(t, err)
			assert.Equal(t, items, again)
			generator.AssertNumberOfCalls(t, "Generate", 1)
		})
	})

	t.Run("zero valid candidates fails without caching", func(t *testing.T) {
		generator := new(MockGenerator)
		generator.On("Generate", mock.Anything, roleDescription).
			Return([]json.RawMessage{json.RawMessage(`{"question_text":""}`)}, nil)
		provider, store := newTestProvider(t, generator, 10)

		_, err := provider.GetQuestions(ctx, roleDescription)
		require.Error(t, err)
		assert.True(t, IsGeneration(err))

		var genErr *GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, 1, genErr.Rejected)
		assert.Zero(t, store.Len())
	})

	t.Run("generator transport failure", func(t *testing.T) {
		generator := new(MockGenerator)
		boom := errors.New("upstream 503")
		generator.On("Generate", mock.Anything, roleDescription).Return(nil, boom)
		provider, store := newTestProvider(t, generator, 10)

		_, err := provider.GetQuestions(ctx, roleDescription)
		assert.True(t, IsGeneration(err))
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, store.Len())
	})

	t.Run("blank description is a validation error", func(t *testing.T) {
		generator := new(MockGenerator)
		provider, _ := newTestProvider(t, generator, 10)

		_, err := provider.GetQuestions(ctx, "   ")
		assert.True(t, IsValidation(err))
		generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("existing key is never overwritten", func(t *testing.T) {
		generator := new(MockGenerator)
		provider, store := newTestProvider(t, generator, 10)

		existing := sampleQuestions(2)
		added, err := store.AddIfAbsent(ctx, cache.Key(roleDescription), existing)
		require.NoError(t, err)
		require.True(t, added)

		items, err := provider.GetQuestions(ctx, roleDescription)
		require.NoError(t, err)
		assert.Equal(t, existing, items)
		generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})
}

func TestQuestionProvider_ConcurrentMissesShareOneGeneration(t *testing.T) {
	generator := new(MockGenerator)
	release := make(chan struct{})
	generator.On("Generate", mock.Anything, roleDescription).
		Run(func(mock.Arguments) { <-release }).
		Return(validCandidates(4), nil)
	provider, _ := newTestProvider(t, generator, 10)

	var wg sync.WaitGroup
	results := make([][]models.QuestionItem, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items, err := provider.GetQuestions(context.Background(), roleDescription)
			assert.NoError(t, err)
			results[i] = items
		}(i)
	}

	// Callers that arrive after the first generation finished read the cache.
	close(release)
	wg.Wait()

	for _, items := range results {
		assert.Len(t, items, 4)
	}
	generator.AssertNumberOfCalls(t, "Generate", 1)
}

func TestQuestionProvider_CancelledCallerDoesNotFailSharedGeneration(t *testing.T) {
	generator := new(MockGenerator)
	entered := make(chan struct{})
	release := make(chan struct{})
	genCtxErr := make(chan error, 1)
	generator.On("Generate", mock.Anything, roleDescription).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
			genCtxErr <- args.Get(0).(context.Context).Err()
		}).
		Return(validCandidates(4), nil).Once()
	provider, store := newTestProvider(t, generator, 10)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := provider.GetQuestions(firstCtx, roleDescription)
		firstDone <- err
	}()
	<-entered

	secondDone := make(chan []models.QuestionItem, 1)
	go func() {
		items, err := provider.GetQuestions(context.Background(), roleDescription)
		assert.NoError(t, err)
		secondDone <- items
	}()

	cancel()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	assert.Len(t, <-secondDone, 4)
	assert.NoError(t, <-genCtxErr)

	cached, found, err := store.Get(context.Background(), cache.Key(roleDescription))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, cached, 4)
	generator.AssertNumberOfCalls(t, "Generate", 1)
}

func TestQuestionProvider_SelectForAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("takes the configured count", func(t *testing.T) {
		generator := new(MockGenerator)
		generator.On("Generate", mock.Anything, roleDescription).Return(validCandidates(14), nil)
		provider, _ := newTestProvider(t, generator, 10)

		items, err := provider.SelectForAttempt(ctx, roleDescription)
		require.NoError(t, err)
		assert.Len(t, items, 10)
		for _, item := range items {
			assert.Len(t, item.Options, models.OptionsPerQuestion)
			assert.True(t, strings.HasPrefix(item.Text, "Q"))
		}
	})

	t.Run("shortfall proceeds with what is available", func(t *testing.T) {
		generator := new(MockGenerator)
		generator.On("Generate", mock.Anything, roleDescription).Return(validCandidates(6), nil)
		provider, _ := newTestProvider(t, generator, 10)

		items, err := provider.SelectForAttempt(ctx, roleDescription)
		require.NoError(t, err)
		assert.Len(t, items, 6)
	})

	t.Run("shuffle is applied to a copy", func(t *testing.T) {
		generator := new(MockGenerator)
		generator.On("Generate", mock.Anything, roleDescription).Return(validCandidates(3), nil)
		store, err := cache.NewFileQuestionCache(filepath.Join(t.TempDir(), "questions.json"), testLogger())
		require.NoError(t, err)

		provider := NewQuestionProvider(QuestionProviderConfig{
			Cache:     store,
			Generator: generator,
			Validator: validator.New().Question(),
			Logger:    testLogger(),
			Shuffle: func(n int, swap func(i, j int)) {
				for i := 0; i < n/2; i++ {
					swap(i, n-1-i)
				}
			},
		})

		items, err := provider.SelectForAttempt(ctx, roleDescription)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "Q2", items[0].Text)

		full, err := provider.GetQuestions(ctx, roleDescription)
		require.NoError(t, err)
		assert.Equal(t, "Q0", full[0].Text)
	})
}
