package services

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/SAP-F-2025/skills-assessment-service/internal/cache"
	apperrors "github.com/SAP-F-2025/skills-assessment-service/internal/errors"
	"github.com/SAP-F-2025/skills-assessment-service/internal/llm"
	"github.com/SAP-F-2025/skills-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/SAP-F-2025/skills-assessment-service/internal/validator"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultQuestionsPerAttempt = 10
	DefaultGenerationTimeout   = 90 * time.Second
)

type QuestionProviderConfig struct {
	Cache               cache.QuestionCache
	Generator           llm.Generator
	Validator           *validator.QuestionValidator
	Logger              *slog.Logger
	QuestionsPerAttempt int
	// GenerationTimeout bounds one shared generation; it does not follow any
	// single caller's context.
	GenerationTimeout time.Duration
	// Shuffle defaults to math/rand/v2 Shuffle.
	Shuffle func(n int, swap func(i, j int))
}

type questionProvider struct {
	cache      cache.QuestionCache
	generator  llm.Generator
	validator  *validator.QuestionValidator
	logger     *slog.Logger
	metrics    *metrics.Metrics
	perAttempt int
	timeout    time.Duration
	shuffle    func(n int, swap func(i, j int))
	group      singleflight.Group
}

func NewQuestionProvider(cfg QuestionProviderConfig) QuestionProvider {
	if cfg.QuestionsPerAttempt <= 0 {
		cfg.QuestionsPerAttempt = DefaultQuestionsPerAttempt
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if cfg.Shuffle == nil {
		cfg.Shuffle = rand.Shuffle
	}
	return &questionProvider{
		cache:      cfg.Cache,
		generator:  cfg.Generator,
		validator:  cfg.Validator,
		logger:     cfg.Logger,
		metrics:    metrics.NewMetrics(),
		perAttempt: cfg.QuestionsPerAttempt,
		timeout:    cfg.GenerationTimeout,
		shuffle:    cfg.Shuffle,
	}
}

// GetQuestions returns the full cached set for the role, generating it on a miss.
func (p *questionProvider) GetQuestions(ctx context.Context, roleDescription string) ([]models.QuestionItem, error) {
	key := cache.Key(roleDescription)
	if key == "" {
		return nil, newRuleError("job_description", "is required", apperrors.RuleNonEmpty, roleDescription)
	}

	items, found, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn("Question cache read failed, generating instead", "key", key, "error", err)
	} else if found && len(items) > 0 {
		p.metrics.QuestionCacheHits.Inc()
		p.logger.Debug("Question cache hit", "key", key, "count", len(items))
		return items, nil
	}

	p.metrics.QuestionCacheMisses.Inc()

	flight := p.group.DoChan(key, func() (interface{}, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return p.generate(genCtx, key, roleDescription)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-flight:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		p.logger.Debug("Joined in-flight question generation", "key", key)
	}

	generated := res.Val.([]models.QuestionItem)
	out := make([]models.QuestionItem, len(generated))
	copy(out, generated)
	return out, nil
}

func (p *questionProvider) generate(ctx context.Context, key, roleDescription string) ([]models.QuestionItem, error) {
	// A caller that missed just before the previous flight stored the set.
	if items, found, err := p.cache.Get(ctx, key); err == nil && found && len(items) > 0 {
		return items, nil
	}

	p.logger.Info("Generating questions", "key", key)

	raws, err := p.generator.Generate(ctx, roleDescription)
	if err != nil {
		p.metrics.GenerationFailures.Inc()
		return nil, &GenerationError{Key: key, Err: err}
	}

	valid, rejected := p.validator.FilterCandidates(raws)
	for _, r := range rejected {
		p.logger.Debug("Dropping invalid question candidate", "key", key, "position", r.Position, "reason", r.Err)
	}
	p.metrics.DroppedCandidates.Add(float64(len(rejected)))

	if len(valid) == 0 {
		p.metrics.GenerationFailures.Inc()
		return nil, &GenerationError{Key: key, Rejected: len(rejected)}
	}

	added, err := p.cache.AddIfAbsent(ctx, key, valid)
	switch {
	case err != nil:
		p.logger.Error("Failed to cache generated questions", "key", key, "error", err)
	case !added:
		// Another instance cached this key first; serve the stored set.
		if existing, found, err := p.cache.Get(ctx, key); err == nil && found && len(existing) > 0 {
			return existing, nil
		}
	default:
		p.logger.Info("Cached generated questions", "key", key, "count", len(valid), "dropped", len(rejected))
	}

	return valid, nil
}

// SelectForAttempt shuffles the role's set and keeps at most the configured count.
func (p *questionProvider) SelectForAttempt(ctx context.Context, roleDescription string) ([]models.QuestionItem, error) {
	items, err := p.GetQuestions(ctx, roleDescription)
	if err != nil {
		return nil, err
	}

	selected := make([]models.QuestionItem, len(items))
	copy(selected, items)
	p.shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})

	if len(selected) < p.perAttempt {
		p.logger.Warn("Fewer questions available than requested",
			"key", cache.Key(roleDescription),
			"available", len(selected),
			"requested", p.perAttempt)
		return selected, nil
	}

	return selected[:p.perAttempt], nil
}
