package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisHashKey = "assessment:questions"

// RedisQuestionCache stores every question set as a field of one Redis hash.
// HSETNX gives add-if-absent semantics across service instances.
type RedisQuestionCache struct {
	client  redis.UniversalClient
	hashKey string
	logger  *slog.Logger
}

func NewRedisQuestionCache(client redis.UniversalClient, hashKey string, logger *slog.Logger) *RedisQuestionCache {
	if hashKey == "" {
		hashKey = DefaultRedisHashKey
	}
	return &RedisQuestionCache{
		client:  client,
		hashKey: hashKey,
		logger:  logger,
	}
}

func (r *RedisQuestionCache) Get(ctx context.Context, key string) ([]models.QuestionItem, bool, error) {
	raw, err := r.client.HGet(ctx, r.hashKey, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read question set: %w", err)
	}

	var items []models.QuestionItem
	if err := json.Unmarshal(raw, &items); err != nil {
		r.logger.Warn("Discarding undecodable cached question set", "key", key, "error", err)
		return nil, false, nil
	}

	return items, true, nil
}

func (r *RedisQuestionCache) AddIfAbsent(ctx context.Context, key string, items []models.QuestionItem) (bool, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return false, fmt.Errorf("failed to encode question set: %w", err)
	}

	added, err := r.client.HSetNX(ctx, r.hashKey, key, raw).Result()
	if err != nil {
		return false, fmt.Errorf("failed to store question set: %w", err)
	}

	if !added {
		r.logger.Debug("Question set already cached, keeping existing entry", "key", key)
	}
	return added, nil
}
