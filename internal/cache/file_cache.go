package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
)

// FileQuestionCache keeps the question sets in a JSON document shaped as
// {"<prefix>": [items...]}. The file is read once at construction and
// rewritten on every successful add.
type FileQuestionCache struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string][]models.QuestionItem
}

func NewFileQuestionCache(path string, logger *slog.Logger) (*FileQuestionCache, error) {
	c := &FileQuestionCache{
		path:    path,
		logger:  logger,
		entries: make(map[string][]models.QuestionItem),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("Question cache file not found, starting empty", "path", path)
			return c, nil
		}
		return nil, fmt.Errorf("failed to read question cache: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			return nil, fmt.Errorf("failed to decode question cache %s: %w", path, err)
		}
	}

	logger.Info("Loaded question cache", "path", path, "keys", len(c.entries))
	return c, nil
}

func (c *FileQuestionCache) Get(_ context.Context, key string) ([]models.QuestionItem, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return cloneItems(items), true, nil
}

func (c *FileQuestionCache) AddIfAbsent(_ context.Context, key string, items []models.QuestionItem) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return false, nil
	}

	c.entries[key] = cloneItems(items)
	if err := c.persistLocked(); err != nil {
		delete(c.entries, key)
		return false, err
	}

	return true, nil
}

// Len returns the number of cached keys.
func (c *FileQuestionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *FileQuestionCache) persistLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode question cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".questions-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write question cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close question cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace question cache: %w", err)
	}

	return nil
}
