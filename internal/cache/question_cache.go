package cache

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/SAP-F-2025/skills-assessment-service/internal/models"
)

// KeyLength is the number of leading characters of a role description used as cache key.
const KeyLength = 50

// QuestionCache maps a role description prefix to its generated question set.
// Implementations never overwrite an existing key.
type QuestionCache interface {
	Get(ctx context.Context, key string) ([]models.QuestionItem, bool, error)
	// AddIfAbsent stores items under key unless the key exists; it reports whether a write happened.
	AddIfAbsent(ctx context.Context, key string, items []models.QuestionItem) (bool, error)
}

// Key normalizes a role description into its cache key.
func Key(roleDescription string) string {
	trimmed := strings.TrimSpace(roleDescription)
	if utf8.RuneCountInString(trimmed) <= KeyLength {
		return trimmed
	}

	runes := []rune(trimmed)
	return string(runes[:KeyLength])
}

func cloneItems(items []models.QuestionItem) []models.QuestionItem {
	out := make([]models.QuestionItem, len(items))
	for i, item := range items {
		options := make([]string, len(item.Options))
		copy(options, item.Options)
		item.Options = options
		out[i] = item
	}
	return out
}
