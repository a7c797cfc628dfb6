package out

import (
	"context"
	"time"

	"inbox_server/core/domain"
)

// Classifier is the classification model capability. labels is the candidate
// label set; the returned scores are keyed by label.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (*domain.Classification, error)
}

// ClassificationCache stores classifier results by input hash.
type ClassificationCache interface {
	Get(ctx context.Context, key string) (*domain.Classification, bool, error)
	Set(ctx context.Context, key string, c *domain.Classification, ttl time.Duration) error
}
