package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/logger"
)

// CachedClassifier decorates a Classifier with a result cache keyed by a hash
// of the input. Cache failures fall through to the wrapped classifier.
type CachedClassifier struct {
	inner out.Classifier
	cache out.ClassificationCache
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedClassifier(inner out.Classifier, cache out.ClassificationCache, ttl time.Duration) *CachedClassifier {
	return &CachedClassifier{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.Default(),
	}
}

// CacheKey hashes the text together with the candidate labels.
func CacheKey(text string, labels []string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(labels, ",")))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "classify:" + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedClassifier) Classify(ctx context.Context, text string, labels []string) (*domain.Classification, error) {
	key := CacheKey(text, labels)

	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).Warn("[CachedClassifier] cache read failed")
	} else if found {
		return cached, nil
	}

	result, err := c.inner.Classify(ctx, text, labels)
	if err != nil {
		return nil, err
	}

	if result == nil {
		return nil, nil
	}
	if err := c.cache.Set(ctx, key, result, c.ttl); err != nil {
		c.log.WithError(err).Warn("[CachedClassifier] cache write failed")
	}
	return result, nil
}
