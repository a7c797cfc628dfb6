// Package classify turns a fetched mail into a normalized classification over
// the fixed label set.
package classify

import (
	"context"
	"errors"
	"math"
	"strings"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
)

// DefaultMaxChars caps the classifier input, counted in runes.
const DefaultMaxChars = 4000

var errNoScores = errors.New("classifier returned no usable scores")

// Adapter prepares classifier input and normalizes its output.
type Adapter struct {
	classifier out.Classifier
	maxChars   int
	labels     []string
	log        *logger.Logger
}

type Option func(*Adapter)

func WithMaxChars(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxChars = n
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

func NewAdapter(classifier out.Classifier, opts ...Option) *Adapter {
	a := &Adapter{
		classifier: classifier,
		maxChars:   DefaultMaxChars,
		labels:     domain.LabelKeys(),
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Classify returns a ClassificationError when the capability fails or yields
// nothing usable.
func (a *Adapter) Classify(ctx context.Context, m domain.FetchedMail) (domain.Classification, error) {
	text := InputText(m, a.maxChars)

	raw, err := a.classifier.Classify(ctx, text, a.labels)
	if err != nil {
		return domain.Classification{}, apperr.ClassificationError(m.ID, err)
	}

	c, err := Normalize(raw)
	if err != nil {
		return domain.Classification{}, apperr.ClassificationError(m.ID, err)
	}

	a.log.WithFields(map[string]any{
		"mail_id":    m.ID,
		"class":      c.PredictedClass,
		"confidence": c.ConfidenceScore,
	}).Debug("[Classify] mail classified")
	return c, nil
}

// InputText is the mail body, or subject and snippet when no body could be
// extracted, truncated to maxChars runes.
func InputText(m domain.FetchedMail, maxChars int) string {
	text := m.Body
	if text == "" || text == domain.ContentUnavailable {
		text = strings.TrimSpace(m.Subject + "\n" + m.Snippet)
	}
	return truncateRunes(text, maxChars)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Normalize keeps scores of known labels only, clamps them to [0,1] and picks
// the highest one. Ties go to the label listed first in domain.Labels.
func Normalize(raw *domain.Classification) (domain.Classification, error) {
	if raw == nil {
		return domain.Classification{}, errNoScores
	}

	scores := make(map[string]float64, len(raw.AllScores))
	for name, score := range raw.AllScores {
		label, ok := domain.ResolveLabel(name)
		if !ok || math.IsNaN(score) {
			continue
		}
		scores[string(label)] = clamp(score)
	}
	if len(scores) == 0 {
		return domain.Classification{}, errNoScores
	}

	best, bestScore := "", -1.0
	for _, l := range domain.Labels {
		score, ok := scores[string(l.Key)]
		if ok && score > bestScore {
			best, bestScore = string(l.Key), score
		}
	}

	return domain.Classification{
		PredictedClass:  best,
		ConfidenceScore: bestScore,
		AllScores:       scores,
	}, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
