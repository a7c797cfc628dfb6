// Package extract pulls the readable body out of a message content tree.
package extract

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"

	"inbox_server/core/domain"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
)

// DefaultMaxDepth bounds the recursion over nested parts.
const DefaultMaxDepth = 10

// Extractor selects the best textual representation of a message: plain text
// anywhere in the tree wins over HTML, HTML is sanitized, and the
// domain.ContentUnavailable sentinel stands in for "nothing found".
type Extractor struct {
	maxDepth int
	log      *logger.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxDepth overrides DefaultMaxDepth. Non-positive values are ignored.
func WithMaxDepth(depth int) Option {
	return func(e *Extractor) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for decode diagnostics.
func WithLogger(l *logger.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxDepth: DefaultMaxDepth,
		log:      logger.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxDepth returns the configured depth bound.
func (e *Extractor) MaxDepth() int {
	return e.maxDepth
}

// candidates holds the first plain and first HTML text found in a subtree.
type candidates struct {
	plain string
	html  string
}

func (c *candidates) merge(o candidates) {
	if c.plain == "" {
		c.plain = o.plain
	}
	if c.html == "" {
		c.html = o.html
	}
}

// Extract never returns an empty string.
func (e *Extractor) Extract(root domain.MimePart) string {
	if root == nil {
		return domain.ContentUnavailable
	}
	found := e.walk(root, 0)
	switch {
	case found.plain != "":
		return found.plain
	case found.html != "":
		return found.html
	default:
		return domain.ContentUnavailable
	}
}

func (e *Extractor) walk(part domain.MimePart, depth int) candidates {
	if isNilPart(part) {
		return candidates{}
	}
	if depth > e.maxDepth {
		e.log.Debug("mime part %q beyond depth %d, ignored", part.ContentType(), e.maxDepth)
		return candidates{}
	}

	switch p := part.(type) {
	case *domain.Container:
		var found candidates
		for _, child := range p.Children {
			if isNilPart(child) {
				continue
			}
			found.merge(e.walk(child, depth+1))
			// An HTML hit does not stop the scan: a later or deeper plain
			// part still wins.
			if found.plain != "" {
				break
			}
		}
		return found
	case *domain.Leaf:
		return e.leaf(p)
	default:
		return candidates{}
	}
}

// isNilPart also catches typed nils such as (*domain.Leaf)(nil).
func isNilPart(part domain.MimePart) bool {
	switch p := part.(type) {
	case nil:
		return true
	case *domain.Container:
		return p == nil
	case *domain.Leaf:
		return p == nil
	default:
		return false
	}
}

func (e *Extractor) leaf(p *domain.Leaf) candidates {
	mimeType := domain.NormalizeMimeType(p.MimeType)
	if mimeType != domain.MimeTextPlain && mimeType != domain.MimeTextHTML {
		return candidates{}
	}
	if !p.HasData || p.Data == "" {
		return candidates{}
	}

	text, err := DecodeBody(p.Data)
	if err != nil {
		e.log.WithError(apperr.DecodeError(mimeType, err)).Warn("skipping undecodable %s part", mimeType)
		return candidates{}
	}

	if mimeType == domain.MimeTextPlain {
		if strings.TrimSpace(text) == "" {
			return candidates{}
		}
		return candidates{plain: text}
	}
	return candidates{html: Sanitize(text)}
}

var errInvalidUTF8 = errors.New("payload is not valid UTF-8")

// DecodeBody decodes a web-safe base64 payload into UTF-8 text. Padded and
// unpadded forms are accepted.
func DecodeBody(data string) (string, error) {
	data = strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', ' ', '\t':
			return -1
		}
		return r
	}, data)

	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		var rawErr error
		raw, rawErr = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if rawErr != nil {
			return "", err
		}
	}
	if !utf8.Valid(raw) {
		return "", errInvalidUTF8
	}
	return string(raw), nil
}
