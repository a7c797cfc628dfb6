package extract

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox_server/core/domain"
	"inbox_server/pkg/logger"
)

func enc(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func plain(s string) *domain.Leaf { return domain.NewLeaf("text/plain", enc(s)) }
func html(s string) *domain.Leaf  { return domain.NewLeaf("text/html", enc(s)) }

func newTestExtractor(opts ...Option) *Extractor {
	return NewExtractor(append([]Option{WithLogger(logger.Nop())}, opts...)...)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		root domain.MimePart
		want string
	}{
		{
			name: "single plain leaf",
			root: plain("Hello there"),
			want: "Hello there",
		},
		{
			name: "single html leaf is sanitized",
			root: html("<p>Hello <b>there</b></p>"),
			want: "Hello there",
		},
		{
			name: "alternative prefers plain",
			root: domain.NewContainer("multipart/alternative",
				html("<p>rich</p>"),
				plain("simple"),
			),
			want: "simple",
		},
		{
			name: "plain nested deeper than html still wins",
			root: domain.NewContainer("multipart/mixed",
				html("<p>shallow html</p>"),
				domain.NewContainer("multipart/related",
					domain.NewContainer("multipart/alternative",
						plain("deep plain"),
					),
				),
			),
			want: "deep plain",
		},
		{
			name: "first plain in order wins",
			root: domain.NewContainer("multipart/mixed",
				plain("first"),
				plain("second"),
			),
			want: "first",
		},
		{
			name: "first html kept when no plain",
			root: domain.NewContainer("multipart/mixed",
				domain.NewLeaf("image/png", enc("png")),
				html("<div>one</div>"),
				html("<div>two</div>"),
			),
			want: "one",
		},
		{
			name: "mime parameters and case ignored",
			root: domain.NewLeaf("Text/Plain; charset=UTF-8", enc("params")),
			want: "params",
		},
		{
			name: "unpadded payload",
			root: domain.NewLeaf("text/plain", base64.RawURLEncoding.EncodeToString([]byte("no padding!"))),
			want: "no padding!",
		},
		{
			name: "plain returned as is",
			root: plain("  line one\n\nline two  "),
			want: "  line one\n\nline two  ",
		},
		{
			name: "whitespace-only plain falls back to html",
			root: domain.NewContainer("multipart/alternative",
				plain("   \n"),
				html("<p>fallback</p>"),
			),
			want: "fallback",
		},
		{
			name: "html that sanitizes to nothing is not content",
			root: domain.NewContainer("multipart/alternative",
				html("<script>x()</script>"),
			),
			want: domain.ContentUnavailable,
		},
		{
			name: "only unsupported types",
			root: domain.NewContainer("multipart/mixed",
				domain.NewLeaf("application/pdf", enc("%PDF")),
				domain.NewLeaf("image/jpeg", enc("jpg")),
			),
			want: domain.ContentUnavailable,
		},
		{
			name: "leaf without data",
			root: domain.NewLeaf("text/plain", ""),
			want: domain.ContentUnavailable,
		},
		{
			name: "empty container",
			root: domain.NewContainer("multipart/mixed"),
			want: domain.ContentUnavailable,
		},
		{
			name: "nil root",
			root: nil,
			want: domain.ContentUnavailable,
		},
	}

	e := newTestExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.root))
		})
	}
}

func TestExtractRecoversFromDecodeErrors(t *testing.T) {
	e := newTestExtractor()

	t.Run("bad base64 plain falls back to html", func(t *testing.T) {
		root := domain.NewContainer("multipart/alternative",
			domain.NewLeaf("text/plain", "!!!not base64!!!"),
			html("<p>still here</p>"),
		)
		assert.Equal(t, "still here", e.Extract(root))
	})

	t.Run("invalid utf-8 is skipped", func(t *testing.T) {
		bad := base64.URLEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd})
		root := domain.NewContainer("multipart/mixed",
			domain.NewLeaf("text/plain", bad),
			plain("valid"),
		)
		assert.Equal(t, "valid", e.Extract(root))
	})

	t.Run("all leaves broken yields sentinel", func(t *testing.T) {
		root := domain.NewContainer("multipart/alternative",
			domain.NewLeaf("text/plain", "%%%"),
			domain.NewLeaf("text/html", "%%%"),
		)
		assert.Equal(t, domain.ContentUnavailable, e.Extract(root))
	})
}

// nest wraps leaf in depth containers, placing it at that depth.
func nest(depth int, leaf domain.MimePart) domain.MimePart {
	part := leaf
	for i := 0; i < depth; i++ {
		part = domain.NewContainer("multipart/mixed", part)
	}
	return part
}

func TestExtractDepthBound(t *testing.T) {
	e := newTestExtractor(WithMaxDepth(10))
	require.Equal(t, 10, e.MaxDepth())

	assert.Equal(t, "at bound", e.Extract(nest(10, plain("at bound"))))
	assert.Equal(t, domain.ContentUnavailable, e.Extract(nest(11, plain("too deep"))))
	assert.Equal(t, domain.ContentUnavailable, e.Extract(nest(10000, plain("way too deep"))))

	t.Run("over-depth subtree contributes nothing", func(t *testing.T) {
		root := domain.NewContainer("multipart/mixed",
			nest(20, plain("deep plain")),
			html("<p>shallow html</p>"),
		)
		assert.Equal(t, "shallow html", e.Extract(root))
	})

	t.Run("custom bound", func(t *testing.T) {
		shallow := newTestExtractor(WithMaxDepth(2))
		assert.Equal(t, "ok", shallow.Extract(nest(2, plain("ok"))))
		assert.Equal(t, domain.ContentUnavailable, shallow.Extract(nest(3, plain("no"))))
	})
}

func TestExtractSelfReferentialTree(t *testing.T) {
	e := newTestExtractor()

	loop := domain.NewContainer("multipart/mixed")
	loop.Children = []domain.MimePart{loop, html("<p>looped</p>")}

	assert.Equal(t, "looped", e.Extract(loop))
}

func TestExtractSkipsTypedNilParts(t *testing.T) {
	e := newTestExtractor()

	root := domain.NewContainer("multipart/mixed",
		(*domain.Leaf)(nil),
		(*domain.Container)(nil),
		domain.NewContainer("multipart/alternative", (*domain.Leaf)(nil), plain("survived")),
	)

	assert.NotPanics(t, func() {
		assert.Equal(t, "survived", e.Extract(root))
	})
	assert.Equal(t, domain.ContentUnavailable, e.Extract((*domain.Leaf)(nil)))
	assert.Equal(t, domain.ContentUnavailable, e.Extract((*domain.Container)(nil)))
}

func TestDecodeBody(t *testing.T) {
	got, err := DecodeBody(enc("Merhaba dünya"))
	require.NoError(t, err)
	assert.Equal(t, "Merhaba dünya", got)

	wrapped := enc("wrapped payload")
	got, err = DecodeBody(wrapped[:8] + "\r\n" + wrapped[8:])
	require.NoError(t, err)
	assert.Equal(t, "wrapped payload", got)

	_, err = DecodeBody("***")
	assert.Error(t, err)
}
