package domain

import "strings"

// MIME types the extractor understands.
const (
	MimeTextPlain = "text/plain"
	MimeTextHTML  = "text/html"
	mimeMultipart = "multipart/"
)

// MimePart is one node of a message content tree. It is either a *Container
// or a *Leaf; callers dispatch with a type switch.
type MimePart interface {
	ContentType() string
	mimePart()
}

// Container is a multipart node. Children keep provider order.
type Container struct {
	MimeType string
	Children []MimePart
}

// Leaf is a content-carrying node. Data is the web-safe base64 payload as
// delivered by the provider; HasData is false when the part has no body.
type Leaf struct {
	MimeType string
	Data     string
	HasData  bool
}

func (c *Container) ContentType() string { return c.MimeType }
func (l *Leaf) ContentType() string      { return l.MimeType }

func (*Container) mimePart() {}
func (*Leaf) mimePart()      {}

// NewLeaf builds a leaf; an empty payload counts as no data.
func NewLeaf(mimeType, data string) *Leaf {
	return &Leaf{MimeType: mimeType, Data: data, HasData: data != ""}
}

// NewContainer builds a container node.
func NewContainer(mimeType string, children ...MimePart) *Container {
	return &Container{MimeType: mimeType, Children: children}
}

// NormalizeMimeType lowercases and drops parameters ("Text/HTML; charset=x" -> "text/html").
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// IsMultipart reports whether the type names a multipart container.
func IsMultipart(mimeType string) bool {
	return strings.HasPrefix(NormalizeMimeType(mimeType), mimeMultipart)
}
