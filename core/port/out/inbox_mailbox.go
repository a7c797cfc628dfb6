package out

import (
	"context"
	"time"

	"inbox_server/core/domain"
)

// MailboxProvider is the outbound port to the mail provider.
type MailboxProvider interface {
	// ListMessageIDs returns at most max ids of messages received after the
	// given instant, newest first as the provider orders them.
	ListMessageIDs(ctx context.Context, after time.Time, max int) ([]string, error)
	// GetMessage returns the full message with its content tree.
	GetMessage(ctx context.Context, id string) (*domain.RawMessage, error)
}

// MailboxProfile is the connected account as reported by the provider.
type MailboxProfile struct {
	EmailAddress  string
	MessagesTotal int64
	HistoryID     uint64
}

// OutgoingMail is a plain text message to send.
type OutgoingMail struct {
	To      string
	Subject string
	Body    string
}

// MailboxAccount covers the provider calls outside the ingest path.
type MailboxAccount interface {
	GetProfile(ctx context.Context) (*MailboxProfile, error)
	Send(ctx context.Context, msg *OutgoingMail) (string, error)
}
