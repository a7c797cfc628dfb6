package out

import (
	"context"
	"time"

	"inbox_server/core/domain"
)

// MailRepository persists mail records keyed by provider id.
type MailRepository interface {
	// FindByID returns nil, nil when the id is absent.
	FindByID(ctx context.Context, id string) (*domain.MailRecord, error)
	// ExistingIDs returns the subset of ids present in the store.
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	Insert(ctx context.Context, mail *domain.MailRecord) error
	// Update replaces every mutable field of the stored record.
	Update(ctx context.Context, mail *domain.MailRecord) error
	// Delete returns the number of removed records (0 or 1).
	Delete(ctx context.Context, id string) (int64, error)
	// List returns mails of one category, or all when category is empty,
	// newest first.
	List(ctx context.Context, category string) ([]*domain.MailRecord, error)
}

// TombstoneRepository persists deleted mail ids.
type TombstoneRepository interface {
	IDs(ctx context.Context) (map[string]struct{}, error)
	// Upsert records the id, refreshing deleted_at if it already exists.
	Upsert(ctx context.Context, mailID string, deletedAt time.Time) error
}

// SessionRepository stores the connected mailbox session.
type SessionRepository interface {
	Save(ctx context.Context, s *domain.Session) error
	// Current returns nil, nil when no mailbox is connected.
	Current(ctx context.Context) (*domain.Session, error)
}
