package in

import (
	"context"

	"inbox_server/core/domain"
)

// MailService is the inbound port served by the HTTP facade and the CLI.
type MailService interface {
	// Run ingests the last windowDays days of mail.
	Run(ctx context.Context, windowDays int) (domain.IngestResult, error)
	ListByCategory(ctx context.Context, category string) ([]*domain.MailRecord, error)
	Delete(ctx context.Context, ids []string) (domain.DeleteResult, error)

	Connect(ctx context.Context) (*domain.Session, error)
	CurrentSession(ctx context.Context) (*domain.Session, error)
	Send(ctx context.Context, to, subject, body string) (string, error)
}
