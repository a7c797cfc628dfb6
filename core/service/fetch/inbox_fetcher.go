// Package fetch pulls recent messages from the mailbox provider and turns them
// into normalized mails ready for classification.
package fetch

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/core/service/extract"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
)

const (
	DefaultWindowDays  = 7
	DefaultMaxResults  = 100
	DefaultConcurrency = 1
)

// Fetcher lists one page of message ids for a time window and retrieves each
// message. A message that cannot be fetched is logged and skipped.
type Fetcher struct {
	provider    out.MailboxProvider
	extractor   *extract.Extractor
	maxResults  int
	concurrency int
	now         func() time.Time
	log         *logger.Logger
}

type Option func(*Fetcher)

func WithMaxResults(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxResults = n
		}
	}
}

// WithConcurrency bounds the number of in-flight GetMessage calls.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

func WithLogger(l *logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

func NewFetcher(provider out.MailboxProvider, extractor *extract.Extractor, opts ...Option) *Fetcher {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	f := &Fetcher{
		provider:    provider,
		extractor:   extractor,
		maxResults:  DefaultMaxResults,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		log:         logger.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchRecent returns the mails received in the last windowDays days, in
// provider order. Only a listing failure or cancellation is returned as an
// error; per-message failures are counted in the report.
func (f *Fetcher) FetchRecent(ctx context.Context, windowDays int) ([]domain.FetchedMail, domain.FetchReport, error) {
	var report domain.FetchReport
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	after := f.now().AddDate(0, 0, -windowDays)
	ids, err := f.provider.ListMessageIDs(ctx, after, f.maxResults)
	if err != nil {
		return nil, report, apperr.Wrap(err, apperr.CodeFetchError, "failed to list messages", http.StatusBadGateway)
	}
	report.Listed = len(ids)
	if len(ids) == 0 {
		return []domain.FetchedMail{}, report, nil
	}

	// One slot per id keeps provider order whatever the completion order.
	slots := make([]*domain.FetchedMail, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			raw, err := f.provider.GetMessage(gctx, id)
			if err != nil {
				if ctx.Err() == nil {
					f.log.WithError(apperr.FetchError(id, err)).Warn("[Fetcher] skipping message %s", id)
				}
				return nil
			}
			m := f.Normalize(raw)
			slots[i] = &m
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	mails := make([]domain.FetchedMail, 0, len(ids))
	for _, m := range slots {
		if m == nil {
			report.Failed++
			continue
		}
		mails = append(mails, *m)
	}
	report.Fetched = len(mails)

	f.log.WithFields(map[string]any{
		"listed":  report.Listed,
		"fetched": report.Fetched,
		"failed":  report.Failed,
	}).Info("[Fetcher] fetched mails from the last %d days", windowDays)
	return mails, report, nil
}

// Normalize applies header defaults and extracts the body of raw.
func (f *Fetcher) Normalize(raw *domain.RawMessage) domain.FetchedMail {
	var sender, subject, date string
	for _, h := range raw.Headers {
		switch {
		case strings.EqualFold(h.Name, "From"):
			sender = h.Value
		case strings.EqualFold(h.Name, "Subject"):
			subject = h.Value
		case strings.EqualFold(h.Name, "Date"):
			date = h.Value
		}
	}

	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = domain.DefaultSender
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = strings.TrimSpace(raw.Snippet)
	}
	if subject == "" {
		subject = domain.DefaultSubject
	}

	return domain.FetchedMail{
		ID:      raw.ID,
		Body:    f.extractor.Extract(raw.Payload),
		Snippet: raw.Snippet,
		Sender:  sender,
		Subject: subject,
		Date:    f.parseDate(raw.ID, date),
	}
}

func (f *Fetcher) parseDate(id, value string) time.Time {
	if value = strings.TrimSpace(value); value != "" {
		if t, err := mail.ParseDate(value); err == nil {
			return t.UTC()
		}
		f.log.WithField("mail_id", id).Debug("[Fetcher] unparseable date %q, using now", value)
	}
	return f.now().UTC()
}
