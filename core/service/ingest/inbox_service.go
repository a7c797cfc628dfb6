// Package ingest runs the fetch, classify and reconcile stages as one pipeline
// and serves the mailbox queries around it.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/core/service/classify"
	"inbox_server/core/service/fetch"
	"inbox_server/core/service/reconcile"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
	"inbox_server/pkg/metrics"
)

// ClassifyErrorPolicy decides what a run does when one mail cannot be
// classified.
type ClassifyErrorPolicy string

const (
	// SkipOnClassifyError drops the mail and keeps going.
	SkipOnClassifyError ClassifyErrorPolicy = "skip"
	// AbortOnClassifyError fails the run before anything is written.
	AbortOnClassifyError ClassifyErrorPolicy = "abort"
)

// CategoryAll lists every stored mail.
const CategoryAll = "all"

type Service struct {
	fetcher    *fetch.Fetcher
	classifier *classify.Adapter
	reconciler *reconcile.Reconciler

	mails    out.MailRepository
	sessions out.SessionRepository
	account  out.MailboxAccount

	policy  ClassifyErrorPolicy
	timings *metrics.Stages
	now     func() time.Time
	log     *logger.Logger
}

type Option func(*Service)

func WithClassifyErrorPolicy(p ClassifyErrorPolicy) Option {
	return func(s *Service) {
		if p == SkipOnClassifyError || p == AbortOnClassifyError {
			s.policy = p
		}
	}
}

// WithTimings records per-stage durations of every run.
func WithTimings(t *metrics.Stages) Option {
	return func(s *Service) { s.timings = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(
	fetcher *fetch.Fetcher,
	classifier *classify.Adapter,
	reconciler *reconcile.Reconciler,
	mails out.MailRepository,
	sessions out.SessionRepository,
	account out.MailboxAccount,
	opts ...Option,
) *Service {
	s := &Service{
		fetcher:    fetcher,
		classifier: classifier,
		reconciler: reconciler,
		mails:      mails,
		sessions:   sessions,
		account:    account,
		policy:     SkipOnClassifyError,
		now:        time.Now,
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Ingest
// =============================================================================

// batch carries one run through the stages.
type batch struct {
	windowDays int
	fetched    []domain.FetchedMail
	records    []domain.MailRecord
	result     domain.IngestResult
}

// Run fetches the last windowDays days of mail, classifies every message and
// reconciles the batch into the store. The batch is fully built before the
// first write.
func (s *Service) Run(ctx context.Context, windowDays int) (domain.IngestResult, error) {
	start := s.now()
	b := &batch{windowDays: windowDays}

	if _, err := s.requireSession(ctx); err != nil {
		return b.result, err
	}

	stages := []struct {
		name string
		run  func(context.Context, *batch) error
	}{
		{"fetch", s.fetchStage},
		{"classify", s.classifyStage},
		{"reconcile", s.reconcileStage},
	}
	for _, st := range stages {
		stageStart := s.now()
		err := st.run(ctx, b)
		s.observe(st.name, s.now().Sub(stageStart))
		if err != nil {
			return b.result, err
		}
	}

	b.result.Duration = s.now().Sub(start)
	s.observe("run", b.result.Duration)
	s.log.WithContext(ctx).WithDuration(b.result.Duration).WithFields(map[string]any{
		"fetched":         b.result.Fetch.Fetched,
		"fetch_failed":    b.result.Fetch.Failed,
		"classify_failed": b.result.ClassifyFailed,
		"inserted":        b.result.Sync.Inserted,
		"updated":         b.result.Sync.Updated,
		"skipped":         b.result.Sync.Skipped,
	}).Info("[Ingest.Run] completed")
	return b.result, nil
}

func (s *Service) observe(stage string, d time.Duration) {
	if s.timings != nil {
		s.timings.Observe(stage, d)
	}
}

func (s *Service) fetchStage(ctx context.Context, b *batch) error {
	mails, report, err := s.fetcher.FetchRecent(ctx, b.windowDays)
	b.result.Fetch = report
	if err != nil {
		return err
	}
	b.fetched = mails
	return nil
}

func (s *Service) classifyStage(ctx context.Context, b *batch) error {
	b.records = make([]domain.MailRecord, 0, len(b.fetched))
	for _, m := range b.fetched {
		if err := ctx.Err(); err != nil {
			return err
		}

		c, err := s.classifier.Classify(ctx, m)
		if err != nil {
			if s.policy == AbortOnClassifyError {
				return err
			}
			s.log.WithContext(ctx).WithError(err).Warn("[Ingest.Run] dropping unclassified mail %s", m.ID)
			b.result.ClassifyFailed++
			continue
		}
		b.records = append(b.records, domain.NewMailRecord(m, c))
	}
	return nil
}

func (s *Service) reconcileStage(ctx context.Context, b *batch) error {
	if len(b.records) == 0 {
		return nil
	}
	res, err := s.reconciler.Reconcile(ctx, b.records)
	b.result.Sync = res
	return err
}

// =============================================================================
// Queries & mailbox actions
// =============================================================================

// Delete removes mails and tombstones their ids.
func (s *Service) Delete(ctx context.Context, ids []string) (domain.DeleteResult, error) {
	return s.reconciler.Delete(ctx, ids)
}

// ListByCategory returns stored mails of one label, or every mail for "all",
// newest first. Labels match by key or display name.
func (s *Service) ListByCategory(ctx context.Context, category string) ([]*domain.MailRecord, error) {
	if _, err := s.requireSession(ctx); err != nil {
		return nil, err
	}

	category = strings.TrimSpace(category)
	filter := ""
	if !strings.EqualFold(category, CategoryAll) {
		label, ok := domain.ResolveLabel(strings.ToLower(category))
		if !ok {
			label, ok = domain.ResolveLabel(category)
		}
		if !ok {
			return nil, apperr.BadRequest("unknown category: " + category)
		}
		filter = string(label)
	}

	mails, err := s.mails.List(ctx, filter)
	if err != nil {
		return nil, storeErr("list mails", err)
	}
	return mails, nil
}

// Connect reads the mailbox profile and stores it as the current session.
func (s *Service) Connect(ctx context.Context) (*domain.Session, error) {
	profile, err := s.account.GetProfile(ctx)
	if err != nil {
		return nil, apperr.ExternalError("mailbox", err)
	}

	session := &domain.Session{
		ID:            uuid.NewString(),
		EmailAddress:  profile.EmailAddress,
		MessagesTotal: profile.MessagesTotal,
		HistoryID:     profile.HistoryID,
		ConnectedAt:   s.now().UTC(),
	}
	if current, err := s.sessions.Current(ctx); err == nil && current != nil && current.EmailAddress == profile.EmailAddress {
		session.ID = current.ID
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, storeErr("save session", err)
	}
	s.log.WithContext(ctx).WithField("email", session.EmailAddress).Info("[Ingest.Connect] mailbox connected")
	return session, nil
}

// Send delivers a plain text mail and returns the provider message id.
func (s *Service) Send(ctx context.Context, to, subject, body string) (string, error) {
	if _, err := s.requireSession(ctx); err != nil {
		return "", err
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return "", apperr.BadRequest("recipient is required")
	}

	id, err := s.account.Send(ctx, &out.OutgoingMail{To: to, Subject: subject, Body: body})
	if err != nil {
		return "", apperr.ExternalError("mailbox", err)
	}
	s.log.WithContext(ctx).WithField("message_id", id).Info("[Ingest.Send] mail sent")
	return id, nil
}

// CurrentSession returns the connected session or an Unauthorized error.
func (s *Service) CurrentSession(ctx context.Context) (*domain.Session, error) {
	return s.requireSession(ctx)
}

func (s *Service) requireSession(ctx context.Context) (*domain.Session, error) {
	session, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, storeErr("load session", err)
	}
	if session == nil {
		return nil, apperr.Unauthorized("no mailbox connected")
	}
	return session, nil
}

func storeErr(op string, err error) error {
	if apperr.IsAppError(err) {
		return err
	}
	return apperr.StoreError(op, err)
}
