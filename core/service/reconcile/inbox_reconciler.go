// Package reconcile merges freshly fetched mail into the store while honoring
// the tombstones left by user deletions.
package reconcile

import (
	"context"
	"strings"
	"time"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
)

// Reconciler applies insert/update/skip decisions and the delete path.
type Reconciler struct {
	mails      out.MailRepository
	tombstones out.TombstoneRepository
	now        func() time.Time
	log        *logger.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock replaces time.Now for deleted_at and updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

func NewReconciler(mails out.MailRepository, tombstones out.TombstoneRepository, opts ...Option) *Reconciler {
	r := &Reconciler{
		mails:      mails,
		tombstones: tombstones,
		now:        time.Now,
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// =============================================================================
// Reconcile
// =============================================================================

// Plan decides the action for every record of batch, in order. A tombstoned id
// is always skipped; an id already stored, or inserted earlier in the same
// batch, is updated; anything else is inserted. The input sets are not
// modified.
func Plan(batch []domain.MailRecord, tombstones, existing map[string]struct{}) []domain.SyncAction {
	seen := make(map[string]struct{}, len(existing)+len(batch))
	for id := range existing {
		seen[id] = struct{}{}
	}

	actions := make([]domain.SyncAction, len(batch))
	for i, rec := range batch {
		if _, deleted := tombstones[rec.ID]; deleted {
			actions[i] = domain.SyncSkip
			continue
		}
		if _, ok := seen[rec.ID]; ok {
			actions[i] = domain.SyncUpdate
			continue
		}
		actions[i] = domain.SyncInsert
		seen[rec.ID] = struct{}{}
	}
	return actions
}

// Reconcile writes batch to the store. Tombstone and existence sets are
// snapshotted once before any write. The first store failure aborts the run;
// the returned result counts what was applied up to that point.
func (r *Reconciler) Reconcile(ctx context.Context, batch []domain.MailRecord) (domain.SyncResult, error) {
	var result domain.SyncResult
	if len(batch) == 0 {
		return result, nil
	}

	tombstones, err := r.tombstones.IDs(ctx)
	if err != nil {
		return result, storeErr("load tombstones", err)
	}

	ids := make([]string, 0, len(batch))
	for _, rec := range batch {
		ids = append(ids, rec.ID)
	}
	existing, err := r.mails.ExistingIDs(ctx, ids)
	if err != nil {
		return result, storeErr("load existing ids", err)
	}

	stamp := r.now().UTC()
	for i, action := range Plan(batch, tombstones, existing) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rec := batch[i]
		rec.UpdatedAt = stamp

		switch action {
		case domain.SyncSkip:
			r.log.WithField("mail_id", rec.ID).Debug("[Reconciler] skipping tombstoned mail")
			result.Skipped++
		case domain.SyncInsert:
			if err := r.mails.Insert(ctx, &rec); err != nil {
				return result, storeErr("insert mail", err)
			}
			result.Inserted++
		case domain.SyncUpdate:
			if err := r.mails.Update(ctx, &rec); err != nil {
				return result, storeErr("update mail", err)
			}
			result.Updated++
		}
	}

	r.log.WithFields(map[string]any{
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
	}).Info("[Reconciler] batch of %d reconciled", len(batch))
	return result, nil
}

// =============================================================================
// Delete
// =============================================================================

// Delete removes each id from the store and records a tombstone so a later
// sync never brings it back. Per-id problems are itemized in the result; only
// context cancellation is returned as an error.
func (r *Reconciler) Delete(ctx context.Context, ids []string) (domain.DeleteResult, error) {
	result := domain.DeleteResult{Failed: []domain.FailedID{}}

	for _, raw := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		id := strings.TrimSpace(raw)
		if id == "" {
			result.Failed = append(result.Failed, domain.FailedID{ID: raw, Reason: domain.ReasonInvalidID})
			continue
		}

		if reason := r.deleteOne(ctx, id); reason != "" {
			result.Failed = append(result.Failed, domain.FailedID{ID: id, Reason: reason})
			continue
		}
		result.DeletedCount++
	}

	r.log.WithFields(map[string]any{
		"deleted": result.DeletedCount,
		"failed":  len(result.Failed),
	}).Info("[Reconciler] delete request for %d ids processed", len(ids))
	return result, nil
}

// deleteOne returns an empty reason on success.
func (r *Reconciler) deleteOne(ctx context.Context, id string) string {
	log := r.log.WithField("mail_id", id)

	existing, err := r.mails.FindByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("[Reconciler] lookup failed")
		return storeReason(err)
	}
	if existing == nil {
		return domain.ReasonNotFound
	}

	// The tombstone must exist before the mail leaves the store.
	if err := r.tombstones.Upsert(ctx, id, r.now().UTC()); err != nil {
		log.WithError(err).Error("[Reconciler] tombstone write failed")
		return storeReason(err)
	}

	n, err := r.mails.Delete(ctx, id)
	if err != nil {
		log.WithError(err).Error("[Reconciler] delete failed after tombstone")
		return storeReason(err)
	}
	if n == 0 {
		return domain.ReasonNotDeleted
	}
	return ""
}

func storeReason(err error) string {
	return domain.ReasonStoreFailure + ": " + err.Error()
}

func storeErr(op string, err error) error {
	if apperr.IsAppError(err) {
		return err
	}
	return apperr.StoreError(op, err)
}
