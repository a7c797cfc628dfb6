package domain

import "time"

// SyncAction is the reconciliation decision for one incoming record.
type SyncAction string

const (
	SyncInsert SyncAction = "insert"
	SyncUpdate SyncAction = "update"
	SyncSkip   SyncAction = "skip"
)

// SyncResult counts the outcome of one reconciliation run.
type SyncResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Total returns the number of records the run looked at.
func (r SyncResult) Total() int {
	return r.Inserted + r.Updated + r.Skipped
}

// Reasons reported for failed deletions.
const (
	ReasonNotFound     = "not found"
	ReasonNotDeleted   = "could not be deleted"
	ReasonInvalidID    = "invalid id"
	ReasonStoreFailure = "store error"
)

// FailedID is one id a delete request could not process.
type FailedID struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// DeleteResult summarizes a delete request.
type DeleteResult struct {
	DeletedCount int        `json:"deleted_count"`
	Failed       []FailedID `json:"failed_ids"`
}

// FetchReport counts what happened while fetching one window.
type FetchReport struct {
	Listed  int `json:"listed"`
	Fetched int `json:"fetched"`
	Failed  int `json:"failed"`
}

// IngestResult is the outcome of one fetch/classify/reconcile run.
type IngestResult struct {
	Fetch          FetchReport   `json:"fetch"`
	ClassifyFailed int           `json:"classify_failed"`
	Sync           SyncResult    `json:"sync"`
	Duration       time.Duration `json:"-"`
}

// Session is the connected mailbox profile.
type Session struct {
	ID            string    `json:"id" bson:"id"`
	EmailAddress  string    `json:"email_address" bson:"email_address"`
	MessagesTotal int64     `json:"messages_total" bson:"messages_total"`
	HistoryID     uint64    `json:"history_id" bson:"history_id"`
	ConnectedAt   time.Time `json:"connected_at" bson:"connected_at"`
}
