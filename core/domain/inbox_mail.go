package domain

import "time"

// Defaults applied when a message lacks content or headers.
const (
	ContentUnavailable = "content unavailable"
	DefaultSender      = "Unknown Sender"
	DefaultSubject     = "No Subject"
)

// Header is a single message header as returned by the provider.
type Header struct {
	Name  string
	Value string
}

// RawMessage is a provider message with its content tree.
type RawMessage struct {
	ID      string
	Snippet string
	Headers []Header
	Payload MimePart
}

// FetchedMail is the normalized result of fetching one message, before
// classification.
type FetchedMail struct {
	ID      string
	Body    string
	Snippet string
	Sender  string
	Subject string
	Date    time.Time
}

// MailRecord is the persisted unit. ID is the provider message id and the key
// for every reconciliation decision.
type MailRecord struct {
	ID              string             `json:"id" bson:"id"`
	Body            string             `json:"body" bson:"body"`
	Snippet         string             `json:"snippet" bson:"snippet"`
	Sender          string             `json:"sender" bson:"sender"`
	Subject         string             `json:"subject" bson:"subject"`
	Date            time.Time          `json:"date" bson:"date"`
	PredictedClass  string             `json:"predicted_class" bson:"predicted_class"`
	ConfidenceScore float64            `json:"confidence_score" bson:"confidence_score"`
	AllScores       map[string]float64 `json:"all_scores" bson:"all_scores"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

// NewMailRecord joins a fetched mail with its classification.
func NewMailRecord(m FetchedMail, c Classification) MailRecord {
	return MailRecord{
		ID:              m.ID,
		Body:            m.Body,
		Snippet:         m.Snippet,
		Sender:          m.Sender,
		Subject:         m.Subject,
		Date:            m.Date,
		PredictedClass:  c.PredictedClass,
		ConfidenceScore: c.ConfidenceScore,
		AllScores:       c.AllScores,
	}
}

// Tombstone marks a mail id the user deleted; it suppresses re-ingest.
type Tombstone struct {
	MailID    string    `json:"mail_id" bson:"mail_id"`
	DeletedAt time.Time `json:"deleted_at" bson:"deleted_at"`
}
