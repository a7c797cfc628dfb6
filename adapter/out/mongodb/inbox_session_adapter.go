package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
)

// The service handles one mailbox, so the session is a single document.
const currentSessionKey = "current"

type sessionDocument struct {
	Key            string `bson:"_id"`
	domain.Session `bson:",inline"`
}

// SessionAdapter implements out.SessionRepository on user_sessions.
type SessionAdapter struct {
	collection *mongo.Collection
}

var _ out.SessionRepository = (*SessionAdapter)(nil)

func NewSessionAdapter(db *mongo.Database) *SessionAdapter {
	return &SessionAdapter{collection: db.Collection(collectionSessions)}
}

func (a *SessionAdapter) Save(ctx context.Context, s *domain.Session) error {
	doc := sessionDocument{Key: currentSessionKey, Session: *s}
	_, err := a.collection.ReplaceOne(ctx,
		bson.M{"_id": currentSessionKey},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return apperr.StoreError("save session", err)
	}
	return nil
}

func (a *SessionAdapter) Current(ctx context.Context) (*domain.Session, error) {
	var doc sessionDocument
	err := a.collection.FindOne(ctx, bson.M{"_id": currentSessionKey}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperr.StoreError("load session", err)
	}
	return &doc.Session, nil
}
