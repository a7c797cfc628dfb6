package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inbox_server/core/domain"
	"inbox_server/core/port/out"
	"inbox_server/pkg/apperr"
)

// TombstoneAdapter implements out.TombstoneRepository on deleted_mails.
type TombstoneAdapter struct {
	collection *mongo.Collection
}

var _ out.TombstoneRepository = (*TombstoneAdapter)(nil)

func NewTombstoneAdapter(db *mongo.Database) *TombstoneAdapter {
	return &TombstoneAdapter{collection: db.Collection(collectionDeleted)}
}

func (a *TombstoneAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "mail_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (a *TombstoneAdapter) IDs(ctx context.Context) (map[string]struct{}, error) {
	opts := options.Find().SetProjection(bson.M{"mail_id": 1, "_id": 0})
	cursor, err := a.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperr.StoreError("load tombstones", err)
	}
	defer cursor.Close(ctx)

	ids := make(map[string]struct{})
	for cursor.Next(ctx) {
		var t domain.Tombstone
		if err := cursor.Decode(&t); err != nil {
			return nil, apperr.StoreError("decode tombstone", err)
		}
		ids[t.MailID] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.StoreError("load tombstones", err)
	}
	return ids, nil
}

func (a *TombstoneAdapter) Upsert(ctx context.Context, mailID string, deletedAt time.Time) error {
	_, err := a.collection.UpdateOne(ctx,
		bson.M{"mail_id": mailID},
		bson.M{"$set": bson.M{"deleted_at": deletedAt}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return apperr.StoreError("write tombstone", err)
	}
	return nil
}
