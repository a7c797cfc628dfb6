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

// MailAdapter implements out.MailRepository on the mails collection.
type MailAdapter struct {
	collection *mongo.Collection
}

var _ out.MailRepository = (*MailAdapter)(nil)

func NewMailAdapter(db *mongo.Database) *MailAdapter {
	return &MailAdapter{collection: db.Collection(collectionMails)}
}

func (a *MailAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "predicted_class", Value: 1}, {Key: "date", Value: -1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (a *MailAdapter) FindByID(ctx context.Context, id string) (*domain.MailRecord, error) {
	var rec domain.MailRecord
	err := a.collection.FindOne(ctx, bson.M{"id": id}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperr.StoreError("find mail", err)
	}
	return &rec, nil
}

func (a *MailAdapter) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	opts := options.Find().SetProjection(bson.M{"id": 1, "_id": 0})
	cursor, err := a.collection.Find(ctx, bson.M{"id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, apperr.StoreError("load existing ids", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, apperr.StoreError("decode mail id", err)
		}
		found[doc.ID] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.StoreError("load existing ids", err)
	}
	return found, nil
}

func (a *MailAdapter) Insert(ctx context.Context, mail *domain.MailRecord) error {
	if _, err := a.collection.InsertOne(ctx, mail); err != nil {
		return apperr.StoreError("insert mail", err)
	}
	return nil
}

// Update replaces the stored document, keeping its _id.
func (a *MailAdapter) Update(ctx context.Context, mail *domain.MailRecord) error {
	res, err := a.collection.ReplaceOne(ctx, bson.M{"id": mail.ID}, mail)
	if err != nil {
		return apperr.StoreError("update mail", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("mail " + mail.ID)
	}
	return nil
}

func (a *MailAdapter) Delete(ctx context.Context, id string) (int64, error) {
	res, err := a.collection.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return 0, apperr.StoreError("delete mail", err)
	}
	return res.DeletedCount, nil
}

func (a *MailAdapter) List(ctx context.Context, category string) ([]*domain.MailRecord, error) {
	filter := bson.M{}
	if category != "" {
		filter["predicted_class"] = category
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "id", Value: 1}})

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.StoreError("list mails", err)
	}
	defer cursor.Close(ctx)

	mails := make([]*domain.MailRecord, 0)
	if err := cursor.All(ctx, &mails); err != nil {
		return nil, apperr.StoreError("decode mails", err)
	}
	return mails, nil
}
