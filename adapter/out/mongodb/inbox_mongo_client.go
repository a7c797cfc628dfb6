// Package mongodb implements the store ports on MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	collectionMails    = "mails"
	collectionDeleted  = "deleted_mails"
	collectionSessions = "user_sessions"
)

// NewClient creates a new MongoDB client.
func NewClient(ctx context.Context, url string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(url).
		SetMaxPoolSize(20).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// EnsureIndexes creates the indexes every adapter relies on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := NewMailAdapter(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("mails indexes: %w", err)
	}
	if err := NewTombstoneAdapter(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("deleted_mails indexes: %w", err)
	}
	return nil
}
