package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect opens a client for uri and verifies the deployment is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Bootstrap creates the indexes both repositories rely on and clears legacy
// null emails so they do not collide in the unique email index.
func Bootstrap(ctx context.Context, db *mongo.Database) error {
	users := NewUserRepo(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := users.UnsetNullEmails(ctx); err != nil {
		return err
	}
	return NewChallengeRepo(db).EnsureIndexes(ctx)
}
