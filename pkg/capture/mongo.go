package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/strata-gfx/strata/pkg/observability"
)

// MongoConfig configures the long-term capture archive.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoArchive writes capture sessions to a mongo collection for retention
// past the store TTL. It is a sink, not a [Store]: archived sessions never
// expire and are looked up explicitly.
type MongoArchive struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoArchive connects to mongo and verifies the connection.
func NewMongoArchive(ctx context.Context, cfg MongoConfig) (*MongoArchive, error) {
	if cfg.Database == "" {
		cfg.Database = "strata"
	}
	if cfg.Collection == "" {
		cfg.Collection = "captures"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoArchive{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Archive upserts a session by id.
func (a *MongoArchive) Archive(ctx context.Context, sess *Session) error {
	err := RetryWithBackoff(ctx, func() error {
		_, err := a.coll.ReplaceOne(ctx,
			bson.M{"_id": sess.ID},
			sess,
			options.Replace().SetUpsert(true))
		if err != nil {
			return Retryable(err)
		}
		return nil
	})
	observability.Capture().OnArchive(ctx, "mongo", err)
	if err != nil {
		return fmt.Errorf("archive session %s: %w", sess.ID, err)
	}
	return nil
}

// Load retrieves an archived session. Returns nil, nil when absent.
func (a *MongoArchive) Load(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := a.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return &sess, nil
}

// Close disconnects from mongo.
func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
