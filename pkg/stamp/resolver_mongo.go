package stamp

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoResolver resolves stamp metadata directly from the indexer's
// MongoDB, for deployments colocated with the indexer where an extra API
// hop is unnecessary.
type MongoResolver struct {
	coll *mongo.Collection
}

// MongoConfig holds connection settings for the Mongo resolver.
type MongoConfig struct {
	URI        string // mongodb:// connection string
	Database   string
	Collection string // defaults to "stamps"
}

// NewMongoResolver connects to MongoDB and verifies the connection.
func NewMongoResolver(ctx context.Context, cfg MongoConfig) (*MongoResolver, error) {
	if cfg.Collection == "" {
		cfg.Collection = "stamps"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &MongoResolver{
		coll: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Resolve looks up the descriptor document by identifier.
func (r *MongoResolver) Resolve(ctx context.Context, identifier string) (*Stamp, error) {
	var s Stamp
	err := r.coll.FindOne(ctx, bson.M{"identifier": identifier}).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("resolve %s: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", identifier, err)
	}
	return &s, nil
}

// Close disconnects the underlying client.
func (r *MongoResolver) Close(ctx context.Context) error {
	return r.coll.Database().Client().Disconnect(ctx)
}

// Ensure MongoResolver implements Resolver.
var _ Resolver = (*MongoResolver)(nil)
