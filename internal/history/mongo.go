// internal/history/mongo.go
package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig locates the history collection.
type MongoConfig struct {
	URI        string        `yaml:"uri" json:"uri"`
	Database   string        `yaml:"database" json:"database"`
	Collection string        `yaml:"collection" json:"collection"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	// Retention expires entries after this long. Zero keeps them forever.
	Retention time.Duration `yaml:"retention,omitempty" json:"retention,omitempty"`
}

// MongoSink stores entries in a MongoDB collection.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoSink connects and ensures indexes.
func NewMongoSink(ctx context.Context, cfg MongoConfig) (*MongoSink, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = "autoscrapexter"
	}
	if cfg.Collection == "" {
		cfg.Collection = "search_history"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetServerSelectionTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	sink := &MongoSink{client: client, collection: client.Database(cfg.Database).Collection(cfg.Collection)}
	if err := sink.ensureIndexes(connectCtx, cfg.Retention); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return sink, nil
}

// newMongoSinkForCollection wraps an existing collection.
func newMongoSinkForCollection(coll *mongo.Collection) *MongoSink {
	return &MongoSink{collection: coll}
}

func (s *MongoSink) ensureIndexes(ctx context.Context, retention time.Duration) error {
	created := options.Index().SetName("created_at_desc")
	if retention > 0 {
		created.SetExpireAfterSeconds(int32(retention.Seconds()))
	}
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: created},
		{Keys: bson.D{{Key: "query", Value: 1}}, Options: options.Index().SetName("query")},
	})
	if err != nil {
		return fmt.Errorf("failed to create history indexes: %w", err)
	}
	return nil
}

// Record inserts e.
func (s *MongoSink) Record(ctx context.Context, e Entry) error {
	if _, err := s.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *MongoSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cur.Close(ctx)

	var entries []Entry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return entries, nil
}

// Close disconnects the client.
func (s *MongoSink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
