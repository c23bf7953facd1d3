package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"metacat/internal/config"
	"metacat/internal/document"
)

// ── Networked backend (MongoDB) ────────────────────────────
// Delegates persistence to an external document server. Records are stored
// as nested documents keyed by _id, which is why the path registry enforces
// path-position uniformity across the collection.

// MongoStore is the networked document server backend.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	target string // "address:port db/collection" for diagnostics
	log    *zap.Logger
}

// OpenMongoStore connects to the configured server and verifies
// reachability with a bounded retry. An unreachable server fails the run;
// the error names the parameters that failed.
func OpenMongoStore(ctx context.Context, cfg config.Database, log *zap.Logger) (*MongoStore, error) {
	uri := fmt.Sprintf("mongodb://%s:%d", cfg.Address, cfg.Port)
	target := fmt.Sprintf("%s:%d %s/%s", cfg.Address, cfg.Port, cfg.DBName, cfg.CollectionName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb %s: %w", target, err)
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx, nil)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(ping, bo); err != nil {
		disconnectQuietly(client)
		return nil, fmt.Errorf("mongodb %s: server unreachable: %w", target, err)
	}

	log.Debug("mongodb connected", zap.String("target", target))
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.DBName).Collection(cfg.CollectionName),
		target: target,
		log:    log,
	}, nil
}

func (s *MongoStore) Upsert(ctx context.Context, rec document.Record) (bool, error) {
	doc := document.Unflatten(rec.Fields)
	doc[document.IDField] = rec.ID

	res, err := s.coll.ReplaceOne(ctx,
		bson.M{document.IDField: rec.ID},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("mongodb %s: upsert %s: %w", s.target, rec.ID, err)
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) UpsertMany(ctx context.Context, recs []document.Record) (int, error) {
	replaced := 0
	for _, rec := range recs {
		wasReplaced, err := s.Upsert(ctx, rec)
		if err != nil {
			return replaced, err
		}
		if wasReplaced {
			replaced++
		}
	}
	return replaced, nil
}

func (s *MongoStore) GetAll(ctx context.Context) ([]document.Record, error) {
	return s.find(ctx, bson.M{})
}

func (s *MongoStore) Query(ctx context.Context, path string, value any) ([]document.Record, error) {
	// Dotted paths are native Mongo query syntax; array fields match on
	// any element server-side.
	return s.find(ctx, bson.M{path: value})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]document.Record, error) {
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongodb %s: find: %w", s.target, err)
	}
	defer cursor.Close(ctx)

	var recs []document.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb %s: decode: %w", s.target, err)
		}
		id, _ := doc[document.IDField].(string)
		delete(doc, document.IDField)
		fields, _ := document.Flatten(document.FromValue(normalizeBSON(doc)), document.FlattenOptions{})
		recs = append(recs, document.Record{ID: id, Fields: fields})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb %s: cursor: %w", s.target, err)
	}
	return recs, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func disconnectQuietly(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Disconnect(ctx)
}

// normalizeBSON converts driver-decoded values (bson.M, bson.D, bson.A,
// int32) into plain maps, slices and widened scalars.
func normalizeBSON(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeBSON(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, elem := range val {
			out[elem.Key] = normalizeBSON(elem.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeBSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeBSON(item)
		}
		return out
	case int32:
		return int64(val)
	default:
		return val
	}
}
