// Package mongo implements db.DocumentStore on MongoDB. Collections are
// schema-less; documents round-trip as plain maps with the identifier
// exposed as "id" and stored as "_id".
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kailas-cloud/popolodex/internal/db"
)

// Compile-time check: Store implements db.DocumentStore.
var _ db.DocumentStore = (*Store)(nil)

const (
	fieldID      = "id"
	fieldMongoID = "_id"
)

// Store is the MongoDB document store.
type Store struct {
	db *mgo.Database
}

// New wraps an already connected database.
func New(database *mgo.Database) *Store {
	return &Store{db: database}
}

// Connect dials MongoDB at uri and returns a store over database name plus
// a disconnect func.
func Connect(ctx context.Context, uri, name string) (*Store, func(context.Context) error, error) {
	if uri == "" {
		return nil, nil, errors.New("mongo uri is required")
	}
	if name == "" {
		return nil, nil, errors.New("database name is required")
	}
	client, err := mgo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	return New(client.Database(name)), client.Disconnect, nil
}

// Ping checks connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// WaitForReady blocks until the server answers a ping or timeout elapses.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, "document store", timeout, s.Ping)
}

// Find returns documents of collection matching q, in natural order.
func (s *Store) Find(ctx context.Context, collection string, q db.FindQuery) ([]map[string]any, error) {
	opts := options.Find()
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Skip > 0 {
		opts.SetSkip(int64(q.Skip))
	}
	if len(q.Projection) > 0 {
		opts.SetProjection(toStorage(q.Projection))
	}

	filter := bson.M{}
	if len(q.Filter) > 0 {
		filter = toStorage(q.Filter)
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}
	defer cur.Close(ctx)

	out := make([]map[string]any, 0)
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, &db.Error{Op: db.OpFind, Err: err}
		}
		out = append(out, fromStorage(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}
	return out, nil
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return int(n), nil
}

// Get loads one document by id. A missing document is db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	c := s.db.Collection(collection)
	for _, key := range idCandidates(id) {
		var raw bson.M
		err := c.FindOne(ctx, bson.M{fieldMongoID: key}).Decode(&raw)
		if errors.Is(err, mgo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return nil, &db.Error{Op: db.OpGet, Err: err}
		}
		return fromStorage(raw), nil
	}
	return nil, db.ErrKeyNotFound
}

// Save upserts doc under its "id" and returns the stored form.
func (s *Store) Save(ctx context.Context, collection string, doc map[string]any) (map[string]any, error) {
	id, _ := doc[fieldID].(string)
	if id == "" {
		id, _ = doc[fieldMongoID].(string)
	}
	if id == "" {
		return nil, &db.Error{Op: db.OpSave, Err: errors.New("document id is required")}
	}

	stored := toStorage(doc)
	stored[fieldMongoID] = id

	_, err := s.db.Collection(collection).ReplaceOne(ctx,
		bson.M{fieldMongoID: id}, stored, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, &db.Error{Op: db.OpSave, Err: err}
	}
	return fromStorage(stored), nil
}

// Remove deletes one document by id. A missing document is db.ErrKeyNotFound.
func (s *Store) Remove(ctx context.Context, collection, id string) error {
	c := s.db.Collection(collection)
	for _, key := range idCandidates(id) {
		res, err := c.DeleteOne(ctx, bson.M{fieldMongoID: key})
		if err != nil {
			return &db.Error{Op: db.OpRemove, Err: err}
		}
		if res.DeletedCount > 0 {
			return nil
		}
	}
	return db.ErrKeyNotFound
}

// idCandidates lists the _id values a string id may be stored under:
// the string itself and, for hex ids of imported data, an ObjectID.
func idCandidates(id string) []any {
	out := []any{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		out = append(out, oid)
	}
	return out
}
