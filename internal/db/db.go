package db

import (
	"context"
	"time"
)

// SearchEngine is everything the process needs from the search backend.
// Consumers depend on the narrower interfaces below.
type SearchEngine interface {
	Pinger
	DocumentIndexer
	QueryRunner
	IndexManager
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentIndexer writes and removes indexed documents.
type DocumentIndexer interface {
	Index(ctx context.Context, req IndexRequest) error
	Delete(ctx context.Context, ref DocRef) error
	Bulk(ctx context.Context, body []any) (*BulkResponse, error)
}

// QueryRunner validates and executes search queries.
type QueryRunner interface {
	ValidateQuery(ctx context.Context, req ValidateRequest) (*Validation, error)
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	EnsureIndex(ctx context.Context, index, typ string) error
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// FindQuery is the input of a document store find.
type FindQuery struct {
	Filter     map[string]any
	Projection map[string]any
	Limit      int
	Skip       int
}

// DocumentStore is the schema-less document store contract. Documents are
// plain JSON-compatible maps with the identifier under "id".
type DocumentStore interface {
	Pinger
	Find(ctx context.Context, collection string, q FindQuery) ([]map[string]any, error)
	Count(ctx context.Context, collection string) (int, error)
	Get(ctx context.Context, collection, id string) (map[string]any, error)
	Save(ctx context.Context, collection string, doc map[string]any) (map[string]any, error)
	Remove(ctx context.Context, collection, id string) error
}
