package indexer

import (
	"context"

	"github.com/kailas-cloud/popolodex/internal/db"
	"github.com/kailas-cloud/popolodex/internal/domain/collection"
	"github.com/kailas-cloud/popolodex/internal/domain/entity"
)

// DocumentSource reads stored documents for bulk reindexing.
type DocumentSource interface {
	Count(ctx context.Context, collection string) (int, error)
	Find(ctx context.Context, collection string, q db.FindQuery) ([]entity.Document, error)
}

// Engine is the search engine subset the indexer drives.
type Engine interface {
	Index(ctx context.Context, req db.IndexRequest) error
	Delete(ctx context.Context, ref db.DocRef) error
	Bulk(ctx context.Context, body []any) (*db.BulkResponse, error)
	ValidateQuery(ctx context.Context, req db.ValidateRequest) (*db.Validation, error)
	Search(ctx context.Context, req db.SearchRequest) (*db.SearchResult, error)
}

// Collections resolves per-collection settings.
type Collections interface {
	Get(name string) (collection.Collection, bool)
}
