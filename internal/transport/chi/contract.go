package chi

import (
	"context"
	"os"

	"github.com/kailas-cloud/popolodex/internal/db"
	"github.com/kailas-cloud/popolodex/internal/domain/collection"
	domentity "github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/paging"
	entityuc "github.com/kailas-cloud/popolodex/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/popolodex/internal/usecase/health"
	"github.com/kailas-cloud/popolodex/internal/usecase/indexer"
)

// Entities is the document and image service.
type Entities interface {
	Get(ctx context.Context, collection, id string) (domentity.Document, error)
	List(ctx context.Context, collection string, p paging.Page) (entityuc.ListResult, error)
	Create(ctx context.Context, collection string, doc domentity.Document) (domentity.Document, error)
	Update(ctx context.Context, collection, id string, doc domentity.Document) (domentity.Document, error)
	Delete(ctx context.Context, collection, id string) error

	AddImage(ctx context.Context, collection, id string, in entityuc.ImageInput) (domentity.Document, error)
	UpdateImage(
		ctx context.Context, collection, id, imageID string, in entityuc.ImageInput,
	) (domentity.Document, error)
	RemoveImage(ctx context.Context, collection, id, imageID string) (domentity.Document, error)
	RemoveAllImages(ctx context.Context, collection, id string) (domentity.Document, error)
	OpenImage(ctx context.Context, collection, id, imageID string) (*os.File, domentity.Image, error)
}

// Indexer runs reindex and search.
type Indexer interface {
	Reindex(ctx context.Context, collection string) (int, error)
	Search(ctx context.Context, collection string, q indexer.Query) (*db.SearchResult, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Collections resolves per-collection settings.
type Collections interface {
	Get(name string) (collection.Collection, bool)
	Names() []string
}
