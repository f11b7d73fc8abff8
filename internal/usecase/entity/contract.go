package entity

import (
	"context"
	"os"

	"github.com/kailas-cloud/popolodex/internal/domain/collection"
	domentity "github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/paging"
	"github.com/kailas-cloud/popolodex/internal/usecase/indexer"
)

// Repository defines the storage contract for entity documents.
type Repository interface {
	Get(ctx context.Context, collection, id string) (domentity.Document, error)
	List(ctx context.Context, collection string, p paging.Page) ([]domentity.Document, error)
	Count(ctx context.Context, collection string) (int, error)
	Save(ctx context.Context, collection string, doc domentity.Document) (domentity.Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// Indexer receives save and remove notifications.
type Indexer interface {
	OnSave(ctx context.Context, collection string, doc domentity.Document) *indexer.Pending
	OnRemove(ctx context.Context, collection, id string) *indexer.Pending
}

// FileStore keeps image binaries. Paths are relative to the store root,
// except the source of Move which is a staged file on local disk.
type FileStore interface {
	EnsureDir(rel string) error
	Move(src, rel string, overwrite bool) error
	Open(rel string) (*os.File, error)
	Remove(rel string) error
	DetectMIME(rel string) (string, error)
}

// Collections resolves per-collection settings.
type Collections interface {
	Get(name string) (collection.Collection, bool)
}
