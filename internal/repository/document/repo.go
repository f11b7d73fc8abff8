package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/popolodex/internal/db"
	"github.com/kailas-cloud/popolodex/internal/domain"
	"github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/paging"
)

// store is the consumer interface for documents (ISP).
type store interface {
	Find(ctx context.Context, collection string, q db.FindQuery) ([]map[string]any, error)
	Count(ctx context.Context, collection string) (int, error)
	Get(ctx context.Context, collection, id string) (map[string]any, error)
	Save(ctx context.Context, collection string, doc map[string]any) (map[string]any, error)
	Remove(ctx context.Context, collection, id string) error
}

// Repo maps the schema-less document store onto entity documents and the
// domain error set.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Get returns a document by id.
func (r *Repo) Get(ctx context.Context, collection, id string) (entity.Document, error) {
	raw, err := r.store.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s %q: %w", collection, id, domain.ErrNotFound)
		}
		return nil, storageErr("get "+collection+"/"+id, err)
	}
	return entity.Normalize(raw), nil
}

// List returns one page of a collection in natural order.
func (r *Repo) List(ctx context.Context, collection string, p paging.Page) ([]entity.Document, error) {
	return r.Find(ctx, collection, db.FindQuery{Skip: p.Skip, Limit: p.Limit})
}

// Find runs an arbitrary query.
func (r *Repo) Find(ctx context.Context, collection string, q db.FindQuery) ([]entity.Document, error) {
	raws, err := r.store.Find(ctx, collection, q)
	if err != nil {
		return nil, storageErr("find "+collection, err)
	}
	docs := make([]entity.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, entity.Normalize(raw))
	}
	return docs, nil
}

// Count returns the number of documents in a collection.
func (r *Repo) Count(ctx context.Context, collection string) (int, error) {
	n, err := r.store.Count(ctx, collection)
	if err != nil {
		return 0, storageErr("count "+collection, err)
	}
	return n, nil
}

// Save upserts a document and returns its stored form.
func (r *Repo) Save(ctx context.Context, collection string, doc entity.Document) (entity.Document, error) {
	if doc.ID() == "" {
		return nil, fmt.Errorf("save %s: id is required: %w", collection, domain.ErrMalformedInput)
	}
	saved, err := r.store.Save(ctx, collection, entity.Normalize(doc))
	if err != nil {
		return nil, storageErr("save "+collection+"/"+doc.ID(), err)
	}
	return entity.Normalize(saved), nil
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, collection, id string) error {
	if err := r.store.Remove(ctx, collection, id); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return fmt.Errorf("%s %q: %w", collection, id, domain.ErrNotFound)
		}
		return storageErr("delete "+collection+"/"+id, err)
	}
	return nil
}

// storageErr tags err as an I/O failure while keeping the driver cause.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
