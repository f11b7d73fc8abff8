// Package entity implements document CRUD and the image sub-resource, and
// notifies the search indexer after every write.
package entity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/popolodex/internal/domain"
	domentity "github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/paging"
	"github.com/kailas-cloud/popolodex/internal/logger"
)

// Image metadata keys never taken from client input.
var reservedImageKeys = []string{"filename", "name", "content", domentity.FieldID, domentity.FieldMongoID}

// ListResult is one page of a collection.
type ListResult struct {
	Documents []domentity.Document
	Total     int
	Page      paging.Page
}

// ImageInput describes an image to add or replace. UploadPath names a
// staged file on local disk; it is empty when the metadata carries an
// external url. The staged file is moved into the file store.
type ImageInput struct {
	Meta       map[string]any
	Placement  string
	UploadPath string
}

// Service handles entity documents.
type Service struct {
	repo  Repository
	index Indexer
	files FileStore
	colls Collections
	now   func() time.Time
}

// New creates an entity service. files may be nil when uploads are disabled.
func New(repo Repository, index Indexer, files FileStore, colls Collections) *Service {
	return &Service{
		repo:  repo,
		index: index,
		files: files,
		colls: colls,
		now:   time.Now,
	}
}

// WithClock overrides the clock used for image timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, collection, id string) (domentity.Document, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, collection, id)
}

// List returns one page of a collection with the collection total.
func (s *Service) List(ctx context.Context, collection string, p paging.Page) (ListResult, error) {
	if err := s.checkCollection(collection); err != nil {
		return ListResult{}, err
	}
	total, err := s.repo.Count(ctx, collection)
	if err != nil {
		return ListResult{}, fmt.Errorf("count: %w", err)
	}
	docs, err := s.repo.List(ctx, collection, p)
	if err != nil {
		return ListResult{}, fmt.Errorf("list: %w", err)
	}
	return ListResult{Documents: docs, Total: total, Page: p}, nil
}

// Create stores a new document, generating an id when none is given.
func (s *Service) Create(ctx context.Context, collection string, doc domentity.Document) (domentity.Document, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	doc = domentity.Normalize(doc)
	if doc.ID() == "" {
		doc.SetID(uuid.NewString())
	}
	return s.save(ctx, collection, doc)
}

// Update replaces the document stored under id.
func (s *Service) Update(
	ctx context.Context, collection, id string, doc domentity.Document,
) (domentity.Document, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}
	doc = domentity.Normalize(doc)
	if bodyID := doc.ID(); bodyID != "" && bodyID != id {
		return nil, fmt.Errorf("body id %q does not match %q: %w", bodyID, id, domain.ErrMalformedInput)
	}
	doc.SetID(id)
	return s.save(ctx, collection, doc)
}

// Delete removes a document together with its uploaded images.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	for _, img := range doc.Images() {
		s.removeFile(ctx, collection, id, img.ID())
	}
	s.index.OnRemove(ctx, collection, id)
	return nil
}

// AddImage inserts an image record at the requested placement.
func (s *Service) AddImage(
	ctx context.Context, collection, id string, in ImageInput,
) (domentity.Document, error) {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	hint := in.Placement
	if hint == "" {
		hint = domentity.PlacementOf(domentity.Image(in.Meta))
	}
	placement, err := domentity.ParsePlacement(hint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
	}

	img := s.newImage(in.Meta)
	if err := s.storeUpload(collection, id, img, in, false); err != nil {
		return nil, err
	}

	images, err := domentity.InsertImage(doc.Images(), img, placement)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
	}
	doc.SetImages(images)
	return s.save(ctx, collection, doc)
}

// UpdateImage merges new metadata, and optionally a new file, over an
// existing image record. The id and created timestamp are kept.
func (s *Service) UpdateImage(
	ctx context.Context, collection, id, imageID string, in ImageInput,
) (domentity.Document, error) {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	existing, ok := domentity.FindImage(doc.Images(), imageID)
	if !ok {
		return nil, fmt.Errorf("image %q: %w", imageID, domain.ErrNotFound)
	}

	img := domentity.Image(domentity.CloneMap(existing))
	if in.UploadPath != "" {
		delete(img, domentity.ImageFieldMIMEType)
	}
	for k, v := range filterImageMeta(in.Meta) {
		img[k] = v
	}
	img[domentity.FieldID] = imageID
	delete(img, domentity.FieldMongoID)
	if _, ok := img["created"]; !ok {
		img["created"] = s.now().UTC().Format(time.RFC3339)
	}
	if in.UploadPath != "" {
		if err := s.storeUpload(collection, id, img, in, true); err != nil {
			return nil, err
		}
	}

	images, _ := domentity.ReplaceImage(doc.Images(), imageID, img)
	doc.SetImages(images)
	return s.save(ctx, collection, doc)
}

// RemoveImage drops one image record and its file.
func (s *Service) RemoveImage(ctx context.Context, collection, id, imageID string) (domentity.Document, error) {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	images, _, ok := domentity.RemoveImage(doc.Images(), imageID)
	if !ok {
		return nil, fmt.Errorf("image %q: %w", imageID, domain.ErrNotFound)
	}
	doc.SetImages(images)
	saved, err := s.save(ctx, collection, doc)
	if err != nil {
		return nil, err
	}
	s.removeFile(ctx, collection, id, imageID)
	return saved, nil
}

// RemoveAllImages drops every image record and file of a document.
func (s *Service) RemoveAllImages(ctx context.Context, collection, id string) (domentity.Document, error) {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	images := doc.Images()
	doc.SetImages(nil)
	delete(doc, domentity.FieldImage)
	saved, err := s.save(ctx, collection, doc)
	if err != nil {
		return nil, err
	}
	for _, img := range images {
		s.removeFile(ctx, collection, id, img.ID())
	}
	return saved, nil
}

// OpenImage returns the stored file of an image and its record.
func (s *Service) OpenImage(
	ctx context.Context, collection, id, imageID string,
) (*os.File, domentity.Image, error) {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, nil, err
	}
	img, ok := domentity.FindImage(doc.Images(), imageID)
	if !ok {
		return nil, nil, fmt.Errorf("image %q: %w", imageID, domain.ErrNotFound)
	}
	if s.files == nil {
		return nil, nil, fmt.Errorf("image %q has no stored file: %w", imageID, domain.ErrNotFound)
	}
	f, err := s.files.Open(ImagePath(collection, id, imageID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("image %q has no stored file: %w", imageID, domain.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("open image: %w: %w", domain.ErrStorage, err)
	}
	return f, img, nil
}

// ImagePath is the file store location of an uploaded image.
func ImagePath(collection, id, imageID string) string {
	return path.Join(strings.ToLower(collection), id, imageID)
}

func (s *Service) save(ctx context.Context, collection string, doc domentity.Document) (domentity.Document, error) {
	if err := domentity.ValidateID(doc.ID()); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
	}
	saved, err := s.repo.Save(ctx, collection, doc)
	if err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	s.index.OnSave(ctx, collection, saved)
	return saved, nil
}

// filterImageMeta copies client metadata without the reserved keys.
func filterImageMeta(meta map[string]any) map[string]any {
	out := domentity.CloneMap(meta)
	if out == nil {
		out = map[string]any{}
	}
	for _, k := range reservedImageKeys {
		delete(out, k)
	}
	return out
}

func (s *Service) newImage(meta map[string]any) domentity.Image {
	img := domentity.Image(filterImageMeta(meta))
	img[domentity.FieldID] = uuid.NewString()
	img["created"] = s.now().UTC().Format(time.RFC3339)
	return img
}

// storeUpload moves the staged upload, if any, into place and fills in the
// mime type. Without an upload the record must reference an external url.
func (s *Service) storeUpload(collection, id string, img domentity.Image, in ImageInput, overwrite bool) error {
	if in.UploadPath == "" {
		if img.URL() == "" {
			return fmt.Errorf("no image sent: %w", domain.ErrMalformedInput)
		}
		return nil
	}
	if s.files == nil {
		return fmt.Errorf("image uploads are disabled: %w", domain.ErrMalformedInput)
	}

	info, err := os.Stat(in.UploadPath)
	if err != nil {
		return fmt.Errorf("staged upload: %w: %w", domain.ErrStorage, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("no image sent: %w", domain.ErrMalformedInput)
	}

	rel := ImagePath(collection, id, img.ID())
	if err := s.files.EnsureDir(path.Dir(rel)); err != nil {
		return fmt.Errorf("store image: %w: %w", domain.ErrStorage, err)
	}
	if err := s.files.Move(in.UploadPath, rel, overwrite); err != nil {
		return fmt.Errorf("store image: %w: %w", domain.ErrStorage, err)
	}
	if img.MIMEType() == "" {
		mime, err := s.files.DetectMIME(rel)
		if err != nil {
			return fmt.Errorf("detect mime: %w: %w", domain.ErrStorage, err)
		}
		img[domentity.ImageFieldMIMEType] = mime
	}
	return nil
}

func (s *Service) removeFile(ctx context.Context, collection, id, imageID string) {
	if s.files == nil || imageID == "" {
		return
	}
	if err := s.files.Remove(ImagePath(collection, id, imageID)); err != nil {
		logger.FromContext(ctx).Warn("image file cleanup failed",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.String("image_id", imageID),
			zap.Error(err),
		)
	}
}

func (s *Service) checkCollection(name string) error {
	if err := domentity.ValidateCollection(name); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	if s.colls == nil {
		return nil
	}
	if _, ok := s.colls.Get(name); !ok {
		return fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	return nil
}
