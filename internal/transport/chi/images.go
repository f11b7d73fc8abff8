package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/popolodex/internal/domain"
	domentity "github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/transform"
	"github.com/kailas-cloud/popolodex/internal/logger"
	entityuc "github.com/kailas-cloud/popolodex/internal/usecase/entity"
)

// Multipart form field carrying the image binary.
const uploadField = "image"

// AddImage handles POST /{collection}/{id}/images.
func (s *Server) AddImage(w http.ResponseWriter, r *http.Request) {
	s.writeImage(w, r, func(in entityuc.ImageInput) (domentity.Document, error) {
		return s.entities.AddImage(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), in)
	})
}

// UpdateImage handles PUT /{collection}/{id}/images/{imageId}.
func (s *Server) UpdateImage(w http.ResponseWriter, r *http.Request) {
	s.writeImage(w, r, func(in entityuc.ImageInput) (domentity.Document, error) {
		return s.entities.UpdateImage(r.Context(),
			chi.URLParam(r, "collection"), chi.URLParam(r, "id"), chi.URLParam(r, "imageId"), in)
	})
}

// RemoveImage handles DELETE /{collection}/{id}/images/{imageId}.
func (s *Server) RemoveImage(w http.ResponseWriter, r *http.Request) {
	s.writeImage(w, r, func(entityuc.ImageInput) (domentity.Document, error) {
		return s.entities.RemoveImage(r.Context(),
			chi.URLParam(r, "collection"), chi.URLParam(r, "id"), chi.URLParam(r, "imageId"))
	})
}

// RemoveAllImages handles DELETE /{collection}/{id}/images.
func (s *Server) RemoveAllImages(w http.ResponseWriter, r *http.Request) {
	s.writeImage(w, r, func(entityuc.ImageInput) (domentity.Document, error) {
		return s.entities.RemoveAllImages(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	})
}

// GetImage handles GET /{collection}/{id}/images/{imageId} and serves the stored file.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	col, err := s.collection(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	f, img, err := s.entities.OpenImage(r.Context(), col.Name(), chi.URLParam(r, "id"), chi.URLParam(r, "imageId"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.FromContextOr(r.Context(), s.logger).Warn("close image file", zap.Error(cerr))
		}
	}()

	info, err := f.Stat()
	if err != nil {
		s.handleDomainError(w, r, fmt.Errorf("stat image: %w: %w", domain.ErrStorage, err))
		return
	}
	if mt := img.MIMEType(); mt != "" {
		w.Header().Set("Content-Type", mt)
	}
	http.ServeContent(w, r, img.ID(), info.ModTime(), f)
}

// writeImage runs an image mutation and replies with the transformed parent document.
func (s *Server) writeImage(
	w http.ResponseWriter, r *http.Request, fn func(entityuc.ImageInput) (domentity.Document, error),
) {
	col, err := s.collection(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	opts, err := s.transformOptions(r, col)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	var in entityuc.ImageInput
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		var cleanup func()
		in, cleanup, err = s.readImageInput(r)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		defer cleanup()
	}

	doc, err := fn(in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Result: transform.Apply(doc, opts)})
}

// readImageInput accepts either a multipart form with an "image" file and
// metadata fields, or a JSON metadata object referencing an external url.
func (s *Server) readImageInput(r *http.Request) (entityuc.ImageInput, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		meta := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil && !errors.Is(err, io.EOF) {
			return entityuc.ImageInput{}, noop, fmt.Errorf("invalid request body: %w: %w", domain.ErrMalformedInput, err)
		}
		return entityuc.ImageInput{Meta: meta}, noop, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return entityuc.ImageInput{}, noop, fmt.Errorf("invalid upload: %w: %w", domain.ErrMalformedInput, err)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	meta := make(map[string]any, len(r.MultipartForm.Value))
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			meta[key] = values[0]
		}
	}
	in := entityuc.ImageInput{Meta: meta}

	file, header, err := r.FormFile(uploadField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, cleanup, nil
	case err != nil:
		cleanup()
		return entityuc.ImageInput{}, noop, fmt.Errorf("invalid upload: %w: %w", domain.ErrMalformedInput, err)
	}
	defer func() { _ = file.Close() }()

	if _, ok := meta[domentity.ImageFieldMIMEType]; !ok {
		if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
			meta[domentity.ImageFieldMIMEType] = ct
		}
	}

	staged, err := spool(file)
	if err != nil {
		cleanup()
		return entityuc.ImageInput{}, noop, fmt.Errorf("stage upload: %w: %w", domain.ErrStorage, err)
	}
	in.UploadPath = staged
	return in, func() {
		// The file store moves the staged file away on success.
		if rerr := os.Remove(staged); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			logger.FromContextOr(r.Context(), s.logger).Warn("remove staged upload", zap.Error(rerr))
		}
		cleanup()
	}, nil
}

// spool copies an uploaded part to a temp file and returns its path.
func spool(src io.Reader) (string, error) {
	f, err := os.CreateTemp("", "popolodex-upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
