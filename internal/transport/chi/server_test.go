package chi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/popolodex/internal/db"
	"github.com/kailas-cloud/popolodex/internal/domain"
	"github.com/kailas-cloud/popolodex/internal/domain/collection"
	domentity "github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/fields"
	"github.com/kailas-cloud/popolodex/internal/domain/paging"
	entityuc "github.com/kailas-cloud/popolodex/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/popolodex/internal/usecase/health"
	"github.com/kailas-cloud/popolodex/internal/usecase/indexer"
)

// --- Mocks ---

type mockEntities struct {
	getFn         func(ctx context.Context, collection, id string) (domentity.Document, error)
	listFn        func(ctx context.Context, collection string, p paging.Page) (entityuc.ListResult, error)
	createFn      func(ctx context.Context, collection string, doc domentity.Document) (domentity.Document, error)
	updateFn      func(ctx context.Context, collection, id string, doc domentity.Document) (domentity.Document, error)
	deleteFn      func(ctx context.Context, collection, id string) error
	addImageFn    func(ctx context.Context, collection, id string, in entityuc.ImageInput) (domentity.Document, error)
	updateImageFn func(ctx context.Context, collection, id, imageID string, in entityuc.ImageInput) (domentity.Document, error)
	removeImageFn func(ctx context.Context, collection, id, imageID string) (domentity.Document, error)
	removeAllFn   func(ctx context.Context, collection, id string) (domentity.Document, error)
	openImageFn   func(ctx context.Context, collection, id, imageID string) (*os.File, domentity.Image, error)
}

func (m *mockEntities) Get(ctx context.Context, collection, id string) (domentity.Document, error) {
	return m.getFn(ctx, collection, id)
}

func (m *mockEntities) List(ctx context.Context, collection string, p paging.Page) (entityuc.ListResult, error) {
	return m.listFn(ctx, collection, p)
}

func (m *mockEntities) Create(
	ctx context.Context, collection string, doc domentity.Document,
) (domentity.Document, error) {
	return m.createFn(ctx, collection, doc)
}

func (m *mockEntities) Update(
	ctx context.Context, collection, id string, doc domentity.Document,
) (domentity.Document, error) {
	return m.updateFn(ctx, collection, id, doc)
}

func (m *mockEntities) Delete(ctx context.Context, collection, id string) error {
	return m.deleteFn(ctx, collection, id)
}

func (m *mockEntities) AddImage(
	ctx context.Context, collection, id string, in entityuc.ImageInput,
) (domentity.Document, error) {
	return m.addImageFn(ctx, collection, id, in)
}

func (m *mockEntities) UpdateImage(
	ctx context.Context, collection, id, imageID string, in entityuc.ImageInput,
) (domentity.Document, error) {
	return m.updateImageFn(ctx, collection, id, imageID, in)
}

func (m *mockEntities) RemoveImage(ctx context.Context, collection, id, imageID string) (domentity.Document, error) {
	return m.removeImageFn(ctx, collection, id, imageID)
}

func (m *mockEntities) RemoveAllImages(ctx context.Context, collection, id string) (domentity.Document, error) {
	return m.removeAllFn(ctx, collection, id)
}

func (m *mockEntities) OpenImage(
	ctx context.Context, collection, id, imageID string,
) (*os.File, domentity.Image, error) {
	return m.openImageFn(ctx, collection, id, imageID)
}

type mockIndexer struct {
	reindexFn func(ctx context.Context, collection string) (int, error)
	searchFn  func(ctx context.Context, collection string, q indexer.Query) (*db.SearchResult, error)
}

func (m *mockIndexer) Reindex(ctx context.Context, collection string) (int, error) {
	return m.reindexFn(ctx, collection)
}

func (m *mockIndexer) Search(ctx context.Context, collection string, q indexer.Query) (*db.SearchResult, error) {
	return m.searchFn(ctx, collection, q)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

func newTestServer(t *testing.T, ent *mockEntities, idx *mockIndexer) http.Handler {
	t.Helper()
	persons, err := collection.New("persons",
		collection.WithDefaultLanguage("en"),
		collection.WithFields(fields.Spec{"email": false}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if ent == nil {
		ent = &mockEntities{}
	}
	if idx == nil {
		idx = &mockIndexer{}
	}
	health := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{healthuc.Database: healthuc.CheckOK},
	}}
	return NewServer(ent, idx, health, collection.NewRegistry(persons), nil).
		WithBaseURLs("http://api.test/api/v0.1", "http://www.test").
		Router()
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func ada() domentity.Document {
	return domentity.Document{
		"id":    "p1",
		"name":  map[string]any{"en": "Ada Lovelace", "ru": "Ада Лавлейс"},
		"email": "ada@example.org",
		"memberships": []any{
			map[string]any{"id": "m1", "end_date": "1840"},
			map[string]any{"id": "m2", "start_date": "1841"},
		},
	}
}

// --- Tests ---

func TestGetDocument_Transforms(t *testing.T) {
	ent := &mockEntities{
		getFn: func(_ context.Context, collection, id string) (domentity.Document, error) {
			if collection != "persons" || id != "p1" {
				t.Errorf("unexpected get %s/%s", collection, id)
			}
			return ada(), nil
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/persons/p1?lang=ru&at=1850-01-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[DocumentResponse](t, rec)
	if resp.Result["name"] != "Ада Лавлейс" {
		t.Errorf("name = %v", resp.Result["name"])
	}
	if _, ok := resp.Result["email"]; ok {
		t.Error("email should be hidden by collection fields")
	}
	if resp.Result["url"] != "http://api.test/api/v0.1/persons/p1" {
		t.Errorf("url = %v", resp.Result["url"])
	}
	if resp.Result["html_url"] != "http://www.test/persons/p1" {
		t.Errorf("html_url = %v", resp.Result["html_url"])
	}
	memberships, _ := resp.Result["memberships"].([]any)
	if len(memberships) != 1 {
		t.Fatalf("expected 1 active membership, got %v", resp.Result["memberships"])
	}
}

func TestGetDocument_FieldsOverride(t *testing.T) {
	ent := &mockEntities{
		getFn: func(context.Context, string, string) (domentity.Document, error) { return ada(), nil },
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/persons/p1?fields=email&all_translations=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[DocumentResponse](t, rec)
	if resp.Result["email"] != "ada@example.org" {
		t.Errorf("email = %v", resp.Result["email"])
	}
	if _, ok := resp.Result["name"]; ok {
		t.Error("only email should be visible")
	}
}

func TestGetDocument_BadAt(t *testing.T) {
	h := newTestServer(t, &mockEntities{}, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/persons/p1?at=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != codeBadRequest {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestGetDocument_UnknownCollection(t *testing.T) {
	h := newTestServer(t, &mockEntities{}, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/planets/p1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	ent := &mockEntities{
		getFn: func(context.Context, string, string) (domentity.Document, error) {
			return nil, fmt.Errorf("get p9: %w", domain.ErrNotFound)
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/persons/p9", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetDocument_StorageErrorHidesDetails(t *testing.T) {
	ent := &mockEntities{
		getFn: func(context.Context, string, string) (domentity.Document, error) {
			return nil, fmt.Errorf("get: %w: %w", domain.ErrStorage, errors.New("connection refused 10.0.0.1"))
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/persons/p1", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.1") {
		t.Error("storage details leaked")
	}
}

func TestListDocuments_Paging(t *testing.T) {
	ent := &mockEntities{
		listFn: func(_ context.Context, _ string, p paging.Page) (entityuc.ListResult, error) {
			if p.Skip != 10 || p.Limit != 10 {
				t.Errorf("expected skip=10 limit=10, got %+v", p)
			}
			return entityuc.ListResult{
				Documents: []domentity.Document{ada()},
				Total:     35,
				Page:      p,
			}, nil
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/persons?page=2&per_page=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[ListResponse](t, rec)
	if resp.Total != 35 || resp.Page != 2 || resp.PerPage != 10 || !resp.HasMore {
		t.Errorf("unexpected page info: %+v", resp)
	}
	if resp.NextURL != "http://api.test/api/v0.1/persons?page=3&per_page=10" {
		t.Errorf("next_url = %q", resp.NextURL)
	}
	if resp.PrevURL != "http://api.test/api/v0.1/persons?page=1&per_page=10" {
		t.Errorf("prev_url = %q", resp.PrevURL)
	}
	if len(resp.Result) != 1 || resp.Result[0]["name"] != "Ada Lovelace" {
		t.Errorf("unexpected result: %v", resp.Result)
	}
}

func TestListDocuments_LastPage(t *testing.T) {
	ent := &mockEntities{
		listFn: func(_ context.Context, _ string, p paging.Page) (entityuc.ListResult, error) {
			return entityuc.ListResult{Total: 5, Page: p}, nil
		},
	}
	h := newTestServer(t, ent, nil)

	resp := decode[ListResponse](t, do(t, h, http.MethodGet, "/api/v0.1/persons", nil))
	if resp.HasMore || resp.NextURL != "" || resp.PrevURL != "" {
		t.Errorf("unexpected paging links: %+v", resp)
	}
	if resp.PerPage != paging.DefaultPerPage {
		t.Errorf("per_page = %d", resp.PerPage)
	}
}

func TestCreateDocument(t *testing.T) {
	ent := &mockEntities{
		createFn: func(_ context.Context, _ string, doc domentity.Document) (domentity.Document, error) {
			doc.SetID("generated")
			return doc, nil
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodPost, "/api/v0.1/persons", strings.NewReader(`{"name":"Grace"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[DocumentResponse](t, rec); resp.Result["id"] != "generated" {
		t.Errorf("id = %v", resp.Result["id"])
	}
}

func TestCreateDocument_MalformedBody(t *testing.T) {
	h := newTestServer(t, &mockEntities{}, nil)

	for _, body := range []string{`{"name":`, `null`, `[1,2]`} {
		rec := do(t, h, http.MethodPost, "/api/v0.1/persons", strings.NewReader(body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestUpdateDocument_IDMismatch(t *testing.T) {
	ent := &mockEntities{
		updateFn: func(context.Context, string, string, domentity.Document) (domentity.Document, error) {
			return nil, fmt.Errorf("body id mismatch: %w", domain.ErrMalformedInput)
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodPut, "/api/v0.1/persons/p1", strings.NewReader(`{"id":"p2"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	var deleted string
	ent := &mockEntities{
		deleteFn: func(_ context.Context, _, id string) error {
			deleted = id
			return nil
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodDelete, "/api/v0.1/persons/p1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if deleted != "p1" {
		t.Errorf("deleted %q", deleted)
	}
}

func TestSearch_InvalidQuery(t *testing.T) {
	idx := &mockIndexer{
		searchFn: func(context.Context, string, indexer.Query) (*db.SearchResult, error) {
			return nil, domain.NewInvalidQuery("name:(", "Syntax error at offset 6")
		},
	}
	h := newTestServer(t, nil, idx)

	rec := do(t, h, http.MethodGet, "/api/v0.1/search/persons?q=name:(", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Code != codeInvalidQuery || resp.Query != "name:(" || resp.Explanation != "Syntax error at offset 6" {
		t.Errorf("unexpected error body: %+v", resp)
	}
}

func TestSearch_Passthrough(t *testing.T) {
	idx := &mockIndexer{
		searchFn: func(_ context.Context, collection string, q indexer.Query) (*db.SearchResult, error) {
			if collection != "persons" || q.Q != "ada" || q.Page != 2 || q.PerPage != 10 {
				t.Errorf("unexpected search %s %+v", collection, q)
			}
			return &db.SearchResult{
				Total: 11,
				Hits:  []db.Hit{{ID: "p1", Score: 2, Source: map[string]any{"id": "p1"}}},
			}, nil
		},
	}
	h := newTestServer(t, nil, idx)

	rec := do(t, h, http.MethodGet, "/api/v0.1/search/persons?q=ada&page=2&per_page=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decode[db.SearchResult](t, rec)
	if resp.Total != 11 || len(resp.Hits) != 1 || resp.Hits[0].ID != "p1" {
		t.Errorf("unexpected result: %+v", resp)
	}
}

func TestReindex(t *testing.T) {
	idx := &mockIndexer{
		reindexFn: func(_ context.Context, collection string) (int, error) {
			if collection != "persons" {
				t.Errorf("collection = %q", collection)
			}
			return 4500, nil
		},
	}
	h := newTestServer(t, nil, idx)

	rec := do(t, h, http.MethodPost, "/api/v0.1/admin/reindex/persons", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[ReindexResponse](t, rec); resp.Indexed != 4500 {
		t.Errorf("indexed = %d", resp.Indexed)
	}
}

func TestAddImage_JSONMetadata(t *testing.T) {
	ent := &mockEntities{
		addImageFn: func(_ context.Context, _, id string, in entityuc.ImageInput) (domentity.Document, error) {
			if in.UploadPath != "" {
				t.Error("expected no upload")
			}
			if in.Meta["url"] != "http://img.test/a.png" || in.Meta["index"] != "first" {
				t.Errorf("meta = %v", in.Meta)
			}
			doc := ada()
			doc.SetImages([]domentity.Image{{"id": "i1", "url": "http://img.test/a.png"}})
			return doc, nil
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodPost, "/api/v0.1/persons/p1/images",
		strings.NewReader(`{"url":"http://img.test/a.png","index":"first"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[DocumentResponse](t, rec); resp.Result["image"] != "http://img.test/a.png" {
		t.Errorf("image = %v", resp.Result["image"])
	}
}

func TestAddImage_Multipart(t *testing.T) {
	var staged string
	ent := &mockEntities{
		addImageFn: func(_ context.Context, _, _ string, in entityuc.ImageInput) (domentity.Document, error) {
			if in.UploadPath == "" {
				t.Fatal("expected staged upload")
			}
			data, err := os.ReadFile(in.UploadPath)
			if err != nil {
				t.Fatalf("read staged upload: %v", err)
			}
			staged = in.UploadPath
			if string(data) != "PNGDATA" {
				t.Errorf("upload = %q", data)
			}
			if in.Meta["caption"] != "portrait" {
				t.Errorf("meta = %v", in.Meta)
			}
			if in.Meta["mime_type"] != "image/png" {
				t.Errorf("mime_type = %v", in.Meta["mime_type"])
			}
			doc := ada()
			doc.SetImages([]domentity.Image{{"id": "i1", "mime_type": "image/png"}})
			return doc, nil
		},
	}
	h := newTestServer(t, ent, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("caption", "portrait")
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="image"; filename="ada.png"`}
	hdr["Content-Type"] = []string{"image/png"}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("PNGDATA"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v0.1/persons/p1/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[DocumentResponse](t, rec)
	if resp.Result["image"] != "http://www.test/persons/images/i1/p1" {
		t.Errorf("image = %v", resp.Result["image"])
	}
	if _, err := os.Stat(staged); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("staged upload should be cleaned up, stat err = %v", err)
	}
}

func TestRemoveImage_NotFound(t *testing.T) {
	ent := &mockEntities{
		removeImageFn: func(context.Context, string, string, string) (domentity.Document, error) {
			return nil, fmt.Errorf("image: %w", domain.ErrNotFound)
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodDelete, "/api/v0.1/persons/p1/images/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRemoveAllImages(t *testing.T) {
	ent := &mockEntities{
		removeAllFn: func(context.Context, string, string) (domentity.Document, error) {
			return domentity.Document{"id": "p1", "name": "Ada"}, nil
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodDelete, "/api/v0.1/persons/p1/images", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decode[DocumentResponse](t, rec); resp.Result["image"] != nil {
		t.Errorf("image = %v", resp.Result["image"])
	}
}

func TestGetImage_ServesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i1")
	if err := os.WriteFile(path, []byte("GIF89a"), 0o600); err != nil {
		t.Fatal(err)
	}
	ent := &mockEntities{
		openImageFn: func(context.Context, string, string, string) (*os.File, domentity.Image, error) {
			f, err := os.Open(path)
			return f, domentity.Image{"id": "i1", "mime_type": "image/gif"}, err
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/persons/p1/images/i1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/gif" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.String() != "GIF89a" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	resp := decode[healthResponse](t, rec)
	if resp.Status != "ok" || resp.Checks[healthuc.Database] != healthuc.CheckOK {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestRecoverer_ReturnsJSON(t *testing.T) {
	ent := &mockEntities{
		getFn: func(context.Context, string, string) (domentity.Document, error) { panic("boom") },
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/persons/p1", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != codeInternal {
		t.Errorf("code = %q", resp.Code)
	}
}

// --- export.go tests ---

func personsOnly(docs ...domentity.Document) *mockEntities {
	return &mockEntities{
		listFn: func(_ context.Context, collection string, p paging.Page) (entityuc.ListResult, error) {
			if collection != "persons" {
				return entityuc.ListResult{Page: p}, nil
			}
			end := min(p.Skip+p.Limit, len(docs))
			start := min(p.Skip, end)
			return entityuc.ListResult{Documents: docs[start:end], Total: len(docs), Page: p}, nil
		},
	}
}

func TestExport_AllTranslations(t *testing.T) {
	h := newTestServer(t, personsOnly(ada()), nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/export.json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	dump := decode[map[string][]map[string]any](t, rec)

	for _, name := range collection.Known {
		if _, ok := dump[name]; !ok {
			t.Errorf("collection %s missing from export", name)
		}
	}
	persons := dump["persons"]
	if len(persons) != 1 {
		t.Fatalf("persons = %v", persons)
	}
	name, ok := persons[0]["name"].(map[string]any)
	if !ok || name["ru"] != "Ада Лавлейс" || name["en"] != "Ada Lovelace" {
		t.Errorf("expected every translation, got %v", persons[0]["name"])
	}
	if _, ok := persons[0]["email"]; ok {
		t.Error("hidden field leaked into export")
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Error("plain export should not be an attachment")
	}
}

func TestExportLang_Gzip(t *testing.T) {
	h := newTestServer(t, personsOnly(ada()), nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/export-ru.json.gz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=popolo-export-ru.json.gz` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/gzip" {
		t.Errorf("Content-Type = %q", got)
	}

	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	var dump map[string][]map[string]any
	if err := json.NewDecoder(zr).Decode(&dump); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := dump["persons"][0]["name"]; got != "Ада Лавлейс" {
		t.Errorf("name = %v, want the ru translation", got)
	}
}

func TestExportLang_Plain(t *testing.T) {
	h := newTestServer(t, personsOnly(ada()), nil)

	dump := decode[map[string][]map[string]any](t, do(t, h, http.MethodGet, "/api/v0.1/export-en.json", nil))
	if got := dump["persons"][0]["name"]; got != "Ada Lovelace" {
		t.Errorf("name = %v", got)
	}
}

func TestExportGzip_InstanceFilename(t *testing.T) {
	persons, _ := collection.New("persons")
	h := NewServer(personsOnly(ada()), &mockIndexer{}, &mockHealth{}, collection.NewRegistry(persons), nil).
		WithInstanceName("ukraine").
		Router()

	rec := do(t, h, http.MethodGet, "/api/v0.1/export.json.gz", nil)
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=ukraine-popolo-export.json.gz` {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestExport_PagesThroughCollection(t *testing.T) {
	docs := make([]domentity.Document, 250)
	for i := range docs {
		docs[i] = domentity.Document{"id": fmt.Sprintf("p%03d", i)}
	}
	h := newTestServer(t, personsOnly(docs...), nil)

	dump := decode[map[string][]map[string]any](t, do(t, h, http.MethodGet, "/api/v0.1/export.json", nil))
	if got := len(dump["persons"]); got != 250 {
		t.Fatalf("exported %d persons, want 250", got)
	}
	if dump["persons"][249]["id"] != "p249" {
		t.Errorf("last = %v", dump["persons"][249]["id"])
	}
}

func TestExportLang_InvalidLanguage(t *testing.T) {
	h := newTestServer(t, personsOnly(), nil)

	if rec := do(t, h, http.MethodGet, "/api/v0.1/export-english1.json", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExport_StorageError(t *testing.T) {
	ent := &mockEntities{
		listFn: func(context.Context, string, paging.Page) (entityuc.ListResult, error) {
			return entityuc.ListResult{}, fmt.Errorf("find: %w", domain.ErrStorage)
		},
	}
	h := newTestServer(t, ent, nil)

	rec := do(t, h, http.MethodGet, "/api/v0.1/export.json.gz", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Error("failed export must not start a download")
	}
}
