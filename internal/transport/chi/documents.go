package chi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/popolodex/internal/domain"
	domentity "github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/transform"
)

// DocumentResponse wraps a single transformed document.
type DocumentResponse struct {
	Result map[string]any `json:"result"`
}

// ListResponse is one page of transformed documents.
type ListResponse struct {
	Result  []map[string]any `json:"result"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	HasMore bool             `json:"has_more"`
	NextURL string           `json:"next_url,omitempty"`
	PrevURL string           `json:"prev_url,omitempty"`
}

// ListDocuments handles GET /{collection}.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
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

	q := r.URL.Query()
	p := s.paging.Parse(q.Get("page"), q.Get("per_page"))

	res, err := s.entities.List(r.Context(), col.Name(), p)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]map[string]any, len(res.Documents))
	for i, doc := range res.Documents {
		items[i] = transform.Apply(doc, opts)
	}

	resp := ListResponse{
		Result:  items,
		Total:   res.Total,
		Page:    p.Page,
		PerPage: p.PerPage,
		HasMore: p.HasMore(res.Total),
	}
	if resp.HasMore {
		resp.NextURL = s.pageURL(r, col.Name(), p.Page+1)
	}
	if p.HasPrev() {
		resp.PrevURL = s.pageURL(r, col.Name(), p.Page-1)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDocument handles GET /{collection}/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
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

	doc, err := s.entities.Get(r.Context(), col.Name(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Result: transform.Apply(doc, opts)})
}

// CreateDocument handles POST /{collection}.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
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
	doc, err := decodeDocument(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	saved, err := s.entities.Create(r.Context(), col.Name(), doc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, DocumentResponse{Result: transform.Apply(saved, opts)})
}

// UpdateDocument handles PUT /{collection}/{id}.
func (s *Server) UpdateDocument(w http.ResponseWriter, r *http.Request) {
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
	doc, err := decodeDocument(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	saved, err := s.entities.Update(r.Context(), col.Name(), chi.URLParam(r, "id"), doc)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Result: transform.Apply(saved, opts)})
}

// DeleteDocument handles DELETE /{collection}/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	col, err := s.collection(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := s.entities.Delete(r.Context(), col.Name(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeDocument(r *http.Request) (domentity.Document, error) {
	var doc domentity.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid request body: %w: %w", domain.ErrMalformedInput, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("request body must be an object: %w", domain.ErrMalformedInput)
	}
	return doc, nil
}
