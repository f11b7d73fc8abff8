package chi

import (
	"net/http"

	"github.com/kailas-cloud/popolodex/internal/usecase/indexer"
)

// ReindexResponse reports a completed reindex.
type ReindexResponse struct {
	Collection string `json:"collection"`
	Indexed    int    `json:"indexed"`
}

// Search handles GET /search/{collection}?q=&page=&per_page=. The engine
// result is returned as is.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	col, err := s.collection(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	q := r.URL.Query()
	p := s.paging.Parse(q.Get("page"), q.Get("per_page"))

	res, err := s.index.Search(r.Context(), col.Name(), indexer.Query{
		Q:       q.Get("q"),
		Page:    p.Page,
		PerPage: p.PerPage,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Reindex handles POST /admin/reindex/{collection}.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	col, err := s.collection(r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	n, err := s.index.Reindex(r.Context(), col.Name())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{Collection: col.Name(), Indexed: n})
}
