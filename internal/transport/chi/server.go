package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/popolodex/internal/domain/paging"
	"github.com/kailas-cloud/popolodex/internal/metrics"
	healthuc "github.com/kailas-cloud/popolodex/internal/usecase/health"
)

// BasePath prefixes every API route.
const BasePath = "/api/v0.1"

const defaultMaxUpload = 10 << 20

// Server serves the entity, image, search and admin routes.
type Server struct {
	entities Entities
	index    Indexer
	health   HealthChecker
	colls    Collections
	logger   *zap.Logger

	apiBaseURL   string
	baseURL      string
	instanceName string
	paging       paging.Policy
	maxUpload    int64
}

// NewServer creates an HTTP API server.
func NewServer(
	entities Entities,
	index Indexer,
	health HealthChecker,
	colls Collections,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		entities:  entities,
		index:     index,
		health:    health,
		colls:     colls,
		logger:    logger,
		paging:    paging.DefaultPolicy,
		maxUpload: defaultMaxUpload,
	}
}

// WithBaseURLs sets the bases of generated url, html_url and image links.
func (s *Server) WithBaseURLs(apiBaseURL, baseURL string) *Server {
	s.apiBaseURL = apiBaseURL
	s.baseURL = baseURL
	return s
}

// WithInstanceName prefixes export download filenames.
func (s *Server) WithInstanceName(name string) *Server {
	s.instanceName = name
	return s
}

// WithPaging sets the page size policy for lists and search.
func (s *Server) WithPaging(p paging.Policy) *Server {
	s.paging = p
	return s
}

// WithMaxUpload caps multipart image uploads, in bytes.
func (s *Server) WithMaxUpload(n int64) *Server {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// Router builds the chi router with the standard middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLog(s.logger))
	r.Use(metrics.Middleware())
	r.Use(recoverJSON(s.logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "unsupported method")
	})

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(BasePath, func(r chi.Router) {
		r.Get("/search/{collection}", s.Search)
		r.Post("/admin/reindex/{collection}", s.Reindex)

		r.Get("/export.json", s.Export)
		r.Get("/export.json.gz", s.ExportGzip)
		r.Get("/export-{lang}.json", s.ExportLang)
		r.Get("/export-{lang}.json.gz", s.ExportLangGzip)

		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", s.ListDocuments)
			r.Post("/", s.CreateDocument)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetDocument)
				r.Put("/", s.UpdateDocument)
				r.Delete("/", s.DeleteDocument)

				r.Post("/images", s.AddImage)
				r.Delete("/images", s.RemoveAllImages)
				r.Get("/images/{imageId}", s.GetImage)
				r.Put("/images/{imageId}", s.UpdateImage)
				r.Delete("/images/{imageId}", s.RemoveImage)
			})
		})
	})
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: report.Checks,
	})
}

type healthResponse struct {
	Status string                          `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
