package chi

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/popolodex/internal/domain"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/i18n"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/transform"
	"github.com/kailas-cloud/popolodex/internal/domain/paging"
	"github.com/kailas-cloud/popolodex/internal/logger"
)

// Export handles GET /export.json: every collection with all translations.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "", false)
}

// ExportGzip handles GET /export.json.gz.
func (s *Server) ExportGzip(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, "", true)
}

// ExportLang handles GET /export-{lang}.json: every collection projected to one language.
func (s *Server) ExportLang(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, chi.URLParam(r, "lang"), false)
}

// ExportLangGzip handles GET /export-{lang}.json.gz.
func (s *Server) ExportLangGzip(w http.ResponseWriter, r *http.Request) {
	s.serveExport(w, r, chi.URLParam(r, "lang"), true)
}

func (s *Server) serveExport(w http.ResponseWriter, r *http.Request, lang string, gz bool) {
	if lang != "" && !i18n.IsLocale(lang) {
		s.handleDomainError(w, r, fmt.Errorf("language %q: %w", lang, domain.ErrMalformedInput))
		return
	}

	dump, err := s.buildExport(r.Context(), lang)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if !gz {
		writeJSON(w, http.StatusOK, dump)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": s.exportFilename(lang)}))
	w.WriteHeader(http.StatusOK)

	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(dump); err != nil {
		logger.FromContextOr(r.Context(), s.logger).Warn("export write failed", zap.Error(err))
		return
	}
	if err := zw.Close(); err != nil {
		logger.FromContextOr(r.Context(), s.logger).Warn("export write failed", zap.Error(err))
	}
}

// buildExport lists every registered collection page by page and transforms
// each document. An empty lang keeps all translations.
func (s *Server) buildExport(ctx context.Context, lang string) (map[string][]map[string]any, error) {
	names := s.colls.Names()
	dump := make(map[string][]map[string]any, len(names))

	for _, name := range names {
		col, ok := s.colls.Get(name)
		if !ok {
			continue
		}
		opts := transform.Options{
			Collection:      name,
			Fields:          col.Fields(),
			APIBaseURL:      s.apiBaseURL,
			BaseURL:         s.baseURL,
			DefaultLanguage: col.DefaultLanguage(),
		}
		if lang == "" {
			opts.ReturnAllTranslations = true
		} else {
			opts.Langs = []string{lang}
		}

		items := make([]map[string]any, 0)
		for page := paging.DefaultPage; ; page++ {
			p := s.paging.Resolve(page, s.paging.MaxPerPage)
			res, err := s.entities.List(ctx, name, p)
			if err != nil {
				return nil, fmt.Errorf("export %s: %w", name, err)
			}
			for _, doc := range res.Documents {
				items = append(items, transform.Apply(doc, opts))
			}
			if len(res.Documents) == 0 || !p.HasMore(res.Total) {
				break
			}
		}
		dump[name] = items
	}
	return dump, nil
}

func (s *Server) exportFilename(lang string) string {
	name := "popolo-export"
	if s.instanceName != "" {
		name = s.instanceName + "-" + name
	}
	if lang != "" {
		name += "-" + lang
	}
	return name + ".json.gz"
}
