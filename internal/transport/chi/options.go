package chi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/popolodex/internal/domain"
	"github.com/kailas-cloud/popolodex/internal/domain/collection"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/datewindow"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/fields"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/i18n"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/transform"
)

// collection resolves the {collection} URL parameter.
func (s *Server) collection(r *http.Request) (collection.Collection, error) {
	name := chi.URLParam(r, "collection")
	col, ok := s.colls.Get(name)
	if !ok {
		return collection.Collection{}, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	return col, nil
}

// transformOptions reads fields, lang, all_translations and at.
// The collection's configured fields are the base; ?fields overrides them.
func (s *Server) transformOptions(r *http.Request, col collection.Collection) (transform.Options, error) {
	q := r.URL.Query()

	opts := transform.Options{
		Collection:      col.Name(),
		Fields:          col.Fields().Merge(fields.Parse(q.Get("fields"))),
		APIBaseURL:      s.apiBaseURL,
		BaseURL:         s.baseURL,
		Langs:           i18n.ParseLangs(q.Get("lang"), r.Header.Get("Accept-Language")),
		DefaultLanguage: col.DefaultLanguage(),
	}

	if raw := q.Get("all_translations"); raw != "" {
		all, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("all_translations %q: %w", raw, domain.ErrMalformedInput)
		}
		opts.ReturnAllTranslations = all
	}

	if raw := q.Get("at"); raw != "" {
		at, ok := datewindow.ParseDate(raw)
		if !ok {
			return opts, fmt.Errorf("at %q must be YYYY-MM-DD: %w", raw, domain.ErrMalformedInput)
		}
		opts.At = &at
	}
	return opts, nil
}

// pageURL rebuilds the request URL for another page of the same list.
func (s *Server) pageURL(r *http.Request, collection string, page int) string {
	q := cloneQuery(r.URL.Query())
	q.Set("page", strconv.Itoa(page))

	base := r.URL.Path
	if s.apiBaseURL != "" {
		base = strings.TrimRight(s.apiBaseURL, "/") + "/" + collection
	}
	return base + "?" + q.Encode()
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
