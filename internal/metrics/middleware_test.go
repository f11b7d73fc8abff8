package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Route("/api/v0.1/{collection}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("[]"))
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "collection") == "nope" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte("{}"))
		})
		r.Delete("/{id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func requests(method, route, collection, status string) float64 {
	return testutil.ToFloat64(httpRequestsTotal.With(prometheus.Labels{
		"method": method, "route": route, "collection": collection, "status": status,
	}))
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	h := newTestRouter()
	before := requests("GET", "/api/v0.1/{collection}/{id}", "persons", "200")

	for _, id := range []string{"p1", "p2", "p3"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v0.1/persons/"+id, http.NoBody))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
	}

	if got := requests("GET", "/api/v0.1/{collection}/{id}", "persons", "200") - before; got != 3 {
		t.Errorf("requests counted = %v, want 3", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected latency observations")
	}
}

func TestMiddleware_ImplicitOKAndExplicitStatus(t *testing.T) {
	h := newTestRouter()
	tests := []struct {
		method, path, route, status string
	}{
		{"GET", "/api/v0.1/posts/", "/api/v0.1/{collection}/", "200"},
		{"DELETE", "/api/v0.1/posts/x1", "/api/v0.1/{collection}/{id}", "204"},
	}
	for _, tc := range tests {
		t.Run(tc.method, func(t *testing.T) {
			before := requests(tc.method, tc.route, "posts", tc.status)
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tc.method, tc.path, http.NoBody))
			if got := requests(tc.method, tc.route, "posts", tc.status) - before; got != 1 {
				t.Errorf("requests counted = %v, want 1", got)
			}
		})
	}
}

func TestMiddleware_NotFoundDropsCollection(t *testing.T) {
	h := newTestRouter()
	before := requests("GET", "/api/v0.1/{collection}/{id}", "", "404")
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v0.1/nope/x", http.NoBody))
	if got := requests("GET", "/api/v0.1/{collection}/{id}", "", "404") - before; got != 1 {
		t.Errorf("requests counted = %v, want 1", got)
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	h := newTestRouter()
	before := requests("GET", unmatchedRoute, "", "404")
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody))
	if got := requests("GET", unmatchedRoute, "", "404") - before; got != 1 {
		t.Errorf("requests counted = %v, want 1", got)
	}
}

func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	h := newTestRouter()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v0.1/persons/", http.NoBody))
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()
}
