// Package indexer keeps the search engine in sync with the document store:
// per-document hooks on save and remove, full collection reindex, and
// validated query-string search.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/popolodex/internal/db"
	"github.com/kailas-cloud/popolodex/internal/domain"
	"github.com/kailas-cloud/popolodex/internal/domain/collection"
	"github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/fields"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/transform"
	"github.com/kailas-cloud/popolodex/internal/domain/paging"
	"github.com/kailas-cloud/popolodex/internal/logger"
	"github.com/kailas-cloud/popolodex/internal/metrics"
)

// Defaults.
const (
	DefaultBatchSize          = 2000
	DefaultReindexConcurrency = 4
	DefaultMaxTries           = 3
	DefaultHookTimeout        = 10 * time.Second
)

// ErrClosed is returned by hooks submitted after Close.
var ErrClosed = errors.New("indexer closed")

// indexFields is the fixed visibility applied to indexed documents.
func indexFields() fields.Spec {
	return fields.Spec{
		entity.FieldMemberships: false,
		entity.FieldURL:         false,
		entity.FieldHTMLURL:     false,
	}
}

// Query is a search request against one collection.
type Query struct {
	Q       string
	Page    int
	PerPage int
}

// Service is the search indexer.
type Service struct {
	docs     DocumentSource
	engine   Engine
	colls    Collections
	database string
	logger   *zap.Logger

	apiBaseURL string
	baseURL    string

	batchSize     int
	concurrency   int
	maxTries      int
	retryInterval time.Duration
	hookTimeout   time.Duration
	storeTimeout  time.Duration
	searchTimeout time.Duration
	paging        paging.Policy

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates an indexer. database names the default search index.
func New(docs DocumentSource, engine Engine, colls Collections, database string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		docs:          docs,
		engine:        engine,
		colls:         colls,
		database:      database,
		logger:        log,
		batchSize:     DefaultBatchSize,
		concurrency:   DefaultReindexConcurrency,
		maxTries:      DefaultMaxTries,
		retryInterval: 200 * time.Millisecond,
		hookTimeout:   DefaultHookTimeout,
		paging:        paging.DefaultPolicy,
	}
}

// WithBaseURLs sets the URL bases used for synthesized image urls.
func (s *Service) WithBaseURLs(apiBaseURL, baseURL string) *Service {
	s.apiBaseURL = apiBaseURL
	s.baseURL = baseURL
	return s
}

// WithPaging sets the page size policy for search.
func (s *Service) WithPaging(p paging.Policy) *Service {
	s.paging = p
	return s
}

// WithReindex configures batch size and the number of batches fetched at once.
func (s *Service) WithReindex(batchSize, concurrency int) *Service {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	return s
}

// WithRetry configures hook retries on timeout.
func (s *Service) WithRetry(maxTries int, interval time.Duration) *Service {
	if maxTries > 0 {
		s.maxTries = maxTries
	}
	if interval > 0 {
		s.retryInterval = interval
	}
	return s
}

// WithTimeouts sets per-call timeouts. Zero leaves the current value.
func (s *Service) WithTimeouts(hook, store, search time.Duration) *Service {
	if hook > 0 {
		s.hookTimeout = hook
	}
	if store > 0 {
		s.storeTimeout = store
	}
	if search > 0 {
		s.searchTimeout = search
	}
	return s
}

// Identity returns the (index, type) a collection is indexed under.
func (s *Service) Identity(name string) (index, typ string) {
	return s.collection(name).Identity(s.database)
}

// OnSave indexes doc asynchronously. The document is transformed before
// returning, so the caller may reuse it.
func (s *Service) OnSave(ctx context.Context, name string, doc entity.Document) *Pending {
	id := doc.ID()
	if id == "" {
		return Completed(fmt.Errorf("index %s: document without id: %w", name, domain.ErrMalformedInput))
	}
	col := s.collection(name)
	index, typ := col.Identity(s.database)
	req := db.IndexRequest{
		DocRef: db.DocRef{Index: index, Type: typ, ID: id},
		Body:   s.indexBody(doc, col),
	}

	return s.async(ctx, metrics.OpIndex, req.DocRef, func(ctx context.Context) error {
		if err := s.engine.Index(ctx, req); err != nil {
			return fmt.Errorf("index %s: %w: %w", db.DocKey(req.DocRef), domain.ErrStorage, err)
		}
		return nil
	})
}

// OnRemove deletes the indexed copy of a document asynchronously.
func (s *Service) OnRemove(ctx context.Context, name, id string) *Pending {
	index, typ := s.Identity(name)
	ref := db.DocRef{Index: index, Type: typ, ID: id}

	return s.async(ctx, metrics.OpDelete, ref, func(ctx context.Context) error {
		err := s.engine.Delete(ctx, ref)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, db.ErrKeyNotFound):
			return fmt.Errorf("delete %s: %w", db.DocKey(ref), domain.ErrNotFound)
		default:
			return fmt.Errorf("delete %s: %w: %w", db.DocKey(ref), domain.ErrStorage, err)
		}
	})
}

// Close stops accepting hooks and waits for in-flight ones.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// async runs fn detached from the caller's cancellation, retrying timeouts.
func (s *Service) async(ctx context.Context, op string, ref db.DocRef, fn func(context.Context) error) *Pending {
	p := newPending()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		p.finish(ErrClosed)
		return p
	}
	s.wg.Add(1)
	s.mu.Unlock()

	log := logger.FromContextOr(ctx, s.logger)
	base := context.WithoutCancel(ctx)

	go func() {
		defer s.wg.Done()
		start := time.Now()
		err := s.retry(base, fn)
		logFields := []zap.Field{
			zap.String("op", op),
			zap.String("key", db.DocKey(ref)),
			zap.Duration("took", time.Since(start)),
		}
		if err != nil {
			metrics.ObserveIndexOp(op, metrics.StatusError)
			log.Warn("index hook failed", append(logFields, zap.Error(err))...)
		} else {
			metrics.ObserveIndexOp(op, metrics.StatusOK)
			log.Debug("index hook done", logFields...)
		}
		p.finish(err)
	}()
	return p
}

func (s *Service) retry(ctx context.Context, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.hookTimeout)
		defer cancel()
		err := fn(callCtx)
		if err == nil {
			return struct{}{}, nil
		}
		if domain.IsRetryable(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.maxTries)))
	return err
}

// Reindex resubmits every document of a collection in one bulk request and
// returns the number of documents submitted. Nothing is submitted if any
// batch fails.
func (s *Service) Reindex(ctx context.Context, name string) (int, error) {
	start := time.Now()
	log := s.logger.With(zap.String("collection", name))

	col := s.collection(name)
	index, typ := col.Identity(s.database)

	countCtx, cancel := s.withTimeout(ctx, s.storeTimeout)
	total, err := s.docs.Count(countCtx, name)
	cancel()
	if err != nil {
		metrics.ObserveIndexOp(metrics.OpReindex, metrics.StatusError)
		return 0, fmt.Errorf("reindex %s: count: %w", name, err)
	}
	if total == 0 {
		return 0, nil
	}

	batches := (total + s.batchSize - 1) / s.batchSize
	results := make([][]any, batches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range batches {
		g.Go(func() error {
			fetchCtx, cancel := s.withTimeout(gctx, s.storeTimeout)
			defer cancel()
			docs, err := s.docs.Find(fetchCtx, name, db.FindQuery{
				Skip:  i * s.batchSize,
				Limit: s.batchSize,
			})
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			pairs, err := s.transformBatch(gctx, docs, index, typ, col)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			results[i] = pairs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.ObserveIndexOp(metrics.OpReindex, metrics.StatusError)
		return 0, fmt.Errorf("reindex %s: %w", name, err)
	}

	body := make([]any, 0, 2*total)
	for _, pairs := range results {
		body = append(body, pairs...)
	}
	if len(body) == 0 {
		return 0, nil
	}

	bulkCtx, cancel := s.withTimeout(ctx, s.searchTimeout)
	defer cancel()
	resp, err := s.engine.Bulk(bulkCtx, body)
	if err != nil {
		metrics.ObserveIndexOp(metrics.OpBulk, metrics.StatusError)
		return 0, fmt.Errorf("reindex %s: bulk: %w: %w", name, domain.ErrStorage, err)
	}
	metrics.ObserveIndexOp(metrics.OpBulk, metrics.StatusOK)
	if resp != nil && resp.Errors {
		failed := 0
		for _, item := range resp.Items {
			if item.Error != "" {
				failed++
			}
		}
		log.Warn("bulk reindex reported item errors", zap.Int("failed", failed))
	}

	count := len(body) / 2
	took := time.Since(start)
	metrics.ObserveReindex(name, count, took)
	metrics.ObserveIndexOp(metrics.OpReindex, metrics.StatusOK)
	log.Info("reindex finished",
		zap.Int("documents", count),
		zap.Int("batches", batches),
		zap.Duration("took", took),
	)
	return count, nil
}

// transformBatch converts one fetched batch into bulk pairs, in input order.
func (s *Service) transformBatch(
	ctx context.Context, docs []entity.Document, index, typ string, col collection.Collection,
) ([]any, error) {
	bodies := make([]map[string]any, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bodies[i] = s.indexBody(doc, col)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pairs := make([]any, 0, 2*len(docs))
	for i, doc := range docs {
		id := doc.ID()
		if id == "" {
			s.logger.Warn("skipping document without id", zap.String("collection", col.Name()))
			continue
		}
		pairs = append(pairs,
			db.BulkAction{Index: db.DocRef{Index: index, Type: typ, ID: id}},
			bodies[i],
		)
	}
	return pairs, nil
}

// Search validates q and runs it. Invalid queries yield a
// *domain.InvalidQueryError carrying the engine's explanation.
func (s *Service) Search(ctx context.Context, name string, q Query) (*db.SearchResult, error) {
	p := s.paging.Resolve(q.Page, q.PerPage)
	index, typ := s.Identity(name)

	ctx, cancel := s.withTimeout(ctx, s.searchTimeout)
	defer cancel()

	v, err := s.engine.ValidateQuery(ctx, db.ValidateRequest{Index: index, Type: typ, Q: q.Q})
	if err != nil {
		metrics.ObserveIndexOp(metrics.OpSearch, metrics.StatusError)
		return nil, searchErr(name, err)
	}
	if !v.Valid {
		metrics.ObserveIndexOp(metrics.OpSearch, metrics.StatusInvalid)
		return nil, domain.NewInvalidQuery(q.Q, strings.Join(v.Explanations, "; "))
	}

	res, err := s.engine.Search(ctx, db.SearchRequest{
		Index:   index,
		Type:    typ,
		Q:       q.Q,
		From:    p.Skip,
		Size:    p.Limit,
		Explain: true,
	})
	if err != nil {
		metrics.ObserveIndexOp(metrics.OpSearch, metrics.StatusError)
		return nil, searchErr(name, err)
	}
	metrics.ObserveIndexOp(metrics.OpSearch, metrics.StatusOK)
	return res, nil
}

func searchErr(name string, err error) error {
	if errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("search %s: index: %w", name, domain.ErrNotFound)
	}
	return fmt.Errorf("search %s: %w: %w", name, domain.ErrStorage, err)
}

func (s *Service) indexBody(doc entity.Document, col collection.Collection) map[string]any {
	return transform.Apply(doc, transform.Options{
		Collection:            col.Name(),
		Fields:                indexFields(),
		APIBaseURL:            s.apiBaseURL,
		BaseURL:               s.baseURL,
		DefaultLanguage:       col.DefaultLanguage(),
		ReturnAllTranslations: true,
	})
}

func (s *Service) collection(name string) collection.Collection {
	if s.colls != nil {
		if c, ok := s.colls.Get(name); ok {
			return c
		}
	}
	return collection.Default(name)
}

func (s *Service) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
