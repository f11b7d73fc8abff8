package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/popolodex/internal/db"
)

// Index stores one document as JSON under its DocRef key.
func (s *Store) Index(ctx context.Context, req db.IndexRequest) error {
	cmd, err := s.jsonSetCmd(req)
	if err != nil {
		return err
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return nil
}

// Delete removes an indexed document. A missing key is db.ErrKeyNotFound.
func (s *Store) Delete(ctx context.Context, ref db.DocRef) error {
	cmd := s.b().Del().Key(db.DocKey(ref)).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	if n == 0 {
		return db.ErrKeyNotFound
	}
	return nil
}

// Bulk pipelines JSON.SET for every (action, document) pair in body.
// Per-item failures are reported in the response; transport failures of the
// whole pipeline are returned as an error.
func (s *Store) Bulk(ctx context.Context, body []any) (*db.BulkResponse, error) {
	pairs := db.BulkPairs(body)
	resp := &db.BulkResponse{Items: make([]db.BulkItem, 0, len(pairs))}
	if len(pairs) == 0 {
		return resp, nil
	}

	cmds := make(rueidis.Commands, 0, len(pairs))
	for _, p := range pairs {
		cmd, err := s.jsonSetCmd(p)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, r := range results {
		item := db.BulkItem{ID: pairs[i].ID}
		if err := r.Error(); err != nil {
			if _, isRedis := rueidis.IsRedisErr(err); !isRedis {
				return nil, &db.Error{Op: db.OpJSONSet, Err: err}
			}
			item.Error = err.Error()
			resp.Errors = true
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}

func (s *Store) jsonSetCmd(req db.IndexRequest) (rueidis.Completed, error) {
	doc := make(map[string]any, len(req.Body)+1)
	for k, v := range req.Body {
		doc[k] = v
	}
	doc[db.Content] = Content(req.Body)

	data, err := json.Marshal(doc)
	if err != nil {
		return rueidis.Completed{}, fmt.Errorf("marshal %s: %w", db.DocKey(req.DocRef), err)
	}
	return s.b().Arbitrary("JSON.SET").Keys(db.DocKey(req.DocRef)).Args("$", string(data)).Build(), nil
}

// Content flattens every string value of a document, in key order, into the
// text that backs full-text search.
func Content(body map[string]any) string {
	var parts []string
	collectText(body, &parts)
	return strings.Join(parts, " ")
}

func collectText(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			*out = append(*out, s)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			if k == db.Content {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectText(t[k], out)
		}
	case []any:
		for _, item := range t {
			collectText(item, out)
		}
	case []map[string]any:
		for _, item := range t {
			collectText(item, out)
		}
	}
}
