package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/popolodex/internal/db"
)

const dialect = "2"

// ValidateQuery asks the engine to plan the query via FT.EXPLAIN. A syntax
// or parse error reply marks the query invalid and becomes the explanation.
// Any other reply error, such as LOADING or NOPERM, is a backend failure.
func (s *Store) ValidateQuery(ctx context.Context, req db.ValidateRequest) (*db.Validation, error) {
	plan, err := s.explain(ctx, req.Index, req.Type, req.Q)
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		if msg, ok := redisErrMessage(err); ok && isQueryError(msg) {
			return &db.Validation{Valid: false, Explanations: []string{msg}}, nil
		}
		return nil, &db.Error{Op: db.OpExplain, Err: err}
	}
	return &db.Validation{Valid: true, Explanations: []string{plan}}, nil
}

// Search runs an FT.SEARCH over the (index, type) entity index.
func (s *Store) Search(ctx context.Context, req db.SearchRequest) (*db.SearchResult, error) {
	if req.Size <= 0 {
		return nil, fmt.Errorf("size must be positive")
	}
	if req.From < 0 {
		return nil, fmt.Errorf("from must not be negative")
	}

	args := []string{
		db.IndexName(req.Index, req.Type), queryOrAll(req.Q),
		"WITHSCORES",
		"LIMIT", strconv.Itoa(req.From), strconv.Itoa(req.Size),
		"DIALECT", dialect,
	}
	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		if isRedisErr(err, "limit exceeds maximum") {
			return s.countOnly(ctx, req)
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	result, err := parseSearchResult(raw, db.KeyPrefix(req.Index, req.Type))
	if err != nil {
		return nil, err
	}

	if req.Explain {
		plan, err := s.explain(ctx, req.Index, req.Type, req.Q)
		if err != nil {
			return nil, &db.Error{Op: db.OpExplain, Err: err}
		}
		result.Explanation = plan
	}
	return result, nil
}

// countOnly answers a page that lies past the engine's result window with
// the total and no hits.
func (s *Store) countOnly(ctx context.Context, req db.SearchRequest) (*db.SearchResult, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(db.IndexName(req.Index, req.Type), queryOrAll(req.Q), "LIMIT", "0", "0", "DIALECT", dialect).
		Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseSearchResult(raw, db.KeyPrefix(req.Index, req.Type))
}

func (s *Store) explain(ctx context.Context, index, typ, q string) (string, error) {
	cmd := s.b().Arbitrary("FT.EXPLAIN").
		Args(db.IndexName(index, typ), queryOrAll(q), "DIALECT", dialect).
		Build()
	return s.do(ctx, cmd).ToString()
}

func queryOrAll(q string) string {
	if strings.TrimSpace(q) == "" {
		return "*"
	}
	return q
}

// parseSearchResult reads a WITHSCORES reply on a JSON index:
// [total, key1, score1, ["$", json1], key2, score2, ["$", json2], ...]
func parseSearchResult(raw []rueidis.RedisMessage, prefix string) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{Hits: []db.Hit{}}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	hits := make([]db.Hit, 0, (len(raw)-1)/3)
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		hits = append(hits, db.Hit{
			ID:     strings.TrimPrefix(key, prefix),
			Score:  score,
			Source: parseSource(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Hits: hits}, nil
}

// parseSource decodes the "$" field of a JSON hit and strips the synthesized
// content field.
func parseSource(fields []rueidis.RedisMessage) map[string]any {
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil || name != "$" {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			return nil
		}
		var src map[string]any
		if err := json.Unmarshal([]byte(value), &src); err != nil {
			return nil
		}
		delete(src, db.Content)
		return src
	}
	return nil
}
