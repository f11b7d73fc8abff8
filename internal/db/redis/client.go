package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/popolodex/internal/db"
)

var _ db.SearchEngine = (*Store)(nil)

// Config holds connection parameters. Valkey with the search and JSON
// modules is addressed the same way as Redis.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store is the search engine backed by RediSearch and RedisJSON.
type Store struct {
	client rueidis.Client
}

// NewStore dials the configured addresses.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		// FT.SEARCH replies are decoded as RESP2 arrays.
		AlwaysRESP2:  true,
		DisableCache: true,
	})
	if err != nil {
		return nil, &db.Error{Op: "connect", Err: err}
	}
	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client, such as a rueidis mock.
func NewFromClient(c rueidis.Client) *Store {
	return &Store{client: c}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// WaitForReady blocks until the server answers a ping or timeout elapses.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, "search engine", timeout, s.Ping)
}

// Close releases the connections.
func (s *Store) Close() { s.client.Close() }

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder { return s.client.B() }

// redisErrMessage returns the server error text when err is an error reply.
func redisErrMessage(err error) (string, bool) {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return "", false
	}
	return re.Error(), true
}

// isRedisErr reports whether err is an error reply mentioning substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	msg, ok := redisErrMessage(err)
	return ok && containsFold(msg, substr)
}

// isUnknownIndex matches the missing-index replies of both Redis and Valkey.
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}

// Reply fragments of query syntax and parse errors.
var queryErrMarkers = []string{
	"syntax error", "parse", "unknown field", "unknown argument", "bad arguments", "expected",
}

// isQueryError reports whether a reply error blames the query text rather
// than the server state.
func isQueryError(msg string) bool {
	for _, m := range queryErrMarkers {
		if containsFold(msg, m) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
