package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docrag/internal/rag"
)

const generationKey = "search:generation"

// SearchKey identifies one cached search. Generation is the index
// generation the caller read before searching; results stored under an
// older generation are never returned for a newer one.
type SearchKey struct {
	Model      string
	Query      string
	TopK       int
	Threshold  float64
	Generation int64
}

// SearchCache keeps search results in Redis. Every entry is scoped to an
// index generation; Invalidate bumps the generation so stale entries are
// never read again and simply expire.
type SearchCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSearchCache(client *redisv9.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SearchCache{client: client, ttl: ttl}
}

func (c *SearchCache) GetMatches(ctx context.Context, key SearchKey) ([]rag.Match, bool, error) {
	raw, err := c.client.Get(ctx, entryKey(key)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get search result failed: %w", err)
	}

	var matches []rag.Match
	if err := json.Unmarshal([]byte(raw), &matches); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached search result failed: %w", err)
	}
	return matches, true, nil
}

func (c *SearchCache) SetMatches(ctx context.Context, key SearchKey, matches []rag.Match) error {
	if matches == nil {
		matches = []rag.Match{}
	}
	payload, err := json.Marshal(matches)
	if err != nil {
		return fmt.Errorf("marshal search cache failed: %w", err)
	}
	if err := c.client.Set(ctx, entryKey(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set search result failed: %w", err)
	}
	return nil
}

// Invalidate makes every cached result unreachable.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis bump search generation failed: %w", err)
	}
	return nil
}

func (c *SearchCache) Generation(ctx context.Context) (int64, error) {
	raw, err := c.client.Get(ctx, generationKey).Result()
	if err == redisv9.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get search generation failed: %w", err)
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse search generation failed: %w", err)
	}
	return gen, nil
}

func entryKey(key SearchKey) string {
	sum := sha1.Sum([]byte(key.Query))
	return fmt.Sprintf("search:%d:%s:%d:%.4f:%s",
		key.Generation, key.Model, key.TopK, key.Threshold, hex.EncodeToString(sum[:]))
}
