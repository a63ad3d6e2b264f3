package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"docrag/internal/model"
)

// HistoryCache keeps recent conversation turns so follow-up questions do
// not hit the database.
type HistoryCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

// cachedEntry keeps the raw citations, which QueryHistory hides from JSON.
type cachedEntry struct {
	model.QueryHistory
	Citations string `json:"citations"`
}

func NewHistoryCache(client *redisv9.Client, ttl time.Duration) *HistoryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &HistoryCache{client: client, ttl: ttl}
}

func (c *HistoryCache) GetHistory(ctx context.Context, conversationID string) ([]model.QueryHistory, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(conversationID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var cached []cachedEntry
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	entries := make([]model.QueryHistory, len(cached))
	for i, e := range cached {
		entries[i] = e.QueryHistory
		entries[i].Citations = e.Citations
	}
	return entries, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, conversationID string, entries []model.QueryHistory) error {
	cached := make([]cachedEntry, len(entries))
	for i, e := range entries {
		cached[i] = cachedEntry{QueryHistory: e, Citations: e.Citations}
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, historyKey(conversationID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, conversationID string) error {
	if err := c.client.Del(ctx, historyKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func historyKey(conversationID string) string {
	return "ask:conversation:" + conversationID
}
