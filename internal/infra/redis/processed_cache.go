package redis

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ProcessedCache remembers recently processed call IDs so triggers can skip
// duplicate work without a database round trip. Redis being down must never
// block processing, so lookups degrade to "not cached" and writes are
// best-effort.
type ProcessedCache struct {
	client RedisClient
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewProcessedCache(client RedisClient, ttl time.Duration, logger *zerolog.Logger) *ProcessedCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	l := logger.With().Str("component", "processed_cache").Logger()
	return &ProcessedCache{client: client, ttl: ttl, log: &l}
}

func processedKey(callID string) string { return "processed_call:" + callID }

// MarkProcessed records the call as done for the cache TTL.
func (c *ProcessedCache) MarkProcessed(ctx context.Context, callID string) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, processedKey(callID), "1", c.ttl); err != nil {
		c.log.Warn().Err(err).Str("call_id", callID).Msg("mark processed failed")
	}
}

// IsProcessed reports whether the call was marked done recently. Errors are
// treated as a cache miss so the database check remains authoritative.
func (c *ProcessedCache) IsProcessed(ctx context.Context, callID string) bool {
	if c.client == nil {
		return false
	}
	n, err := c.client.Exists(ctx, processedKey(callID))
	if err != nil {
		c.log.Warn().Err(err).Str("call_id", callID).Msg("processed lookup failed")
		return false
	}
	return n > 0
}

// Forget drops the processed marker, used when a caller forces reprocessing.
func (c *ProcessedCache) Forget(ctx context.Context, callID string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, processedKey(callID)); err != nil {
		c.log.Warn().Err(err).Str("call_id", callID).Msg("processed forget failed")
	}
}
