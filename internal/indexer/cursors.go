package indexer

import (
	"context"
	"strconv"
	"time"

	"github.com/soundvine/discovery-indexer/internal/adapter"
)

// Redis keys the health endpoints read to judge indexing freshness
const (
	keyLatestBlock     = "discovery:latest_block"
	keyLatestBlockHash = "discovery:latest_block_hash"
	keyIndexedBlock    = "discovery:most_recent_indexed_block"
	keyIndexedHash     = "discovery:most_recent_indexed_block_hash"
)

// Cursors publishes the chain head and indexed head to redis so health
// checks can measure indexing lag without touching the database. Every key
// carries a TTL: a cursor that stops refreshing expires, which health checks
// read as a stalled indexer.
type Cursors struct {
	redis adapter.RedisClient
	ttl   time.Duration
}

// NewCursors creates a cursor publisher
func NewCursors(redis adapter.RedisClient, ttl time.Duration) *Cursors {
	return &Cursors{redis: redis, ttl: ttl}
}

// SetChainHead records the latest block seen on the chain
func (c *Cursors) SetChainHead(ctx context.Context, number int64, hash string) error {
	if err := c.redis.Set(ctx, keyLatestBlock, strconv.FormatInt(number, 10), c.ttl); err != nil {
		return err
	}
	return c.redis.Set(ctx, keyLatestBlockHash, hash, c.ttl)
}

// SetIndexedHead records the most recently committed block
func (c *Cursors) SetIndexedHead(ctx context.Context, number int64, hash string) error {
	if err := c.redis.Set(ctx, keyIndexedBlock, strconv.FormatInt(number, 10), c.ttl); err != nil {
		return err
	}
	return c.redis.Set(ctx, keyIndexedHash, hash, c.ttl)
}
