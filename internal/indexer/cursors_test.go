package indexer_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/soundvine/discovery-indexer/internal/indexer"
	"github.com/soundvine/discovery-indexer/internal/mocks"
)

func TestCursors_SetChainHead_WritesWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRedis := mocks.NewMockRedisClient(ctrl)

	ctx := context.Background()
	ttl := 90 * time.Second

	// A cursor that stops refreshing must expire on its own
	mockRedis.EXPECT().
		Set(ctx, "discovery:latest_block", "150", ttl).
		Return(nil)
	mockRedis.EXPECT().
		Set(ctx, "discovery:latest_block_hash", "0xhead", ttl).
		Return(nil)

	cursors := indexer.NewCursors(mockRedis, ttl)

	// Act
	err := cursors.SetChainHead(ctx, 150, "0xhead")

	// Assert
	assert.NoError(t, err)
}

func TestCursors_SetIndexedHead_WritesWithTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRedis := mocks.NewMockRedisClient(ctrl)

	ctx := context.Background()
	ttl := 90 * time.Second

	mockRedis.EXPECT().
		Set(ctx, "discovery:most_recent_indexed_block", "149", ttl).
		Return(nil)
	mockRedis.EXPECT().
		Set(ctx, "discovery:most_recent_indexed_block_hash", "0xindexed", ttl).
		Return(nil)

	cursors := indexer.NewCursors(mockRedis, ttl)

	// Act
	err := cursors.SetIndexedHead(ctx, 149, "0xindexed")

	// Assert
	assert.NoError(t, err)
}
