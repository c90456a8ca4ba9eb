package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soundvine/discovery-indexer/internal/adapter"
	"github.com/soundvine/discovery-indexer/internal/domain"
)

const errorStateKey = "discovery:indexing_error"

// TxHashWholeBlock marks an error state that poisons the entire block rather
// than a single transaction, e.g. a failed commit or unresolved metadata.
const TxHashWholeBlock = "commit"

// ErrorState is the shared record of the last block-level failure. When two
// attempts fail on the same (block, tx) the state reaches consensus and the
// next attempt skips the offender instead of retrying forever.
type ErrorState struct {
	BlockNumber  int64  `json:"blocknumber"`
	BlockHash    string `json:"blockhash"`
	TxHash       string `json:"txhash"`
	Message      string `json:"message"`
	HasConsensus bool   `json:"has_consensus"`
}

// SkipState reads and writes the shared error state in redis
type SkipState struct {
	redis adapter.RedisClient
}

// NewSkipState creates a skip-state accessor
func NewSkipState(redis adapter.RedisClient) *SkipState {
	return &SkipState{redis: redis}
}

// Get returns the current error state, nil when none is recorded
func (s *SkipState) Get(ctx context.Context) (*ErrorState, error) {
	raw, err := s.redis.Get(ctx, errorStateKey)
	if err != nil {
		if adapter.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read error state: %w", err)
	}

	var state ErrorState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to decode error state: %w", err)
	}
	return &state, nil
}

// Record persists a block-level failure. A repeat of the already recorded
// failure flips the state to consensus.
func (s *SkipState) Record(ctx context.Context, indexingErr *domain.IndexingError) error {
	txHash := indexingErr.TxHash
	if txHash == "" {
		txHash = TxHashWholeBlock
	}

	previous, err := s.Get(ctx)
	if err != nil {
		return err
	}

	state := ErrorState{
		BlockNumber: indexingErr.BlockNumber,
		BlockHash:   indexingErr.BlockHash,
		TxHash:      txHash,
		Message:     indexingErr.Message,
	}
	if previous != nil &&
		previous.BlockNumber == state.BlockNumber &&
		previous.BlockHash == state.BlockHash &&
		previous.TxHash == state.TxHash {
		state.HasConsensus = true
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode error state: %w", err)
	}
	return s.redis.Set(ctx, errorStateKey, string(raw), 0)
}

// Clear drops the error state after a successful commit
func (s *SkipState) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, errorStateKey); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to clear error state: %w", err)
	}
	return nil
}
