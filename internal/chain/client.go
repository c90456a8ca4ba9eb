package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/soundvine/discovery-indexer/internal/adapter"
	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/logger"
)

// Client wraps the raw RPC client with the block and receipt access patterns
// the reconciliation engine needs.
type Client struct {
	eth             adapter.EthClient
	receiptPoolSize int
	// finalPoaBlock is the POA -> POS cutover height. Transactions in blocks
	// at or below it keep legacy ordering; later blocks sort by tx index.
	finalPoaBlock int64
}

// NewClient creates a chain client
func NewClient(eth adapter.EthClient, receiptPoolSize int, finalPoaBlock int64) *Client {
	if receiptPoolSize <= 0 {
		receiptPoolSize = 20
	}
	return &Client{
		eth:             eth,
		receiptPoolSize: receiptPoolSize,
		finalPoaBlock:   finalPoaBlock,
	}
}

// Head returns the latest header known to the node
func (c *Client) Head(ctx context.Context) (*types.Header, error) {
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain head: %w", err)
	}
	return header, nil
}

// BlockByNumber fetches a full block by height
func (c *Client) BlockByNumber(ctx context.Context, number int64) (*types.Block, error) {
	block, err := c.eth.BlockByNumber(ctx, big.NewInt(number))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %d: %w", number, err)
	}
	return block, nil
}

// Context converts a fetched block into the provenance context handlers use
func Context(block *types.Block) domain.BlockContext {
	return domain.BlockContext{
		Number:     block.Number().Int64(),
		Hash:       block.Hash().Hex(),
		ParentHash: block.ParentHash().Hex(),
		Timestamp:  time.Unix(int64(block.Time()), 0).UTC(),
	}
}

// FetchReceipts retrieves the receipt of every transaction in the block
// concurrently. A missing receipt fails the whole block: indexing from a
// partial receipt set would silently drop events.
func (c *Client) FetchReceipts(ctx context.Context, block *types.Block) (map[string]*types.Receipt, error) {
	txs := block.Transactions()
	if len(txs) == 0 {
		return map[string]*types.Receipt{}, nil
	}

	pool := pond.NewResultPool[*types.Receipt](c.receiptPoolSize)
	group := pool.NewGroupContext(ctx)

	for _, tx := range txs {
		txHash := tx.Hash()
		group.SubmitErr(func() (*types.Receipt, error) {
			return c.eth.TransactionReceipt(ctx, txHash)
		})
	}

	results, err := group.Wait()
	pool.StopAndWait()
	if err != nil {
		return nil, &domain.IndexingError{
			Stage:       domain.StageFetchReceipts,
			BlockNumber: block.Number().Int64(),
			BlockHash:   block.Hash().Hex(),
			Message:     err.Error(),
		}
	}

	receipts := make(map[string]*types.Receipt, len(results))
	for _, receipt := range results {
		if receipt == nil {
			continue
		}
		receipts[receipt.TxHash.Hex()] = receipt
	}

	if len(receipts) != len(txs) {
		logger.Warn("receipt count mismatch",
			zap.Int64("block", block.Number().Int64()),
			zap.Int("transactions", len(txs)),
			zap.Int("receipts", len(receipts)))
		return nil, &domain.IndexingError{
			Stage:       domain.StageFetchReceipts,
			BlockNumber: block.Number().Int64(),
			BlockHash:   block.Hash().Hex(),
			Message:     fmt.Sprintf("expected %d receipts, got %d", len(txs), len(receipts)),
		}
	}

	return receipts, nil
}

// SortTransactions orders a block's transactions for deterministic replay.
// Past the POA cutover, transactions sort ascending by receipt index; at or
// below it the node's legacy order is preserved.
func (c *Client) SortTransactions(block *types.Block, receipts map[string]*types.Receipt) []*types.Transaction {
	txs := make([]*types.Transaction, len(block.Transactions()))
	copy(txs, block.Transactions())

	if block.Number().Int64() <= c.finalPoaBlock {
		return txs
	}

	sort.SliceStable(txs, func(i, j int) bool {
		ri, ok := receipts[txs[i].Hash().Hex()]
		if !ok {
			return false
		}
		rj, ok := receipts[txs[j].Hash().Hex()]
		if !ok {
			return true
		}
		return ri.TransactionIndex < rj.TransactionIndex
	})

	return txs
}
