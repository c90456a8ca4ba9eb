package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/soundvine/discovery-indexer/internal/chain"
	"github.com/soundvine/discovery-indexer/internal/config"
	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/entity"
	"github.com/soundvine/discovery-indexer/internal/logger"
	"github.com/soundvine/discovery-indexer/internal/messaging"
	"github.com/soundvine/discovery-indexer/internal/metadata"
	"github.com/soundvine/discovery-indexer/internal/records"
	"github.com/soundvine/discovery-indexer/internal/store"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

// Engine drives the reconciliation loop: under a distributed lease it finds
// the intersection between the indexed chain and the canonical chain, unwinds
// orphaned blocks, and indexes forward one atomic block at a time.
type Engine struct {
	store      store.Store
	chain      *chain.Client
	decoder    *chain.Decoder
	resolver   *metadata.Resolver
	dispatcher *entity.Dispatcher
	publisher  messaging.Publisher
	lock       *Lock
	cursors    *Cursors
	skips      *SkipState
	cfg        config.IndexingConfig
}

// NewEngine creates a reconciliation engine
func NewEngine(
	st store.Store,
	chainClient *chain.Client,
	decoder *chain.Decoder,
	resolver *metadata.Resolver,
	dispatcher *entity.Dispatcher,
	publisher messaging.Publisher,
	lock *Lock,
	cursors *Cursors,
	skips *SkipState,
	cfg config.IndexingConfig,
) *Engine {
	return &Engine{
		store:      st,
		chain:      chainClient,
		decoder:    decoder,
		resolver:   resolver,
		dispatcher: dispatcher,
		publisher:  publisher,
		lock:       lock,
		cursors:    cursors,
		skips:      skips,
		cfg:        cfg,
	}
}

// Run executes reconciliation cycles until the context is cancelled
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.RunCycle(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				logger.Error(err)
			}
		}
	}
}

// RunCycle runs one reconciliation pass. Losing the lock race is not an
// error; another worker is making progress.
func (e *Engine) RunCycle(ctx context.Context) error {
	if err := e.lock.Acquire(ctx); err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			logger.Debug("indexing lock held elsewhere, skipping cycle")
			return nil
		}
		return err
	}
	defer func() {
		if err := e.lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release indexing lock", zap.Error(err))
		}
	}()

	head, err := e.chain.Head(ctx)
	if err != nil {
		return err
	}
	if err := e.cursors.SetChainHead(ctx, head.Number.Int64(), head.Hash().Hex()); err != nil {
		logger.Warn("failed to publish chain head cursor", zap.Error(err))
	}

	current, err := e.store.GetCurrentBlock(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		startHash := e.cfg.StartBlockHash
		if startHash == "" {
			startHash = domain.DefaultStartHash
		}
		current, err = e.store.InitGenesis(ctx, 0, startHash)
		if err != nil {
			return err
		}
		logger.Info("seeded genesis checkpoint", zap.String("blockhash", startHash))
	}

	target := current.Number + e.cfg.ProcessingWindow
	if headNumber := head.Number.Int64(); target > headNumber {
		target = headNumber
	}

	for current.Number < target {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, err := e.chain.BlockByNumber(ctx, current.Number+1)
		if err != nil {
			return err
		}

		if !parentLinks(current, next) {
			revertList, err := e.findRevertBlocks(ctx, current)
			if err != nil {
				return err
			}
			if len(revertList) == 0 {
				return fmt.Errorf("parent mismatch at block %d but nothing to revert", next.Number().Int64())
			}
			if err := e.store.RevertBlocks(ctx, revertList); err != nil {
				return err
			}

			current, err = e.store.GetCurrentBlock(ctx)
			if err != nil {
				return err
			}
			if current == nil {
				return domain.ErrCorruptBlocksTable
			}
			continue
		}

		if err := e.indexBlock(ctx, next); err != nil {
			return err
		}

		currentRow := schema.Block{
			Blockhash:  next.Hash().Hex(),
			Parenthash: next.ParentHash().Hex(),
			Number:     next.Number().Int64(),
			IsCurrent:  true,
		}
		current = &currentRow
	}

	return nil
}

// parentLinks checks whether the canonical block extends the indexed head.
// The synthetic genesis checkpoint accepts the chain's padded start hash.
func parentLinks(current *schema.Block, next *types.Block) bool {
	parent := next.ParentHash().Hex()
	if strings.EqualFold(parent, current.Blockhash) {
		return true
	}
	if current.Parenthash == "" {
		if current.Blockhash == domain.DefaultStartHash {
			return true
		}
		if strings.EqualFold(parent, domain.DefaultPaddedStartHash) {
			return true
		}
	}
	return false
}

// findRevertBlocks walks the indexed chain down from the head until the
// canonical chain agrees, collecting the orphaned rows. Reverts deeper than
// the ceiling abort the cycle for operator attention.
func (e *Engine) findRevertBlocks(ctx context.Context, head *schema.Block) ([]schema.Block, error) {
	var revertList []schema.Block

	cursor := *head
	for {
		// The genesis checkpoint cannot be reverted
		if cursor.Parenthash == "" {
			break
		}

		canonical, err := e.chain.BlockByNumber(ctx, cursor.Number)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(canonical.Hash().Hex(), cursor.Blockhash) {
			break
		}

		revertList = append(revertList, cursor)
		if len(revertList) > e.cfg.RevertCeiling {
			return nil, fmt.Errorf("%w: more than %d blocks diverge from the canonical chain",
				domain.ErrRevertTooDeep, e.cfg.RevertCeiling)
		}

		parent, err := e.store.GetBlockByHash(ctx, cursor.Parenthash)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("indexed block %d has no indexed parent %s",
				cursor.Number, cursor.Parenthash)
		}
		cursor = *parent
	}

	return revertList, nil
}

// indexBlock processes one canonical block end to end: receipts, event
// decoding, metadata resolution, mutation handlers, and the atomic commit.
func (e *Engine) indexBlock(ctx context.Context, block *types.Block) error {
	blockCtx := chain.Context(block)
	recs := records.NewBlockRecords(blockCtx)

	state, err := e.skips.Get(ctx)
	if err != nil {
		logger.Warn("failed to read skip state", zap.Error(err))
		state = nil
	}

	skipWholeBlock := false
	skipTxs := make(map[string]bool)
	if state != nil && state.HasConsensus && strings.EqualFold(state.BlockHash, blockCtx.Hash) {
		if state.TxHash == TxHashWholeBlock {
			skipWholeBlock = true
		} else {
			skipTxs[state.TxHash] = true
		}
	}

	var events []domain.EntityEvent
	switch {
	case skipWholeBlock:
		logger.Warn("skipping whole block by consensus",
			zap.Int64("block", blockCtx.Number),
			zap.String("blockhash", blockCtx.Hash))
		recs.SkippedTxs = append(recs.SkippedTxs, schema.SkippedTransaction{
			Blocknumber: blockCtx.Number,
			Blockhash:   blockCtx.Hash,
			Txhash:      TxHashWholeBlock,
		})
	case len(block.Transactions()) > 0:
		events, err = e.collectEvents(ctx, block, blockCtx, recs, skipTxs)
		if err != nil {
			return e.blockFailure(ctx, blockCtx, err)
		}
	}

	resolved, err := e.resolveMetadata(ctx, blockCtx, recs, events)
	if err != nil {
		return e.blockFailure(ctx, blockCtx, err)
	}

	if err := e.processEvents(ctx, blockCtx, recs, events, resolved); err != nil {
		return e.blockFailure(ctx, blockCtx, err)
	}

	if err := e.store.CommitBlock(ctx, recs); err != nil {
		return e.blockFailure(ctx, blockCtx, err)
	}

	if err := e.skips.Clear(ctx); err != nil {
		logger.Warn("failed to clear skip state", zap.Error(err))
	}

	// Challenge dispatch is fire and forget; the block is already committed
	for _, challenge := range recs.Challenges {
		if err := e.publisher.PublishChallenge(ctx, challenge); err != nil {
			logger.Warn("failed to publish challenge event",
				zap.String("kind", string(challenge.Kind)),
				zap.Int64("user_id", challenge.UserID),
				zap.Error(err))
		}
	}

	if err := e.cursors.SetIndexedHead(ctx, blockCtx.Number, blockCtx.Hash); err != nil {
		logger.Warn("failed to publish indexed head cursor", zap.Error(err))
	}

	logger.Info("indexed block",
		zap.Int64("number", blockCtx.Number),
		zap.String("blockhash", blockCtx.Hash),
		zap.Int("events", len(events)))

	return nil
}

// collectEvents fetches receipts and decodes entity events in deterministic
// transaction order, honoring per-transaction skip consensus.
func (e *Engine) collectEvents(ctx context.Context, block *types.Block, blockCtx domain.BlockContext, recs *records.BlockRecords, skipTxs map[string]bool) ([]domain.EntityEvent, error) {
	receipts, err := e.chain.FetchReceipts(ctx, block)
	if err != nil {
		return nil, err
	}

	var events []domain.EntityEvent
	for _, tx := range e.chain.SortTransactions(block, receipts) {
		txHash := tx.Hash().Hex()

		if skipTxs[txHash] {
			logger.Warn("skipping transaction by consensus",
				zap.Int64("block", blockCtx.Number),
				zap.String("tx", txHash))
			recs.SkippedTxs = append(recs.SkippedTxs, schema.SkippedTransaction{
				Blocknumber: blockCtx.Number,
				Blockhash:   blockCtx.Hash,
				Txhash:      txHash,
			})
			continue
		}

		// Burn transactions carry nothing indexable
		if to := tx.To(); to != nil && strings.EqualFold(to.Hex(), domain.ZeroAddress) {
			continue
		}

		decoded, err := e.decoder.DecodeReceipt(receipts[txHash])
		if err != nil {
			return nil, &domain.IndexingError{
				Stage:       domain.StageDecode,
				BlockNumber: blockCtx.Number,
				BlockHash:   blockCtx.Hash,
				TxHash:      txHash,
				Message:     err.Error(),
			}
		}
		events = append(events, decoded...)
	}

	return events, nil
}

// resolveMetadata gathers the CIDs the block references, serves what the
// immutable cache already has, and runs the two-phase resolver for the rest.
// Newly resolved blobs are staged for the cache as part of the block commit.
func (e *Engine) resolveMetadata(ctx context.Context, blockCtx domain.BlockContext, recs *records.BlockRecords, events []domain.EntityEvent) (map[string]json.RawMessage, error) {
	resolved := make(map[string]json.RawMessage)

	var requests []metadata.Request
	cids := make([]string, 0)
	cidTypes := make(map[string]domain.CIDType)
	cidIndex := make(map[string]int)
	for _, event := range events {
		cidType, ok := entity.MetadataRequestType(event)
		if !ok {
			continue
		}
		optional := entity.MetadataOptional(event)
		if i, seen := cidIndex[event.MetadataCID]; seen {
			// A required reference outweighs an optional one for the same cid
			if !optional {
				requests[i].Optional = false
			}
			continue
		}
		cidIndex[event.MetadataCID] = len(requests)
		cidTypes[event.MetadataCID] = cidType
		cids = append(cids, event.MetadataCID)
		requests = append(requests, metadata.Request{
			CID:        event.MetadataCID,
			Type:       cidType,
			ReplicaSet: e.replicaSetFor(ctx, event.UserID),
			Optional:   optional,
		})
	}
	if len(requests) == 0 {
		return resolved, nil
	}

	cached, err := e.store.GetExistingCids(ctx, cids)
	if err != nil {
		return nil, err
	}
	for cid, row := range cached {
		resolved[cid] = json.RawMessage(row.Data)
	}

	var missing []metadata.Request
	for _, req := range requests {
		if _, ok := resolved[req.CID]; !ok {
			missing = append(missing, req)
		}
	}

	if len(missing) > 0 {
		fetched, err := e.resolver.Resolve(ctx, blockCtx.Number, missing)
		if err != nil {
			return nil, err
		}
		for cid, raw := range fetched {
			resolved[cid] = raw
			recs.AddCidData(schema.CidData{
				Cid:  cid,
				Type: string(cidTypes[cid]),
				Data: []byte(raw),
			})
		}
	}

	return resolved, nil
}

// replicaSetFor returns the content node endpoints of the event's user, used
// to target phase-one metadata resolution.
func (e *Engine) replicaSetFor(ctx context.Context, userID int64) []string {
	users, err := e.store.GetCurrentUsers(ctx, []int64{userID})
	if err != nil {
		logger.Warn("failed to load replica set", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	user, ok := users[userID]
	if !ok || user.ReplicaSetEndpoints == nil {
		return nil
	}

	var endpoints []string
	for _, endpoint := range strings.Split(*user.ReplicaSetEndpoints, ",") {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" {
			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints
}

// processEvents prefetches the entities the block touches and runs every
// event through the dispatcher. Validation rejections are logged and dropped
// at event granularity; anything else poisons the block.
func (e *Engine) processEvents(ctx context.Context, blockCtx domain.BlockContext, recs *records.BlockRecords, events []domain.EntityEvent, resolved map[string]json.RawMessage) error {
	if len(events) == 0 {
		return nil
	}

	existingUsers, existingTracks, existingPlaylists, err := e.prefetchEntities(ctx, events, resolved)
	if err != nil {
		return err
	}

	for _, event := range events {
		params := &entity.Params{
			Ctx:               ctx,
			Store:             e.store,
			Records:           recs,
			Block:             blockCtx,
			Event:             event,
			Metadata:          resolved,
			ExistingUsers:     existingUsers,
			ExistingTracks:    existingTracks,
			ExistingPlaylists: existingPlaylists,
		}

		if err := e.dispatcher.Dispatch(params); err != nil {
			var validationErr *domain.ValidationError
			if errors.As(err, &validationErr) {
				logger.Warn("rejected entity event",
					zap.Int64("block", blockCtx.Number),
					zap.String("tx", event.TxHash),
					zap.String("reason", validationErr.Error()))
				continue
			}
			return &domain.IndexingError{
				Stage:       domain.StageIndex,
				BlockNumber: blockCtx.Number,
				BlockHash:   blockCtx.Hash,
				TxHash:      event.TxHash,
				Message:     err.Error(),
			}
		}
	}

	return nil
}

// prefetchEntities batch-loads every entity the block's events can touch,
// including tracks referenced inside playlist metadata blobs.
func (e *Engine) prefetchEntities(ctx context.Context, events []domain.EntityEvent, resolved map[string]json.RawMessage) (map[int64]*schema.User, map[int64]*schema.Track, map[int64]*schema.Playlist, error) {
	userIDs := make(map[int64]bool)
	trackIDs := make(map[int64]bool)
	playlistIDs := make(map[int64]bool)

	for _, event := range events {
		userIDs[event.UserID] = true

		switch event.EntityType {
		case domain.EntityUser:
			userIDs[event.EntityID] = true
		case domain.EntityTrack:
			trackIDs[event.EntityID] = true
		case domain.EntityPlaylist:
			playlistIDs[event.EntityID] = true

			raw, ok := resolved[event.MetadataCID]
			if !ok {
				continue
			}
			meta, err := metadata.ParsePlaylist(raw)
			if err != nil {
				continue
			}
			for _, entry := range meta.PlaylistContents.TrackIDs {
				trackIDs[entry.Track] = true
			}
		}
	}

	users, err := e.store.GetCurrentUsers(ctx, keys(userIDs))
	if err != nil {
		return nil, nil, nil, err
	}
	tracks, err := e.store.GetCurrentTracks(ctx, keys(trackIDs))
	if err != nil {
		return nil, nil, nil, err
	}
	playlists, err := e.store.GetCurrentPlaylists(ctx, keys(playlistIDs))
	if err != nil {
		return nil, nil, nil, err
	}

	return users, tracks, playlists, nil
}

// blockFailure records a block-level error to the shared skip state so
// repeated failures can reach skip consensus, then aborts the cycle.
func (e *Engine) blockFailure(ctx context.Context, blockCtx domain.BlockContext, err error) error {
	indexingErr := asIndexingError(blockCtx, err)
	if recordErr := e.skips.Record(ctx, indexingErr); recordErr != nil {
		logger.Warn("failed to record skip state", zap.Error(recordErr))
	}
	return err
}

func asIndexingError(blockCtx domain.BlockContext, err error) *domain.IndexingError {
	var indexingErr *domain.IndexingError
	if errors.As(err, &indexingErr) {
		return indexingErr
	}

	var missingErr *domain.MissingMetadataError
	if errors.As(err, &missingErr) {
		return &domain.IndexingError{
			Stage:       domain.StagePrefetchCIDs,
			BlockNumber: blockCtx.Number,
			BlockHash:   blockCtx.Hash,
			Message:     missingErr.Error(),
		}
	}

	return &domain.IndexingError{
		Stage:       domain.StageIndex,
		BlockNumber: blockCtx.Number,
		BlockHash:   blockCtx.Hash,
		Message:     err.Error(),
	}
}

func keys(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	return out
}
