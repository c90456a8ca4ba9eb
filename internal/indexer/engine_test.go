package indexer_test

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/golang/mock/gomock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundvine/discovery-indexer/internal/chain"
	"github.com/soundvine/discovery-indexer/internal/config"
	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/entity"
	"github.com/soundvine/discovery-indexer/internal/indexer"
	"github.com/soundvine/discovery-indexer/internal/metadata"
	"github.com/soundvine/discovery-indexer/internal/mocks"
	"github.com/soundvine/discovery-indexer/internal/records"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

// testEngineMocks contains all the mocks needed for testing the engine
type testEngineMocks struct {
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	eth       *mocks.MockEthClient
	redis     *mocks.MockRedisClient
	clock     *mocks.MockClock
	publisher *mocks.MockPublisher
	engine    *indexer.Engine
}

// setupEngineTest creates the full engine wiring on top of mocks
func setupEngineTest(t *testing.T, cfg config.IndexingConfig) *testEngineMocks {
	ctrl := gomock.NewController(t)

	mockStore := mocks.NewMockStore(ctrl)
	mockEth := mocks.NewMockEthClient(ctrl)
	mockRedis := mocks.NewMockRedisClient(ctrl)
	mockClock := mocks.NewMockClock(ctrl)
	mockHTTP := mocks.NewMockHTTPClient(ctrl)
	mockPublisher := mocks.NewMockPublisher(ctrl)

	decoder, err := chain.NewDecoder("0x4444444444444444444444444444444444444444")
	require.NoError(t, err)

	engine := indexer.NewEngine(
		mockStore,
		chain.NewClient(mockEth, cfg.ReceiptPoolSize, 0),
		decoder,
		metadata.NewResolver(mockHTTP, nil, time.Second, time.Second, 2),
		entity.NewDispatcher("0x1111111111111111111111111111111111111111"),
		mockPublisher,
		indexer.NewLock(mockRedis, mockClock, cfg.LockLease, cfg.LockWait),
		indexer.NewCursors(mockRedis, cfg.CursorTTL),
		indexer.NewSkipState(mockRedis),
		cfg,
	)

	return &testEngineMocks{
		ctrl:      ctrl,
		store:     mockStore,
		eth:       mockEth,
		redis:     mockRedis,
		clock:     mockClock,
		publisher: mockPublisher,
		engine:    engine,
	}
}

// tearDownEngineTest cleans up the test mocks
func tearDownEngineTest(tm *testEngineMocks) {
	tm.ctrl.Finish()
}

func engineTestConfig() config.IndexingConfig {
	return config.IndexingConfig{
		PollInterval:     500 * time.Millisecond,
		ProcessingWindow: 10,
		RevertCeiling:    5,
		ReceiptPoolSize:  2,
		LockLease:        10 * time.Minute,
		LockWait:         25 * time.Second,
		CursorTTL:        time.Minute,
	}
}

// expectLockHeld wires the acquire and release round trips
func expectLockHeld(tm *testEngineMocks) {
	tm.clock.EXPECT().Now().Return(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	tm.redis.EXPECT().
		SetNX(gomock.Any(), "discovery:indexing_lock", gomock.Any(), gomock.Any()).
		Return(true, nil)
	tm.redis.EXPECT().
		Eval(gomock.Any(), gomock.Any(), []string{"discovery:indexing_lock"}, gomock.Any()).
		Return(int64(1), nil)
}

// expectCursorWrites tolerates the health cursor publications
func expectCursorWrites(tm *testEngineMocks) {
	tm.redis.EXPECT().
		Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).
		AnyTimes()
}

const engineManagerAddress = "0x4444444444444444444444444444444444444444"

// The event shape of the entity manager contract, used to build test logs
const engineManageEntityABI = `[{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"_userId","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"_entityId","type":"uint256"},{"indexed":false,"internalType":"string","name":"_entityType","type":"string"},{"indexed":false,"internalType":"string","name":"_action","type":"string"},{"indexed":false,"internalType":"string","name":"_metadata","type":"string"},{"indexed":false,"internalType":"address","name":"_signer","type":"address"}],"name":"ManageEntity","type":"event"}]`

// entityManagerTx builds a transaction addressed at the entity manager
func entityManagerTx(nonce uint64) *types.Transaction {
	to := common.HexToAddress(engineManagerAddress)
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      21_000,
		GasPrice: big.NewInt(1),
	})
}

func blockWithTxs(header *types.Header, txs ...*types.Transaction) *types.Block {
	return types.NewBlock(header, &types.Body{Transactions: txs}, nil, trie.NewStackTrie(nil))
}

// manageEntityLog ABI-encodes one ManageEntity log the way the contract emits it
func manageEntityLog(t *testing.T, userID, entityID int64, entityType, action, cid string) *types.Log {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(engineManageEntityABI))
	require.NoError(t, err)
	event := parsed.Events["ManageEntity"]

	data, err := event.Inputs.Pack(
		big.NewInt(userID),
		big.NewInt(entityID),
		entityType,
		action,
		cid,
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
	)
	require.NoError(t, err)

	return &types.Log{
		Address: common.HexToAddress(engineManagerAddress),
		Topics:  []common.Hash{event.ID},
		Data:    data,
	}
}

func TestEngine_RunCycle_LockHeldElsewhere(t *testing.T) {
	cfg := engineTestConfig()
	cfg.LockWait = 0
	tm := setupEngineTest(t, cfg)
	defer tearDownEngineTest(tm)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tm.clock.EXPECT().Now().Return(now)
	tm.redis.EXPECT().
		SetNX(gomock.Any(), "discovery:indexing_lock", gomock.Any(), gomock.Any()).
		Return(false, nil)
	tm.clock.EXPECT().Now().Return(now.Add(time.Millisecond))

	// Act - losing the lock race is not an error
	err := tm.engine.RunCycle(context.Background())

	// Assert
	assert.NoError(t, err)
}

func TestEngine_RunCycle_SeedsGenesisCheckpoint(t *testing.T) {
	tm := setupEngineTest(t, engineTestConfig())
	defer tearDownEngineTest(tm)

	expectLockHeld(tm)
	expectCursorWrites(tm)

	head := &types.Header{Number: big.NewInt(0)}
	tm.eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(head, nil)

	genesis := &schema.Block{Blockhash: domain.DefaultStartHash, Number: 0, IsCurrent: true}
	tm.store.EXPECT().GetCurrentBlock(gomock.Any()).Return(nil, nil)
	tm.store.EXPECT().InitGenesis(gomock.Any(), int64(0), domain.DefaultStartHash).Return(genesis, nil)

	// Act - empty blocks table seeds the synthetic checkpoint, nothing to index yet
	err := tm.engine.RunCycle(context.Background())

	// Assert
	assert.NoError(t, err)
}

func TestEngine_RunCycle_IndexesNextBlock(t *testing.T) {
	tm := setupEngineTest(t, engineTestConfig())
	defer tearDownEngineTest(tm)

	expectLockHeld(tm)
	expectCursorWrites(tm)

	block1 := types.NewBlockWithHeader(&types.Header{Number: big.NewInt(1), Time: 100})
	block2 := types.NewBlockWithHeader(&types.Header{
		Number:     big.NewInt(2),
		ParentHash: block1.Hash(),
		Time:       200,
	})

	tm.eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(block2.Header(), nil)
	tm.store.EXPECT().GetCurrentBlock(gomock.Any()).Return(&schema.Block{
		Blockhash:  block1.Hash().Hex(),
		Parenthash: block1.ParentHash().Hex(),
		Number:     1,
		IsCurrent:  true,
	}, nil)
	tm.eth.EXPECT().BlockByNumber(gomock.Any(), big.NewInt(2)).Return(block2, nil)

	tm.redis.EXPECT().Get(gomock.Any(), "discovery:indexing_error").Return("", redis.Nil)
	tm.redis.EXPECT().Del(gomock.Any(), "discovery:indexing_error").Return(nil)

	var committed *records.BlockRecords
	tm.store.EXPECT().CommitBlock(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, recs *records.BlockRecords) error {
			committed = recs
			return nil
		})

	// Act
	err := tm.engine.RunCycle(context.Background())

	// Assert
	assert.NoError(t, err)
	require.NotNil(t, committed)
	assert.Equal(t, int64(2), committed.Block.Number)
	assert.Equal(t, block2.Hash().Hex(), committed.Block.Hash)
	assert.Equal(t, 0, committed.Users.Len())
	assert.Empty(t, committed.SkippedTxs)
}

func TestEngine_RunCycle_UserCreateBlobUnresolved_BlockStillCommits(t *testing.T) {
	tm := setupEngineTest(t, engineTestConfig())
	defer tearDownEngineTest(tm)

	expectLockHeld(tm)
	expectCursorWrites(tm)

	tx := entityManagerTx(0)
	block1 := types.NewBlockWithHeader(&types.Header{Number: big.NewInt(1), Time: 100})
	block2 := blockWithTxs(&types.Header{
		Number:     big.NewInt(2),
		ParentHash: block1.Hash(),
		Time:       200,
	}, tx)

	tm.eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(block2.Header(), nil)
	tm.store.EXPECT().GetCurrentBlock(gomock.Any()).Return(&schema.Block{
		Blockhash:  block1.Hash().Hex(),
		Parenthash: block1.ParentHash().Hex(),
		Number:     1,
		IsCurrent:  true,
	}, nil)
	tm.eth.EXPECT().BlockByNumber(gomock.Any(), big.NewInt(2)).Return(block2, nil)

	tm.redis.EXPECT().Get(gomock.Any(), "discovery:indexing_error").Return("", redis.Nil)
	tm.redis.EXPECT().Del(gomock.Any(), "discovery:indexing_error").Return(nil)

	// The only event is a user creation referencing a profile blob. No
	// gateways are configured and the user has no replica set, so the blob
	// can never resolve. No HTTP expectation: nothing may be fetched twice.
	tm.eth.EXPECT().TransactionReceipt(gomock.Any(), tx.Hash()).Return(&types.Receipt{
		TxHash: tx.Hash(),
		Logs: []*types.Log{
			manageEntityLog(t, 3_000_001, 3_000_001, "User", "Create", "QmNewProfile"),
		},
	}, nil)

	// Once for the replica-set lookup, once for the entity prefetch
	tm.store.EXPECT().GetCurrentUsers(gomock.Any(), []int64{3_000_001}).
		Return(map[int64]*schema.User{}, nil).Times(2)
	tm.store.EXPECT().GetExistingCids(gomock.Any(), []string{"QmNewProfile"}).
		Return(map[string]*schema.CidData{}, nil)
	tm.store.EXPECT().GetCurrentTracks(gomock.Any(), gomock.Any()).
		Return(map[int64]*schema.Track{}, nil)
	tm.store.EXPECT().GetCurrentPlaylists(gomock.Any(), gomock.Any()).
		Return(map[int64]*schema.Playlist{}, nil)

	var committed *records.BlockRecords
	tm.store.EXPECT().CommitBlock(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, recs *records.BlockRecords) error {
			committed = recs
			return nil
		})

	// Act
	err := tm.engine.RunCycle(context.Background())

	// Assert - the missing blob rejects the create event, never the block
	assert.NoError(t, err)
	require.NotNil(t, committed)
	assert.Equal(t, int64(2), committed.Block.Number)
	assert.Equal(t, 0, committed.Users.Len())
	assert.Empty(t, committed.CidData)
	assert.Empty(t, committed.SkippedTxs)
}

func TestEngine_RunCycle_RevertsOrphanedBlock(t *testing.T) {
	tm := setupEngineTest(t, engineTestConfig())
	defer tearDownEngineTest(tm)

	expectLockHeld(tm)
	expectCursorWrites(tm)

	canonical1 := types.NewBlockWithHeader(&types.Header{Number: big.NewInt(1), Time: 100})
	canonical2 := types.NewBlockWithHeader(&types.Header{
		Number:     big.NewInt(2),
		ParentHash: canonical1.Hash(),
		Time:       200,
	})

	genesis := &schema.Block{Blockhash: domain.DefaultStartHash, Number: 0}
	orphan := &schema.Block{
		Blockhash:  "0xdeadbeef",
		Parenthash: domain.DefaultStartHash,
		Number:     1,
		IsCurrent:  true,
	}

	tm.eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(canonical2.Header(), nil)

	// First read sees the orphaned head; after the revert the genesis row is current
	tm.store.EXPECT().GetCurrentBlock(gomock.Any()).Return(orphan, nil)
	tm.store.EXPECT().GetCurrentBlock(gomock.Any()).Return(genesis, nil)

	// Height 2 is read when extending the orphan and again after re-indexing height 1
	tm.eth.EXPECT().BlockByNumber(gomock.Any(), big.NewInt(2)).Return(canonical2, nil).Times(2)
	// Height 1 is read during the intersection walk and when indexing forward
	tm.eth.EXPECT().BlockByNumber(gomock.Any(), big.NewInt(1)).Return(canonical1, nil).Times(2)

	tm.store.EXPECT().GetBlockByHash(gomock.Any(), domain.DefaultStartHash).Return(genesis, nil)
	tm.store.EXPECT().RevertBlocks(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, blocks []schema.Block) error {
			assert.Len(t, blocks, 1)
			assert.Equal(t, "0xdeadbeef", blocks[0].Blockhash)
			return nil
		})

	tm.redis.EXPECT().Get(gomock.Any(), "discovery:indexing_error").Return("", redis.Nil).Times(2)
	tm.redis.EXPECT().Del(gomock.Any(), "discovery:indexing_error").Return(nil).Times(2)

	var committedNumbers []int64
	tm.store.EXPECT().CommitBlock(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, recs *records.BlockRecords) error {
			committedNumbers = append(committedNumbers, recs.Block.Number)
			return nil
		}).Times(2)

	// Act
	err := tm.engine.RunCycle(context.Background())

	// Assert - the orphan is unwound and the canonical chain re-indexed in order
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, committedNumbers)
}

func TestEngine_RunCycle_RevertTooDeepAborts(t *testing.T) {
	cfg := engineTestConfig()
	cfg.RevertCeiling = 1
	tm := setupEngineTest(t, cfg)
	defer tearDownEngineTest(tm)

	expectLockHeld(tm)
	expectCursorWrites(tm)

	canonical1 := types.NewBlockWithHeader(&types.Header{Number: big.NewInt(1), Time: 100})
	canonical2 := types.NewBlockWithHeader(&types.Header{
		Number:     big.NewInt(2),
		ParentHash: canonical1.Hash(),
		Time:       200,
	})
	canonical3 := types.NewBlockWithHeader(&types.Header{
		Number:     big.NewInt(3),
		ParentHash: canonical2.Hash(),
		Time:       300,
	})

	orphan2 := &schema.Block{
		Blockhash:  "0xorphan2",
		Parenthash: "0xorphan1",
		Number:     2,
		IsCurrent:  true,
	}
	orphan1 := &schema.Block{
		Blockhash:  "0xorphan1",
		Parenthash: domain.DefaultStartHash,
		Number:     1,
	}

	tm.eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(canonical3.Header(), nil)
	tm.store.EXPECT().GetCurrentBlock(gomock.Any()).Return(orphan2, nil)
	tm.eth.EXPECT().BlockByNumber(gomock.Any(), big.NewInt(3)).Return(canonical3, nil)
	tm.eth.EXPECT().BlockByNumber(gomock.Any(), big.NewInt(2)).Return(canonical2, nil)
	tm.eth.EXPECT().BlockByNumber(gomock.Any(), big.NewInt(1)).Return(canonical1, nil)
	tm.store.EXPECT().GetBlockByHash(gomock.Any(), "0xorphan1").Return(orphan1, nil)

	// Act
	err := tm.engine.RunCycle(context.Background())

	// Assert - the cycle stops for operator attention rather than unwinding deeper.
	// No RevertBlocks expectation is registered: reverting anything here fails the test.
	assert.ErrorIs(t, err, domain.ErrRevertTooDeep)
}

func TestEngine_RunCycle_SkipsWholeBlockByConsensus(t *testing.T) {
	tm := setupEngineTest(t, engineTestConfig())
	defer tearDownEngineTest(tm)

	expectLockHeld(tm)
	expectCursorWrites(tm)

	block1 := types.NewBlockWithHeader(&types.Header{Number: big.NewInt(1), Time: 100})
	block2 := types.NewBlockWithHeader(&types.Header{
		Number:     big.NewInt(2),
		ParentHash: block1.Hash(),
		Time:       200,
	})

	tm.eth.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(block2.Header(), nil)
	tm.store.EXPECT().GetCurrentBlock(gomock.Any()).Return(&schema.Block{
		Blockhash:  block1.Hash().Hex(),
		Parenthash: block1.ParentHash().Hex(),
		Number:     1,
		IsCurrent:  true,
	}, nil)
	tm.eth.EXPECT().BlockByNumber(gomock.Any(), big.NewInt(2)).Return(block2, nil)

	// Two prior attempts agreed the whole block is poisoned
	state, _ := json.Marshal(indexer.ErrorState{
		BlockNumber:  2,
		BlockHash:    block2.Hash().Hex(),
		TxHash:       indexer.TxHashWholeBlock,
		HasConsensus: true,
	})
	tm.redis.EXPECT().Get(gomock.Any(), "discovery:indexing_error").Return(string(state), nil)
	tm.redis.EXPECT().Del(gomock.Any(), "discovery:indexing_error").Return(nil)

	var committed *records.BlockRecords
	tm.store.EXPECT().CommitBlock(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, recs *records.BlockRecords) error {
			committed = recs
			return nil
		})

	// Act
	err := tm.engine.RunCycle(context.Background())

	// Assert - the block commits with only the skip marker, keeping the chain moving
	assert.NoError(t, err)
	require.NotNil(t, committed)
	require.Len(t, committed.SkippedTxs, 1)
	assert.Equal(t, indexer.TxHashWholeBlock, committed.SkippedTxs[0].Txhash)
	assert.Equal(t, int64(2), committed.SkippedTxs[0].Blocknumber)
}
