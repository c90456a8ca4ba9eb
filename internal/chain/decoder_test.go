package chain_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundvine/discovery-indexer/internal/chain"
	"github.com/soundvine/discovery-indexer/internal/domain"
)

const (
	entityManagerAddress = "0x4444444444444444444444444444444444444444"
	signerAddress        = "0xAbCd567890aBcD567890ABcd567890aBCd567890"
)

// The event shape of the entity manager contract, used to build test logs
const testManageEntityABI = `[{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"_userId","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"_entityId","type":"uint256"},{"indexed":false,"internalType":"string","name":"_entityType","type":"string"},{"indexed":false,"internalType":"string","name":"_action","type":"string"},{"indexed":false,"internalType":"string","name":"_metadata","type":"string"},{"indexed":false,"internalType":"address","name":"_signer","type":"address"}],"name":"ManageEntity","type":"event"}]`

// manageEntityLog ABI-encodes one ManageEntity log the way the contract emits it
func manageEntityLog(t *testing.T, contract common.Address, userID, entityID int64, entityType, action, cid string, logIndex uint) *types.Log {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(testManageEntityABI))
	require.NoError(t, err)
	event := parsed.Events["ManageEntity"]

	data, err := event.Inputs.Pack(
		big.NewInt(userID),
		big.NewInt(entityID),
		entityType,
		action,
		cid,
		common.HexToAddress(signerAddress),
	)
	require.NoError(t, err)

	return &types.Log{
		Address: contract,
		Topics:  []common.Hash{event.ID},
		Data:    data,
		Index:   logIndex,
	}
}

func TestDecoder_DecodeReceipt_ManageEntity(t *testing.T) {
	decoder, err := chain.NewDecoder(entityManagerAddress)
	require.NoError(t, err)

	txHash := common.HexToHash("0x01")
	receipt := &types.Receipt{
		TxHash:           txHash,
		TransactionIndex: 3,
		Logs: []*types.Log{
			manageEntityLog(t, common.HexToAddress(entityManagerAddress),
				3_000_001, 2_000_001, "Track", "Create", " QmTrackBlob ", 7),
		},
	}

	// Act
	events, err := decoder.DecodeReceipt(receipt)

	// Assert
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, int64(3_000_001), events[0].UserID)
	assert.Equal(t, int64(2_000_001), events[0].EntityID)
	assert.Equal(t, domain.EntityTrack, events[0].EntityType)
	assert.Equal(t, domain.ActionCreate, events[0].Action)
	// Metadata is trimmed, the signer lowercased
	assert.Equal(t, "QmTrackBlob", events[0].MetadataCID)
	assert.Equal(t, strings.ToLower(signerAddress), events[0].Signer)
	assert.Equal(t, txHash.Hex(), events[0].TxHash)
	assert.Equal(t, uint64(3), events[0].TxIndex)
	assert.Equal(t, uint64(7), events[0].LogIndex)
}

func TestDecoder_DecodeReceipt_IgnoresForeignLogs(t *testing.T) {
	decoder, err := chain.NewDecoder(entityManagerAddress)
	require.NoError(t, err)

	otherContract := common.HexToAddress("0x9999999999999999999999999999999999999999")
	receipt := &types.Receipt{
		TxHash: common.HexToHash("0x02"),
		Logs: []*types.Log{
			// Same shape, wrong contract
			manageEntityLog(t, otherContract, 1, 2, "Track", "Create", "QmX", 0),
			// Right contract, wrong signature
			{
				Address: common.HexToAddress(entityManagerAddress),
				Topics:  []common.Hash{common.HexToHash("0xdead")},
			},
			// No topics at all
			{
				Address: common.HexToAddress(entityManagerAddress),
			},
		},
	}

	// Act
	events, err := decoder.DecodeReceipt(receipt)

	// Assert
	assert.NoError(t, err)
	assert.Empty(t, events)
}

func TestDecoder_DecodeReceipt_MultipleEventsKeepLogOrder(t *testing.T) {
	decoder, err := chain.NewDecoder(entityManagerAddress)
	require.NoError(t, err)

	contract := common.HexToAddress(entityManagerAddress)
	receipt := &types.Receipt{
		TxHash: common.HexToHash("0x03"),
		Logs: []*types.Log{
			manageEntityLog(t, contract, 3_000_001, 3_000_001, "User", "Create", "QmUser", 0),
			manageEntityLog(t, contract, 3_000_001, 2_000_001, "Track", "Create", "QmTrack", 1),
		},
	}

	// Act
	events, err := decoder.DecodeReceipt(receipt)

	// Assert
	assert.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, domain.EntityUser, events[0].EntityType)
	assert.Equal(t, domain.EntityTrack, events[1].EntityType)
}

func TestDecoder_DecodeReceipt_MalformedDataFails(t *testing.T) {
	decoder, err := chain.NewDecoder(entityManagerAddress)
	require.NoError(t, err)

	parsed, err := abi.JSON(strings.NewReader(testManageEntityABI))
	require.NoError(t, err)

	receipt := &types.Receipt{
		TxHash: common.HexToHash("0x04"),
		Logs: []*types.Log{
			{
				Address: common.HexToAddress(entityManagerAddress),
				Topics:  []common.Hash{parsed.Events["ManageEntity"].ID},
				Data:    []byte{0x01, 0x02},
			},
		},
	}

	// Act
	events, err := decoder.DecodeReceipt(receipt)

	// Assert
	assert.Error(t, err)
	assert.Nil(t, events)
}
