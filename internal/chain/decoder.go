package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/soundvine/discovery-indexer/internal/domain"
)

// entityManagerABI describes the single event the indexer consumes. Every
// entity mutation on the platform flows through this one log signature.
const entityManagerABI = `[{"anonymous":false,"inputs":[{"indexed":false,"internalType":"uint256","name":"_userId","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"_entityId","type":"uint256"},{"indexed":false,"internalType":"string","name":"_entityType","type":"string"},{"indexed":false,"internalType":"string","name":"_action","type":"string"},{"indexed":false,"internalType":"string","name":"_metadata","type":"string"},{"indexed":false,"internalType":"address","name":"_signer","type":"address"}],"name":"ManageEntity","type":"event"}]`

const manageEntityEvent = "ManageEntity"

// Decoder extracts entity events from transaction receipts
type Decoder struct {
	contract common.Address
	abi      abi.ABI
	eventID  common.Hash
}

// NewDecoder creates a decoder bound to the entity manager contract address
func NewDecoder(contractAddress string) (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(entityManagerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity manager abi: %w", err)
	}

	event, ok := parsed.Events[manageEntityEvent]
	if !ok {
		return nil, fmt.Errorf("entity manager abi missing %s event", manageEntityEvent)
	}

	return &Decoder{
		contract: common.HexToAddress(contractAddress),
		abi:      parsed,
		eventID:  event.ID,
	}, nil
}

// DecodeReceipt extracts the entity events from one receipt in log order.
// Logs from other contracts or with other signatures are ignored.
func (d *Decoder) DecodeReceipt(receipt *types.Receipt) ([]domain.EntityEvent, error) {
	var events []domain.EntityEvent

	for _, log := range receipt.Logs {
		if log.Address != d.contract {
			continue
		}
		if len(log.Topics) == 0 || log.Topics[0] != d.eventID {
			continue
		}

		event, err := d.decodeLog(log)
		if err != nil {
			return nil, fmt.Errorf("failed to decode log %d of tx %s: %w",
				log.Index, receipt.TxHash.Hex(), err)
		}

		event.TxHash = receipt.TxHash.Hex()
		event.TxIndex = uint64(receipt.TransactionIndex)
		event.LogIndex = uint64(log.Index)
		events = append(events, event)
	}

	return events, nil
}

func (d *Decoder) decodeLog(log *types.Log) (domain.EntityEvent, error) {
	values, err := d.abi.Unpack(manageEntityEvent, log.Data)
	if err != nil {
		return domain.EntityEvent{}, fmt.Errorf("failed to unpack event data: %w", err)
	}
	if len(values) != 6 {
		return domain.EntityEvent{}, fmt.Errorf("expected 6 event fields, got %d", len(values))
	}

	userID, ok := values[0].(*big.Int)
	if !ok {
		return domain.EntityEvent{}, fmt.Errorf("unexpected type for user id")
	}
	entityID, ok := values[1].(*big.Int)
	if !ok {
		return domain.EntityEvent{}, fmt.Errorf("unexpected type for entity id")
	}
	entityType, ok := values[2].(string)
	if !ok {
		return domain.EntityEvent{}, fmt.Errorf("unexpected type for entity type")
	}
	action, ok := values[3].(string)
	if !ok {
		return domain.EntityEvent{}, fmt.Errorf("unexpected type for action")
	}
	metadata, ok := values[4].(string)
	if !ok {
		return domain.EntityEvent{}, fmt.Errorf("unexpected type for metadata")
	}
	signer, ok := values[5].(common.Address)
	if !ok {
		return domain.EntityEvent{}, fmt.Errorf("unexpected type for signer")
	}

	return domain.EntityEvent{
		UserID:      userID.Int64(),
		EntityID:    entityID.Int64(),
		EntityType:  domain.EntityType(entityType),
		Action:      domain.Action(action),
		MetadataCID: strings.TrimSpace(metadata),
		Signer:      strings.ToLower(signer.Hex()),
	}, nil
}
