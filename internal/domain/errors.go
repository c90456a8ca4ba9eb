package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRevertTooDeep is returned when the revert list exceeds the configured
	// safety ceiling. Reverts that deep indicate a consensus anomaly and need
	// operator intervention, not automated unwinding.
	ErrRevertTooDeep = errors.New("revert exceeds safety ceiling")

	// ErrLockNotAcquired is returned when another worker holds the indexing lock.
	ErrLockNotAcquired = errors.New("indexing lock not acquired")

	// ErrCorruptBlocksTable is returned when the blocks table does not contain
	// exactly one row marked current.
	ErrCorruptBlocksTable = errors.New("expected single block row marked as current")
)

// Indexing stages used to tag block-level errors.
const (
	StageFetchReceipts = "fetch-receipts"
	StageDecode        = "decode-events"
	StagePrefetchCIDs  = "prefetch-cids"
	StageIndex         = "index-block"
	StageCommit        = "session.commit"
)

// ValidationError is a per-event business rule violation. It is caught at
// event granularity and never fails the block.
type ValidationError struct {
	Action     Action
	EntityType EntityType
	EntityID   int64
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %s %d: %s", e.Action, e.EntityType, e.EntityID, e.Message)
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(action Action, entityType EntityType, entityID int64, format string, args ...any) *ValidationError {
	return &ValidationError{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Message:    fmt.Sprintf(format, args...),
	}
}

// IndexingError is a block-level failure. It aborts the current cycle and is
// recorded to the shared error state so concurrent attempts can reach
// consensus on skipping the offending transaction.
type IndexingError struct {
	Stage       string
	BlockNumber int64
	BlockHash   string
	TxHash      string
	Message     string
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing error at %s: block=%d hash=%s tx=%s: %s",
		e.Stage, e.BlockNumber, e.BlockHash, e.TxHash, e.Message)
}

// MissingMetadataError fails a block when required off-chain blobs remain
// unresolved after both resolution phases.
type MissingMetadataError struct {
	BlockNumber int64
	CIDs        []string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("block %d: unresolved metadata cids: %s",
		e.BlockNumber, strings.Join(e.CIDs, ", "))
}
