package schema

import "time"

// Block represents the blocks table - the indexer's view of the chain.
// Exactly one row is marked current at any time; it is the head the
// reconciliation engine extends or unwinds from.
type Block struct {
	// Blockhash is the canonical block hash, primary key
	Blockhash string `gorm:"column:blockhash;primaryKey;type:text"`
	// Parenthash links this block to its parent for fork-point search
	Parenthash string `gorm:"column:parenthash;not null;type:text;index:idx_blocks_parenthash"`
	// Number is the block height
	Number int64 `gorm:"column:number;not null;uniqueIndex:idx_blocks_number"`
	// IsCurrent marks the single chain-head row
	IsCurrent bool `gorm:"column:is_current;not null;default:false"`
	// CreatedAt is the timestamp when this block was indexed
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the Block model
func (Block) TableName() string {
	return "blocks"
}
