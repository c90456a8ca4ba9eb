package schema

import "time"

// SkippedTransaction represents the skipped_transactions table - the audit
// trail of transactions (or whole blocks) dropped after repeated failures
// reached skip consensus.
type SkippedTransaction struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Blocknumber is the height of the block containing the skipped transaction
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_skipped_transactions_blocknumber"`
	// Blockhash is the hash of the block containing the skipped transaction
	Blockhash string `gorm:"column:blockhash;not null;type:text"`
	// Txhash is the skipped transaction hash
	Txhash string `gorm:"column:txhash;not null;type:text;index:idx_skipped_transactions_txhash"`
	// CreatedAt is the timestamp when the skip was recorded
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the SkippedTransaction model
func (SkippedTransaction) TableName() string {
	return "skipped_transactions"
}
