package schema

import (
	"time"

	"gorm.io/datatypes"
)

// CidData represents the cid_data table - the immutable cache of resolved
// off-chain metadata blobs. Inserts never overwrite an existing CID.
type CidData struct {
	// Cid is the content identifier, primary key
	Cid string `gorm:"column:cid;primaryKey;type:text"`
	// Type records which entity schema the blob was parsed against
	Type string `gorm:"column:type;not null;type:text"`
	// Data is the raw metadata JSON as fetched from the gateway
	Data datatypes.JSON `gorm:"column:data;type:jsonb"`
	// CreatedAt is the timestamp when the blob was first cached
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the CidData model
func (CidData) TableName() string {
	return "cid_data"
}
