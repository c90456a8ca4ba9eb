package schema

import "time"

// User represents the users table. Rows are append-only versions: every
// accepted mutation inserts a new row carrying full provenance, and at most
// one row per user_id is marked current.
type User struct {
	// ID is the internal database primary key for the version row
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// UserID is the chain-assigned user identifier
	UserID int64 `gorm:"column:user_id;not null;index:idx_users_user_id"`
	// Handle is the user's display handle, unique among current rows
	Handle string `gorm:"column:handle;type:text"`
	// HandleLc is the lowercase handle used for uniqueness checks
	HandleLc string `gorm:"column:handle_lc;type:text;index:idx_users_handle_lc"`
	// Wallet is the address that created the user; signer checks run against it
	Wallet string `gorm:"column:wallet;type:text;index:idx_users_wallet"`
	// Name is the display name from metadata
	Name *string `gorm:"column:name;type:text"`
	// Bio is the profile biography from metadata
	Bio *string `gorm:"column:bio;type:text"`
	// Location is the free-form profile location from metadata
	Location *string `gorm:"column:location;type:text"`
	// ProfilePicture is the CID of the profile image
	ProfilePicture *string `gorm:"column:profile_picture;type:text"`
	// CoverPhoto is the CID of the cover image
	CoverPhoto *string `gorm:"column:cover_photo;type:text"`
	// MetadataMultihash is the CID the version was materialized from
	MetadataMultihash *string `gorm:"column:metadata_multihash;type:text"`
	// ReplicaSetEndpoints lists the user's content nodes, comma separated,
	// used to target phase-one metadata resolution
	ReplicaSetEndpoints *string `gorm:"column:replica_set_endpoints;type:text"`
	// IsVerified is set by the Verify action from an authorized signer
	IsVerified bool `gorm:"column:is_verified;not null;default:false"`
	// IsDeactivated hides the user without destroying history
	IsDeactivated bool `gorm:"column:is_deactivated;not null;default:false"`
	// IsCurrent marks the visible version of this user
	IsCurrent bool `gorm:"column:is_current;not null;index:idx_users_is_current"`
	// Blocknumber is the height of the block that produced this version
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_users_blocknumber"`
	// Blockhash is the hash of the block that produced this version
	Blockhash string `gorm:"column:blockhash;not null;type:text;index:idx_users_blockhash"`
	// Txhash is the transaction that produced this version
	Txhash string `gorm:"column:txhash;not null;type:text"`
	// CreatedAt is the on-chain timestamp of the user's first version
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	// UpdatedAt is the on-chain timestamp of this version
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
