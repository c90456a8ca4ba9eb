package schema

import "time"

// SaveType identifies what kind of entity a save or repost targets
type SaveType string

const (
	// SaveTypeTrack targets a track
	SaveTypeTrack SaveType = "track"
	// SaveTypePlaylist targets a playlist
	SaveTypePlaylist SaveType = "playlist"
	// SaveTypeAlbum targets a playlist marked as album
	SaveTypeAlbum SaveType = "album"
)

// Follow represents the follows table. Versions are keyed by the
// (follower, followee) pair; deletes are tombstones, not removals.
type Follow struct {
	// ID is the internal database primary key for the version row
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// FollowerUserID is the user performing the follow
	FollowerUserID int64 `gorm:"column:follower_user_id;not null;index:idx_follows_follower"`
	// FolloweeUserID is the user being followed
	FolloweeUserID int64 `gorm:"column:followee_user_id;not null;index:idx_follows_followee"`
	// IsDelete marks an unfollow tombstone
	IsDelete bool `gorm:"column:is_delete;not null;default:false"`
	// IsCurrent marks the visible version of this relationship
	IsCurrent bool `gorm:"column:is_current;not null;index:idx_follows_is_current"`
	// Blocknumber is the height of the block that produced this version
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_follows_blocknumber"`
	// Blockhash is the hash of the block that produced this version
	Blockhash string `gorm:"column:blockhash;not null;type:text;index:idx_follows_blockhash"`
	// Txhash is the transaction that produced this version
	Txhash string `gorm:"column:txhash;not null;type:text"`
	// CreatedAt is the on-chain timestamp of this version
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the Follow model
func (Follow) TableName() string {
	return "follows"
}

// Save represents the saves table. Versions are keyed by
// (user, save_type, save_item_id).
type Save struct {
	// ID is the internal database primary key for the version row
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// UserID is the user performing the save
	UserID int64 `gorm:"column:user_id;not null;index:idx_saves_user_id"`
	// SaveItemID is the target track or playlist ID
	SaveItemID int64 `gorm:"column:save_item_id;not null;index:idx_saves_item_id"`
	// SaveType identifies the target kind
	SaveType SaveType `gorm:"column:save_type;not null;type:text"`
	// IsDelete marks an unsave tombstone
	IsDelete bool `gorm:"column:is_delete;not null;default:false"`
	// IsCurrent marks the visible version of this relationship
	IsCurrent bool `gorm:"column:is_current;not null;index:idx_saves_is_current"`
	// Blocknumber is the height of the block that produced this version
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_saves_blocknumber"`
	// Blockhash is the hash of the block that produced this version
	Blockhash string `gorm:"column:blockhash;not null;type:text;index:idx_saves_blockhash"`
	// Txhash is the transaction that produced this version
	Txhash string `gorm:"column:txhash;not null;type:text"`
	// CreatedAt is the on-chain timestamp of this version
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the Save model
func (Save) TableName() string {
	return "saves"
}

// Repost represents the reposts table. Versions are keyed by
// (user, repost_type, repost_item_id).
type Repost struct {
	// ID is the internal database primary key for the version row
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// UserID is the user performing the repost
	UserID int64 `gorm:"column:user_id;not null;index:idx_reposts_user_id"`
	// RepostItemID is the target track or playlist ID
	RepostItemID int64 `gorm:"column:repost_item_id;not null;index:idx_reposts_item_id"`
	// RepostType identifies the target kind
	RepostType SaveType `gorm:"column:repost_type;not null;type:text"`
	// IsDelete marks an unrepost tombstone
	IsDelete bool `gorm:"column:is_delete;not null;default:false"`
	// IsCurrent marks the visible version of this relationship
	IsCurrent bool `gorm:"column:is_current;not null;index:idx_reposts_is_current"`
	// Blocknumber is the height of the block that produced this version
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_reposts_blocknumber"`
	// Blockhash is the hash of the block that produced this version
	Blockhash string `gorm:"column:blockhash;not null;type:text;index:idx_reposts_blockhash"`
	// Txhash is the transaction that produced this version
	Txhash string `gorm:"column:txhash;not null;type:text"`
	// CreatedAt is the on-chain timestamp of this version
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the Repost model
func (Repost) TableName() string {
	return "reposts"
}

// Subscription represents the subscriptions table. Versions are keyed by
// the (subscriber, user) pair.
type Subscription struct {
	// ID is the internal database primary key for the version row
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// SubscriberID is the user subscribing to notifications
	SubscriberID int64 `gorm:"column:subscriber_id;not null;index:idx_subscriptions_subscriber"`
	// UserID is the user being subscribed to
	UserID int64 `gorm:"column:user_id;not null;index:idx_subscriptions_user_id"`
	// IsDelete marks an unsubscribe tombstone
	IsDelete bool `gorm:"column:is_delete;not null;default:false"`
	// IsCurrent marks the visible version of this relationship
	IsCurrent bool `gorm:"column:is_current;not null;index:idx_subscriptions_is_current"`
	// Blocknumber is the height of the block that produced this version
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_subscriptions_blocknumber"`
	// Blockhash is the hash of the block that produced this version
	Blockhash string `gorm:"column:blockhash;not null;type:text;index:idx_subscriptions_blockhash"`
	// Txhash is the transaction that produced this version
	Txhash string `gorm:"column:txhash;not null;type:text"`
	// CreatedAt is the on-chain timestamp of this version
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the Subscription model
func (Subscription) TableName() string {
	return "subscriptions"
}
