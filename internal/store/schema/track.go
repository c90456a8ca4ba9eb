package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Track represents the tracks table. Rows are append-only versions keyed by
// track_id with at most one current row per track.
type Track struct {
	// ID is the internal database primary key for the version row
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TrackID is the chain-assigned track identifier
	TrackID int64 `gorm:"column:track_id;not null;index:idx_tracks_track_id"`
	// OwnerID is the user that owns the track; mutations must be signed by it
	OwnerID int64 `gorm:"column:owner_id;not null;index:idx_tracks_owner_id"`
	// Title is the track title from metadata
	Title *string `gorm:"column:title;type:text"`
	// CoverArt is the CID of the cover art image
	CoverArt *string `gorm:"column:cover_art;type:text"`
	// Genre is the genre label from metadata
	Genre *string `gorm:"column:genre;type:text"`
	// Mood is the mood label from metadata
	Mood *string `gorm:"column:mood;type:text"`
	// Duration is the track length in seconds
	Duration *int64 `gorm:"column:duration"`
	// MetadataMultihash is the CID the version was materialized from
	MetadataMultihash *string `gorm:"column:metadata_multihash;type:text"`
	// IsUnlisted hides the track from public listings
	IsUnlisted bool `gorm:"column:is_unlisted;not null;default:false"`
	// IsPremium gates the track behind access conditions
	IsPremium bool `gorm:"column:is_premium;not null;default:false"`
	// PremiumConditions holds the gating rules as JSON when IsPremium is set
	PremiumConditions datatypes.JSON `gorm:"column:premium_conditions;type:jsonb"`
	// IsDelete is a tombstone; the track stays queryable as deleted
	IsDelete bool `gorm:"column:is_delete;not null;default:false"`
	// IsCurrent marks the visible version of this track
	IsCurrent bool `gorm:"column:is_current;not null;index:idx_tracks_is_current"`
	// Blocknumber is the height of the block that produced this version
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_tracks_blocknumber"`
	// Blockhash is the hash of the block that produced this version
	Blockhash string `gorm:"column:blockhash;not null;type:text;index:idx_tracks_blockhash"`
	// Txhash is the transaction that produced this version
	Txhash string `gorm:"column:txhash;not null;type:text"`
	// CreatedAt is the on-chain timestamp of the track's first version
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	// UpdatedAt is the on-chain timestamp of this version
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for the Track model
func (Track) TableName() string {
	return "tracks"
}

// TrackRoute represents the track_routes table mapping URL slugs to tracks.
// Slugs are scoped per owner; colliding titles get a numeric suffix.
type TrackRoute struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Slug is the full route slug including any collision suffix
	Slug string `gorm:"column:slug;not null;type:text;uniqueIndex:idx_track_routes_owner_slug,priority:2"`
	// TitleSlug is the base slug derived from the title
	TitleSlug string `gorm:"column:title_slug;not null;type:text"`
	// CollisionID disambiguates equal title slugs under one owner
	CollisionID int64 `gorm:"column:collision_id;not null;default:0"`
	// OwnerID scopes the slug namespace
	OwnerID int64 `gorm:"column:owner_id;not null;uniqueIndex:idx_track_routes_owner_slug,priority:1"`
	// TrackID is the track this route resolves to
	TrackID int64 `gorm:"column:track_id;not null;index:idx_track_routes_track_id"`
	// IsCurrent marks the active route for the track
	IsCurrent bool `gorm:"column:is_current;not null"`
	// Blocknumber is the height of the block that produced this route
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_track_routes_blocknumber"`
	// Blockhash is the hash of the block that produced this route
	Blockhash string `gorm:"column:blockhash;not null;type:text;index:idx_track_routes_blockhash"`
	// Txhash is the transaction that produced this route
	Txhash string `gorm:"column:txhash;not null;type:text"`
}

// TableName specifies the table name for the TrackRoute model
func (TrackRoute) TableName() string {
	return "track_routes"
}
