package schema

import (
	"time"

	"gorm.io/datatypes"
)

// PlaylistTrack is one entry of a playlist's ordered contents
type PlaylistTrack struct {
	// Track is the referenced track ID
	Track int64 `json:"track"`
	// Time is the on-chain timestamp when the track was added to the playlist.
	// It is preserved across metadata updates that keep the same entry.
	Time int64 `json:"time"`
	// MetadataTime is the add-timestamp the client wrote into the metadata
	// blob; it pairs with Track to identify a surviving entry across updates
	MetadataTime int64 `json:"metadata_time"`
}

// PlaylistContents is the ordered track list stored as jsonb
type PlaylistContents struct {
	TrackIDs []PlaylistTrack `json:"track_ids"`
}

// Playlist represents the playlists table. Rows are append-only versions
// keyed by playlist_id with at most one current row per playlist.
type Playlist struct {
	// ID is the internal database primary key for the version row
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// PlaylistID is the chain-assigned playlist identifier
	PlaylistID int64 `gorm:"column:playlist_id;not null;index:idx_playlists_playlist_id"`
	// PlaylistOwnerID is the user that owns the playlist
	PlaylistOwnerID int64 `gorm:"column:playlist_owner_id;not null;index:idx_playlists_owner_id"`
	// PlaylistName is the display name from metadata
	PlaylistName *string `gorm:"column:playlist_name;type:text"`
	// Description is the playlist description from metadata
	Description *string `gorm:"column:description;type:text"`
	// PlaylistImageMultihash is the CID of the playlist artwork
	PlaylistImageMultihash *string `gorm:"column:playlist_image_multihash;type:text"`
	// PlaylistContents is the ordered track list with add timestamps
	PlaylistContents datatypes.JSONType[PlaylistContents] `gorm:"column:playlist_contents;type:jsonb"`
	// MetadataMultihash is the CID the version was materialized from
	MetadataMultihash *string `gorm:"column:metadata_multihash;type:text"`
	// IsAlbum distinguishes albums from playlists
	IsAlbum bool `gorm:"column:is_album;not null;default:false"`
	// IsPrivate hides the playlist from public listings
	IsPrivate bool `gorm:"column:is_private;not null;default:false"`
	// IsDelete is a tombstone; the playlist stays queryable as deleted
	IsDelete bool `gorm:"column:is_delete;not null;default:false"`
	// LastAddedTo is the most recent time a track entry was added
	LastAddedTo *time.Time `gorm:"column:last_added_to"`
	// IsCurrent marks the visible version of this playlist
	IsCurrent bool `gorm:"column:is_current;not null;index:idx_playlists_is_current"`
	// Blocknumber is the height of the block that produced this version
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_playlists_blocknumber"`
	// Blockhash is the hash of the block that produced this version
	Blockhash string `gorm:"column:blockhash;not null;type:text;index:idx_playlists_blockhash"`
	// Txhash is the transaction that produced this version
	Txhash string `gorm:"column:txhash;not null;type:text"`
	// CreatedAt is the on-chain timestamp of the playlist's first version
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	// UpdatedAt is the on-chain timestamp of this version
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for the Playlist model
func (Playlist) TableName() string {
	return "playlists"
}

// PlaylistRoute represents the playlist_routes table mapping URL slugs to
// playlists, scoped per owner like track routes.
type PlaylistRoute struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Slug is the full route slug including any collision suffix
	Slug string `gorm:"column:slug;not null;type:text;uniqueIndex:idx_playlist_routes_owner_slug,priority:2"`
	// TitleSlug is the base slug derived from the playlist name
	TitleSlug string `gorm:"column:title_slug;not null;type:text"`
	// CollisionID disambiguates equal title slugs under one owner
	CollisionID int64 `gorm:"column:collision_id;not null;default:0"`
	// OwnerID scopes the slug namespace
	OwnerID int64 `gorm:"column:owner_id;not null;uniqueIndex:idx_playlist_routes_owner_slug,priority:1"`
	// PlaylistID is the playlist this route resolves to
	PlaylistID int64 `gorm:"column:playlist_id;not null;index:idx_playlist_routes_playlist_id"`
	// IsCurrent marks the active route for the playlist
	IsCurrent bool `gorm:"column:is_current;not null"`
	// Blocknumber is the height of the block that produced this route
	Blocknumber int64 `gorm:"column:blocknumber;not null;index:idx_playlist_routes_blocknumber"`
	// Blockhash is the hash of the block that produced this route
	Blockhash string `gorm:"column:blockhash;not null;type:text;index:idx_playlist_routes_blockhash"`
	// Txhash is the transaction that produced this route
	Txhash string `gorm:"column:txhash;not null;type:text"`
}

// TableName specifies the table name for the PlaylistRoute model
func (PlaylistRoute) TableName() string {
	return "playlist_routes"
}
