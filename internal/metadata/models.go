package metadata

import (
	"encoding/json"
	"fmt"
)

// UserMetadata is the off-chain profile blob referenced by user events
type UserMetadata struct {
	Name           *string `json:"name"`
	Handle         *string `json:"handle"`
	Bio            *string `json:"bio"`
	Location       *string `json:"location"`
	ProfilePicture *string `json:"profile_picture_sizes"`
	CoverPhoto     *string `json:"cover_photo_sizes"`
	// CreatorNodeEndpoint lists the user's content nodes, comma separated;
	// the resolver targets them during phase-one fetches
	CreatorNodeEndpoint *string `json:"creator_node_endpoint"`
}

// TrackMetadata is the off-chain track blob referenced by track events
type TrackMetadata struct {
	Title             *string         `json:"title"`
	CoverArt          *string         `json:"cover_art_sizes"`
	Genre             *string         `json:"genre"`
	Mood              *string         `json:"mood"`
	Duration          *int64          `json:"duration"`
	IsUnlisted        bool            `json:"is_unlisted"`
	IsPremium         bool            `json:"is_premium"`
	PremiumConditions json.RawMessage `json:"premium_conditions"`
}

// PlaylistTrackEntry is one entry of the playlist contents in a metadata blob
type PlaylistTrackEntry struct {
	Track int64 `json:"track"`
	// Time is the client-written add timestamp, matched against persisted
	// entries to preserve original add times across updates
	Time int64 `json:"time"`
}

// PlaylistContentsMetadata is the ordered track list in a playlist blob
type PlaylistContentsMetadata struct {
	TrackIDs []PlaylistTrackEntry `json:"track_ids"`
}

// PlaylistMetadata is the off-chain playlist blob referenced by playlist events
type PlaylistMetadata struct {
	PlaylistName     *string                  `json:"playlist_name"`
	Description      *string                  `json:"description"`
	PlaylistImage    *string                  `json:"playlist_image_sizes_multihash"`
	PlaylistContents PlaylistContentsMetadata `json:"playlist_contents"`
	IsAlbum          bool                     `json:"is_album"`
	IsPrivate        bool                     `json:"is_private"`
}

// ParseUser decodes a raw blob as user metadata
func ParseUser(raw json.RawMessage) (*UserMetadata, error) {
	var m UserMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse user metadata: %w", err)
	}
	return &m, nil
}

// ParseTrack decodes a raw blob as track metadata
func ParseTrack(raw json.RawMessage) (*TrackMetadata, error) {
	var m TrackMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse track metadata: %w", err)
	}
	return &m, nil
}

// ParsePlaylist decodes a raw blob as playlist metadata
func ParsePlaylist(raw json.RawMessage) (*PlaylistMetadata, error) {
	var m PlaylistMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse playlist metadata: %w", err)
	}
	return &m, nil
}
