package entity

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/records"
	"github.com/soundvine/discovery-indexer/internal/store"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

// Params carries everything a mutation handler needs to process one event:
// the event itself, the block provenance, the resolved metadata blobs, the
// entities pre-fetched for this block, and the working set staged so far.
//
// Reads go through the working set first so an event sees the versions staged
// by earlier events in the same block.
type Params struct {
	Ctx     context.Context
	Store   store.Store
	Records *records.BlockRecords
	Block   domain.BlockContext
	Event   domain.EntityEvent

	// Metadata holds the resolved blobs for this block keyed by CID
	Metadata map[string]json.RawMessage

	// Entities current before this block began, keyed by id
	ExistingUsers     map[int64]*schema.User
	ExistingTracks    map[int64]*schema.Track
	ExistingPlaylists map[int64]*schema.Playlist
}

// CurrentUser returns the user as visible at this point of the block
func (p *Params) CurrentUser(userID int64) *schema.User {
	if staged, ok := p.Records.Users.Latest(domain.EntityKey(userID)); ok {
		return &staged
	}
	return p.ExistingUsers[userID]
}

// CurrentTrack returns the track as visible at this point of the block
func (p *Params) CurrentTrack(trackID int64) *schema.Track {
	if staged, ok := p.Records.Tracks.Latest(domain.EntityKey(trackID)); ok {
		return &staged
	}
	return p.ExistingTracks[trackID]
}

// CurrentPlaylist returns the playlist as visible at this point of the block
func (p *Params) CurrentPlaylist(playlistID int64) *schema.Playlist {
	if staged, ok := p.Records.Playlists.Latest(domain.EntityKey(playlistID)); ok {
		return &staged
	}
	return p.ExistingPlaylists[playlistID]
}

// Blob returns the resolved metadata blob referenced by the event, if any
func (p *Params) Blob() (json.RawMessage, bool) {
	if p.Event.MetadataCID == "" {
		return nil, false
	}
	raw, ok := p.Metadata[p.Event.MetadataCID]
	return raw, ok
}

// SignerMatches checks the event signer against a wallet, case-insensitively
func SignerMatches(signer, wallet string) bool {
	return wallet != "" && strings.EqualFold(signer, wallet)
}
