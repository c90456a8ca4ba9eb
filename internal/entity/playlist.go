package entity

import (
	"gorm.io/datatypes"

	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/metadata"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

func (d *Dispatcher) createPlaylist(p *Params) error {
	event := p.Event

	if event.EntityID < domain.PlaylistIDOffset {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"playlist id below offset %d", domain.PlaylistIDOffset)
	}
	if p.CurrentPlaylist(event.EntityID) != nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"playlist already exists")
	}

	owner := p.CurrentUser(event.UserID)
	if owner == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"owner user %d does not exist", event.UserID)
	}
	if !SignerMatches(event.Signer, owner.Wallet) {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"signer does not match owner wallet")
	}

	raw, ok := p.Blob()
	if !ok {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"create requires metadata cid")
	}
	meta, err := metadata.ParsePlaylist(raw)
	if err != nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"unparseable metadata: %v", err)
	}

	contents, err := d.buildPlaylistContents(p, meta, nil)
	if err != nil {
		return err
	}

	cid := event.MetadataCID
	playlist := schema.Playlist{
		PlaylistID:        event.EntityID,
		PlaylistOwnerID:   event.UserID,
		PlaylistName:      meta.PlaylistName,
		Description:       meta.Description,
		MetadataMultihash: &cid,
		IsAlbum:           meta.IsAlbum,
		IsPrivate:         meta.IsPrivate,
		PlaylistContents:  datatypes.NewJSONType(contents),
		Blocknumber:       p.Block.Number,
		Blockhash:         p.Block.Hash,
		Txhash:            event.TxHash,
		CreatedAt:         p.Block.Timestamp,
		UpdatedAt:         p.Block.Timestamp,
	}
	if meta.PlaylistImage != nil {
		playlist.PlaylistImageMultihash = meta.PlaylistImage
	}
	if len(contents.TrackIDs) > 0 {
		ts := p.Block.Timestamp
		playlist.LastAddedTo = &ts
	}

	p.Records.Playlists.Stage(domain.EntityKey(event.EntityID), playlist)

	if meta.PlaylistName != nil {
		if err := d.stagePlaylistRoute(p, event.UserID, event.EntityID, *meta.PlaylistName); err != nil {
			return err
		}
	}

	p.Records.AddChallenge(domain.ChallengeFirstPlaylist, event.UserID)
	return nil
}

func (d *Dispatcher) updatePlaylist(p *Params) error {
	event := p.Event

	playlist := p.CurrentPlaylist(event.EntityID)
	if playlist == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"playlist does not exist")
	}
	if playlist.IsDelete {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"playlist is deleted")
	}
	if err := d.requirePlaylistOwner(p, playlist); err != nil {
		return err
	}

	next := *playlist
	previousName := ""
	if playlist.PlaylistName != nil {
		previousName = *playlist.PlaylistName
	}

	if raw, ok := p.Blob(); ok {
		meta, err := metadata.ParsePlaylist(raw)
		if err != nil {
			return domain.Validationf(event.Action, event.EntityType, event.EntityID,
				"unparseable metadata: %v", err)
		}

		previous := playlist.PlaylistContents.Data()
		contents, err := d.buildPlaylistContents(p, meta, &previous)
		if err != nil {
			return err
		}

		if meta.PlaylistName != nil {
			next.PlaylistName = meta.PlaylistName
		}
		if meta.Description != nil {
			next.Description = meta.Description
		}
		if meta.PlaylistImage != nil {
			next.PlaylistImageMultihash = meta.PlaylistImage
		}
		next.IsAlbum = meta.IsAlbum
		next.IsPrivate = meta.IsPrivate
		next.PlaylistContents = datatypes.NewJSONType(contents)
		cid := event.MetadataCID
		next.MetadataMultihash = &cid

		if hasNewEntries(previous, contents) {
			ts := p.Block.Timestamp
			next.LastAddedTo = &ts
		}
	}

	next.ID = 0
	next.Blocknumber = p.Block.Number
	next.Blockhash = p.Block.Hash
	next.Txhash = event.TxHash
	next.UpdatedAt = p.Block.Timestamp

	p.Records.Playlists.Stage(domain.EntityKey(event.EntityID), next)

	if next.PlaylistName != nil && *next.PlaylistName != previousName {
		if err := d.stagePlaylistRoute(p, next.PlaylistOwnerID, event.EntityID, *next.PlaylistName); err != nil {
			return err
		}
	}

	return nil
}

func (d *Dispatcher) deletePlaylist(p *Params) error {
	event := p.Event

	playlist := p.CurrentPlaylist(event.EntityID)
	if playlist == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"playlist does not exist")
	}
	if err := d.requirePlaylistOwner(p, playlist); err != nil {
		return err
	}

	next := *playlist
	next.ID = 0
	next.IsDelete = true
	next.Blocknumber = p.Block.Number
	next.Blockhash = p.Block.Hash
	next.Txhash = event.TxHash
	next.UpdatedAt = p.Block.Timestamp

	p.Records.Playlists.Stage(domain.EntityKey(event.EntityID), next)
	return nil
}

func (d *Dispatcher) requirePlaylistOwner(p *Params, playlist *schema.Playlist) error {
	event := p.Event

	if playlist.PlaylistOwnerID != event.UserID {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"user %d does not own playlist", event.UserID)
	}
	owner := p.CurrentUser(playlist.PlaylistOwnerID)
	if owner == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"owner user %d does not exist", playlist.PlaylistOwnerID)
	}
	if !SignerMatches(event.Signer, owner.Wallet) {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"signer does not match owner wallet")
	}
	return nil
}

// buildPlaylistContents materializes the blob's track list. An entry that
// already exists in the previous version with a matching metadata timestamp
// keeps its original add time; everything else is stamped with the block
// time. Premium tracks cannot be placed in playlists.
func (d *Dispatcher) buildPlaylistContents(p *Params, meta *metadata.PlaylistMetadata, previous *schema.PlaylistContents) (schema.PlaylistContents, error) {
	event := p.Event

	contents := schema.PlaylistContents{
		TrackIDs: make([]schema.PlaylistTrack, 0, len(meta.PlaylistContents.TrackIDs)),
	}

	for _, entry := range meta.PlaylistContents.TrackIDs {
		track := p.CurrentTrack(entry.Track)
		if track != nil && track.IsPremium {
			return schema.PlaylistContents{}, domain.Validationf(event.Action, event.EntityType, event.EntityID,
				"premium track %d cannot be added to a playlist", entry.Track)
		}

		addedAt := p.Block.Timestamp.Unix()
		if prev := findPreviousEntry(previous, entry); prev != nil {
			addedAt = prev.Time
		}

		contents.TrackIDs = append(contents.TrackIDs, schema.PlaylistTrack{
			Track:        entry.Track,
			Time:         addedAt,
			MetadataTime: entry.Time,
		})
	}

	return contents, nil
}

// findPreviousEntry matches a metadata entry against the persisted contents.
// The metadata timestamp is the identity; older rows without one fall back to
// the stored add time.
func findPreviousEntry(previous *schema.PlaylistContents, entry metadata.PlaylistTrackEntry) *schema.PlaylistTrack {
	if previous == nil {
		return nil
	}
	for i := range previous.TrackIDs {
		prev := &previous.TrackIDs[i]
		if prev.Track != entry.Track {
			continue
		}
		if prev.MetadataTime == entry.Time || prev.Time == entry.Time {
			return prev
		}
	}
	return nil
}

func hasNewEntries(previous schema.PlaylistContents, next schema.PlaylistContents) bool {
	known := make(map[schema.PlaylistTrack]bool, len(previous.TrackIDs))
	for _, entry := range previous.TrackIDs {
		known[entry] = true
	}
	for _, entry := range next.TrackIDs {
		if !known[entry] {
			return true
		}
	}
	return false
}

// stagePlaylistRoute reserves a slug for the playlist under its owner,
// resolving collisions against persisted and block-staged routes.
func (d *Dispatcher) stagePlaylistRoute(p *Params, ownerID, playlistID int64, name string) error {
	titleSlug := slugify(name)
	if titleSlug == "" {
		return nil
	}

	persisted, err := p.Store.GetPlaylistRoutes(p.Ctx, ownerID, titleSlug)
	if err != nil {
		return err
	}

	taken := make([]int64, 0, len(persisted))
	for _, route := range persisted {
		taken = append(taken, route.CollisionID)
	}
	for _, staged := range p.Records.PlaylistRoutes {
		if staged.OwnerID == ownerID && staged.TitleSlug == titleSlug {
			taken = append(taken, staged.CollisionID)
		}
	}

	slug, collisionID := resolveSlugCollision(titleSlug, taken)
	p.Records.PlaylistRoutes = append(p.Records.PlaylistRoutes, schema.PlaylistRoute{
		Slug:        slug,
		TitleSlug:   titleSlug,
		CollisionID: collisionID,
		OwnerID:     ownerID,
		PlaylistID:  playlistID,
		IsCurrent:   true,
		Blocknumber: p.Block.Number,
		Blockhash:   p.Block.Hash,
		Txhash:      p.Event.TxHash,
	})

	return nil
}
