package entity

import (
	"gorm.io/datatypes"

	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/metadata"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

func (d *Dispatcher) createTrack(p *Params) error {
	event := p.Event

	if event.EntityID < domain.TrackIDOffset {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"track id below offset %d", domain.TrackIDOffset)
	}
	if p.CurrentTrack(event.EntityID) != nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"track already exists")
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
	meta, err := metadata.ParseTrack(raw)
	if err != nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"unparseable metadata: %v", err)
	}

	cid := event.MetadataCID
	track := schema.Track{
		TrackID:           event.EntityID,
		OwnerID:           event.UserID,
		MetadataMultihash: &cid,
		Blocknumber:       p.Block.Number,
		Blockhash:         p.Block.Hash,
		Txhash:            event.TxHash,
		CreatedAt:         p.Block.Timestamp,
		UpdatedAt:         p.Block.Timestamp,
	}
	applyTrackMetadata(&track, meta)

	p.Records.Tracks.Stage(domain.EntityKey(event.EntityID), track)

	if track.Title != nil {
		if err := d.stageTrackRoute(p, event.UserID, event.EntityID, *track.Title); err != nil {
			return err
		}
	}

	p.Records.AddChallenge(domain.ChallengeTrackUpload, event.UserID)
	return nil
}

func (d *Dispatcher) updateTrack(p *Params) error {
	event := p.Event

	track := p.CurrentTrack(event.EntityID)
	if track == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"track does not exist")
	}
	if track.IsDelete {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"track is deleted")
	}
	if err := d.requireTrackOwner(p, track); err != nil {
		return err
	}

	next := *track
	previousTitle := ""
	if track.Title != nil {
		previousTitle = *track.Title
	}

	if raw, ok := p.Blob(); ok {
		meta, err := metadata.ParseTrack(raw)
		if err != nil {
			return domain.Validationf(event.Action, event.EntityType, event.EntityID,
				"unparseable metadata: %v", err)
		}
		applyTrackMetadata(&next, meta)
		cid := event.MetadataCID
		next.MetadataMultihash = &cid
	}

	next.ID = 0
	next.Blocknumber = p.Block.Number
	next.Blockhash = p.Block.Hash
	next.Txhash = event.TxHash
	next.UpdatedAt = p.Block.Timestamp

	p.Records.Tracks.Stage(domain.EntityKey(event.EntityID), next)

	if next.Title != nil && *next.Title != previousTitle {
		if err := d.stageTrackRoute(p, next.OwnerID, event.EntityID, *next.Title); err != nil {
			return err
		}
	}

	return nil
}

func (d *Dispatcher) deleteTrack(p *Params) error {
	event := p.Event

	track := p.CurrentTrack(event.EntityID)
	if track == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"track does not exist")
	}
	if err := d.requireTrackOwner(p, track); err != nil {
		return err
	}

	next := *track
	next.ID = 0
	next.IsDelete = true
	next.Blocknumber = p.Block.Number
	next.Blockhash = p.Block.Hash
	next.Txhash = event.TxHash
	next.UpdatedAt = p.Block.Timestamp

	p.Records.Tracks.Stage(domain.EntityKey(event.EntityID), next)
	return nil
}

func (d *Dispatcher) requireTrackOwner(p *Params, track *schema.Track) error {
	event := p.Event

	if track.OwnerID != event.UserID {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"user %d does not own track", event.UserID)
	}
	owner := p.CurrentUser(track.OwnerID)
	if owner == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"owner user %d does not exist", track.OwnerID)
	}
	if !SignerMatches(event.Signer, owner.Wallet) {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"signer does not match owner wallet")
	}
	return nil
}

// stageTrackRoute reserves a slug for the track under its owner, resolving
// collisions against both persisted routes and routes staged in this block.
func (d *Dispatcher) stageTrackRoute(p *Params, ownerID, trackID int64, title string) error {
	titleSlug := slugify(title)
	if titleSlug == "" {
		return nil
	}

	persisted, err := p.Store.GetTrackRoutes(p.Ctx, ownerID, titleSlug)
	if err != nil {
		return err
	}

	taken := make([]int64, 0, len(persisted))
	for _, route := range persisted {
		taken = append(taken, route.CollisionID)
	}
	for _, staged := range p.Records.TrackRoutes {
		if staged.OwnerID == ownerID && staged.TitleSlug == titleSlug {
			taken = append(taken, staged.CollisionID)
		}
	}

	slug, collisionID := resolveSlugCollision(titleSlug, taken)
	p.Records.TrackRoutes = append(p.Records.TrackRoutes, schema.TrackRoute{
		Slug:        slug,
		TitleSlug:   titleSlug,
		CollisionID: collisionID,
		OwnerID:     ownerID,
		TrackID:     trackID,
		IsCurrent:   true,
		Blocknumber: p.Block.Number,
		Blockhash:   p.Block.Hash,
		Txhash:      p.Event.TxHash,
	})

	return nil
}

func applyTrackMetadata(track *schema.Track, meta *metadata.TrackMetadata) {
	if meta.Title != nil {
		track.Title = meta.Title
	}
	if meta.CoverArt != nil {
		track.CoverArt = meta.CoverArt
	}
	if meta.Genre != nil {
		track.Genre = meta.Genre
	}
	if meta.Mood != nil {
		track.Mood = meta.Mood
	}
	if meta.Duration != nil {
		track.Duration = meta.Duration
	}
	track.IsUnlisted = meta.IsUnlisted
	track.IsPremium = meta.IsPremium
	if len(meta.PremiumConditions) > 0 {
		track.PremiumConditions = datatypes.JSON(meta.PremiumConditions)
	}
}
