package entity

import (
	"strings"

	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/metadata"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

func (d *Dispatcher) createUser(p *Params) error {
	event := p.Event

	if event.EntityID < domain.UserIDOffset {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"user id below offset %d", domain.UserIDOffset)
	}
	if p.CurrentUser(event.EntityID) != nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"user already exists")
	}

	raw, ok := p.Blob()
	if !ok {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"create requires metadata cid")
	}
	meta, err := metadata.ParseUser(raw)
	if err != nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"unparseable metadata: %v", err)
	}
	if meta.Handle == nil || strings.TrimSpace(*meta.Handle) == "" {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"metadata missing handle")
	}

	handle := strings.TrimSpace(*meta.Handle)
	handleLc := strings.ToLower(handle)

	taken, err := d.isHandleTaken(p, handleLc)
	if err != nil {
		return err
	}
	if taken {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"handle %q already taken", handle)
	}

	existing, err := p.Store.GetCurrentUserByWallet(p.Ctx, event.Signer)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"wallet already owns user %d", existing.UserID)
	}

	cid := event.MetadataCID
	user := schema.User{
		UserID:              event.EntityID,
		Handle:              handle,
		HandleLc:            handleLc,
		Wallet:              strings.ToLower(event.Signer),
		Name:                meta.Name,
		Bio:                 meta.Bio,
		Location:            meta.Location,
		ProfilePicture:      meta.ProfilePicture,
		CoverPhoto:          meta.CoverPhoto,
		ReplicaSetEndpoints: meta.CreatorNodeEndpoint,
		MetadataMultihash:   &cid,
		Blocknumber:         p.Block.Number,
		Blockhash:           p.Block.Hash,
		Txhash:              event.TxHash,
		CreatedAt:           p.Block.Timestamp,
		UpdatedAt:           p.Block.Timestamp,
	}

	p.Records.Users.Stage(domain.EntityKey(event.EntityID), user)
	return nil
}

func (d *Dispatcher) updateUser(p *Params) error {
	event := p.Event

	user := p.CurrentUser(event.EntityID)
	if user == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"user does not exist")
	}
	if !SignerMatches(event.Signer, user.Wallet) {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"signer does not match user wallet")
	}

	next := *user
	if raw, ok := p.Blob(); ok {
		meta, err := metadata.ParseUser(raw)
		if err != nil {
			return domain.Validationf(event.Action, event.EntityType, event.EntityID,
				"unparseable metadata: %v", err)
		}
		applyUserMetadata(&next, meta)
		cid := event.MetadataCID
		next.MetadataMultihash = &cid
	}

	next.ID = 0
	next.Blocknumber = p.Block.Number
	next.Blockhash = p.Block.Hash
	next.Txhash = event.TxHash
	next.UpdatedAt = p.Block.Timestamp

	p.Records.Users.Stage(domain.EntityKey(event.EntityID), next)
	p.Records.AddChallenge(domain.ChallengeProfileUpdate, event.EntityID)
	return nil
}

func (d *Dispatcher) verifyUser(p *Params) error {
	event := p.Event

	user := p.CurrentUser(event.EntityID)
	if user == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"user does not exist")
	}
	if !SignerMatches(event.Signer, d.verifierAddress) {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"verify not signed by the verifier")
	}

	next := *user
	next.ID = 0
	next.IsVerified = true
	next.Blocknumber = p.Block.Number
	next.Blockhash = p.Block.Hash
	next.Txhash = event.TxHash
	next.UpdatedAt = p.Block.Timestamp

	p.Records.Users.Stage(domain.EntityKey(event.EntityID), next)
	p.Records.AddChallenge(domain.ChallengeConnectVerified, event.EntityID)
	return nil
}

// isHandleTaken checks the persisted current rows and every user staged
// earlier in this block.
func (d *Dispatcher) isHandleTaken(p *Params, handleLc string) (bool, error) {
	for _, key := range p.Records.Users.Keys() {
		if staged, ok := p.Records.Users.Latest(key); ok && staged.HandleLc == handleLc {
			return true, nil
		}
	}
	return p.Store.IsHandleTaken(p.Ctx, handleLc)
}

// applyUserMetadata copies blob fields onto the next version. The handle is
// immutable after create and never taken from an update blob.
func applyUserMetadata(user *schema.User, meta *metadata.UserMetadata) {
	if meta.Name != nil {
		user.Name = meta.Name
	}
	if meta.Bio != nil {
		user.Bio = meta.Bio
	}
	if meta.Location != nil {
		user.Location = meta.Location
	}
	if meta.ProfilePicture != nil {
		user.ProfilePicture = meta.ProfilePicture
	}
	if meta.CoverPhoto != nil {
		user.CoverPhoto = meta.CoverPhoto
	}
	if meta.CreatorNodeEndpoint != nil {
		user.ReplicaSetEndpoints = meta.CreatorNodeEndpoint
	}
}
