package entity

import (
	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

// handleSocial processes every follow/save/repost/subscribe action and its
// inverse. Each writes one versioned relationship row; the inverse actions
// write tombstones rather than removing history.
func (d *Dispatcher) handleSocial(p *Params) error {
	event := p.Event

	actor := p.CurrentUser(event.UserID)
	if actor == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"acting user %d does not exist", event.UserID)
	}
	if !SignerMatches(event.Signer, actor.Wallet) {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"signer does not match acting user wallet")
	}

	target, _ := domain.SocialActionTarget(event.Action)
	isDelete := domain.IsSocialDelete(event.Action)

	switch target {
	case domain.EntityFollow:
		return d.stageFollow(p, isDelete)
	case domain.EntitySave:
		return d.stageSave(p, isDelete)
	case domain.EntityRepost:
		return d.stageRepost(p, isDelete)
	case domain.EntitySubscription:
		return d.stageSubscription(p, isDelete)
	default:
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"not a social action")
	}
}

func (d *Dispatcher) stageFollow(p *Params, isDelete bool) error {
	event := p.Event

	if event.EntityType != domain.EntityUser {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"follow target must be a user")
	}
	if event.UserID == event.EntityID {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"user cannot follow themselves")
	}
	if p.CurrentUser(event.EntityID) == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"followee user does not exist")
	}

	row := schema.Follow{
		FollowerUserID: event.UserID,
		FolloweeUserID: event.EntityID,
		IsDelete:       isDelete,
		Blocknumber:    p.Block.Number,
		Blockhash:      p.Block.Hash,
		Txhash:         event.TxHash,
		CreatedAt:      p.Block.Timestamp,
	}

	p.Records.Follows.Stage(domain.SocialKey(event.UserID, domain.EntityUser, event.EntityID), row)
	return nil
}

func (d *Dispatcher) stageSave(p *Params, isDelete bool) error {
	event := p.Event

	saveType, err := d.socialTargetType(p)
	if err != nil {
		return err
	}

	row := schema.Save{
		UserID:      event.UserID,
		SaveItemID:  event.EntityID,
		SaveType:    saveType,
		IsDelete:    isDelete,
		Blocknumber: p.Block.Number,
		Blockhash:   p.Block.Hash,
		Txhash:      event.TxHash,
		CreatedAt:   p.Block.Timestamp,
	}

	p.Records.Saves.Stage(domain.SocialKey(event.UserID, event.EntityType, event.EntityID), row)
	return nil
}

func (d *Dispatcher) stageRepost(p *Params, isDelete bool) error {
	event := p.Event

	repostType, err := d.socialTargetType(p)
	if err != nil {
		return err
	}

	row := schema.Repost{
		UserID:       event.UserID,
		RepostItemID: event.EntityID,
		RepostType:   repostType,
		IsDelete:     isDelete,
		Blocknumber:  p.Block.Number,
		Blockhash:    p.Block.Hash,
		Txhash:       event.TxHash,
		CreatedAt:    p.Block.Timestamp,
	}

	p.Records.Reposts.Stage(domain.SocialKey(event.UserID, event.EntityType, event.EntityID), row)
	return nil
}

func (d *Dispatcher) stageSubscription(p *Params, isDelete bool) error {
	event := p.Event

	if event.EntityType != domain.EntityUser {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"subscription target must be a user")
	}
	if event.UserID == event.EntityID {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"user cannot subscribe to themselves")
	}
	if p.CurrentUser(event.EntityID) == nil {
		return domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"subscribed user does not exist")
	}

	row := schema.Subscription{
		SubscriberID: event.UserID,
		UserID:       event.EntityID,
		IsDelete:     isDelete,
		Blocknumber:  p.Block.Number,
		Blockhash:    p.Block.Hash,
		Txhash:       event.TxHash,
		CreatedAt:    p.Block.Timestamp,
	}

	p.Records.Subscriptions.Stage(domain.SocialKey(event.UserID, domain.EntityUser, event.EntityID), row)
	return nil
}

// socialTargetType resolves the save/repost target to its stored kind and
// validates the target is live.
func (d *Dispatcher) socialTargetType(p *Params) (schema.SaveType, error) {
	event := p.Event

	switch event.EntityType {
	case domain.EntityTrack:
		track := p.CurrentTrack(event.EntityID)
		if track == nil || track.IsDelete {
			return "", domain.Validationf(event.Action, event.EntityType, event.EntityID,
				"track does not exist")
		}
		return schema.SaveTypeTrack, nil
	case domain.EntityPlaylist:
		playlist := p.CurrentPlaylist(event.EntityID)
		if playlist == nil || playlist.IsDelete {
			return "", domain.Validationf(event.Action, event.EntityType, event.EntityID,
				"playlist does not exist")
		}
		if playlist.IsAlbum {
			return schema.SaveTypeAlbum, nil
		}
		return schema.SaveTypePlaylist, nil
	default:
		return "", domain.Validationf(event.Action, event.EntityType, event.EntityID,
			"unsupported social target type")
	}
}
