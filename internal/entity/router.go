package entity

import (
	"strings"

	"go.uber.org/zap"

	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/logger"
)

// Dispatcher routes decoded entity events to their mutation handlers
type Dispatcher struct {
	// verifierAddress is the only signer allowed to issue Verify actions
	verifierAddress string
}

// NewDispatcher creates an event dispatcher
func NewDispatcher(verifierAddress string) *Dispatcher {
	return &Dispatcher{
		verifierAddress: strings.ToLower(verifierAddress),
	}
}

// Dispatch processes one event against the block's working set. It returns a
// ValidationError for per-event business rule violations; those are expected
// and never fail the block. Unrecognized type/action combinations are skipped.
func (d *Dispatcher) Dispatch(p *Params) error {
	event := p.Event

	if _, isSocial := domain.SocialActionTarget(event.Action); isSocial {
		return d.handleSocial(p)
	}

	switch event.EntityType {
	case domain.EntityUser:
		switch event.Action {
		case domain.ActionCreate:
			return d.createUser(p)
		case domain.ActionUpdate:
			return d.updateUser(p)
		case domain.ActionVerify:
			return d.verifyUser(p)
		}
	case domain.EntityTrack:
		switch event.Action {
		case domain.ActionCreate:
			return d.createTrack(p)
		case domain.ActionUpdate:
			return d.updateTrack(p)
		case domain.ActionDelete:
			return d.deleteTrack(p)
		}
	case domain.EntityPlaylist:
		switch event.Action {
		case domain.ActionCreate:
			return d.createPlaylist(p)
		case domain.ActionUpdate:
			return d.updatePlaylist(p)
		case domain.ActionDelete:
			return d.deletePlaylist(p)
		}
	}

	logger.Debug("skipping unrecognized event",
		zap.String("entity_type", string(event.EntityType)),
		zap.String("action", string(event.Action)),
		zap.Int64("entity_id", event.EntityID),
		zap.String("tx", event.TxHash))
	return nil
}

// MetadataRequestType maps an event to the cid cache tag for its blob.
// Events whose actions never carry metadata return false.
func MetadataRequestType(event domain.EntityEvent) (domain.CIDType, bool) {
	if event.MetadataCID == "" {
		return "", false
	}

	switch event.EntityType {
	case domain.EntityUser:
		return domain.CIDTypeUser, true
	case domain.EntityTrack:
		return domain.CIDTypeTrack, true
	case domain.EntityPlaylist:
		return domain.CIDTypePlaylistData, true
	default:
		return "", false
	}
}

// MetadataOptional reports whether the event's blob may stay unresolved
// without failing the block. User creation carries best-effort profile
// metadata; an absent blob is rejected at event granularity instead.
func MetadataOptional(event domain.EntityEvent) bool {
	return event.Action == domain.ActionCreate && event.EntityType == domain.EntityUser
}
