package domain

import (
	"fmt"
	"strings"
	"time"
)

// Id-space partitioning between legacy writers and entity manager writers.
// CREATE actions below these offsets are rejected.
const (
	PlaylistIDOffset int64 = 400_000
	TrackIDOffset    int64 = 2_000_000
	UserIDOffset     int64 = 3_000_000
)

const (
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// DefaultPaddedStartHash is the parent hash carried by the first indexable
	// block on chains bootstrapped from the legacy network.
	DefaultPaddedStartHash = "0x7ef3e7395b68247c807e301774a94df3decdd4e17b7527524b57b58c694252b2"

	// DefaultStartHash is the synthetic hash stored for the genesis checkpoint row.
	DefaultStartHash = "0x0"
)

// Action is the operation carried by an entity manager event.
type Action string

const (
	ActionCreate      Action = "Create"
	ActionUpdate      Action = "Update"
	ActionDelete      Action = "Delete"
	ActionVerify      Action = "Verify"
	ActionView        Action = "View"
	ActionFollow      Action = "Follow"
	ActionUnfollow    Action = "Unfollow"
	ActionSave        Action = "Save"
	ActionUnsave      Action = "Unsave"
	ActionRepost      Action = "Repost"
	ActionUnrepost    Action = "Unrepost"
	ActionSubscribe   Action = "Subscribe"
	ActionUnsubscribe Action = "Unsubscribe"
)

// EntityType namespaces entity ids and record tables.
type EntityType string

const (
	EntityUser         EntityType = "User"
	EntityTrack        EntityType = "Track"
	EntityPlaylist     EntityType = "Playlist"
	EntityFollow       EntityType = "Follow"
	EntitySave         EntityType = "Save"
	EntityRepost       EntityType = "Repost"
	EntitySubscription EntityType = "Subscription"
	EntityNotification EntityType = "Notification"
)

// CIDType tags a resolved metadata blob in the cid_data cache.
type CIDType string

const (
	CIDTypeUser         CIDType = "user"
	CIDTypeTrack        CIDType = "track"
	CIDTypePlaylistData CIDType = "playlist_data"
)

// EntityEvent is a decoded ManageEntity contract log.
type EntityEvent struct {
	UserID     int64
	EntityID   int64
	EntityType EntityType
	Action     Action
	// MetadataCID references the off-chain JSON blob, empty when the action
	// carries no metadata.
	MetadataCID string
	Signer      string

	TxHash  string
	TxIndex uint64
	// LogIndex orders events emitted by the same transaction.
	LogIndex uint64
}

// SocialActionTarget maps a social action to the record table it mutates.
// Non-social actions map to an empty entity type.
func SocialActionTarget(a Action) (EntityType, bool) {
	switch a {
	case ActionFollow, ActionUnfollow:
		return EntityFollow, true
	case ActionSave, ActionUnsave:
		return EntitySave, true
	case ActionRepost, ActionUnrepost:
		return EntityRepost, true
	case ActionSubscribe, ActionUnsubscribe:
		return EntitySubscription, true
	default:
		return "", false
	}
}

// IsSocialDelete reports whether a social action tombstones its record.
func IsSocialDelete(a Action) bool {
	switch a {
	case ActionUnfollow, ActionUnsave, ActionUnrepost, ActionUnsubscribe:
		return true
	default:
		return false
	}
}

// RecordKey identifies one versioned record within its entity-type namespace.
// Plain entities use only ID; social records additionally carry the acting
// user and the type of the item acted on.
type RecordKey struct {
	UserID     int64
	TargetType EntityType
	ID         int64
}

// EntityKey builds the key for a user/track/playlist record.
func EntityKey(id int64) RecordKey {
	return RecordKey{ID: id}
}

// SocialKey builds the key for a follow/save/repost/subscription record.
func SocialKey(userID int64, targetType EntityType, entityID int64) RecordKey {
	return RecordKey{UserID: userID, TargetType: targetType, ID: entityID}
}

func (k RecordKey) String() string {
	if k.UserID == 0 && k.TargetType == "" {
		return fmt.Sprintf("%d", k.ID)
	}
	return fmt.Sprintf("%d:%s:%d", k.UserID, strings.ToLower(string(k.TargetType)), k.ID)
}

// BlockContext carries the provenance of the block being indexed into the
// mutation handlers and the record store commit.
type BlockContext struct {
	Number     int64
	Hash       string
	ParentHash string
	Timestamp  time.Time
}

// ChallengeEventKind identifies a downstream challenge/achievement event.
type ChallengeEventKind string

const (
	ChallengeTrackUpload     ChallengeEventKind = "track_upload"
	ChallengeFirstPlaylist   ChallengeEventKind = "first_playlist"
	ChallengeProfileUpdate   ChallengeEventKind = "profile_update"
	ChallengeConnectVerified ChallengeEventKind = "connect_verified"
)

// ChallengeEvent is dispatched fire-and-forget to the downstream event bus.
type ChallengeEvent struct {
	Kind        ChallengeEventKind `json:"kind"`
	BlockNumber int64              `json:"block_number"`
	UserID      int64              `json:"user_id"`
}
