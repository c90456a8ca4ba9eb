package records

import (
	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

// BlockRecords gathers everything one block stages before the atomic commit:
// versioned entity rows, route rows, resolved metadata blobs, and the
// challenge events to publish after the commit succeeds.
type BlockRecords struct {
	Block domain.BlockContext

	Users         *WorkingSet[schema.User]
	Tracks        *WorkingSet[schema.Track]
	Playlists     *WorkingSet[schema.Playlist]
	Follows       *WorkingSet[schema.Follow]
	Saves         *WorkingSet[schema.Save]
	Reposts       *WorkingSet[schema.Repost]
	Subscriptions *WorkingSet[schema.Subscription]

	TrackRoutes    []schema.TrackRoute
	PlaylistRoutes []schema.PlaylistRoute
	CidData        []schema.CidData
	SkippedTxs     []schema.SkippedTransaction
	Challenges     []domain.ChallengeEvent
}

// NewBlockRecords creates an empty record set for the block
func NewBlockRecords(block domain.BlockContext) *BlockRecords {
	return &BlockRecords{
		Block:         block,
		Users:         NewWorkingSet[schema.User](),
		Tracks:        NewWorkingSet[schema.Track](),
		Playlists:     NewWorkingSet[schema.Playlist](),
		Follows:       NewWorkingSet[schema.Follow](),
		Saves:         NewWorkingSet[schema.Save](),
		Reposts:       NewWorkingSet[schema.Repost](),
		Subscriptions: NewWorkingSet[schema.Subscription](),
	}
}

// AddChallenge queues a challenge event for publication after commit
func (r *BlockRecords) AddChallenge(kind domain.ChallengeEventKind, userID int64) {
	r.Challenges = append(r.Challenges, domain.ChallengeEvent{
		Kind:        kind,
		BlockNumber: r.Block.Number,
		UserID:      userID,
	})
}

// AddCidData stages a resolved metadata blob for the immutable cid cache
func (r *BlockRecords) AddCidData(cid schema.CidData) {
	r.CidData = append(r.CidData, cid)
}
