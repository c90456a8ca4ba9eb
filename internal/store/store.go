package store

import (
	"context"

	"github.com/soundvine/discovery-indexer/internal/records"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// GetCurrentBlock retrieves the single block row marked current.
	// Returns domain.ErrCorruptBlocksTable when zero or multiple rows match.
	GetCurrentBlock(ctx context.Context) (*schema.Block, error)
	// BlockExists checks whether a block with the given hash has been indexed
	BlockExists(ctx context.Context, blockhash string) (bool, error)
	// GetBlockByHash retrieves an indexed block row by hash, nil when absent
	GetBlockByHash(ctx context.Context, blockhash string) (*schema.Block, error)
	// InitGenesis seeds the blocks table with the starting checkpoint row
	InitGenesis(ctx context.Context, number int64, blockhash string) (*schema.Block, error)

	// GetCurrentUsers retrieves the current version of each requested user
	GetCurrentUsers(ctx context.Context, userIDs []int64) (map[int64]*schema.User, error)
	// GetCurrentTracks retrieves the current version of each requested track
	GetCurrentTracks(ctx context.Context, trackIDs []int64) (map[int64]*schema.Track, error)
	// GetCurrentPlaylists retrieves the current version of each requested playlist
	GetCurrentPlaylists(ctx context.Context, playlistIDs []int64) (map[int64]*schema.Playlist, error)

	// GetCurrentUserByWallet retrieves the current user created by a wallet, nil when none
	GetCurrentUserByWallet(ctx context.Context, wallet string) (*schema.User, error)
	// IsHandleTaken checks whether a lowercase handle is held by any current user
	IsHandleTaken(ctx context.Context, handleLc string) (bool, error)

	// GetTrackRoutes retrieves the routes sharing a title slug under an owner
	GetTrackRoutes(ctx context.Context, ownerID int64, titleSlug string) ([]schema.TrackRoute, error)
	// GetPlaylistRoutes retrieves the routes sharing a title slug under an owner
	GetPlaylistRoutes(ctx context.Context, ownerID int64, titleSlug string) ([]schema.PlaylistRoute, error)

	// GetExistingCids filters the given cids down to those already cached
	GetExistingCids(ctx context.Context, cids []string) (map[string]*schema.CidData, error)

	// CommitBlock atomically writes one block's record set: the block row,
	// every staged entity version with current flags settled, route rows,
	// cid blobs, and skip audit rows
	CommitBlock(ctx context.Context, recs *records.BlockRecords) error

	// RevertBlocks unwinds the given indexed blocks in descending order,
	// restoring the prior version of every touched record
	RevertBlocks(ctx context.Context, blocks []schema.Block) error
}
