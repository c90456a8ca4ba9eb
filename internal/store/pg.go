package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/records"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 10
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = time.Hour
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// GetCurrentBlock retrieves the single block row marked current
func (s *pgStore) GetCurrentBlock(ctx context.Context) (*schema.Block, error) {
	var blocks []schema.Block
	if err := s.db.WithContext(ctx).
		Where("is_current = ?", true).
		Limit(2).
		Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to query current block: %w", err)
	}

	if len(blocks) == 0 {
		return nil, nil
	}
	if len(blocks) > 1 {
		return nil, domain.ErrCorruptBlocksTable
	}

	return &blocks[0], nil
}

// BlockExists checks whether a block with the given hash has been indexed
func (s *pgStore) BlockExists(ctx context.Context, blockhash string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&schema.Block{}).
		Where("blockhash = ?", blockhash).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check block existence: %w", err)
	}

	return count > 0, nil
}

// GetBlockByHash retrieves an indexed block row by hash
func (s *pgStore) GetBlockByHash(ctx context.Context, blockhash string) (*schema.Block, error) {
	var block schema.Block
	err := s.db.WithContext(ctx).
		Where("blockhash = ?", blockhash).
		First(&block).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query block by hash: %w", err)
	}

	return &block, nil
}

// InitGenesis seeds the blocks table with the starting checkpoint row
func (s *pgStore) InitGenesis(ctx context.Context, number int64, blockhash string) (*schema.Block, error) {
	block := schema.Block{
		Blockhash:  blockhash,
		Parenthash: "",
		Number:     number,
		IsCurrent:  true,
	}

	if err := s.db.WithContext(ctx).Create(&block).Error; err != nil {
		return nil, fmt.Errorf("failed to seed genesis block: %w", err)
	}

	return &block, nil
}

// GetCurrentUsers retrieves the current version of each requested user
func (s *pgStore) GetCurrentUsers(ctx context.Context, userIDs []int64) (map[int64]*schema.User, error) {
	result := make(map[int64]*schema.User, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var users []schema.User
	if err := s.db.WithContext(ctx).
		Where("user_id IN ? AND is_current = ?", userIDs, true).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to query current users: %w", err)
	}

	for i := range users {
		result[users[i].UserID] = &users[i]
	}
	return result, nil
}

// GetCurrentTracks retrieves the current version of each requested track
func (s *pgStore) GetCurrentTracks(ctx context.Context, trackIDs []int64) (map[int64]*schema.Track, error) {
	result := make(map[int64]*schema.Track, len(trackIDs))
	if len(trackIDs) == 0 {
		return result, nil
	}

	var tracks []schema.Track
	if err := s.db.WithContext(ctx).
		Where("track_id IN ? AND is_current = ?", trackIDs, true).
		Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to query current tracks: %w", err)
	}

	for i := range tracks {
		result[tracks[i].TrackID] = &tracks[i]
	}
	return result, nil
}

// GetCurrentPlaylists retrieves the current version of each requested playlist
func (s *pgStore) GetCurrentPlaylists(ctx context.Context, playlistIDs []int64) (map[int64]*schema.Playlist, error) {
	result := make(map[int64]*schema.Playlist, len(playlistIDs))
	if len(playlistIDs) == 0 {
		return result, nil
	}

	var playlists []schema.Playlist
	if err := s.db.WithContext(ctx).
		Where("playlist_id IN ? AND is_current = ?", playlistIDs, true).
		Find(&playlists).Error; err != nil {
		return nil, fmt.Errorf("failed to query current playlists: %w", err)
	}

	for i := range playlists {
		result[playlists[i].PlaylistID] = &playlists[i]
	}
	return result, nil
}

// GetCurrentUserByWallet retrieves the current user created by a wallet
func (s *pgStore) GetCurrentUserByWallet(ctx context.Context, wallet string) (*schema.User, error) {
	var user schema.User
	err := s.db.WithContext(ctx).
		Where("LOWER(wallet) = LOWER(?) AND is_current = ?", wallet, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user by wallet: %w", err)
	}

	return &user, nil
}

// IsHandleTaken checks whether a lowercase handle is held by any current user
func (s *pgStore) IsHandleTaken(ctx context.Context, handleLc string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&schema.User{}).
		Where("handle_lc = ? AND is_current = ?", handleLc, true).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check handle: %w", err)
	}

	return count > 0, nil
}

// GetTrackRoutes retrieves the routes sharing a title slug under an owner
func (s *pgStore) GetTrackRoutes(ctx context.Context, ownerID int64, titleSlug string) ([]schema.TrackRoute, error) {
	var routes []schema.TrackRoute
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND title_slug = ?", ownerID, titleSlug).
		Order("collision_id ASC").
		Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("failed to query track routes: %w", err)
	}

	return routes, nil
}

// GetPlaylistRoutes retrieves the routes sharing a title slug under an owner
func (s *pgStore) GetPlaylistRoutes(ctx context.Context, ownerID int64, titleSlug string) ([]schema.PlaylistRoute, error) {
	var routes []schema.PlaylistRoute
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND title_slug = ?", ownerID, titleSlug).
		Order("collision_id ASC").
		Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("failed to query playlist routes: %w", err)
	}

	return routes, nil
}

// GetExistingCids filters the given cids down to those already cached
func (s *pgStore) GetExistingCids(ctx context.Context, cids []string) (map[string]*schema.CidData, error) {
	result := make(map[string]*schema.CidData, len(cids))
	if len(cids) == 0 {
		return result, nil
	}

	var rows []schema.CidData
	if err := s.db.WithContext(ctx).
		Where("cid IN ?", cids).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query cid data: %w", err)
	}

	for i := range rows {
		result[rows[i].Cid] = &rows[i]
	}
	return result, nil
}

// CommitBlock atomically writes one block's record set. The entire block
// either lands or nothing does; partial state never becomes visible.
func (s *pgStore) CommitBlock(ctx context.Context, recs *records.BlockRecords) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Advance the chain head
		if err := tx.Model(&schema.Block{}).
			Where("is_current = ?", true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to clear current block: %w", err)
		}

		block := schema.Block{
			Blockhash:  recs.Block.Hash,
			Parenthash: recs.Block.ParentHash,
			Number:     recs.Block.Number,
			IsCurrent:  true,
		}
		if err := tx.Create(&block).Error; err != nil {
			return fmt.Errorf("failed to insert block: %w", err)
		}

		if err := commitUsers(tx, recs); err != nil {
			return err
		}
		if err := commitTracks(tx, recs); err != nil {
			return err
		}
		if err := commitPlaylists(tx, recs); err != nil {
			return err
		}
		if err := commitSocial(tx, recs); err != nil {
			return err
		}
		if err := commitRoutes(tx, recs); err != nil {
			return err
		}

		// The cid cache is immutable, first write wins
		if len(recs.CidData) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				DoNothing: true,
			}).Create(recs.CidData).Error; err != nil {
				return fmt.Errorf("failed to insert cid data: %w", err)
			}
		}

		if len(recs.SkippedTxs) > 0 {
			if err := tx.Create(recs.SkippedTxs).Error; err != nil {
				return fmt.Errorf("failed to insert skipped transactions: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return &domain.IndexingError{
			Stage:       domain.StageCommit,
			BlockNumber: recs.Block.Number,
			BlockHash:   recs.Block.Hash,
			Message:     err.Error(),
		}
	}

	return nil
}

func commitUsers(tx *gorm.DB, recs *records.BlockRecords) error {
	rows := recs.Users.Finalize(func(u *schema.User, current bool) { u.IsCurrent = current })
	if len(rows) == 0 {
		return nil
	}

	userIDs := make([]int64, 0, len(recs.Users.Keys()))
	for _, key := range recs.Users.Keys() {
		userIDs = append(userIDs, key.ID)
	}
	if err := tx.Model(&schema.User{}).
		Where("user_id IN ? AND is_current = ?", userIDs, true).
		Update("is_current", false).Error; err != nil {
		return fmt.Errorf("failed to retire user versions: %w", err)
	}

	if err := tx.Create(rows).Error; err != nil {
		return fmt.Errorf("failed to insert user versions: %w", err)
	}
	return nil
}

func commitTracks(tx *gorm.DB, recs *records.BlockRecords) error {
	rows := recs.Tracks.Finalize(func(t *schema.Track, current bool) { t.IsCurrent = current })
	if len(rows) == 0 {
		return nil
	}

	trackIDs := make([]int64, 0, len(recs.Tracks.Keys()))
	for _, key := range recs.Tracks.Keys() {
		trackIDs = append(trackIDs, key.ID)
	}
	if err := tx.Model(&schema.Track{}).
		Where("track_id IN ? AND is_current = ?", trackIDs, true).
		Update("is_current", false).Error; err != nil {
		return fmt.Errorf("failed to retire track versions: %w", err)
	}

	if err := tx.Create(rows).Error; err != nil {
		return fmt.Errorf("failed to insert track versions: %w", err)
	}
	return nil
}

func commitPlaylists(tx *gorm.DB, recs *records.BlockRecords) error {
	rows := recs.Playlists.Finalize(func(p *schema.Playlist, current bool) { p.IsCurrent = current })
	if len(rows) == 0 {
		return nil
	}

	playlistIDs := make([]int64, 0, len(recs.Playlists.Keys()))
	for _, key := range recs.Playlists.Keys() {
		playlistIDs = append(playlistIDs, key.ID)
	}
	if err := tx.Model(&schema.Playlist{}).
		Where("playlist_id IN ? AND is_current = ?", playlistIDs, true).
		Update("is_current", false).Error; err != nil {
		return fmt.Errorf("failed to retire playlist versions: %w", err)
	}

	if err := tx.Create(rows).Error; err != nil {
		return fmt.Errorf("failed to insert playlist versions: %w", err)
	}
	return nil
}

func commitSocial(tx *gorm.DB, recs *records.BlockRecords) error {
	follows := recs.Follows.Finalize(func(f *schema.Follow, current bool) { f.IsCurrent = current })
	for _, key := range recs.Follows.Keys() {
		if err := tx.Model(&schema.Follow{}).
			Where("follower_user_id = ? AND followee_user_id = ? AND is_current = ?", key.UserID, key.ID, true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to retire follow versions: %w", err)
		}
	}
	if len(follows) > 0 {
		if err := tx.Create(follows).Error; err != nil {
			return fmt.Errorf("failed to insert follow versions: %w", err)
		}
	}

	saves := recs.Saves.Finalize(func(s *schema.Save, current bool) { s.IsCurrent = current })
	for _, key := range recs.Saves.Keys() {
		if err := tx.Model(&schema.Save{}).
			Where("user_id = ? AND save_item_id = ? AND save_type IN ? AND is_current = ?",
				key.UserID, key.ID, saveTypesFor(key.TargetType), true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to retire save versions: %w", err)
		}
	}
	if len(saves) > 0 {
		if err := tx.Create(saves).Error; err != nil {
			return fmt.Errorf("failed to insert save versions: %w", err)
		}
	}

	reposts := recs.Reposts.Finalize(func(r *schema.Repost, current bool) { r.IsCurrent = current })
	for _, key := range recs.Reposts.Keys() {
		if err := tx.Model(&schema.Repost{}).
			Where("user_id = ? AND repost_item_id = ? AND repost_type IN ? AND is_current = ?",
				key.UserID, key.ID, saveTypesFor(key.TargetType), true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to retire repost versions: %w", err)
		}
	}
	if len(reposts) > 0 {
		if err := tx.Create(reposts).Error; err != nil {
			return fmt.Errorf("failed to insert repost versions: %w", err)
		}
	}

	subs := recs.Subscriptions.Finalize(func(s *schema.Subscription, current bool) { s.IsCurrent = current })
	for _, key := range recs.Subscriptions.Keys() {
		if err := tx.Model(&schema.Subscription{}).
			Where("subscriber_id = ? AND user_id = ? AND is_current = ?", key.UserID, key.ID, true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to retire subscription versions: %w", err)
		}
	}
	if len(subs) > 0 {
		if err := tx.Create(subs).Error; err != nil {
			return fmt.Errorf("failed to insert subscription versions: %w", err)
		}
	}

	return nil
}

// saveTypesFor maps a staging key's target type onto the save_type values its
// relation can carry. Tracks and playlists share the low legacy id range, so
// retiring a version must never cross the type boundary. Playlists and albums
// share the playlist id space and form one relation in the working set.
func saveTypesFor(target domain.EntityType) []schema.SaveType {
	if target == domain.EntityTrack {
		return []schema.SaveType{schema.SaveTypeTrack}
	}
	return []schema.SaveType{schema.SaveTypePlaylist, schema.SaveTypeAlbum}
}

func commitRoutes(tx *gorm.DB, recs *records.BlockRecords) error {
	for i := range recs.TrackRoutes {
		route := &recs.TrackRoutes[i]
		if err := tx.Model(&schema.TrackRoute{}).
			Where("track_id = ? AND is_current = ?", route.TrackID, true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to retire track routes: %w", err)
		}
	}
	if len(recs.TrackRoutes) > 0 {
		if err := tx.Create(recs.TrackRoutes).Error; err != nil {
			return fmt.Errorf("failed to insert track routes: %w", err)
		}
	}

	for i := range recs.PlaylistRoutes {
		route := &recs.PlaylistRoutes[i]
		if err := tx.Model(&schema.PlaylistRoute{}).
			Where("playlist_id = ? AND is_current = ?", route.PlaylistID, true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to retire playlist routes: %w", err)
		}
	}
	if len(recs.PlaylistRoutes) > 0 {
		if err := tx.Create(recs.PlaylistRoutes).Error; err != nil {
			return fmt.Errorf("failed to insert playlist routes: %w", err)
		}
	}

	return nil
}
