package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/soundvine/discovery-indexer/internal/logger"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

// RevertBlocks unwinds the given indexed blocks inside a single transaction,
// highest block first. For every record version produced by a reverted block
// the prior version (highest remaining block number) becomes current again,
// then the reverted rows are deleted. The whole revert lands atomically with
// the chain-head move.
func (s *pgStore) RevertBlocks(ctx context.Context, blocks []schema.Block) error {
	if len(blocks) == 0 {
		return nil
	}

	sorted := make([]schema.Block, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number > sorted[j].Number })

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, block := range sorted {
			logger.Info("reverting block",
				zap.Int64("number", block.Number),
				zap.String("blockhash", block.Blockhash))

			if err := revertUsers(tx, block.Blockhash); err != nil {
				return err
			}
			if err := revertTracks(tx, block.Blockhash); err != nil {
				return err
			}
			if err := revertPlaylists(tx, block.Blockhash); err != nil {
				return err
			}
			if err := revertFollows(tx, block.Blockhash); err != nil {
				return err
			}
			if err := revertSaves(tx, block.Blockhash); err != nil {
				return err
			}
			if err := revertReposts(tx, block.Blockhash); err != nil {
				return err
			}
			if err := revertSubscriptions(tx, block.Blockhash); err != nil {
				return err
			}
			if err := revertTrackRoutes(tx, block.Blockhash); err != nil {
				return err
			}
			if err := revertPlaylistRoutes(tx, block.Blockhash); err != nil {
				return err
			}

			if err := tx.Where("blockhash = ?", block.Blockhash).
				Delete(&schema.SkippedTransaction{}).Error; err != nil {
				return fmt.Errorf("failed to delete skipped transactions: %w", err)
			}

			if err := tx.Where("blockhash = ?", block.Blockhash).
				Delete(&schema.Block{}).Error; err != nil {
				return fmt.Errorf("failed to delete block: %w", err)
			}
		}

		// The highest surviving block becomes the chain head again
		if err := tx.Model(&schema.Block{}).
			Where("is_current = ?", true).
			Update("is_current", false).Error; err != nil {
			return fmt.Errorf("failed to clear current block: %w", err)
		}

		var head schema.Block
		if err := tx.Order("number DESC").First(&head).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("revert emptied the blocks table")
			}
			return fmt.Errorf("failed to find surviving head: %w", err)
		}
		if err := tx.Model(&schema.Block{}).
			Where("blockhash = ?", head.Blockhash).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore chain head: %w", err)
		}

		return nil
	})
}

func revertUsers(tx *gorm.DB, blockhash string) error {
	var reverted []schema.User
	if err := tx.Where("blockhash = ?", blockhash).Find(&reverted).Error; err != nil {
		return fmt.Errorf("failed to load reverted users: %w", err)
	}
	if len(reverted) == 0 {
		return nil
	}

	if err := tx.Where("blockhash = ?", blockhash).Delete(&schema.User{}).Error; err != nil {
		return fmt.Errorf("failed to delete reverted users: %w", err)
	}

	for _, userID := range distinctIDs(reverted, func(u schema.User) int64 { return u.UserID }) {
		var prev schema.User
		err := tx.Where("user_id = ?", userID).
			Order("blocknumber DESC, id DESC").
			First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find prior user version: %w", err)
		}
		if err := tx.Model(&schema.User{}).
			Where("id = ?", prev.ID).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore user version: %w", err)
		}
	}

	return nil
}

func revertTracks(tx *gorm.DB, blockhash string) error {
	var reverted []schema.Track
	if err := tx.Where("blockhash = ?", blockhash).Find(&reverted).Error; err != nil {
		return fmt.Errorf("failed to load reverted tracks: %w", err)
	}
	if len(reverted) == 0 {
		return nil
	}

	if err := tx.Where("blockhash = ?", blockhash).Delete(&schema.Track{}).Error; err != nil {
		return fmt.Errorf("failed to delete reverted tracks: %w", err)
	}

	for _, trackID := range distinctIDs(reverted, func(t schema.Track) int64 { return t.TrackID }) {
		var prev schema.Track
		err := tx.Where("track_id = ?", trackID).
			Order("blocknumber DESC, id DESC").
			First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find prior track version: %w", err)
		}
		if err := tx.Model(&schema.Track{}).
			Where("id = ?", prev.ID).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore track version: %w", err)
		}
	}

	return nil
}

func revertPlaylists(tx *gorm.DB, blockhash string) error {
	var reverted []schema.Playlist
	if err := tx.Where("blockhash = ?", blockhash).Find(&reverted).Error; err != nil {
		return fmt.Errorf("failed to load reverted playlists: %w", err)
	}
	if len(reverted) == 0 {
		return nil
	}

	if err := tx.Where("blockhash = ?", blockhash).Delete(&schema.Playlist{}).Error; err != nil {
		return fmt.Errorf("failed to delete reverted playlists: %w", err)
	}

	for _, playlistID := range distinctIDs(reverted, func(p schema.Playlist) int64 { return p.PlaylistID }) {
		var prev schema.Playlist
		err := tx.Where("playlist_id = ?", playlistID).
			Order("blocknumber DESC, id DESC").
			First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find prior playlist version: %w", err)
		}
		if err := tx.Model(&schema.Playlist{}).
			Where("id = ?", prev.ID).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore playlist version: %w", err)
		}
	}

	return nil
}

type socialPair struct {
	left  int64
	right int64
	kind  string
}

func revertFollows(tx *gorm.DB, blockhash string) error {
	var reverted []schema.Follow
	if err := tx.Where("blockhash = ?", blockhash).Find(&reverted).Error; err != nil {
		return fmt.Errorf("failed to load reverted follows: %w", err)
	}
	if len(reverted) == 0 {
		return nil
	}

	if err := tx.Where("blockhash = ?", blockhash).Delete(&schema.Follow{}).Error; err != nil {
		return fmt.Errorf("failed to delete reverted follows: %w", err)
	}

	for _, pair := range distinctPairs(reverted, func(f schema.Follow) socialPair {
		return socialPair{left: f.FollowerUserID, right: f.FolloweeUserID}
	}) {
		var prev schema.Follow
		err := tx.Where("follower_user_id = ? AND followee_user_id = ?", pair.left, pair.right).
			Order("blocknumber DESC, id DESC").
			First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find prior follow version: %w", err)
		}
		if err := tx.Model(&schema.Follow{}).
			Where("id = ?", prev.ID).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore follow version: %w", err)
		}
	}

	return nil
}

func revertSaves(tx *gorm.DB, blockhash string) error {
	var reverted []schema.Save
	if err := tx.Where("blockhash = ?", blockhash).Find(&reverted).Error; err != nil {
		return fmt.Errorf("failed to load reverted saves: %w", err)
	}
	if len(reverted) == 0 {
		return nil
	}

	if err := tx.Where("blockhash = ?", blockhash).Delete(&schema.Save{}).Error; err != nil {
		return fmt.Errorf("failed to delete reverted saves: %w", err)
	}

	for _, pair := range distinctPairs(reverted, func(s schema.Save) socialPair {
		return socialPair{left: s.UserID, right: s.SaveItemID, kind: string(s.SaveType)}
	}) {
		var prev schema.Save
		err := tx.Where("user_id = ? AND save_item_id = ? AND save_type = ?", pair.left, pair.right, pair.kind).
			Order("blocknumber DESC, id DESC").
			First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find prior save version: %w", err)
		}
		if err := tx.Model(&schema.Save{}).
			Where("id = ?", prev.ID).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore save version: %w", err)
		}
	}

	return nil
}

func revertReposts(tx *gorm.DB, blockhash string) error {
	var reverted []schema.Repost
	if err := tx.Where("blockhash = ?", blockhash).Find(&reverted).Error; err != nil {
		return fmt.Errorf("failed to load reverted reposts: %w", err)
	}
	if len(reverted) == 0 {
		return nil
	}

	if err := tx.Where("blockhash = ?", blockhash).Delete(&schema.Repost{}).Error; err != nil {
		return fmt.Errorf("failed to delete reverted reposts: %w", err)
	}

	for _, pair := range distinctPairs(reverted, func(r schema.Repost) socialPair {
		return socialPair{left: r.UserID, right: r.RepostItemID, kind: string(r.RepostType)}
	}) {
		var prev schema.Repost
		err := tx.Where("user_id = ? AND repost_item_id = ? AND repost_type = ?", pair.left, pair.right, pair.kind).
			Order("blocknumber DESC, id DESC").
			First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find prior repost version: %w", err)
		}
		if err := tx.Model(&schema.Repost{}).
			Where("id = ?", prev.ID).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore repost version: %w", err)
		}
	}

	return nil
}

func revertSubscriptions(tx *gorm.DB, blockhash string) error {
	var reverted []schema.Subscription
	if err := tx.Where("blockhash = ?", blockhash).Find(&reverted).Error; err != nil {
		return fmt.Errorf("failed to load reverted subscriptions: %w", err)
	}
	if len(reverted) == 0 {
		return nil
	}

	if err := tx.Where("blockhash = ?", blockhash).Delete(&schema.Subscription{}).Error; err != nil {
		return fmt.Errorf("failed to delete reverted subscriptions: %w", err)
	}

	for _, pair := range distinctPairs(reverted, func(s schema.Subscription) socialPair {
		return socialPair{left: s.SubscriberID, right: s.UserID}
	}) {
		var prev schema.Subscription
		err := tx.Where("subscriber_id = ? AND user_id = ?", pair.left, pair.right).
			Order("blocknumber DESC, id DESC").
			First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find prior subscription version: %w", err)
		}
		if err := tx.Model(&schema.Subscription{}).
			Where("id = ?", prev.ID).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore subscription version: %w", err)
		}
	}

	return nil
}

func revertTrackRoutes(tx *gorm.DB, blockhash string) error {
	var reverted []schema.TrackRoute
	if err := tx.Where("blockhash = ?", blockhash).Find(&reverted).Error; err != nil {
		return fmt.Errorf("failed to load reverted track routes: %w", err)
	}
	if len(reverted) == 0 {
		return nil
	}

	if err := tx.Where("blockhash = ?", blockhash).Delete(&schema.TrackRoute{}).Error; err != nil {
		return fmt.Errorf("failed to delete reverted track routes: %w", err)
	}

	for _, trackID := range distinctIDs(reverted, func(r schema.TrackRoute) int64 { return r.TrackID }) {
		var prev schema.TrackRoute
		err := tx.Where("track_id = ?", trackID).
			Order("blocknumber DESC, id DESC").
			First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find prior track route: %w", err)
		}
		if err := tx.Model(&schema.TrackRoute{}).
			Where("id = ?", prev.ID).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore track route: %w", err)
		}
	}

	return nil
}

func revertPlaylistRoutes(tx *gorm.DB, blockhash string) error {
	var reverted []schema.PlaylistRoute
	if err := tx.Where("blockhash = ?", blockhash).Find(&reverted).Error; err != nil {
		return fmt.Errorf("failed to load reverted playlist routes: %w", err)
	}
	if len(reverted) == 0 {
		return nil
	}

	if err := tx.Where("blockhash = ?", blockhash).Delete(&schema.PlaylistRoute{}).Error; err != nil {
		return fmt.Errorf("failed to delete reverted playlist routes: %w", err)
	}

	for _, playlistID := range distinctIDs(reverted, func(r schema.PlaylistRoute) int64 { return r.PlaylistID }) {
		var prev schema.PlaylistRoute
		err := tx.Where("playlist_id = ?", playlistID).
			Order("blocknumber DESC, id DESC").
			First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to find prior playlist route: %w", err)
		}
		if err := tx.Model(&schema.PlaylistRoute{}).
			Where("id = ?", prev.ID).
			Update("is_current", true).Error; err != nil {
			return fmt.Errorf("failed to restore playlist route: %w", err)
		}
	}

	return nil
}

func distinctIDs[T any](rows []T, id func(T) int64) []int64 {
	seen := make(map[int64]bool, len(rows))
	out := make([]int64, 0, len(rows))
	for _, row := range rows {
		key := id(row)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func distinctPairs[T any](rows []T, pair func(T) socialPair) []socialPair {
	seen := make(map[socialPair]bool, len(rows))
	out := make([]socialPair, 0, len(rows))
	for _, row := range rows {
		key := pair(row)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
