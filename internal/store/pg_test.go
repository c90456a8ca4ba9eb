package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/logger"
	"github.com/soundvine/discovery-indexer/internal/records"
	"github.com/soundvine/discovery-indexer/internal/store"
	"github.com/soundvine/discovery-indexer/internal/store/schema"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// setupTestDB opens a throwaway sqlite database and migrates the full schema.
// A file under the test temp dir is used instead of :memory: because gorm's
// connection pool would otherwise hand each connection its own empty database.
func setupTestDB(t *testing.T) (store.Store, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "store.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&schema.Block{},
		&schema.User{},
		&schema.Track{},
		&schema.Playlist{},
		&schema.Follow{},
		&schema.Save{},
		&schema.Repost{},
		&schema.Subscription{},
		&schema.TrackRoute{},
		&schema.PlaylistRoute{},
		&schema.CidData{},
		&schema.SkippedTransaction{},
	))

	return store.NewPGStore(db), db
}

func testBlockContext(number int64, hash, parent string) domain.BlockContext {
	return domain.BlockContext{
		Number:     number,
		Hash:       hash,
		ParentHash: parent,
		Timestamp:  time.Unix(1_700_000_000+number, 0).UTC(),
	}
}

func provenance(block domain.BlockContext, tx int) (int64, string, string) {
	return block.Number, block.Hash, fmt.Sprintf("%s-tx%d", block.Hash, tx)
}

func TestPGStore_CommitBlock_AdvancesHead(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()

	genesis, err := s.InitGenesis(ctx, 0, domain.DefaultPaddedStartHash)
	require.NoError(t, err)
	require.True(t, genesis.IsCurrent)

	block := testBlockContext(1, "0xb1", domain.DefaultPaddedStartHash)
	require.NoError(t, s.CommitBlock(ctx, records.NewBlockRecords(block)))

	// Assert
	head, err := s.GetCurrentBlock(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "0xb1", head.Blockhash)
	assert.Equal(t, int64(1), head.Number)

	prior, err := s.GetBlockByHash(ctx, domain.DefaultPaddedStartHash)
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.False(t, prior.IsCurrent)

	exists, err := s.BlockExists(ctx, "0xb1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPGStore_CommitBlock_RetiresPriorUserVersion(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()

	_, err := s.InitGenesis(ctx, 0, domain.DefaultPaddedStartHash)
	require.NoError(t, err)

	block1 := testBlockContext(1, "0xb1", domain.DefaultPaddedStartHash)
	recs1 := records.NewBlockRecords(block1)
	number, hash, txhash := provenance(block1, 0)
	recs1.Users.Stage(domain.EntityKey(3_000_001), schema.User{
		UserID:      3_000_001,
		Handle:      "vibe",
		HandleLc:    "vibe",
		Wallet:      "0xabc",
		Name:        ptr("Vibe One"),
		Blocknumber: number,
		Blockhash:   hash,
		Txhash:      txhash,
	})
	require.NoError(t, s.CommitBlock(ctx, recs1))

	block2 := testBlockContext(2, "0xb2", "0xb1")
	recs2 := records.NewBlockRecords(block2)
	number, hash, txhash = provenance(block2, 0)
	recs2.Users.Stage(domain.EntityKey(3_000_001), schema.User{
		UserID:      3_000_001,
		Handle:      "vibe",
		HandleLc:    "vibe",
		Wallet:      "0xabc",
		Name:        ptr("Vibe Two"),
		Blocknumber: number,
		Blockhash:   hash,
		Txhash:      txhash,
	})
	require.NoError(t, s.CommitBlock(ctx, recs2))

	// Assert: both versions persist, exactly the newest is current
	var rows []schema.User
	require.NoError(t, db.Where("user_id = ?", 3_000_001).Order("blocknumber ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].IsCurrent)
	assert.Equal(t, "Vibe One", *rows[0].Name)
	assert.True(t, rows[1].IsCurrent)
	assert.Equal(t, "Vibe Two", *rows[1].Name)

	current, err := s.GetCurrentUsers(ctx, []int64{3_000_001})
	require.NoError(t, err)
	require.Contains(t, current, int64(3_000_001))
	assert.Equal(t, "Vibe Two", *current[3_000_001].Name)
}

func TestPGStore_CommitBlock_MultipleVersionsInOneBlock(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()

	_, err := s.InitGenesis(ctx, 0, domain.DefaultPaddedStartHash)
	require.NoError(t, err)

	block := testBlockContext(1, "0xb1", domain.DefaultPaddedStartHash)
	recs := records.NewBlockRecords(block)
	number, hash, txhash := provenance(block, 0)
	recs.Tracks.Stage(domain.EntityKey(2_000_001), schema.Track{
		TrackID:     2_000_001,
		OwnerID:     3_000_001,
		Title:       ptr("demo"),
		Blocknumber: number,
		Blockhash:   hash,
		Txhash:      txhash,
	})
	_, _, txhash = provenance(block, 1)
	recs.Tracks.Stage(domain.EntityKey(2_000_001), schema.Track{
		TrackID:     2_000_001,
		OwnerID:     3_000_001,
		Title:       ptr("demo (final)"),
		Blocknumber: number,
		Blockhash:   hash,
		Txhash:      txhash,
	})
	require.NoError(t, s.CommitBlock(ctx, recs))

	// Assert: both staged versions land, only the last is current
	var rows []schema.Track
	require.NoError(t, db.Where("track_id = ?", 2_000_001).Order("id ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].IsCurrent)
	assert.True(t, rows[1].IsCurrent)
	assert.Equal(t, "demo (final)", *rows[1].Title)
}

func TestPGStore_CommitBlock_SaveRetirementScopedByType(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()

	_, err := s.InitGenesis(ctx, 0, domain.DefaultPaddedStartHash)
	require.NoError(t, err)

	// A legacy playlist save whose item id sits below the track offset
	block1 := testBlockContext(1, "0xb1", domain.DefaultPaddedStartHash)
	recs1 := records.NewBlockRecords(block1)
	number, hash, txhash := provenance(block1, 0)
	recs1.Saves.Stage(domain.SocialKey(3_000_001, domain.EntityPlaylist, 500_000), schema.Save{
		UserID:      3_000_001,
		SaveItemID:  500_000,
		SaveType:    schema.SaveTypePlaylist,
		Blocknumber: number,
		Blockhash:   hash,
		Txhash:      txhash,
	})
	require.NoError(t, s.CommitBlock(ctx, recs1))

	// A track save for the same (user, item id) pair must not retire it
	block2 := testBlockContext(2, "0xb2", "0xb1")
	recs2 := records.NewBlockRecords(block2)
	number, hash, txhash = provenance(block2, 0)
	recs2.Saves.Stage(domain.SocialKey(3_000_001, domain.EntityTrack, 500_000), schema.Save{
		UserID:      3_000_001,
		SaveItemID:  500_000,
		SaveType:    schema.SaveTypeTrack,
		Blocknumber: number,
		Blockhash:   hash,
		Txhash:      txhash,
	})
	require.NoError(t, s.CommitBlock(ctx, recs2))

	// Assert: one current save per type
	var current []schema.Save
	require.NoError(t, db.
		Where("user_id = ? AND save_item_id = ? AND is_current = ?", 3_000_001, 500_000, true).
		Order("blocknumber ASC").
		Find(&current).Error)
	require.Len(t, current, 2)
	assert.Equal(t, schema.SaveTypePlaylist, current[0].SaveType)
	assert.Equal(t, schema.SaveTypeTrack, current[1].SaveType)
}

func TestPGStore_CommitBlock_RepostRetirementScopedByType(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()

	_, err := s.InitGenesis(ctx, 0, domain.DefaultPaddedStartHash)
	require.NoError(t, err)

	block1 := testBlockContext(1, "0xb1", domain.DefaultPaddedStartHash)
	recs1 := records.NewBlockRecords(block1)
	number, hash, txhash := provenance(block1, 0)
	recs1.Reposts.Stage(domain.SocialKey(3_000_002, domain.EntityTrack, 410_000), schema.Repost{
		UserID:       3_000_002,
		RepostItemID: 410_000,
		RepostType:   schema.SaveTypeTrack,
		Blocknumber:  number,
		Blockhash:    hash,
		Txhash:       txhash,
	})
	require.NoError(t, s.CommitBlock(ctx, recs1))

	// An album unrepost of the overlapping id leaves the track repost alone
	block2 := testBlockContext(2, "0xb2", "0xb1")
	recs2 := records.NewBlockRecords(block2)
	number, hash, txhash = provenance(block2, 0)
	recs2.Reposts.Stage(domain.SocialKey(3_000_002, domain.EntityPlaylist, 410_000), schema.Repost{
		UserID:       3_000_002,
		RepostItemID: 410_000,
		RepostType:   schema.SaveTypeAlbum,
		IsDelete:     true,
		Blocknumber:  number,
		Blockhash:    hash,
		Txhash:       txhash,
	})
	require.NoError(t, s.CommitBlock(ctx, recs2))

	// Assert
	var trackRepost schema.Repost
	require.NoError(t, db.
		Where("user_id = ? AND repost_item_id = ? AND repost_type = ?",
			3_000_002, 410_000, schema.SaveTypeTrack).
		First(&trackRepost).Error)
	assert.True(t, trackRepost.IsCurrent)
}

func TestPGStore_CommitBlock_CidCacheFirstWriteWins(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()

	_, err := s.InitGenesis(ctx, 0, domain.DefaultPaddedStartHash)
	require.NoError(t, err)

	block1 := testBlockContext(1, "0xb1", domain.DefaultPaddedStartHash)
	recs1 := records.NewBlockRecords(block1)
	recs1.AddCidData(schema.CidData{
		Cid:  "QmFirst",
		Type: "track",
		Data: []byte(`{"title":"original"}`),
	})
	require.NoError(t, s.CommitBlock(ctx, recs1))

	// A later block carrying the same cid must not overwrite the cache
	block2 := testBlockContext(2, "0xb2", "0xb1")
	recs2 := records.NewBlockRecords(block2)
	recs2.AddCidData(schema.CidData{
		Cid:  "QmFirst",
		Type: "track",
		Data: []byte(`{"title":"rewritten"}`),
	})
	require.NoError(t, s.CommitBlock(ctx, recs2))

	// Assert
	var count int64
	require.NoError(t, db.Model(&schema.CidData{}).Where("cid = ?", "QmFirst").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	cached, err := s.GetExistingCids(ctx, []string{"QmFirst"})
	require.NoError(t, err)
	require.Contains(t, cached, "QmFirst")
	assert.JSONEq(t, `{"title":"original"}`, string(cached["QmFirst"].Data))
}

func TestPGStore_RevertBlocks_RestoresPriorVersions(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()

	_, err := s.InitGenesis(ctx, 0, domain.DefaultPaddedStartHash)
	require.NoError(t, err)

	block1 := testBlockContext(1, "0xb1", domain.DefaultPaddedStartHash)
	recs1 := records.NewBlockRecords(block1)
	number, hash, txhash := provenance(block1, 0)
	recs1.Users.Stage(domain.EntityKey(3_000_001), schema.User{
		UserID:      3_000_001,
		Handle:      "vibe",
		HandleLc:    "vibe",
		Wallet:      "0xabc",
		Bio:         ptr("first bio"),
		Blocknumber: number,
		Blockhash:   hash,
		Txhash:      txhash,
	})
	require.NoError(t, s.CommitBlock(ctx, recs1))

	// Block 2 updates the user and creates a brand new track
	block2 := testBlockContext(2, "0xb2", "0xb1")
	recs2 := records.NewBlockRecords(block2)
	number, hash, txhash = provenance(block2, 0)
	recs2.Users.Stage(domain.EntityKey(3_000_001), schema.User{
		UserID:      3_000_001,
		Handle:      "vibe",
		HandleLc:    "vibe",
		Wallet:      "0xabc",
		Bio:         ptr("second bio"),
		Blocknumber: number,
		Blockhash:   hash,
		Txhash:      txhash,
	})
	recs2.Tracks.Stage(domain.EntityKey(2_000_001), schema.Track{
		TrackID:     2_000_001,
		OwnerID:     3_000_001,
		Title:       ptr("orphaned"),
		Blocknumber: number,
		Blockhash:   hash,
		Txhash:      txhash,
	})
	require.NoError(t, s.CommitBlock(ctx, recs2))

	reverted, err := s.GetBlockByHash(ctx, "0xb2")
	require.NoError(t, err)
	require.NotNil(t, reverted)
	require.NoError(t, s.RevertBlocks(ctx, []schema.Block{*reverted}))

	// Assert: the block-1 user version is current again
	current, err := s.GetCurrentUsers(ctx, []int64{3_000_001})
	require.NoError(t, err)
	require.Contains(t, current, int64(3_000_001))
	assert.Equal(t, "first bio", *current[3_000_001].Bio)

	var userCount int64
	require.NoError(t, db.Model(&schema.User{}).Where("user_id = ?", 3_000_001).Count(&userCount).Error)
	assert.Equal(t, int64(1), userCount)

	// The track created by the reverted block is gone entirely
	var trackCount int64
	require.NoError(t, db.Model(&schema.Track{}).Where("track_id = ?", 2_000_001).Count(&trackCount).Error)
	assert.Equal(t, int64(0), trackCount)

	// The block row is deleted and the head moved back
	exists, err := s.BlockExists(ctx, "0xb2")
	require.NoError(t, err)
	assert.False(t, exists)

	head, err := s.GetCurrentBlock(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "0xb1", head.Blockhash)
}

func TestPGStore_RevertBlocks_DescendingAcrossMultipleBlocks(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()

	_, err := s.InitGenesis(ctx, 0, domain.DefaultPaddedStartHash)
	require.NoError(t, err)

	hashes := []string{"0xb1", "0xb2", "0xb3"}
	parent := domain.DefaultPaddedStartHash
	for i, h := range hashes {
		block := testBlockContext(int64(i+1), h, parent)
		recs := records.NewBlockRecords(block)
		number, hash, txhash := provenance(block, 0)
		recs.Playlists.Stage(domain.EntityKey(400_001), schema.Playlist{
			PlaylistID:      400_001,
			PlaylistOwnerID: 3_000_001,
			PlaylistName:    ptr(fmt.Sprintf("mix v%d", i+1)),
			Blocknumber:     number,
			Blockhash:       hash,
			Txhash:          txhash,
		})
		require.NoError(t, s.CommitBlock(ctx, recs))
		parent = h
	}

	b2, err := s.GetBlockByHash(ctx, "0xb2")
	require.NoError(t, err)
	b3, err := s.GetBlockByHash(ctx, "0xb3")
	require.NoError(t, err)
	require.NoError(t, s.RevertBlocks(ctx, []schema.Block{*b2, *b3}))

	// Assert: only the block-1 version survives and is current
	var rows []schema.Playlist
	require.NoError(t, db.Where("playlist_id = ?", 400_001).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsCurrent)
	assert.Equal(t, "mix v1", *rows[0].PlaylistName)

	head, err := s.GetCurrentBlock(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "0xb1", head.Blockhash)
}

func ptr[T any](v T) *T {
	return &v
}
