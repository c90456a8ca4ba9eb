package metadata_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/soundvine/discovery-indexer/internal/domain"
	"github.com/soundvine/discovery-indexer/internal/logger"
	"github.com/soundvine/discovery-indexer/internal/metadata"
	"github.com/soundvine/discovery-indexer/internal/mocks"
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

// testResolverMocks contains the mocks needed for testing the resolver
type testResolverMocks struct {
	ctrl     *gomock.Controller
	http     *mocks.MockHTTPClient
	resolver *metadata.Resolver
}

// setupTest creates the mocks and resolver for testing
func setupTest(t *testing.T, gateways []string) *testResolverMocks {
	ctrl := gomock.NewController(t)
	mockHTTP := mocks.NewMockHTTPClient(ctrl)

	return &testResolverMocks{
		ctrl:     ctrl,
		http:     mockHTTP,
		resolver: metadata.NewResolver(mockHTTP, gateways, 5*time.Second, 5*time.Second, 4),
	}
}

// tearDownTest cleans up the test mocks
func tearDownTest(tm *testResolverMocks) {
	tm.ctrl.Finish()
}

// respondWith writes a blob into the GetJSON result argument
func respondWith(blob string) func(context.Context, string, interface{}) error {
	return func(_ context.Context, _ string, result interface{}) error {
		*(result.(*json.RawMessage)) = json.RawMessage(blob)
		return nil
	}
}

func TestResolver_Resolve_FromReplicaSet(t *testing.T) {
	tm := setupTest(t, []string{"http://gateway.example.com"})
	defer tearDownTest(tm)

	// The targeted pass hits the owner's replica node; the gateway is never needed
	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://node1.example.com/ipfs/QmTrackBlob", gomock.Any()).
		DoAndReturn(respondWith(`{"title":"Cool Song"}`))

	// Act
	resolved, err := tm.resolver.Resolve(context.Background(), 150, []metadata.Request{
		{CID: "QmTrackBlob", Type: domain.CIDTypeTrack, ReplicaSet: []string{"http://node1.example.com"}},
	})

	// Assert
	assert.NoError(t, err)
	assert.JSONEq(t, `{"title":"Cool Song"}`, string(resolved["QmTrackBlob"]))
}

func TestResolver_Resolve_Phase1FailureFallsBackToGateways(t *testing.T) {
	tm := setupTest(t, []string{"http://gateway.example.com"})
	defer tearDownTest(tm)

	// The replica node fails; that is swallowed, not surfaced
	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://node1.example.com/ipfs/QmUserBlob", gomock.Any()).
		Return(errors.New("connection refused"))
	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://gateway.example.com/ipfs/QmUserBlob", gomock.Any()).
		DoAndReturn(respondWith(`{"handle":"djflex"}`))

	// Act
	resolved, err := tm.resolver.Resolve(context.Background(), 150, []metadata.Request{
		{CID: "QmUserBlob", Type: domain.CIDTypeUser, ReplicaSet: []string{"http://node1.example.com"}},
	})

	// Assert
	assert.NoError(t, err)
	assert.JSONEq(t, `{"handle":"djflex"}`, string(resolved["QmUserBlob"]))
}

func TestResolver_Resolve_NoReplicaSet_UsesGatewaysOnly(t *testing.T) {
	tm := setupTest(t, []string{"http://gateway.example.com"})
	defer tearDownTest(tm)

	// Without replica hints the targeted pass has nothing to try
	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://gateway.example.com/ipfs/QmPlaylistBlob", gomock.Any()).
		DoAndReturn(respondWith(`{"playlist_name":"Night Drive"}`))

	// Act
	resolved, err := tm.resolver.Resolve(context.Background(), 150, []metadata.Request{
		{CID: "QmPlaylistBlob", Type: domain.CIDTypePlaylistData},
	})

	// Assert
	assert.NoError(t, err)
	assert.Len(t, resolved, 1)
}

func TestResolver_Resolve_TriesGatewaysInOrder(t *testing.T) {
	tm := setupTest(t, []string{"http://gw1.example.com", "http://gw2.example.com"})
	defer tearDownTest(tm)

	gomock.InOrder(
		tm.http.EXPECT().
			GetJSON(gomock.Any(), "http://gw1.example.com/ipfs/QmBlob", gomock.Any()).
			Return(errors.New("timeout")),
		tm.http.EXPECT().
			GetJSON(gomock.Any(), "http://gw2.example.com/ipfs/QmBlob", gomock.Any()).
			DoAndReturn(respondWith(`{"ok":true}`)),
	)

	// Act
	resolved, err := tm.resolver.Resolve(context.Background(), 150, []metadata.Request{
		{CID: "QmBlob", Type: domain.CIDTypeTrack},
	})

	// Assert
	assert.NoError(t, err)
	assert.Len(t, resolved, 1)
}

func TestResolver_Resolve_MissingAfterBothPhases(t *testing.T) {
	tm := setupTest(t, []string{"http://gateway.example.com"})
	defer tearDownTest(tm)

	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://node1.example.com/ipfs/QmGone", gomock.Any()).
		Return(errors.New("not found"))
	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://gateway.example.com/ipfs/QmGone", gomock.Any()).
		Return(errors.New("not found"))

	// Act
	resolved, err := tm.resolver.Resolve(context.Background(), 150, []metadata.Request{
		{CID: "QmGone", Type: domain.CIDTypeTrack, ReplicaSet: []string{"http://node1.example.com"}},
	})

	// Assert
	assert.Nil(t, resolved)
	var missingErr *domain.MissingMetadataError
	assert.ErrorAs(t, err, &missingErr)
	assert.Equal(t, int64(150), missingErr.BlockNumber)
	assert.Equal(t, []string{"QmGone"}, missingErr.CIDs)
}

func TestResolver_Resolve_OptionalUnresolvedDoesNotFail(t *testing.T) {
	tm := setupTest(t, []string{"http://gateway.example.com"})
	defer tearDownTest(tm)

	// The profile blob stays missing through both phases
	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://node1.example.com/ipfs/QmProfile", gomock.Any()).
		Return(errors.New("not found"))
	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://gateway.example.com/ipfs/QmProfile", gomock.Any()).
		Return(errors.New("not found"))
	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://gateway.example.com/ipfs/QmTrack", gomock.Any()).
		DoAndReturn(respondWith(`{"title":"Still Here"}`))

	// Act
	resolved, err := tm.resolver.Resolve(context.Background(), 150, []metadata.Request{
		{CID: "QmProfile", Type: domain.CIDTypeUser, ReplicaSet: []string{"http://node1.example.com"}, Optional: true},
		{CID: "QmTrack", Type: domain.CIDTypeTrack},
	})

	// Assert: the block proceeds with the blob absent
	assert.NoError(t, err)
	assert.Len(t, resolved, 1)
	assert.NotContains(t, resolved, "QmProfile")
	assert.JSONEq(t, `{"title":"Still Here"}`, string(resolved["QmTrack"]))
}

func TestResolver_Resolve_RequiredReferenceOutweighsOptional(t *testing.T) {
	tm := setupTest(t, []string{"http://gateway.example.com"})
	defer tearDownTest(tm)

	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://gateway.example.com/ipfs/QmShared", gomock.Any()).
		Return(errors.New("not found"))

	// Act: the same CID arrives once optional and once required
	resolved, err := tm.resolver.Resolve(context.Background(), 150, []metadata.Request{
		{CID: "QmShared", Type: domain.CIDTypeUser, Optional: true},
		{CID: "QmShared", Type: domain.CIDTypeUser},
	})

	// Assert: the required reference wins and the block fails
	assert.Nil(t, resolved)
	var missingErr *domain.MissingMetadataError
	assert.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []string{"QmShared"}, missingErr.CIDs)
}

func TestResolver_Resolve_DeduplicatesRequests(t *testing.T) {
	tm := setupTest(t, []string{"http://gateway.example.com"})
	defer tearDownTest(tm)

	// Two events referencing the same CID cause exactly one fetch
	tm.http.EXPECT().
		GetJSON(gomock.Any(), "http://gateway.example.com/ipfs/QmShared", gomock.Any()).
		DoAndReturn(respondWith(`{"shared":true}`)).
		Times(1)

	// Act
	resolved, err := tm.resolver.Resolve(context.Background(), 150, []metadata.Request{
		{CID: "QmShared", Type: domain.CIDTypeTrack},
		{CID: "QmShared", Type: domain.CIDTypeTrack},
	})

	// Assert
	assert.NoError(t, err)
	assert.Len(t, resolved, 1)
}

func TestResolver_Resolve_NoRequests(t *testing.T) {
	tm := setupTest(t, []string{"http://gateway.example.com"})
	defer tearDownTest(tm)

	// Act - no HTTP expectations; nothing may be fetched
	resolved, err := tm.resolver.Resolve(context.Background(), 150, nil)

	// Assert
	assert.NoError(t, err)
	assert.Empty(t, resolved)
}
