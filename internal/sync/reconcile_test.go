package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palay-drying-backend/internal/model"
	"palay-drying-backend/internal/remote"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testFarmers() map[string]model.Farmer {
	return map[string]model.Farmer{
		"farmer-1": {ID: 1, UUID: "farmer-1", Username: "juan"},
	}
}

func wireRecord(uuid, farmerUUID string, finalWeight float64) remote.Record {
	return remote.Record{
		UUID:        uuid,
		FarmerUUID:  farmerUUID,
		FinalWeight: finalWeight,
	}
}

func TestMerge_EmptyBatchLeavesStoreUnchanged(t *testing.T) {
	rc := NewReconciler(RemoteWins{})
	locals := []model.DryingRecord{
		{UUID: "local-1", FarmerID: 1, FarmerUUID: "farmer-1", Synced: false},
	}

	upserts, diags := rc.Merge(testNow, locals, testFarmers(), nil)
	assert.Empty(t, upserts)
	assert.Empty(t, diags)
}

func TestMerge_InsertsUnknownRemoteRecordAsSynced(t *testing.T) {
	rc := NewReconciler(RemoteWins{})

	upserts, diags := rc.Merge(testNow, nil, testFarmers(), []remote.Record{
		wireRecord("remote-1", "farmer-1", 110),
	})
	require.Len(t, upserts, 1)
	assert.Empty(t, diags)

	got := upserts[0]
	assert.Equal(t, "remote-1", got.UUID)
	assert.Equal(t, int64(1), got.FarmerID)
	assert.True(t, got.Synced)
	require.NotNil(t, got.SyncedAt)
	assert.Equal(t, testNow, *got.SyncedAt)
}

func TestMerge_RemoteWinsOverwritesUnconditionally(t *testing.T) {
	rc := NewReconciler(RemoteWins{})
	locals := []model.DryingRecord{{
		ID:          42,
		UUID:        "shared",
		FarmerID:    1,
		FarmerUUID:  "farmer-1",
		FinalWeight: 100,
		// Local copy is newer, remote still wins under the default policy.
		UpdatedAt: testNow.Add(time.Hour),
	}}

	older := testNow.Add(-time.Hour)
	batch := []remote.Record{{
		UUID:        "shared",
		FarmerUUID:  "farmer-1",
		FinalWeight: 250,
		UpdatedAt:   &older,
	}}

	upserts, _ := rc.Merge(testNow, locals, testFarmers(), batch)
	require.Len(t, upserts, 1)
	assert.Equal(t, int64(42), upserts[0].ID)
	assert.Equal(t, 250.0, upserts[0].FinalWeight)
	assert.True(t, upserts[0].Synced)
}

func TestMerge_NewerWinsKeepsNewerLocal(t *testing.T) {
	rc := NewReconciler(NewerWins{})
	locals := []model.DryingRecord{{
		UUID:       "shared",
		FarmerID:   1,
		FarmerUUID: "farmer-1",
		UpdatedAt:  testNow.Add(time.Hour),
	}}

	older := testNow.Add(-time.Hour)
	upserts, _ := rc.Merge(testNow, locals, testFarmers(), []remote.Record{{
		UUID:       "shared",
		FarmerUUID: "farmer-1",
		UpdatedAt:  &older,
	}})
	assert.Empty(t, upserts, "local copy is newer and should be kept")

	newer := testNow.Add(2 * time.Hour)
	upserts, _ = rc.Merge(testNow, locals, testFarmers(), []remote.Record{{
		UUID:       "shared",
		FarmerUUID: "farmer-1",
		UpdatedAt:  &newer,
	}})
	assert.Len(t, upserts, 1, "remote copy is newer and should overwrite")
}

func TestMerge_IdentityGapSkipsRecord(t *testing.T) {
	rc := NewReconciler(RemoteWins{})

	upserts, diags := rc.Merge(testNow, nil, testFarmers(), []remote.Record{
		wireRecord("orphan", "unknown-farmer", 0),
		wireRecord("ok", "farmer-1", 0),
	})

	require.Len(t, upserts, 1)
	assert.Equal(t, "ok", upserts[0].UUID)

	require.Len(t, diags, 1)
	assert.Equal(t, "orphan", diags[0].RecordUUID)
	assert.Equal(t, "unknown-farmer", diags[0].FarmerUUID)
}

func TestMerge_Idempotent(t *testing.T) {
	rc := NewReconciler(RemoteWins{})
	batch := []remote.Record{
		wireRecord("r-1", "farmer-1", 110),
		wireRecord("r-2", "farmer-1", 95),
	}

	first, _ := rc.Merge(testNow, nil, testFarmers(), batch)
	require.Len(t, first, 2)

	// Applying the same batch against the state produced by the first merge
	// yields exactly the same converged state.
	second, _ := rc.Merge(testNow, first, testFarmers(), batch)
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].UUID, second[i].UUID)
		assert.Equal(t, first[i].FinalWeight, second[i].FinalWeight)
		assert.Equal(t, first[i].Synced, second[i].Synced)
	}
}

func TestStrategyFromName(t *testing.T) {
	assert.Equal(t, "newer_wins", StrategyFromName("newer_wins").Name())
	assert.Equal(t, "remote_wins", StrategyFromName("remote_wins").Name())
	assert.Equal(t, "remote_wins", StrategyFromName("").Name())
}
