package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"palay-drying-backend/internal/model"
	"palay-drying-backend/internal/remote"
	"palay-drying-backend/internal/store"
)

// fakeRemote is a scriptable RemoteAPI. Any of the error fields forces the
// corresponding stage to fail.
type fakeRemote struct {
	authErr     error
	uploadErr   error
	downloadErr error

	uploaded []remote.Record
	batch    []remote.Record

	farmer         *remote.RemoteFarmer
	barangays      []remote.RemoteBarangay
	municipalities []remote.RemoteMunicipality
}

func (f *fakeRemote) Authenticate(context.Context, string, string) (remote.Token, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	return "test-token", nil
}

func (f *fakeRemote) Upload(_ context.Context, _ remote.Token, records []remote.Record) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded = append(f.uploaded, records...)
	return nil
}

func (f *fakeRemote) Download(context.Context, remote.Token, string) ([]remote.Record, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.batch, nil
}

func (f *fakeRemote) FetchFarmer(context.Context, remote.Token, string) (*remote.RemoteFarmer, error) {
	if f.farmer == nil {
		return nil, fmt.Errorf("no farmer configured")
	}
	return f.farmer, nil
}

func (f *fakeRemote) FetchLocalities(context.Context, remote.Token) ([]remote.RemoteBarangay, []remote.RemoteMunicipality, error) {
	return f.barangays, f.municipalities, nil
}

func newEngineStore(t *testing.T) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:engine-%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Municipality{},
		&model.Barangay{},
		&model.Farmer{},
		&model.DryingRecord{},
	))
	return store.NewGormStore(db)
}

func seedEngineFarmer(t *testing.T, s store.Store) model.Farmer {
	t.Helper()
	farmer := model.Farmer{
		UUID:         "farmer-uuid-1",
		Username:     "juan",
		PasswordHash: "x",
		FullName:     "Juan dela Cruz",
	}
	require.NoError(t, s.SaveFarmer(context.Background(), &farmer))
	return farmer
}

func seedPending(t *testing.T, s store.Store, farmer model.Farmer, uuid string) model.DryingRecord {
	t.Helper()
	rec := model.DryingRecord{
		UUID:          uuid,
		BatchName:     "batch " + uuid,
		InitialWeight: 100,
		FinalWeight:   110,
		FarmerID:      farmer.ID,
		FarmerUUID:    farmer.UUID,
	}
	require.NoError(t, s.CreateRecord(context.Background(), &rec))
	return rec
}

func TestRunCycle_FullCycle(t *testing.T) {
	ctx := context.Background()
	s := newEngineStore(t)
	farmer := seedEngineFarmer(t, s)
	seedPending(t, s, farmer, "pending-1")
	seedPending(t, s, farmer, "pending-2")

	serverBatch := "server batch"
	fake := &fakeRemote{batch: []remote.Record{{
		UUID:        "from-server",
		FarmerUUID:  farmer.UUID,
		BatchName:   &serverBatch,
		FinalWeight: 95,
	}}}
	engine := NewEngine(s, fake, RemoteWins{})

	res, err := engine.RunCycle(ctx, farmer, Credentials{Username: "juan", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 1, res.Downloaded)
	assert.Equal(t, 1, res.Applied)
	assert.Empty(t, res.Diagnostics)

	assert.Len(t, fake.uploaded, 2)

	// Uploaded records are now acknowledged and the server record landed.
	unsynced, err := s.SelectUnsynced(ctx, farmer.ID)
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	all, err := s.RecordsForFarmer(ctx, farmer.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, rec := range all {
		assert.True(t, rec.Synced, "record %s", rec.UUID)
		assert.NotNil(t, rec.SyncedAt, "record %s", rec.UUID)
	}
}

func TestRunCycle_NothingPending(t *testing.T) {
	ctx := context.Background()
	s := newEngineStore(t)
	farmer := seedEngineFarmer(t, s)

	fake := &fakeRemote{}
	engine := NewEngine(s, fake, RemoteWins{})

	res, err := engine.RunCycle(ctx, farmer, Credentials{})
	require.NoError(t, err)
	assert.Zero(t, res.Uploaded)
	assert.Zero(t, res.Downloaded)
	assert.Empty(t, fake.uploaded, "empty upload batch must not hit the wire")
}

func TestRunCycle_AuthFailure(t *testing.T) {
	s := newEngineStore(t)
	farmer := seedEngineFarmer(t, s)

	fake := &fakeRemote{authErr: remote.ErrAuthFailed}
	engine := NewEngine(s, fake, RemoteWins{})

	_, err := engine.RunCycle(context.Background(), farmer, Credentials{})
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrAuthFailed)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, StageAuthenticating, cerr.Stage)
}

func TestRunCycle_DownloadFailureLeavesFlagsUntouched(t *testing.T) {
	ctx := context.Background()
	s := newEngineStore(t)
	farmer := seedEngineFarmer(t, s)
	seedPending(t, s, farmer, "pending-1")

	// Upload succeeds, then the connection drops before download. The
	// already-uploaded records must stay flagged unsynced so the next cycle
	// retries them.
	fake := &fakeRemote{downloadErr: &remote.TransportError{
		Op:  "download records",
		Err: fmt.Errorf("connection reset"),
	}}
	engine := NewEngine(s, fake, RemoteWins{})

	_, err := engine.RunCycle(ctx, farmer, Credentials{})
	require.Error(t, err)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, StageDownloading, cerr.Stage)

	var terr *remote.TransportError
	assert.ErrorAs(t, err, &terr)

	assert.Len(t, fake.uploaded, 1, "upload did happen before the failure")

	unsynced, err := s.SelectUnsynced(ctx, farmer.ID)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "pending-1", unsynced[0].UUID)
	assert.False(t, unsynced[0].Synced)
	assert.Nil(t, unsynced[0].SyncedAt)
}

func TestRunCycle_SecondCycleRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	s := newEngineStore(t)
	farmer := seedEngineFarmer(t, s)
	seedPending(t, s, farmer, "pending-1")

	fake := &fakeRemote{downloadErr: &remote.TransportError{Op: "download records", Err: fmt.Errorf("timeout")}}
	engine := NewEngine(s, fake, RemoteWins{})

	_, err := engine.RunCycle(ctx, farmer, Credentials{})
	require.Error(t, err)

	// The server recovers; the same record is retried and this time the
	// cycle commits.
	fake.downloadErr = nil
	res, err := engine.RunCycle(ctx, farmer, Credentials{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
	assert.Len(t, fake.uploaded, 2, "the record is re-sent on the retry cycle")

	unsynced, err := s.SelectUnsynced(ctx, farmer.ID)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}

func TestRunCycle_IdentityGapIsReported(t *testing.T) {
	ctx := context.Background()
	s := newEngineStore(t)
	farmer := seedEngineFarmer(t, s)

	fake := &fakeRemote{batch: []remote.Record{
		{UUID: "orphan", FarmerUUID: "somebody-else"},
		{UUID: "mine", FarmerUUID: farmer.UUID},
	}}
	engine := NewEngine(s, fake, RemoteWins{})

	res, err := engine.RunCycle(ctx, farmer, Credentials{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Downloaded)
	assert.Equal(t, 1, res.Applied)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "orphan", res.Diagnostics[0].RecordUUID)

	all, err := s.RecordsForFarmer(ctx, farmer.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "mine", all[0].UUID)
}

func TestRunCycle_ConcurrentCyclesSerialize(t *testing.T) {
	ctx := context.Background()
	s := newEngineStore(t)
	farmer := seedEngineFarmer(t, s)
	seedPending(t, s, farmer, "pending-1")

	fake := &fakeRemote{}
	engine := NewEngine(s, fake, RemoteWins{})

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := engine.RunCycle(ctx, farmer, Credentials{})
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, <-done)
	}

	// Both cycles committed; the record was uploaded exactly once because
	// the second cycle observed it already synced.
	assert.Len(t, fake.uploaded, 1)
}

func TestRunCycle_RefreshesFarmerAndLocalities(t *testing.T) {
	ctx := context.Background()
	s := newEngineStore(t)
	farmer := seedEngineFarmer(t, s)
	seedPending(t, s, farmer, "pending-1")

	// The device already holds yesterday's reference data.
	require.NoError(t, s.UpsertLocalities(ctx,
		[]model.Barangay{{ID: 7, Name: "San Isidro", MunicipalityID: 2}},
		[]model.Municipality{{ID: 2, Name: "Cabanatuan"}},
	))

	// The server has since renamed the barangay and updated the farmer.
	barangayID := int64(7)
	fake := &fakeRemote{
		farmer: &remote.RemoteFarmer{
			UUID:       farmer.UUID,
			Username:   farmer.Username,
			FullName:   "Juan M. dela Cruz",
			BarangayID: &barangayID,
		},
		barangays:      []remote.RemoteBarangay{{ID: 7, Name: "San Isidro Norte", MunicipalityID: 2}},
		municipalities: []remote.RemoteMunicipality{{ID: 2, Name: "Cabanatuan City"}},
	}
	engine := NewEngine(s, fake, RemoteWins{})

	_, err := engine.RunCycle(ctx, farmer, Credentials{Username: "juan", Password: "pw"})
	require.NoError(t, err)

	barangay, err := s.BarangayByID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, barangay)
	assert.Equal(t, "San Isidro Norte", barangay.Name)

	refreshed, err := s.FarmerByID(ctx, farmer.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, "Juan M. dela Cruz", refreshed.FullName)
	require.NotNil(t, refreshed.BarangayID)
	assert.Equal(t, int64(7), *refreshed.BarangayID)

	// The refresh happens before upload, so the batch already carries the
	// updated name.
	require.Len(t, fake.uploaded, 1)
	require.NotNil(t, fake.uploaded[0].FarmerName)
	assert.Equal(t, "Juan M. dela Cruz", *fake.uploaded[0].FarmerName)
}

func TestRunCycle_ClockIsInjectable(t *testing.T) {
	ctx := context.Background()
	s := newEngineStore(t)
	farmer := seedEngineFarmer(t, s)
	seedPending(t, s, farmer, "pending-1")

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(s, &fakeRemote{}, RemoteWins{})
	engine.now = func() time.Time { return fixed }

	_, err := engine.RunCycle(ctx, farmer, Credentials{})
	require.NoError(t, err)

	all, err := s.RecordsForFarmer(ctx, farmer.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].SyncedAt)
	assert.True(t, all[0].SyncedAt.Equal(fixed))
}
