package sync

import (
	"context"
	"fmt"
	"log"
	stdsync "sync"
	"time"

	"palay-drying-backend/internal/model"
	"palay-drying-backend/internal/remote"
	"palay-drying-backend/internal/store"
)

// Stage names the steps of a sync cycle, in order.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageAuthenticating Stage = "authenticating"
	StageUploading      Stage = "uploading"
	StageDownloading    Stage = "downloading"
	StageReconciling    Stage = "reconciling"
	StageCommitting     Stage = "committing"
	StageCommitted      Stage = "committed"
)

// CycleError reports the stage a sync cycle failed in. No stage is retried
// automatically; the caller re-invokes the whole cycle from idle.
type CycleError struct {
	Stage Stage
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("sync cycle failed while %s: %v", e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// Credentials is the secret pair passed into each cycle. It is held by the
// caller for the lifetime of the user's session and never persisted.
type Credentials struct {
	Username string
	Password string
}

// Result summarizes a committed cycle.
type Result struct {
	Uploaded    int
	Downloaded  int
	Applied     int
	Diagnostics []Diagnostic
}

// RemoteAPI is the slice of the remote client the engine needs.
type RemoteAPI interface {
	Authenticate(ctx context.Context, username, password string) (remote.Token, error)
	Upload(ctx context.Context, token remote.Token, records []remote.Record) error
	Download(ctx context.Context, token remote.Token, farmerUUID string) ([]remote.Record, error)
	FetchFarmer(ctx context.Context, token remote.Token, username string) (*remote.RemoteFarmer, error)
	FetchLocalities(ctx context.Context, token remote.Token) ([]remote.RemoteBarangay, []remote.RemoteMunicipality, error)
}

// Engine drives the sync cycle: authenticate, upload unsynced, download,
// reconcile, commit. Each invocation is a full cycle; there is no
// resumption from a partial stage.
type Engine struct {
	store      store.Store
	remote     RemoteAPI
	reconciler *Reconciler
	now        func() time.Time

	mu          stdsync.Mutex
	farmerLocks map[int64]*stdsync.Mutex
}

// NewEngine creates a sync engine.
func NewEngine(st store.Store, rc RemoteAPI, strategy MergeStrategy) *Engine {
	return &Engine{
		store:       st,
		remote:      rc,
		reconciler:  NewReconciler(strategy),
		now:         func() time.Time { return time.Now().UTC() },
		farmerLocks: make(map[int64]*stdsync.Mutex),
	}
}

// lockFor returns the mutual-exclusion lock for a farmer. No two cycles for
// the same farmer may run concurrently; the cycle commit must be serialized.
func (e *Engine) lockFor(farmerID int64) *stdsync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.farmerLocks[farmerID]
	if !ok {
		l = &stdsync.Mutex{}
		e.farmerLocks[farmerID] = l
	}
	return l
}

// RunCycle performs one full sync cycle for the farmer. On failure no local
// mutation has been applied: every flag flip and every reconciled upsert is
// committed in a single store transaction at the end of the cycle.
func (e *Engine) RunCycle(ctx context.Context, farmer model.Farmer, creds Credentials) (*Result, error) {
	lock := e.lockFor(farmer.ID)
	lock.Lock()
	defer lock.Unlock()

	log.Printf("Starting sync cycle for farmer %q", farmer.Username)

	token, err := e.remote.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, &CycleError{Stage: StageAuthenticating, Err: err}
	}

	// The farmer row and the locality tables are brought up to date with the
	// server on every cycle. A failure here is logged and does not abort the
	// cycle; record sync proceeds on the data already stored.
	e.refreshReference(ctx, token, &farmer)

	unsynced, err := e.store.SelectUnsynced(ctx, farmer.ID)
	if err != nil {
		return nil, &CycleError{Stage: StageUploading, Err: err}
	}

	// Upload is all-or-nothing. Acknowledgements are only collected here;
	// the flags flip during the cycle commit, so a failure in any later
	// stage leaves them untouched and the batch is retried next cycle.
	var acks []store.SyncAck
	if len(unsynced) > 0 {
		wire := make([]remote.Record, len(unsynced))
		for i, rec := range unsynced {
			wire[i] = remote.RecordFromModel(rec, farmer.FullName)
		}
		if err := e.remote.Upload(ctx, token, wire); err != nil {
			return nil, &CycleError{Stage: StageUploading, Err: err}
		}
		ackedAt := e.now()
		for _, rec := range unsynced {
			acks = append(acks, store.SyncAck{UUID: rec.UUID, SyncedAt: ackedAt})
		}
		log.Printf("Uploaded %d record(s) for farmer %q", len(unsynced), farmer.Username)
	}

	batch, err := e.remote.Download(ctx, token, farmer.UUID)
	if err != nil {
		return nil, &CycleError{Stage: StageDownloading, Err: err}
	}

	locals, err := e.store.RecordsForFarmer(ctx, farmer.ID)
	if err != nil {
		return nil, &CycleError{Stage: StageReconciling, Err: err}
	}

	farmers := map[string]model.Farmer{farmer.UUID: farmer}
	upserts, diags := e.reconciler.Merge(e.now(), locals, farmers, batch)
	for _, d := range diags {
		log.Printf("Skipping downloaded record %s: %s (farmer %s)", d.RecordUUID, d.Reason, d.FarmerUUID)
	}

	plan := store.CyclePlan{MarkSynced: acks, Upserts: upserts}
	if err := e.store.ApplyCycle(ctx, plan); err != nil {
		return nil, &CycleError{Stage: StageCommitting, Err: err}
	}

	log.Printf("Sync cycle committed for farmer %q: uploaded=%d downloaded=%d applied=%d skipped=%d",
		farmer.Username, len(unsynced), len(batch), len(upserts), len(diags))
	return &Result{
		Uploaded:    len(unsynced),
		Downloaded:  len(batch),
		Applied:     len(upserts),
		Diagnostics: diags,
	}, nil
}

// refreshReference pulls the farmer's own fields and the locality reference
// tables from the server. The farmer is updated in place so the remainder of
// the cycle uploads under the refreshed name.
func (e *Engine) refreshReference(ctx context.Context, token remote.Token, farmer *model.Farmer) {
	if barangays, municipalities, err := e.remote.FetchLocalities(ctx, token); err != nil {
		log.Printf("Warning: failed to fetch localities during sync: %v", err)
	} else if err := e.store.UpsertLocalities(ctx, remote.LocalBarangays(barangays), remote.LocalMunicipalities(municipalities)); err != nil {
		log.Printf("Warning: failed to store localities during sync: %v", err)
	}

	rf, err := e.remote.FetchFarmer(ctx, token, farmer.Username)
	if err != nil {
		log.Printf("Warning: failed to fetch farmer %q during sync: %v", farmer.Username, err)
		return
	}
	farmer.FullName = rf.FullName
	farmer.BarangayID = rf.BarangayID
	if err := e.store.SaveFarmer(ctx, farmer); err != nil {
		log.Printf("Warning: failed to store refreshed farmer %q: %v", farmer.Username, err)
	}
}
