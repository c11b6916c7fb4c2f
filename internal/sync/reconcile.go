// Package sync implements the offline-first reconciliation between the
// device's local record store and the remote authoritative server.
package sync

import (
	"time"

	"palay-drying-backend/internal/model"
	"palay-drying-backend/internal/remote"
)

// Diagnostic records a per-record problem that did not abort the cycle.
type Diagnostic struct {
	RecordUUID string
	FarmerUUID string
	Reason     string
}

// MergeStrategy decides whether a remote record overwrites an existing
// local record during reconciliation.
type MergeStrategy interface {
	Name() string
	ShouldOverwrite(local model.DryingRecord, rec remote.Record) bool
}

// RemoteWins is the historical policy: the remote snapshot unconditionally
// replaces local state for a matching uuid. No timestamp comparison is
// performed, so a local edit made between fetch and sync is discarded.
type RemoteWins struct{}

func (RemoteWins) Name() string { return "remote_wins" }

func (RemoteWins) ShouldOverwrite(model.DryingRecord, remote.Record) bool { return true }

// NewerWins only overwrites when the remote copy carries a strictly newer
// updated_at than the local row. Remote records without a timestamp are
// treated as authoritative.
type NewerWins struct{}

func (NewerWins) Name() string { return "newer_wins" }

func (NewerWins) ShouldOverwrite(local model.DryingRecord, rec remote.Record) bool {
	if rec.UpdatedAt == nil {
		return true
	}
	return rec.UpdatedAt.After(local.UpdatedAt)
}

// StrategyFromName maps a configuration value to a strategy, defaulting to
// remote-wins.
func StrategyFromName(name string) MergeStrategy {
	if name == "newer_wins" {
		return NewerWins{}
	}
	return RemoteWins{}
}

// Reconciler merges a downloaded remote batch into local state. It is pure:
// it computes the set of upserts to apply and leaves durability to the
// store's cycle commit.
type Reconciler struct {
	strategy MergeStrategy
}

// NewReconciler creates a reconciler with the given merge strategy.
func NewReconciler(strategy MergeStrategy) *Reconciler {
	if strategy == nil {
		strategy = RemoteWins{}
	}
	return &Reconciler{strategy: strategy}
}

// Merge converges local and remote record sets using uuid as the join key.
//
// Per remote record: if no local record shares its uuid, it is inserted as
// an already-synced local record, provided its owning farmer exists locally
// (a missing farmer is an identity gap: the record is skipped with a
// diagnostic, never fabricated). If a local record matches, the strategy
// decides whether the remote copy replaces it.
//
// Local unsynced records absent from the batch are left untouched: they are
// pending upload, and flipping their flag is the upload stage's job.
func (rc *Reconciler) Merge(now time.Time, locals []model.DryingRecord, farmers map[string]model.Farmer, batch []remote.Record) ([]model.DryingRecord, []Diagnostic) {
	localByUUID := make(map[string]model.DryingRecord, len(locals))
	for _, l := range locals {
		localByUUID[l.UUID] = l
	}

	var upserts []model.DryingRecord
	var diags []Diagnostic
	for _, rec := range batch {
		farmer, ok := farmers[rec.FarmerUUID]
		if !ok {
			diags = append(diags, Diagnostic{
				RecordUUID: rec.UUID,
				FarmerUUID: rec.FarmerUUID,
				Reason:     "owning farmer not present locally",
			})
			continue
		}

		local, present := localByUUID[rec.UUID]
		if present && !rc.strategy.ShouldOverwrite(local, rec) {
			continue
		}

		merged := rec.ToModel()
		merged.FarmerID = farmer.ID
		merged.Synced = true
		syncedAt := now
		merged.SyncedAt = &syncedAt
		if present {
			merged.ID = local.ID
		}
		upserts = append(upserts, merged)
	}
	return upserts, diags
}
