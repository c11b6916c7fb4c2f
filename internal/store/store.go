package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"palay-drying-backend/internal/model"
)

// Store defines the interface for all local database operations.
type Store interface {
	// SelectUnsynced returns every record owned by the farmer that the
	// remote has not yet acknowledged, ordered by local id ascending.
	SelectUnsynced(ctx context.Context, farmerID int64) ([]model.DryingRecord, error)

	// UpsertByUUID overwrites the mutable fields of the record with the
	// matching uuid, or inserts a new record if none exists. The local id
	// and uuid of an existing row are never touched.
	UpsertByUUID(ctx context.Context, rec *model.DryingRecord) error

	// MarkSynced flips the synced flag for the identified record. Missing
	// records are a no-op, not an error.
	MarkSynced(ctx context.Context, uuid string, at time.Time) error

	// ApplyCycle durably applies every mutation of one sync cycle inside a
	// single transaction: all upload acknowledgements and all reconciled
	// upserts, or none of them.
	ApplyCycle(ctx context.Context, plan CyclePlan) error

	CreateRecord(ctx context.Context, rec *model.DryingRecord) error
	RecordByID(ctx context.Context, id int64) (*model.DryingRecord, error)
	RecordsForFarmer(ctx context.Context, farmerID int64) ([]model.DryingRecord, error)
	RecordsDueOn(ctx context.Context, day time.Time) ([]model.DryingRecord, error)

	FarmerByID(ctx context.Context, id int64) (*model.Farmer, error)
	FarmerByUsername(ctx context.Context, username string) (*model.Farmer, error)
	FarmerByUUID(ctx context.Context, uuid string) (*model.Farmer, error)
	BarangayByID(ctx context.Context, id int64) (*model.Barangay, error)
	SaveFarmer(ctx context.Context, farmer *model.Farmer) error

	StaffByEmail(ctx context.Context, email string) (*model.StaffUser, error)
	SaveStaff(ctx context.Context, staff *model.StaffUser) error

	// UpsertLocalities refreshes the barangay and municipality reference
	// tables from a remote snapshot.
	UpsertLocalities(ctx context.Context, barangays []model.Barangay, municipalities []model.Municipality) error

	SubscriptionsForFarmer(ctx context.Context, farmerID int64) ([]model.PushSubscription, error)
	SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error

	DB() *gorm.DB
}

// SyncAck records the remote's acceptance of one uploaded record.
type SyncAck struct {
	UUID     string
	SyncedAt time.Time
}

// CyclePlan is the full set of local mutations produced by one sync cycle.
type CyclePlan struct {
	MarkSynced []SyncAck
	Upserts    []model.DryingRecord
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

func (s *gormStore) SelectUnsynced(ctx context.Context, farmerID int64) ([]model.DryingRecord, error) {
	var records []model.DryingRecord
	err := s.db.WithContext(ctx).
		Where("farmer_id = ? AND synced = ?", farmerID, false).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select unsynced records: %w", err)
	}
	return records, nil
}

func (s *gormStore) UpsertByUUID(ctx context.Context, rec *model.DryingRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertByUUID(tx, rec)
	})
}

// upsertByUUID is the shared transactional body for UpsertByUUID and
// ApplyCycle.
func upsertByUUID(tx *gorm.DB, rec *model.DryingRecord) error {
	var existing model.DryingRecord
	err := tx.Where("uuid = ?", rec.UUID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Omit(clause.Associations).Create(rec).Error; err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.UUID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up record %s: %w", rec.UUID, err)
	}

	// Overwrite mutable fields only; id and uuid are immutable.
	rec.ID = existing.ID
	rec.UUID = existing.UUID
	rec.CreatedAt = existing.CreatedAt
	if err := tx.Omit(clause.Associations).Save(rec).Error; err != nil {
		return fmt.Errorf("failed to update record %s: %w", rec.UUID, err)
	}
	return nil
}

func (s *gormStore) MarkSynced(ctx context.Context, uuid string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return markSynced(tx, uuid, at)
	})
}

func markSynced(tx *gorm.DB, uuid string, at time.Time) error {
	// A missing row is deliberately not an error: the record may have been
	// replaced by a reconciled upsert within the same cycle.
	res := tx.Model(&model.DryingRecord{}).
		Where("uuid = ?", uuid).
		Updates(map[string]any{"synced": true, "synced_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to mark record %s synced: %w", uuid, res.Error)
	}
	return nil
}

func (s *gormStore) ApplyCycle(ctx context.Context, plan CyclePlan) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ack := range plan.MarkSynced {
			if err := markSynced(tx, ack.UUID, ack.SyncedAt); err != nil {
				return err
			}
		}
		for i := range plan.Upserts {
			rec := plan.Upserts[i]
			if err := upsertByUUID(tx, &rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *gormStore) CreateRecord(ctx context.Context, rec *model.DryingRecord) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create drying record: %w", err)
	}
	return nil
}

func (s *gormStore) RecordByID(ctx context.Context, id int64) (*model.DryingRecord, error) {
	var rec model.DryingRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up record %d: %w", id, err)
	}
	return &rec, nil
}

func (s *gormStore) RecordsForFarmer(ctx context.Context, farmerID int64) ([]model.DryingRecord, error) {
	var records []model.DryingRecord
	err := s.db.WithContext(ctx).
		Where("farmer_id = ?", farmerID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records for farmer %d: %w", farmerID, err)
	}
	return records, nil
}

func (s *gormStore) RecordsDueOn(ctx context.Context, day time.Time) ([]model.DryingRecord, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var records []model.DryingRecord
	err := s.db.WithContext(ctx).
		Where("due_date >= ? AND due_date < ?", start, end).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list records due on %s: %w", start.Format("2006-01-02"), err)
	}
	return records, nil
}

func (s *gormStore) FarmerByID(ctx context.Context, id int64) (*model.Farmer, error) {
	var farmer model.Farmer
	err := s.db.WithContext(ctx).First(&farmer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up farmer %d: %w", id, err)
	}
	return &farmer, nil
}

func (s *gormStore) BarangayByID(ctx context.Context, id int64) (*model.Barangay, error) {
	var barangay model.Barangay
	err := s.db.WithContext(ctx).First(&barangay, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up barangay %d: %w", id, err)
	}
	return &barangay, nil
}

func (s *gormStore) FarmerByUsername(ctx context.Context, username string) (*model.Farmer, error) {
	var farmer model.Farmer
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&farmer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up farmer %q: %w", username, err)
	}
	return &farmer, nil
}

func (s *gormStore) FarmerByUUID(ctx context.Context, uuid string) (*model.Farmer, error) {
	var farmer model.Farmer
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&farmer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up farmer uuid %s: %w", uuid, err)
	}
	return &farmer, nil
}

func (s *gormStore) SaveFarmer(ctx context.Context, farmer *model.Farmer) error {
	if err := s.db.WithContext(ctx).Save(farmer).Error; err != nil {
		return fmt.Errorf("failed to save farmer %q: %w", farmer.Username, err)
	}
	return nil
}

func (s *gormStore) StaffByEmail(ctx context.Context, email string) (*model.StaffUser, error) {
	var staff model.StaffUser
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&staff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up staff %q: %w", email, err)
	}
	return &staff, nil
}

func (s *gormStore) SaveStaff(ctx context.Context, staff *model.StaffUser) error {
	if err := s.db.WithContext(ctx).Save(staff).Error; err != nil {
		return fmt.Errorf("failed to save staff %q: %w", staff.Email, err)
	}
	return nil
}

func (s *gormStore) UpsertLocalities(ctx context.Context, barangays []model.Barangay, municipalities []model.Municipality) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(municipalities) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
			}).Create(&municipalities).Error; err != nil {
				return fmt.Errorf("batch upsert municipalities failed: %w", err)
			}
		}
		if len(barangays) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "municipality_id", "updated_at"}),
			}).Omit(clause.Associations).Create(&barangays).Error; err != nil {
				return fmt.Errorf("batch upsert barangays failed: %w", err)
			}
		}
		return nil
	})
}

func (s *gormStore) SubscriptionsForFarmer(ctx context.Context, farmerID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).Where("farmer_id = ?", farmerID).Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for farmer %d: %w", farmerID, err)
	}
	return subs, nil
}

func (s *gormStore) SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "farmer_id"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}
