package model

import "time"

// StaffUser is a barangay-scoped operator account used to log into the
// drying device itself, before an individual farmer signs in.
type StaffUser struct {
	ID           int64  `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;size:150;not null"`
	PasswordHash string `gorm:"size:150;not null"`
	BarangayName string `gorm:"size:150;not null"`
	BarangayID   *int64 `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
