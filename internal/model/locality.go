package model

import "time"

// Municipality is reference data pulled from the remote server. IDs are
// remote-assigned and reused locally as-is.
type Municipality struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"size:150;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Barangay is reference data pulled from the remote server.
type Barangay struct {
	ID             int64  `gorm:"primaryKey"`
	Name           string `gorm:"size:150;not null"`
	MunicipalityID int64  `gorm:"index;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Associations
	Municipality Municipality
}
