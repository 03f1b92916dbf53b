package models

import (
	"time"

	"moneta/internal/uuid"

	"gorm.io/gorm"
)

// InvestmentValuation represents a point-in-time total value for an
// investment account, in minor units. One row per (account, date); a later
// write for the same date overwrites the value. Time-series data: no Base
// embed, no soft deletes.
type InvestmentValuation struct {
	ID                  string    `gorm:"type:uuid;primaryKey" json:"id"`
	InvestmentAccountID string    `gorm:"type:uuid;not null;uniqueIndex:uq_valuations_account_date" json:"investment_account_id"`
	Date                time.Time `gorm:"not null;uniqueIndex:uq_valuations_account_date" json:"date"`
	Value               int64     `gorm:"type:bigint;not null" json:"value"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (v *InvestmentValuation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New()
	}
	return nil
}
