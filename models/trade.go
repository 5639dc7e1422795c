package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
)

// Trade records a realized (partial or full) sale of an Asset. Entry fields
// are snapshots taken at creation and exit fields are written once.
type Trade struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	AssetID     string           `gorm:"type:varchar(36);not null;index" json:"asset_id"`
	Asset       *Asset           `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	Type        string           `gorm:"not null" json:"type"`
	Leverage    *decimal.Decimal `gorm:"type:numeric(10,2)" json:"leverage"`
	TargetPrice *decimal.Decimal `gorm:"type:numeric(30,10)" json:"target_price"`
	Quantity    decimal.Decimal  `gorm:"type:numeric(30,10);not null" json:"quantity"`
	EntryPrice  decimal.Decimal  `gorm:"type:numeric(30,10);not null" json:"entry_price"`
	ExitPrice   *decimal.Decimal `gorm:"type:numeric(30,10)" json:"exit_price"`
	EntryDate   time.Time        `gorm:"type:timestamptz;not null" json:"entry_date"`
	ExitDate    *time.Time       `gorm:"type:timestamptz" json:"exit_date"`
	PL          *decimal.Decimal `gorm:"column:pl;type:numeric(30,10)" json:"pl"`
	Status      string           `gorm:"type:varchar(10);not null;default:'open';index" json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (t *Trade) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TradeStatusOpen
	}
	return nil
}
