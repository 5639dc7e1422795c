package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lifecycle tags used by the dashboard views.
const (
	TypeSwing      = "swing"
	TypeAirdrop    = "airdrop"
	TypeStacking   = "stacking"
	TypeStablecoin = "stablecoin"
	TypeWallet     = "wallet"
	TypeTrade      = "trade"
)

// Tag defaults applied when the submitter leaves them empty.
const (
	DefaultClassification = "uncategorized"
	DefaultNarrative      = "unknown"
	DefaultOrigin         = "bought"
	DefaultType           = TypeSwing
)

// AmountScale is the number of fractional digits stored for quantities and
// prices (the scale of their numeric columns).
const AmountScale = 10

// LeverageScale is the stored scale of Trade.Leverage.
const LeverageScale = 2

// FitsScale reports whether d can be stored with scale fractional digits
// without rounding.
func FitsScale(d decimal.Decimal, scale int32) bool {
	return d.Round(scale).Equal(d)
}

// Asset is a held quantity of a symbol at a recorded cost basis.
type Asset struct {
	ID             string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name           string                      `gorm:"not null" json:"name"`
	Symbol         string                      `gorm:"not null;index" json:"symbol"`
	Blockchain     string                      `gorm:"not null" json:"blockchain"`
	Wallet         string                      `gorm:"not null" json:"wallet"`
	Quantity       decimal.Decimal             `gorm:"type:numeric(30,10);not null;default:0" json:"quantity"`
	PurchasePrice  decimal.Decimal             `gorm:"type:numeric(30,10);not null;default:0" json:"purchasePrice"`
	PurchaseDate   time.Time                   `gorm:"type:timestamptz;not null" json:"purchaseDate"`
	Classification string                      `gorm:"not null;default:'uncategorized'" json:"classification"`
	Narrative      datatypes.JSONSlice[string] `json:"narrative"`
	Origin         string                      `gorm:"not null;default:'bought'" json:"origin"`
	Type           string                      `gorm:"not null;default:'swing';index" json:"type"`
	IsClosed       bool                        `gorm:"not null;default:false" json:"is_closed"`
	CreatedAt      time.Time                   `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time                   `json:"updatedAt"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.ApplyDefaults()
	return nil
}

// ApplyDefaults fills the optional classification tags.
func (a *Asset) ApplyDefaults() {
	if strings.TrimSpace(a.Classification) == "" {
		a.Classification = DefaultClassification
	}
	if len(a.Narrative) == 0 {
		a.Narrative = datatypes.JSONSlice[string]{DefaultNarrative}
	}
	if strings.TrimSpace(a.Origin) == "" {
		a.Origin = DefaultOrigin
	}
	if strings.TrimSpace(a.Type) == "" {
		a.Type = DefaultType
	}
}

// InvestedValue is purchase price times quantity.
func (a Asset) InvestedValue() decimal.Decimal {
	return a.PurchasePrice.Mul(a.Quantity)
}
