package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest USD market data for a symbol. It is never persisted.
type Quote struct {
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	PercentChange1h  decimal.Decimal `json:"percent_change_1h"`
	PercentChange24h decimal.Decimal `json:"percent_change_24h"`
	PercentChange7d  decimal.Decimal `json:"percent_change_7d"`
	MarketCap        decimal.Decimal `json:"market_cap"`
	Volume24h        decimal.Decimal `json:"volume_24h"`
	LastUpdated      time.Time       `json:"last_updated"`
}
