// Package valuation derives current value and profit/loss figures from
// positions and a quote snapshot. Every function is pure; nothing is cached.
package valuation

import (
	"strings"

	"github.com/shopspring/decimal"

	"crypto-tracker/models"
)

var hundred = decimal.NewFromInt(100)

// Valuation holds the derived metrics of one position.
type Valuation struct {
	CurrentPrice         decimal.Decimal `json:"currentPrice"`
	CurrentValue         decimal.Decimal `json:"currentValue"`
	InvestedValue        decimal.Decimal `json:"investedValue"`
	ProfitLoss           decimal.Decimal `json:"profitLoss"`
	ProfitLossPercentage decimal.Decimal `json:"profitLossPercentage"`
	PercentChange1h      decimal.Decimal `json:"percentChange1h"`
	PercentChange24h     decimal.Decimal `json:"percentChange24h"`
	PercentChange7d      decimal.Decimal `json:"percentChange7d"`
	Quoted               bool            `json:"quoted"`
}

// Lookup finds the quote for symbol ignoring case and surrounding blanks.
func Lookup(quotes map[string]models.Quote, symbol string) (models.Quote, bool) {
	q, ok := quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	return q, ok
}

// CurrentPrice is the quoted price, or the purchase price when the symbol
// has no quote.
func CurrentPrice(asset models.Asset, quotes map[string]models.Quote) decimal.Decimal {
	if q, ok := Lookup(quotes, asset.Symbol); ok {
		return q.Price
	}
	return asset.PurchasePrice
}

// Percent returns part / whole * 100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Value computes the valuation of a single position.
func Value(asset models.Asset, quotes map[string]models.Quote) Valuation {
	q, quoted := Lookup(quotes, asset.Symbol)
	price := CurrentPrice(asset, quotes)

	current := price.Mul(asset.Quantity)
	invested := asset.InvestedValue()
	pl := current.Sub(invested)

	return Valuation{
		CurrentPrice:         price,
		CurrentValue:         current,
		InvestedValue:        invested,
		ProfitLoss:           pl,
		ProfitLossPercentage: Percent(pl, invested),
		PercentChange1h:      q.PercentChange1h,
		PercentChange24h:     q.PercentChange24h,
		PercentChange7d:      q.PercentChange7d,
		Quoted:               quoted,
	}
}

// Position pairs an asset with its valuation for rendering.
type Position struct {
	models.Asset
	Valuation
}

// ValuePositions values every asset, preserving order.
func ValuePositions(assets []models.Asset, quotes map[string]models.Quote) []Position {
	out := make([]Position, 0, len(assets))
	for _, a := range assets {
		out = append(out, Position{Asset: a, Valuation: Value(a, quotes)})
	}
	return out
}
