package valuation

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"crypto-tracker/models"
)

// MaxBubbleRadius is the radius given to the largest aggregate.
const MaxBubbleRadius = 120.0

// Aggregate groups every position sharing a symbol and name.
type Aggregate struct {
	ID                   string          `json:"id"`
	Label                string          `json:"label"`
	FullName             string          `json:"fullname"`
	TradeType            string          `json:"tradeType"`
	TotalQuantity        decimal.Decimal `json:"totalQuantity"`
	TotalPurchaseValue   decimal.Decimal `json:"totalPurchaseValue"`
	Value                decimal.Decimal `json:"value"`
	AveragePurchasePrice decimal.Decimal `json:"averagePurchasePrice"`
	PL                   decimal.Decimal `json:"pl"`
	PLValue              decimal.Decimal `json:"plValue"`
	Percentage           string          `json:"percentage"`
	PercentChange24h     decimal.Decimal `json:"percentChange24h"`
	Radius               float64         `json:"radius"`
}

type groupKey struct {
	symbol string
	name   string
}

func keyOf(a models.Asset) groupKey {
	return groupKey{
		symbol: strings.ToLower(strings.TrimSpace(a.Symbol)),
		name:   strings.ToLower(strings.TrimSpace(a.Name)),
	}
}

// AggregateBySymbol merges positions by (symbol, name), compared without case
// or surrounding blanks. Groups keep the order in which they first appear.
// Ratios whose divisor is zero are reported as zero.
func AggregateBySymbol(assets []models.Asset, quotes map[string]models.Quote) []Aggregate {
	index := make(map[groupKey]int, len(assets))
	out := make([]Aggregate, 0, len(assets))

	for _, a := range assets {
		v := Value(a, quotes)
		k := keyOf(a)
		if i, ok := index[k]; ok {
			g := &out[i]
			g.TotalQuantity = g.TotalQuantity.Add(a.Quantity)
			g.TotalPurchaseValue = g.TotalPurchaseValue.Add(v.InvestedValue)
			g.Value = g.Value.Add(v.CurrentValue)
			continue
		}
		index[k] = len(out)
		out = append(out, Aggregate{
			ID:                 a.ID,
			Label:              a.Symbol,
			FullName:           a.Name,
			TradeType:          a.Type,
			TotalQuantity:      a.Quantity,
			TotalPurchaseValue: v.InvestedValue,
			Value:              v.CurrentValue,
			PercentChange24h:   v.PercentChange24h,
		})
	}

	total := decimal.Zero
	for _, g := range out {
		total = total.Add(g.Value)
	}

	for i := range out {
		g := &out[i]
		if !g.TotalQuantity.IsZero() {
			g.AveragePurchasePrice = g.TotalPurchaseValue.Div(g.TotalQuantity)
			avgCurrent := g.Value.Div(g.TotalQuantity)
			g.PL = Percent(avgCurrent.Sub(g.AveragePurchasePrice), g.AveragePurchasePrice)
		}
		g.PLValue = g.Value.Sub(g.TotalPurchaseValue)
		g.Percentage = Percent(g.Value, total).StringFixed(2)
	}
	assignRadii(out)
	return out
}

// assignRadii sizes bubbles so their area is proportional to value, with
// the largest at MaxBubbleRadius.
func assignRadii(groups []Aggregate) {
	largest := decimal.Zero
	for _, g := range groups {
		if g.Value.GreaterThan(largest) {
			largest = g.Value
		}
	}
	if !largest.IsPositive() {
		return
	}
	for i := range groups {
		if !groups[i].Value.IsPositive() {
			continue
		}
		ratio, _ := groups[i].Value.Div(largest).Float64()
		groups[i].Radius = MaxBubbleRadius * math.Sqrt(ratio)
	}
}
