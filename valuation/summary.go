package valuation

import (
	"github.com/shopspring/decimal"

	"crypto-tracker/models"
)

// Summary is the set of headline figures shown above each view.
type Summary struct {
	TotalAssets          int             `json:"totalAssets"`
	TotalValue           decimal.Decimal `json:"totalValue"`
	TotalInvested        decimal.Decimal `json:"totalInvested"`
	TotalProfitLoss      decimal.Decimal `json:"totalProfitLoss"`
	TotalProfitLossPct   decimal.Decimal `json:"totalProfitLossPercentage"`
	WeightedChange24hPct decimal.Decimal `json:"average24hChange"`
}

// WeightedChange24h is the portfolio 24h change in percent, each position
// weighted by its current value. It is zero when the portfolio is worth zero.
func WeightedChange24h(assets []models.Asset, quotes map[string]models.Quote) decimal.Decimal {
	total := decimal.Zero
	change := decimal.Zero
	for _, a := range assets {
		v := Value(a, quotes)
		total = total.Add(v.CurrentValue)
		change = change.Add(v.CurrentValue.Mul(v.PercentChange24h).Div(hundred))
	}
	return Percent(change, total)
}

// Summarize computes the headline figures for a set of positions.
func Summarize(assets []models.Asset, quotes map[string]models.Quote) Summary {
	s := Summary{
		TotalAssets:     len(assets),
		TotalValue:      decimal.Zero,
		TotalInvested:   decimal.Zero,
		TotalProfitLoss: decimal.Zero,
	}
	for _, a := range assets {
		v := Value(a, quotes)
		s.TotalValue = s.TotalValue.Add(v.CurrentValue)
		s.TotalInvested = s.TotalInvested.Add(v.InvestedValue)
		s.TotalProfitLoss = s.TotalProfitLoss.Add(v.ProfitLoss)
	}
	s.TotalProfitLossPct = Percent(s.TotalProfitLoss, s.TotalInvested)
	s.WeightedChange24hPct = WeightedChange24h(assets, quotes)
	return s
}
