package valuation

import (
	"fmt"
	"strings"

	"crypto-tracker/models"
)

// View selects the positions shown on one dashboard tab.
type View string

const (
	ViewGlobal     View = "global"
	ViewSwing      View = "swing"
	ViewAirdrop    View = "airdrop"
	ViewStacking   View = "stacking"
	ViewStablecoin View = "stablecoin"
	ViewWallet     View = "wallet"
	ViewTrade      View = "trade"
)

var views = []View{ViewGlobal, ViewSwing, ViewAirdrop, ViewStacking, ViewStablecoin, ViewWallet, ViewTrade}

// Views lists every known view.
func Views() []View {
	out := make([]View, len(views))
	copy(out, views)
	return out
}

// ParseView resolves a view name case-insensitively.
func ParseView(name string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range views {
		if v == known {
			return v, nil
		}
	}
	names := make([]string, 0, len(views))
	for _, known := range Views() {
		names = append(names, string(known))
	}
	return "", fmt.Errorf("unknown view %q, expected one of: %s", name, strings.Join(names, ", "))
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), b)
}

// Match reports whether asset belongs to the view. Airdrops are also
// recognized by origin and stablecoins by classification.
func (v View) Match(asset models.Asset) bool {
	switch v {
	case ViewGlobal:
		return true
	case ViewAirdrop:
		return equalFold(asset.Type, string(v)) || equalFold(asset.Origin, string(v))
	case ViewStablecoin:
		return equalFold(asset.Type, string(v)) || equalFold(asset.Classification, string(v))
	default:
		return equalFold(asset.Type, string(v))
	}
}

// Filter returns the assets of the view, dropping closed positions unless
// includeClosed is set.
func (v View) Filter(assets []models.Asset, includeClosed bool) []models.Asset {
	out := make([]models.Asset, 0, len(assets))
	for _, a := range assets {
		if a.IsClosed && !includeClosed {
			continue
		}
		if v.Match(a) {
			out = append(out, a)
		}
	}
	return out
}
