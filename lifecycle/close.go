// Package lifecycle implements closing an open position into a realized
// trade.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crypto-tracker/database"
	"crypto-tracker/metrics"
	"crypto-tracker/models"
)

// ValidationError reports a missing or invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CloseRequest asks to sell Quantity units of position ID at SellPrice.
type CloseRequest struct {
	ID        string          `json:"id"`
	Quantity  decimal.Decimal `json:"quantity"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

// Validate rejects empty fields and non-positive amounts before any write.
func (r CloseRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" || r.Quantity.IsZero() || r.SellPrice.IsZero() {
		return &ValidationError{Message: "All fields are required"}
	}
	if r.Quantity.IsNegative() {
		return &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if r.SellPrice.IsNegative() {
		return &ValidationError{Field: "sell_price", Message: "must be positive"}
	}
	if !models.FitsScale(r.Quantity, models.AmountScale) {
		return &ValidationError{Field: "quantity", Message: fmt.Sprintf("at most %d decimal places", models.AmountScale)}
	}
	if !models.FitsScale(r.SellPrice, models.AmountScale) {
		return &ValidationError{Field: "sell_price", Message: fmt.Sprintf("at most %d decimal places", models.AmountScale)}
	}
	return nil
}

// Plan builds the trade realized by closing req.Quantity of asset at
// req.SellPrice. The entry side is copied from the asset; the trade is
// "closed" when nothing remains of the position.
func Plan(asset models.Asset, req CloseRequest, now time.Time) (*models.Trade, error) {
	remaining := asset.Quantity.Sub(req.Quantity)
	if remaining.IsNegative() || asset.IsClosed {
		return nil, database.ErrInsufficientQuantity
	}

	entry := asset.PurchasePrice
	exit := req.SellPrice
	pl := exit.Sub(entry).Mul(req.Quantity).Round(models.AmountScale)
	leverage := decimal.NewFromInt(1)
	exitDate := now

	status := models.TradeStatusOpen
	if remaining.IsZero() {
		status = models.TradeStatusClosed
	}

	return &models.Trade{
		AssetID:     asset.ID,
		Type:        asset.Type,
		Leverage:    &leverage,
		TargetPrice: nil,
		Quantity:    req.Quantity,
		EntryPrice:  entry,
		ExitPrice:   &exit,
		EntryDate:   asset.PurchaseDate,
		ExitDate:    &exitDate,
		PL:          &pl,
		Status:      status,
	}, nil
}

// Store applies a close atomically.
type Store interface {
	ClosePosition(ctx context.Context, id string, quantity decimal.Decimal, plan database.ClosePlan) (*models.Trade, *models.Asset, error)
}

// Service closes positions.
type Service struct {
	Store  Store
	Logger *zap.Logger
	Now    func() time.Time
}

// Result is the outcome of a successful close.
type Result struct {
	Trade *models.Trade
	Asset *models.Asset
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Close validates req and records the close. It returns a *ValidationError,
// database.ErrNotFound, database.ErrInsufficientQuantity or a wrapped
// database.ErrStoreUnavailable on failure; nothing is written in those cases.
func (s *Service) Close(ctx context.Context, req CloseRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	trade, asset, err := s.Store.ClosePosition(ctx, req.ID, req.Quantity, func(a models.Asset) (*models.Trade, error) {
		return Plan(a, req, now)
	})
	if err != nil {
		return nil, err
	}

	result := "partial"
	if trade.Status == models.TradeStatusClosed {
		result = "full"
	}
	metrics.PositionsClosed.WithLabelValues(result).Inc()
	if trade.PL != nil {
		pl, _ := trade.PL.Float64()
		metrics.RealizedPL.Add(pl)
	}

	if s.Logger != nil {
		s.Logger.Info("position closed",
			zap.String("asset_id", req.ID),
			zap.String("trade_id", trade.ID),
			zap.String("quantity", req.Quantity.String()),
			zap.String("sell_price", req.SellPrice.String()),
			zap.String("pl", trade.PL.String()),
			zap.String("status", trade.Status),
		)
	}
	return &Result{Trade: trade, Asset: asset}, nil
}
