package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"crypto-tracker/database"
	"crypto-tracker/models"
)

type TradeStore interface {
	ListTrades(ctx context.Context) ([]models.Trade, error)
	CreateTrade(ctx context.Context, trade *models.Trade) error
}

type TradeHandler struct {
	Store  TradeStore
	Logger *zap.Logger
}

func (h *TradeHandler) Register(r *gin.RouterGroup, auth gin.HandlerFunc) {
	r.GET("/trades", h.list)
	r.POST("/trades", auth, h.create)
}

// TradeInput records a trade made outside the close flow, e.g. a leveraged
// position opened on an exchange.
type TradeInput struct {
	AssetID     string           `json:"asset_id" binding:"required"`
	Type        string           `json:"type" binding:"required"`
	Leverage    *decimal.Decimal `json:"leverage"`
	TargetPrice *decimal.Decimal `json:"target_price"`
	Quantity    *decimal.Decimal `json:"quantity" binding:"required"`
	EntryPrice  *decimal.Decimal `json:"entry_price" binding:"required"`
	ExitPrice   *decimal.Decimal `json:"exit_price"`
	EntryDate   string           `json:"entry_date" binding:"required"`
	ExitDate    string           `json:"exit_date"`
	Status      string           `json:"status"`
}

func (in TradeInput) toTrade() (models.Trade, error) {
	if !in.Quantity.IsPositive() {
		return models.Trade{}, errors.New("quantity must be positive")
	}
	if in.EntryPrice.IsNegative() {
		return models.Trade{}, errors.New("entry_price must not be negative")
	}
	amounts := map[string]decimal.Decimal{
		"quantity":    *in.Quantity,
		"entry_price": *in.EntryPrice,
	}
	if in.ExitPrice != nil {
		amounts["exit_price"] = *in.ExitPrice
	}
	if in.TargetPrice != nil {
		amounts["target_price"] = *in.TargetPrice
	}
	if err := checkScale(amounts, models.AmountScale); err != nil {
		return models.Trade{}, err
	}
	if in.Leverage != nil {
		if !in.Leverage.IsPositive() {
			return models.Trade{}, errors.New("leverage must be positive")
		}
		if err := checkScale(map[string]decimal.Decimal{"leverage": *in.Leverage}, models.LeverageScale); err != nil {
			return models.Trade{}, err
		}
	}
	entry, err := parseDate(in.EntryDate)
	if err != nil {
		return models.Trade{}, fmt.Errorf("entry_date: %w", err)
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	switch status {
	case "":
		status = models.TradeStatusOpen
	case models.TradeStatusOpen, models.TradeStatusClosed:
	default:
		return models.Trade{}, fmt.Errorf("status must be %q or %q", models.TradeStatusOpen, models.TradeStatusClosed)
	}

	trade := models.Trade{
		AssetID:     strings.TrimSpace(in.AssetID),
		Type:        strings.ToLower(strings.TrimSpace(in.Type)),
		Leverage:    in.Leverage,
		TargetPrice: in.TargetPrice,
		Quantity:    *in.Quantity,
		EntryPrice:  *in.EntryPrice,
		ExitPrice:   in.ExitPrice,
		EntryDate:   entry,
		Status:      status,
	}
	if trade.Leverage == nil {
		one := decimal.NewFromInt(1)
		trade.Leverage = &one
	}
	if in.ExitDate != "" {
		exit, err := parseDate(in.ExitDate)
		if err != nil {
			return models.Trade{}, fmt.Errorf("exit_date: %w", err)
		}
		trade.ExitDate = &exit
	}
	if in.ExitPrice != nil {
		pl := in.ExitPrice.Sub(trade.EntryPrice).Mul(trade.Quantity).Mul(*trade.Leverage).Round(models.AmountScale)
		trade.PL = &pl
	}
	return trade, nil
}

func (h *TradeHandler) list(c *gin.Context) {
	trades, err := h.Store.ListTrades(c.Request.Context())
	if err != nil {
		storeFailure(c, h.Logger, err, "Failed to fetch trades.")
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *TradeHandler) create(c *gin.Context) {
	var input TradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	trade, err := input.toTrade()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Store.CreateTrade(c.Request.Context(), &trade); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "Asset not found")
			return
		}
		storeFailure(c, h.Logger, err, "Failed to create trade.")
		return
	}
	c.JSON(http.StatusCreated, trade)
}
