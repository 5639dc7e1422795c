package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crypto-tracker/models"
	"crypto-tracker/valuation"
)

type PortfolioStore interface {
	ListAssets(ctx context.Context) ([]models.Asset, error)
}

type PortfolioHandler struct {
	Store  PortfolioStore
	Quotes QuoteSource
	Logger *zap.Logger
}

func (h *PortfolioHandler) Register(r *gin.RouterGroup) {
	r.GET("/portfolio/:view", h.view)
	r.GET("/portfolio/:view/bubbles", h.bubbles)
}

type portfolioData struct {
	view      valuation.View
	assets    []models.Asset
	quotes    map[string]models.Quote
	updatedAt *time.Time
	quoteErr  string
}

// load resolves the view, its assets and the current quotes. A quote failure
// does not fail the request: positions fall back to their purchase price and
// the error is reported alongside the figures. It writes the error response
// itself and returns false when the request cannot be served.
func (h *PortfolioHandler) load(c *gin.Context) (portfolioData, bool) {
	view, err := valuation.ParseView(c.Param("view"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return portfolioData{}, false
	}

	ctx := c.Request.Context()
	assets, err := h.Store.ListAssets(ctx)
	if err != nil {
		storeFailure(c, h.Logger, err, "Database connection failed. Please ensure your database is properly configured.")
		return portfolioData{}, false
	}

	data := portfolioData{
		view:   view,
		assets: view.Filter(assets, queryBool(c, "include_closed")),
		quotes: map[string]models.Quote{},
	}

	snap, err := h.Quotes.Quotes(ctx, queryBool(c, "refresh"))
	if err != nil {
		h.Logger.Warn("portfolio without quotes", zap.String("view", string(view)), zap.Error(err))
		data.quoteErr = "Failed to fetch current prices"
		return data, true
	}
	if snap.Quotes != nil {
		data.quotes = snap.Quotes
	}
	if !snap.UpdatedAt.IsZero() {
		at := snap.UpdatedAt
		data.updatedAt = &at
	}
	return data, true
}

func (d portfolioData) body() gin.H {
	body := gin.H{"view": d.view, "quotes_updated_at": d.updatedAt}
	if d.quoteErr != "" {
		body["quotes_error"] = d.quoteErr
	}
	return body
}

func (h *PortfolioHandler) view(c *gin.Context) {
	data, ok := h.load(c)
	if !ok {
		return
	}
	body := data.body()
	body["summary"] = valuation.Summarize(data.assets, data.quotes)
	body["positions"] = valuation.ValuePositions(data.assets, data.quotes)
	body["aggregates"] = valuation.AggregateBySymbol(data.assets, data.quotes)
	c.JSON(http.StatusOK, body)
}

func (h *PortfolioHandler) bubbles(c *gin.Context) {
	data, ok := h.load(c)
	if !ok {
		return
	}
	body := data.body()
	body["data"] = valuation.AggregateBySymbol(data.assets, data.quotes)
	c.JSON(http.StatusOK, body)
}
