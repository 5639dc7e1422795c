package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crypto-tracker/models"
	"crypto-tracker/quotes"
)

type QuoteSource interface {
	Quotes(ctx context.Context, refresh bool) (quotes.Snapshot, error)
}

type PriceHandler struct {
	Quotes QuoteSource
	Logger *zap.Logger
}

func (h *PriceHandler) Register(r *gin.RouterGroup) {
	r.GET("/prices", h.prices)
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

func (h *PriceHandler) prices(c *gin.Context) {
	snap, err := h.Quotes.Quotes(c.Request.Context(), queryBool(c, "refresh"))
	if err != nil {
		h.Logger.Error("fetch prices", zap.Error(err))
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "Failed to fetch current prices")
		return
	}
	if snap.Quotes == nil {
		snap.Quotes = map[string]models.Quote{}
	}
	c.JSON(http.StatusOK, snap)
}
