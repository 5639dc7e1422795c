package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crypto-tracker/database"
	"crypto-tracker/lifecycle"
)

type Closer interface {
	Close(ctx context.Context, req lifecycle.CloseRequest) (*lifecycle.Result, error)
}

type CloseHandler struct {
	Service Closer
	Logger  *zap.Logger
}

func (h *CloseHandler) Register(r *gin.RouterGroup, auth gin.HandlerFunc) {
	r.POST("/close", auth, h.close)
}

func (h *CloseHandler) close(c *gin.Context) {
	var req lifecycle.CloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "All fields are required")
		return
	}

	res, err := h.Service.Close(c.Request.Context(), req)
	if err != nil {
		var verr *lifecycle.ValidationError
		switch {
		case errors.As(err, &verr):
			abortWithError(c, http.StatusBadRequest, verr.Error())
		case errors.Is(err, database.ErrNotFound):
			abortWithError(c, http.StatusNotFound, "Asset not found")
		case errors.Is(err, database.ErrInsufficientQuantity):
			abortWithError(c, http.StatusBadRequest, "Insufficient quantity")
		default:
			h.Logger.Error("close position", zap.String("asset_id", req.ID), zap.Error(err))
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "Failed to close position")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Position closed successfully",
		"trade":   res.Trade,
		"asset":   res.Asset,
	})
}
