package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"crypto-tracker/database"
	"crypto-tracker/models"
)

const maxBatchAssets = 500

type AssetStore interface {
	ListAssets(ctx context.Context) ([]models.Asset, error)
	CreateAsset(ctx context.Context, asset *models.Asset) error
	CreateAssets(ctx context.Context, assets []models.Asset) error
	UpdateAsset(ctx context.Context, id string, quantity decimal.Decimal, closed bool) (*models.Asset, error)
}

type AssetHandler struct {
	Store  AssetStore
	Logger *zap.Logger
}

func (h *AssetHandler) Register(r *gin.RouterGroup, auth gin.HandlerFunc) {
	r.GET("/assets", h.list)
	r.POST("/assets", auth, h.create)
	r.POST("/assets/batch", auth, h.createBatch)
	r.PUT("/assets/:id", auth, h.update)
}

type AssetInput struct {
	Name           string           `json:"name" binding:"required"`
	Symbol         string           `json:"symbol" binding:"required"`
	Blockchain     string           `json:"blockchain" binding:"required"`
	Wallet         string           `json:"wallet" binding:"required"`
	Quantity       *decimal.Decimal `json:"quantity" binding:"required"`
	PurchasePrice  *decimal.Decimal `json:"purchasePrice" binding:"required"`
	PurchaseDate   string           `json:"purchaseDate" binding:"required"`
	Classification string           `json:"classification"`
	Narrative      []string         `json:"narrative"`
	Origin         string           `json:"origin"`
	Type           string           `json:"type"`
}

// QuantityInput corrects the held quantity of a position, e.g. after a
// transfer the tracker did not see. Zero closes the position.
type QuantityInput struct {
	Quantity *decimal.Decimal `json:"quantity" binding:"required"`
}

type BatchInput struct {
	Assets []AssetInput `json:"assets" binding:"required,min=1,dive"`
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// parseDate accepts RFC 3339 timestamps and the plain dates sent by
// HTML date inputs.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// checkScale rejects amounts with more fractional digits than their column
// stores.
func checkScale(amounts map[string]decimal.Decimal, scale int32) error {
	for field, d := range amounts {
		if !models.FitsScale(d, scale) {
			return fmt.Errorf("%s must have at most %d decimal places", field, scale)
		}
	}
	return nil
}

// toAsset checks the numeric fields and builds the model with tag defaults.
func (in AssetInput) toAsset() (models.Asset, error) {
	if in.Quantity.IsNegative() {
		return models.Asset{}, fmt.Errorf("quantity must not be negative")
	}
	if in.PurchasePrice.IsNegative() {
		return models.Asset{}, fmt.Errorf("purchasePrice must not be negative")
	}
	if err := checkScale(map[string]decimal.Decimal{
		"quantity":      *in.Quantity,
		"purchasePrice": *in.PurchasePrice,
	}, models.AmountScale); err != nil {
		return models.Asset{}, err
	}
	date, err := parseDate(in.PurchaseDate)
	if err != nil {
		return models.Asset{}, err
	}

	asset := models.Asset{
		Name:           strings.TrimSpace(in.Name),
		Symbol:         strings.TrimSpace(in.Symbol),
		Blockchain:     strings.TrimSpace(in.Blockchain),
		Wallet:         strings.TrimSpace(in.Wallet),
		Quantity:       *in.Quantity,
		PurchasePrice:  *in.PurchasePrice,
		PurchaseDate:   date,
		Classification: strings.TrimSpace(in.Classification),
		Narrative:      datatypes.JSONSlice[string](in.Narrative),
		Origin:         strings.TrimSpace(in.Origin),
		Type:           strings.ToLower(strings.TrimSpace(in.Type)),
	}
	asset.ApplyDefaults()
	return asset, nil
}

func (h *AssetHandler) list(c *gin.Context) {
	items, err := h.Store.ListAssets(c.Request.Context())
	if err != nil {
		storeFailure(c, h.Logger, err, "Database connection failed. Please ensure your database is properly configured.")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *AssetHandler) create(c *gin.Context) {
	var input AssetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := input.toAsset()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Store.CreateAsset(c.Request.Context(), &asset); err != nil {
		storeFailure(c, h.Logger, err, "Failed to create asset. Check input data.")
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func (h *AssetHandler) createBatch(c *gin.Context) {
	var input BatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(input.Assets) > maxBatchAssets {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("at most %d assets per batch", maxBatchAssets))
		return
	}

	assets := make([]models.Asset, 0, len(input.Assets))
	for i, in := range input.Assets {
		asset, err := in.toAsset()
		if err != nil {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("assets[%d]: %v", i, err))
			return
		}
		assets = append(assets, asset)
	}

	if err := h.Store.CreateAssets(c.Request.Context(), assets); err != nil {
		storeFailure(c, h.Logger, err, "Failed to import assets.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(assets), "assets": assets})
}

func (h *AssetHandler) update(c *gin.Context) {
	var input QuantityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	qty := *input.Quantity
	if qty.IsNegative() {
		abortWithError(c, http.StatusBadRequest, "quantity must not be negative")
		return
	}
	if err := checkScale(map[string]decimal.Decimal{"quantity": qty}, models.AmountScale); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	asset, err := h.Store.UpdateAsset(c.Request.Context(), c.Param("id"), qty, qty.IsZero())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, asset)
	case errors.Is(err, database.ErrNotFound):
		abortWithError(c, http.StatusNotFound, "Asset not found")
	case errors.Is(err, database.ErrInvalidPosition):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		storeFailure(c, h.Logger, err, "Failed to update asset.")
	}
}
