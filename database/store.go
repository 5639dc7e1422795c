package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crypto-tracker/models"
)

const importBatchSize = 100

// ClosePlan builds the Trade for a close from the locked asset row. Errors it
// returns abort the close and are passed back to the caller unchanged.
type ClosePlan func(asset models.Asset) (*models.Trade, error)

// Store is the PostgreSQL-backed position store.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListAssets(ctx context.Context) ([]models.Asset, error) {
	var items []models.Asset
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

// ListOpenSymbols returns the distinct upper-cased symbols of open positions.
func (s *Store) ListOpenSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&models.Asset{}).
		Where("is_closed = ?", false).
		Distinct().
		Pluck("UPPER(TRIM(symbol))", &symbols).Error
	if err != nil {
		return nil, translate(err)
	}
	out := symbols[:0]
	for _, sym := range symbols {
		if strings.TrimSpace(sym) != "" {
			out = append(out, sym)
		}
	}
	return out, nil
}

func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	return translate(s.db.WithContext(ctx).Create(asset).Error)
}

// CreateAssets inserts every asset or none of them.
func (s *Store) CreateAssets(ctx context.Context, assets []models.Asset) error {
	for i := range assets {
		assets[i].ApplyDefaults()
	}
	return translate(CreateInBatches(s.db.WithContext(ctx), assets, importBatchSize))
}

func (s *Store) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.WithContext(ctx).First(&asset, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &asset, nil
}

// UpdateAsset overwrites quantity and the closed flag. A position is closed
// exactly when its quantity is zero; any other pair, a negative quantity or
// one finer than the stored scale is rejected with ErrInvalidPosition.
func (s *Store) UpdateAsset(ctx context.Context, id string, quantity decimal.Decimal, closed bool) (*models.Asset, error) {
	switch {
	case quantity.IsNegative():
		return nil, fmt.Errorf("%w: negative quantity %s", ErrInvalidPosition, quantity)
	case !models.FitsScale(quantity, models.AmountScale):
		return nil, fmt.Errorf("%w: quantity %s exceeds %d decimal places", ErrInvalidPosition, quantity, models.AmountScale)
	case closed != quantity.IsZero():
		return nil, fmt.Errorf("%w: closed=%t with quantity %s", ErrInvalidPosition, closed, quantity)
	}

	res := s.db.WithContext(ctx).
		Model(&models.Asset{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity":  quantity,
			"is_closed": closed,
		})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetAsset(ctx, id)
}

// CreateTrade inserts a trade after checking that its asset exists.
func (s *Store) CreateTrade(ctx context.Context, trade *models.Trade) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Asset{}).Where("id = ?", trade.AssetID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return tx.Omit("Asset").Create(trade).Error
	})
	return translate(err)
}

// ListTrades returns every trade with its asset, most recent exit first.
func (s *Store) ListTrades(ctx context.Context) ([]models.Trade, error) {
	var items []models.Trade
	err := s.db.WithContext(ctx).
		Preload("Asset").
		Order("exit_date DESC NULLS LAST").
		Order("entry_date DESC").
		Find(&items).Error
	if err != nil {
		return nil, translate(err)
	}
	return items, nil
}

// ClosePosition decrements the asset by quantity and records the trade built
// by plan, in one transaction. The asset row is locked for the duration and
// the decrement is conditional on enough quantity remaining, so concurrent
// closes on the same asset cannot both succeed past zero.
func (s *Store) ClosePosition(ctx context.Context, id string, quantity decimal.Decimal, plan ClosePlan) (*models.Trade, *models.Asset, error) {
	var (
		trade   *models.Trade
		updated models.Asset
		planErr error
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var asset models.Asset
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&asset, "id = ?", id).Error; err != nil {
			return err
		}

		trade, planErr = plan(asset)
		if planErr != nil {
			return planErr
		}

		res := tx.Model(&models.Asset{}).
			Where("id = ? AND quantity >= ? AND is_closed = ?", id, quantity, false).
			Updates(map[string]interface{}{
				"quantity":  gorm.Expr("quantity - ?", quantity),
				"is_closed": gorm.Expr("quantity - ? = 0", quantity),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientQuantity
		}

		if err := tx.Omit("Asset").Create(trade).Error; err != nil {
			return err
		}
		return tx.First(&updated, "id = ?", id).Error
	})
	if planErr != nil {
		return nil, nil, planErr
	}
	if err != nil {
		return nil, nil, translate(err)
	}
	return trade, &updated, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return translate(err)
	}
	return translate(sqlDB.PingContext(ctx))
}
