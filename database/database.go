package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"crypto-tracker/models"
)

var (
	ErrInvalidBatchSize     = errors.New("batch size must be positive")
	ErrNotFound             = errors.New("record not found")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrStoreUnavailable     = errors.New("store unavailable")
	ErrInvalidPosition      = errors.New("invalid position state")
)

// AutoMigrate creates or updates the assets and trades tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Asset{},
		&models.Trade{},
	)
}

// CreateInBatches inserts assets in chunks of batchSize inside a single
// transaction. Either every chunk is committed or none is.
func CreateInBatches(db *gorm.DB, assets []models.Asset, batchSize int) error {
	if batchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if len(assets) == 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(assets); start += batchSize {
			end := min(start+batchSize, len(assets))
			if err := tx.Create(assets[start:end]).Error; err != nil {
				return fmt.Errorf("insert assets %d-%d: %w", start, end-1, err)
			}
		}
		return nil
	})
}

// translate maps gorm errors onto the store's sentinel errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInsufficientQuantity), errors.Is(err, ErrInvalidPosition),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
