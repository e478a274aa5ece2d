package repository

import (
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type InventoryRepository interface {
	WithTx(tx *gorm.DB) InventoryRepository

	FindAllStock() ([]model.StockItem, error)
	FindStockByVariantID(variantID uint) (*model.StockItem, error)
	CreateStock(item *model.StockItem) error
	ReservedQuantity(variantID uint, now time.Time) (int, error)
	FindExpiredActiveReservations(now time.Time) ([]model.StockReservation, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

// WithTx returns a repository bound to tx so its reads and writes join
// the caller's transaction.
func (r *inventoryRepository) WithTx(tx *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: tx}
}

func (r *inventoryRepository) FindAllStock() ([]model.StockItem, error) {
	var items []model.StockItem
	err := r.db.Preload("Variant").Order("id").Find(&items).Error
	if err != nil {
		logger.Error("Failed to find stock items in database", err, nil)
		return nil, err
	}
	return items, nil
}

func (r *inventoryRepository) FindStockByVariantID(variantID uint) (*model.StockItem, error) {
	var item model.StockItem
	if err := r.db.Where("variant_id = ?", variantID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *inventoryRepository) CreateStock(item *model.StockItem) error {
	if err := r.db.Create(item).Error; err != nil {
		logger.Error("Failed to create stock item in database", err, map[string]interface{}{
			"variant_id": item.VariantID,
		})
		return err
	}
	return nil
}

// ReservedQuantity sums active, unexpired reservations for a variant.
// Expired rows count as inactive even before a sweep reclaims them.
func (r *inventoryRepository) ReservedQuantity(variantID uint, now time.Time) (int, error) {
	var reserved int64
	err := r.db.Model(&model.StockReservation{}).
		Where("variant_id = ? AND state = ?", variantID, model.ReservationStateActive).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&reserved).Error
	if err != nil {
		logger.Error("Failed to sum reservations in database", err, map[string]interface{}{
			"variant_id": variantID,
		})
		return 0, err
	}
	return int(reserved), nil
}

func (r *inventoryRepository) FindExpiredActiveReservations(now time.Time) ([]model.StockReservation, error) {
	var reservations []model.StockReservation
	err := r.db.Where("state = ? AND expires_at IS NOT NULL AND expires_at < ?",
		model.ReservationStateActive, now).
		Find(&reservations).Error
	if err != nil {
		logger.Error("Failed to find expired reservations in database", err, nil)
		return nil, err
	}
	return reservations, nil
}
