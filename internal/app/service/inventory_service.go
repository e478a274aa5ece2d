package service

import (
	"errors"
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/repository"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

// StockView reports a variant's stock position: on-hand quantity,
// quantity held by active unexpired reservations, and the difference.
type StockView struct {
	VariantID uint   `json:"variant_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

type InventoryService interface {
	ListStock() ([]StockView, error)
	GetStock(variantID uint) (*StockView, error)
}

type inventoryService struct {
	inventoryRepo repository.InventoryRepository
	productRepo   repository.ProductRepository
}

func NewInventoryService(
	inventoryRepo repository.InventoryRepository,
	productRepo repository.ProductRepository,
) InventoryService {
	return &inventoryService{
		inventoryRepo: inventoryRepo,
		productRepo:   productRepo,
	}
}

func (s *inventoryService) ListStock() ([]StockView, error) {
	items, err := s.inventoryRepo.FindAllStock()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	views := make([]StockView, 0, len(items))
	for i := range items {
		item := &items[i]
		reserved, err := s.inventoryRepo.ReservedQuantity(item.VariantID, now)
		if err != nil {
			return nil, err
		}
		views = append(views, StockView{
			VariantID: item.VariantID,
			SKU:       item.Variant.SKU,
			Quantity:  item.Quantity,
			Reserved:  reserved,
			Available: item.Quantity - reserved,
		})
	}
	return views, nil
}

func (s *inventoryService) GetStock(variantID uint) (*StockView, error) {
	item, err := s.inventoryRepo.FindStockByVariantID(variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockNotFound
		}
		logger.Error("Failed to fetch stock item", err, map[string]interface{}{
			"variant_id": variantID,
		})
		return nil, err
	}

	variant, err := s.productRepo.FindVariantByID(variantID)
	if err != nil {
		return nil, err
	}

	reserved, err := s.inventoryRepo.ReservedQuantity(variantID, time.Now())
	if err != nil {
		return nil, err
	}

	return &StockView{
		VariantID: variantID,
		SKU:       variant.SKU,
		Quantity:  item.Quantity,
		Reserved:  reserved,
		Available: item.Quantity - reserved,
	}, nil
}
