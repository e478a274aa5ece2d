package repository

import (
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

// CartRepository persists carts and cart items. Lookups that must run
// under a row lock stay in the service layer; everything else goes
// through here, scoped to the caller's transaction via WithTx.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository

	Create(cart *model.Cart) error
	FindActiveByUserID(userID uint) (*model.Cart, error)
	FindActiveBySessionID(sessionID string) (*model.Cart, error)
	FindStaleActive(cutoff time.Time) ([]model.Cart, error)
	UpdateStatus(cartID uint, status model.CartStatus) error
	Touch(cartID uint) error
	Delete(cartID uint) error

	FindItemsByCartID(cartID uint) ([]model.CartItem, error)
	CreateItem(item *model.CartItem) error
	UpdateItem(item *model.CartItem) error
	DeleteItem(id uint) error
	DeleteItemsByCartID(cartID uint) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

// WithTx returns a repository bound to tx so its writes join the
// caller's transaction.
func (r *cartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &cartRepository{db: tx}
}

func (r *cartRepository) Create(cart *model.Cart) error {
	if err := r.db.Create(cart).Error; err != nil {
		logger.Error("Failed to create cart in database", err, map[string]interface{}{
			"user_id":    cart.UserID,
			"session_id": cart.SessionID,
		})
		return err
	}

	logger.Debug("Cart created in database", map[string]interface{}{
		"cart_id": cart.ID,
	})
	return nil
}

func (r *cartRepository) FindActiveByUserID(userID uint) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.Where("user_id = ? AND session_id IS NULL AND status = ?", userID, model.CartStatusActive).
		Preload("Items").
		Preload("Items.Variant").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindActiveBySessionID(sessionID string) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.Where("session_id = ? AND user_id IS NULL AND status = ?", sessionID, model.CartStatusActive).
		Preload("Items").
		Preload("Items.Variant").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindStaleActive(cutoff time.Time) ([]model.Cart, error) {
	var carts []model.Cart
	err := r.db.Where("status = ? AND updated_at < ?", model.CartStatusActive, cutoff).
		Find(&carts).Error
	if err != nil {
		logger.Error("Failed to find stale carts in database", err, map[string]interface{}{
			"cutoff": cutoff,
		})
		return nil, err
	}
	return carts, nil
}

func (r *cartRepository) UpdateStatus(cartID uint, status model.CartStatus) error {
	if err := r.db.Model(&model.Cart{}).Where("id = ?", cartID).Update("status", status).Error; err != nil {
		logger.Error("Failed to update cart status in database", err, map[string]interface{}{
			"cart_id": cartID,
			"status":  status,
		})
		return err
	}
	return nil
}

// Touch bumps the cart's updated_at so the stale sweep sees activity on
// item mutations that do not write the cart row itself.
func (r *cartRepository) Touch(cartID uint) error {
	return r.db.Model(&model.Cart{}).Where("id = ?", cartID).Update("updated_at", time.Now()).Error
}

func (r *cartRepository) Delete(cartID uint) error {
	if err := r.db.Delete(&model.Cart{}, cartID).Error; err != nil {
		logger.Error("Failed to delete cart from database", err, map[string]interface{}{
			"cart_id": cartID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) FindItemsByCartID(cartID uint) ([]model.CartItem, error) {
	var items []model.CartItem
	err := r.db.Where("cart_id = ?", cartID).
		Preload("Variant").
		Order("id").
		Find(&items).Error
	if err != nil {
		logger.Error("Failed to find cart items in database", err, map[string]interface{}{
			"cart_id": cartID,
		})
		return nil, err
	}
	return items, nil
}

func (r *cartRepository) CreateItem(item *model.CartItem) error {
	if err := r.db.Create(item).Error; err != nil {
		logger.Error("Failed to create cart item in database", err, map[string]interface{}{
			"cart_id":    item.CartID,
			"variant_id": item.VariantID,
			"quantity":   item.Quantity,
		})
		return err
	}

	logger.Debug("Cart item created in database", map[string]interface{}{
		"cart_item_id": item.ID,
		"cart_id":      item.CartID,
	})
	return nil
}

func (r *cartRepository) UpdateItem(item *model.CartItem) error {
	if err := r.db.Save(item).Error; err != nil {
		logger.Error("Failed to update cart item in database", err, map[string]interface{}{
			"cart_item_id": item.ID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) DeleteItem(id uint) error {
	if err := r.db.Delete(&model.CartItem{}, id).Error; err != nil {
		logger.Error("Failed to delete cart item from database", err, map[string]interface{}{
			"cart_item_id": id,
		})
		return err
	}
	return nil
}

func (r *cartRepository) DeleteItemsByCartID(cartID uint) error {
	if err := r.db.Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
		logger.Error("Failed to delete cart items from database", err, map[string]interface{}{
			"cart_id": cartID,
		})
		return err
	}
	return nil
}
