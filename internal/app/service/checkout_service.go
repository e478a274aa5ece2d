package service

import (
	"errors"
	"fmt"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrEmptyCart = errors.New("cart is empty")

// CheckoutService converts a user's active cart into a committed order.
// Everything happens in one transaction: stock is re-validated per line
// under row locks, reservations become deductions, the order and its
// lines are written and the cart flips to checked_out. Any failure
// rolls the whole attempt back with reservations untouched.
type CheckoutService interface {
	Checkout(userID uint) (*model.Order, error)
}

type checkoutService struct {
	db             *gorm.DB
	reservationSvc ReservationService
}

func NewCheckoutService(db *gorm.DB, reservationSvc ReservationService) CheckoutService {
	return &checkoutService{
		db:             db,
		reservationSvc: reservationSvc,
	}
}

func (s *checkoutService) Checkout(userID uint) (*model.Order, error) {
	logger.Info("Starting checkout", map[string]interface{}{
		"user_id": userID,
	})

	var order *model.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cart model.Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND session_id IS NULL AND status = ?", userID, model.CartStatusActive).
			First(&cart).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEmptyCart
			}
			return err
		}

		var items []model.CartItem
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ?", cart.ID).
			Order("id").
			Find(&items).Error
		if err != nil {
			return err
		}
		if len(items) == 0 {
			logger.Warn("Checkout rejected: cart is empty", map[string]interface{}{
				"user_id": userID,
				"cart_id": cart.ID,
			})
			return ErrEmptyCart
		}

		var (
			total      float64
			orderItems []model.OrderItem
		)
		reference := CartReference(cart.ID)

		for i := range items {
			item := &items[i]

			var variant model.ProductVariant
			if err := tx.Preload("Product").First(&variant, item.VariantID).Error; err != nil {
				return err
			}

			if err := s.reservationSvc.ConvertToOrder(tx, item, reference); err != nil {
				return err
			}

			orderItems = append(orderItems, model.OrderItem{
				VariantID:    item.VariantID,
				ProductTitle: variant.Product.Title,
				VariantSKU:   variant.SKU,
				Quantity:     item.Quantity,
				UnitPrice:    item.UnitPrice,
			})
			total += item.LineTotal()
		}

		var user model.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}

		created := &model.Order{
			UserID: userID,
			Email:  user.Email,
			Status: model.OrderStatusPending,
			Total:  total,
			Items:  orderItems,
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}

		// User-facing order number derives from the row ID, so it is
		// assigned after the insert.
		created.Number = fmt.Sprintf("ORD-%06d", created.ID)
		if err := tx.Model(created).Update("number", created.Number).Error; err != nil {
			return err
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&cart).Update("status", model.CartStatusCheckedOut).Error; err != nil {
			return err
		}

		order = created
		return nil
	})
	if err != nil {
		logger.Warn("Checkout failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}

	logger.Info("Checkout completed successfully", map[string]interface{}{
		"user_id":    userID,
		"order_id":   order.ID,
		"order_no":   order.Number,
		"total":      order.Total,
		"item_count": len(order.Items),
	})
	return order, nil
}
