package service

import (
	"errors"
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/internal/app/repository"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrVariantNotFound  = errors.New("product variant not found")
	ErrVariantInactive  = errors.New("product variant is not available")
)

// CartOwner identifies who a cart belongs to: an authenticated user or
// a guest session, never both.
type CartOwner struct {
	UserID    *uint
	SessionID *string
}

func UserOwner(userID uint) CartOwner {
	return CartOwner{UserID: &userID}
}

func GuestOwner(sessionID string) CartOwner {
	return CartOwner{SessionID: &sessionID}
}

// CartTotals aggregates the cart's line totals. Taxes, shipping and
// discounts are future work; total equals subtotal for now.
type CartTotals struct {
	Subtotal float64 `json:"subtotal"`
	Total    float64 `json:"total"`
}

type CartService interface {
	GetCart(owner CartOwner) (*model.Cart, CartTotals, error)
	AddItem(owner CartOwner, variantID uint, quantity int) (*model.CartItem, error)
	UpdateItemQuantity(owner CartOwner, itemID uint, quantity int) (*model.CartItem, error)
	RemoveItem(owner CartOwner, itemID uint) error
	Clear(owner CartOwner) error
	Abandon(owner CartOwner) error
	MergeGuestCart(sessionID string, userID uint) error
	AbandonStaleCarts(ttl time.Duration) (int, error)
}

type cartService struct {
	db             *gorm.DB
	cartRepo       repository.CartRepository
	productRepo    repository.ProductRepository
	reservationSvc ReservationService
}

func NewCartService(
	db *gorm.DB,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	reservationSvc ReservationService,
) CartService {
	return &cartService{
		db:             db,
		cartRepo:       cartRepo,
		productRepo:    productRepo,
		reservationSvc: reservationSvc,
	}
}

// getOrCreateActiveCart returns the owner's active cart, creating it
// lazily on first access.
func (s *cartService) getOrCreateActiveCart(tx *gorm.DB, owner CartOwner) (*model.Cart, error) {
	repo := s.cartRepo.WithTx(tx)

	var (
		cart *model.Cart
		err  error
	)
	if owner.UserID != nil {
		cart, err = repo.FindActiveByUserID(*owner.UserID)
	} else {
		cart, err = repo.FindActiveBySessionID(*owner.SessionID)
	}
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &model.Cart{
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		Status:    model.CartStatusActive,
	}
	if err := repo.Create(created); err != nil {
		return nil, err
	}

	logger.Info("Cart created", map[string]interface{}{
		"cart_id":    created.ID,
		"user_id":    owner.UserID,
		"session_id": owner.SessionID,
	})
	return created, nil
}

func (s *cartService) GetCart(owner CartOwner) (*model.Cart, CartTotals, error) {
	var cart *model.Cart
	err := s.db.Transaction(func(tx *gorm.DB) error {
		c, err := s.getOrCreateActiveCart(tx, owner)
		if err != nil {
			return err
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, CartTotals{}, err
	}

	items, err := s.cartRepo.FindItemsByCartID(cart.ID)
	if err != nil {
		return nil, CartTotals{}, err
	}
	cart.Items = items

	var totals CartTotals
	for i := range items {
		totals.Subtotal += items[i].LineTotal()
	}
	totals.Total = totals.Subtotal

	return cart, totals, nil
}

// AddItem sets the cart line for a variant to the requested quantity,
// creating the line if needed. The line's stock hold is replaced with a
// fresh reservation for the requested quantity in the same transaction.
func (s *cartService) AddItem(owner CartOwner, variantID uint, quantity int) (*model.CartItem, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":    owner.UserID,
		"session_id": owner.SessionID,
		"variant_id": variantID,
		"quantity":   quantity,
	})

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	variant, err := s.productRepo.FindVariantByID(variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cannot add to cart: variant not found", map[string]interface{}{
				"variant_id": variantID,
			})
			return nil, ErrVariantNotFound
		}
		return nil, err
	}
	if !variant.IsActive() {
		logger.Warn("Cannot add to cart: variant inactive", map[string]interface{}{
			"variant_id": variantID,
		})
		return nil, ErrVariantInactive
	}

	var item *model.CartItem
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.cartRepo.WithTx(tx)

		cart, err := s.getOrCreateActiveCart(tx, owner)
		if err != nil {
			return err
		}

		var existing model.CartItem
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ? AND variant_id = ?", cart.ID, variantID).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.ReservationID != nil {
				if err := s.reservationSvc.Release(tx, *existing.ReservationID); err != nil {
					return err
				}
			}
			reservation, err := s.reservationSvc.Reserve(tx, variantID, quantity, CartReference(cart.ID))
			if err != nil {
				return err
			}
			existing.Quantity = quantity
			existing.UnitPrice = variant.Price
			existing.ReservationID = &reservation.ID
			if err := repo.UpdateItem(&existing); err != nil {
				return err
			}
			item = &existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			reservation, err := s.reservationSvc.Reserve(tx, variantID, quantity, CartReference(cart.ID))
			if err != nil {
				return err
			}
			created := model.CartItem{
				CartID:        cart.ID,
				VariantID:     variantID,
				Quantity:      quantity,
				UnitPrice:     variant.Price,
				ReservationID: &reservation.ID,
			}
			if err := repo.CreateItem(&created); err != nil {
				return err
			}
			item = &created
		default:
			return err
		}

		return repo.Touch(cart.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Cart item added successfully", map[string]interface{}{
		"cart_item_id": item.ID,
		"quantity":     item.Quantity,
	})
	return item, nil
}

// UpdateItemQuantity changes a line's quantity and re-syncs its
// reservation. The item must belong to the owner's active cart.
func (s *cartService) UpdateItemQuantity(owner CartOwner, itemID uint, quantity int) (*model.CartItem, error) {
	logger.Info("Updating cart item", map[string]interface{}{
		"cart_item_id": itemID,
		"quantity":     quantity,
	})

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var item *model.CartItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.cartRepo.WithTx(tx)

		cart, err := s.getOrCreateActiveCart(tx, owner)
		if err != nil {
			return err
		}

		var existing model.CartItem
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND cart_id = ?", itemID, cart.ID).
			First(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCartItemNotFound
			}
			return err
		}

		if existing.ReservationID != nil {
			if err := s.reservationSvc.Release(tx, *existing.ReservationID); err != nil {
				return err
			}
		}
		reservation, err := s.reservationSvc.Reserve(tx, existing.VariantID, quantity, CartReference(cart.ID))
		if err != nil {
			return err
		}

		existing.Quantity = quantity
		existing.ReservationID = &reservation.ID
		if err := repo.UpdateItem(&existing); err != nil {
			return err
		}
		item = &existing

		return repo.Touch(cart.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Cart item updated successfully", map[string]interface{}{
		"cart_item_id": item.ID,
		"quantity":     item.Quantity,
	})
	return item, nil
}

// RemoveItem deletes a line and releases its reservation.
func (s *cartService) RemoveItem(owner CartOwner, itemID uint) error {
	logger.Info("Removing cart item", map[string]interface{}{
		"cart_item_id": itemID,
	})

	return s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.cartRepo.WithTx(tx)

		cart, err := s.getOrCreateActiveCart(tx, owner)
		if err != nil {
			return err
		}

		var item model.CartItem
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND cart_id = ?", itemID, cart.ID).
			First(&item).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCartItemNotFound
			}
			return err
		}

		if item.ReservationID != nil {
			if err := s.reservationSvc.Release(tx, *item.ReservationID); err != nil {
				return err
			}
		}
		if err := repo.DeleteItem(item.ID); err != nil {
			return err
		}

		return repo.Touch(cart.ID)
	})
}

// Clear deletes all lines and releases all reservations. The cart stays
// active.
func (s *cartService) Clear(owner CartOwner) error {
	logger.Info("Clearing cart", map[string]interface{}{
		"user_id":    owner.UserID,
		"session_id": owner.SessionID,
	})

	return s.db.Transaction(func(tx *gorm.DB) error {
		cart, err := s.getOrCreateActiveCart(tx, owner)
		if err != nil {
			return err
		}
		return s.clearCartTx(tx, cart.ID)
	})
}

func (s *cartService) clearCartTx(tx *gorm.DB, cartID uint) error {
	repo := s.cartRepo.WithTx(tx)
	if err := s.reservationSvc.ReleaseByReference(tx, CartReference(cartID)); err != nil {
		return err
	}
	if err := repo.DeleteItemsByCartID(cartID); err != nil {
		return err
	}
	return repo.Touch(cartID)
}

// Abandon releases the cart's reservations and marks it abandoned. Line
// items are kept; the next cart access starts a fresh active cart.
func (s *cartService) Abandon(owner CartOwner) error {
	logger.Info("Abandoning cart", map[string]interface{}{
		"user_id":    owner.UserID,
		"session_id": owner.SessionID,
	})

	return s.db.Transaction(func(tx *gorm.DB) error {
		cart, err := s.getOrCreateActiveCart(tx, owner)
		if err != nil {
			return err
		}
		return s.abandonCartTx(tx, cart.ID)
	})
}

func (s *cartService) abandonCartTx(tx *gorm.DB, cartID uint) error {
	if err := s.reservationSvc.ReleaseByReference(tx, CartReference(cartID)); err != nil {
		return err
	}
	return s.cartRepo.WithTx(tx).UpdateStatus(cartID, model.CartStatusAbandoned)
}

// MergeGuestCart folds the guest session's cart into the user's active
// cart inside one transaction: quantities are summed per variant and
// each merged line is re-reserved at the summed quantity. Any shortfall
// aborts the whole merge. On success the guest cart and its items are
// deleted.
func (s *cartService) MergeGuestCart(sessionID string, userID uint) error {
	logger.Info("Merging guest cart into user cart", map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
	})

	return s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.cartRepo.WithTx(tx)

		var guestCart model.Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ? AND user_id IS NULL AND status = ?", sessionID, model.CartStatusActive).
			First(&guestCart).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Nothing to merge.
				return nil
			}
			return err
		}

		userCart, err := s.getOrCreateActiveCart(tx, UserOwner(userID))
		if err != nil {
			return err
		}

		var guestItems []model.CartItem
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ?", guestCart.ID).
			Order("id").
			Find(&guestItems).Error
		if err != nil {
			return err
		}

		for i := range guestItems {
			guestItem := &guestItems[i]

			// Release both carts' holds for this variant before
			// re-reserving the summed quantity, so the merge does not
			// compete with its own reservations.
			if guestItem.ReservationID != nil {
				if err := s.reservationSvc.Release(tx, *guestItem.ReservationID); err != nil {
					return err
				}
			}

			var userItem model.CartItem
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("cart_id = ? AND variant_id = ?", userCart.ID, guestItem.VariantID).
				First(&userItem).Error

			switch {
			case err == nil:
				if userItem.ReservationID != nil {
					if err := s.reservationSvc.Release(tx, *userItem.ReservationID); err != nil {
						return err
					}
				}
				merged := userItem.Quantity + guestItem.Quantity
				reservation, err := s.reservationSvc.Reserve(tx, userItem.VariantID, merged, CartReference(userCart.ID))
				if err != nil {
					return err
				}
				userItem.Quantity = merged
				userItem.ReservationID = &reservation.ID
				if err := repo.UpdateItem(&userItem); err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				reservation, err := s.reservationSvc.Reserve(tx, guestItem.VariantID, guestItem.Quantity, CartReference(userCart.ID))
				if err != nil {
					return err
				}
				created := model.CartItem{
					CartID:        userCart.ID,
					VariantID:     guestItem.VariantID,
					Quantity:      guestItem.Quantity,
					UnitPrice:     guestItem.UnitPrice,
					ReservationID: &reservation.ID,
				}
				if err := repo.CreateItem(&created); err != nil {
					return err
				}
			default:
				return err
			}
		}

		// Guest state goes away entirely after a successful merge.
		if err := repo.DeleteItemsByCartID(guestCart.ID); err != nil {
			return err
		}
		if err := repo.Delete(guestCart.ID); err != nil {
			return err
		}

		return repo.Touch(userCart.ID)
	})
}

// AbandonStaleCarts abandons every active cart untouched for longer
// than ttl, releasing its reservations. Idempotent: a re-run only sees
// carts still active.
func (s *cartService) AbandonStaleCarts(ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)

	stale, err := s.cartRepo.FindStaleActive(cutoff)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range stale {
		cartID := stale[i].ID
		abandoned := false
		err := s.db.Transaction(func(tx *gorm.DB) error {
			// Re-check under lock: the cart may have been touched or
			// checked out since the sweep selected it.
			var cart model.Cart
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ? AND status = ? AND updated_at < ?", cartID, model.CartStatusActive, cutoff).
				First(&cart).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			abandoned = true
			return s.abandonCartTx(tx, cart.ID)
		})
		if err != nil {
			logger.Error("Failed to abandon stale cart", err, map[string]interface{}{
				"cart_id": cartID,
			})
			return count, err
		}
		if abandoned {
			count++
		}
	}

	if count > 0 {
		logger.Info("Stale carts abandoned", map[string]interface{}{
			"count": count,
		})
	}
	return count, nil
}
