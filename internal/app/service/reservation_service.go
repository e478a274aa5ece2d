package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/internal/app/repository"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient available stock")
	ErrStockNotFound     = errors.New("stock item not found")
)

// ReservationService manages time-bounded stock holds. All mutating
// methods take the caller's transaction handle so reservation writes
// commit or roll back together with the cart mutation that caused them.
//
// Availability is always computed as on-hand quantity minus the sum of
// active, unexpired reservations; expired rows stop counting the moment
// they lapse, whether or not the reclaim sweep has run.
type ReservationService interface {
	Reserve(tx *gorm.DB, variantID uint, quantity int, reference string) (*model.StockReservation, error)
	Release(tx *gorm.DB, reservationID uint) error
	ReleaseByReference(tx *gorm.DB, reference string) error
	Available(tx *gorm.DB, variantID uint) (int, error)
	ConvertToOrder(tx *gorm.DB, item *model.CartItem, reference string) error
	ReclaimExpired() (int, error)
}

type reservationService struct {
	db            *gorm.DB
	inventoryRepo repository.InventoryRepository
	ttl           time.Duration
}

func NewReservationService(db *gorm.DB, inventoryRepo repository.InventoryRepository, ttl time.Duration) ReservationService {
	return &reservationService{db: db, inventoryRepo: inventoryRepo, ttl: ttl}
}

// CartReference builds the reservation reference for a cart.
func CartReference(cartID uint) string {
	return fmt.Sprintf("cart:%d", cartID)
}

func (s *reservationService) lockStock(tx *gorm.DB, variantID uint) (*model.StockItem, error) {
	var stock model.StockItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("variant_id = ?", variantID).
		First(&stock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStockNotFound
		}
		return nil, err
	}
	return &stock, nil
}

func (s *reservationService) reservedQuantity(tx *gorm.DB, variantID uint, excludeID *uint, now time.Time) (int, error) {
	query := tx.Model(&model.StockReservation{}).
		Where("variant_id = ? AND state = ?", variantID, model.ReservationStateActive).
		Where("expires_at IS NULL OR expires_at > ?", now)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var reserved int64
	if err := query.Select("COALESCE(SUM(quantity), 0)").Scan(&reserved).Error; err != nil {
		return 0, err
	}
	return int(reserved), nil
}

// Reserve places a hold of quantity against the variant's stock. The
// stock row is locked first so concurrent reserves serialize; on
// shortfall nothing is written.
func (s *reservationService) Reserve(tx *gorm.DB, variantID uint, quantity int, reference string) (*model.StockReservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	stock, err := s.lockStock(tx, variantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	reserved, err := s.reservedQuantity(tx, variantID, nil, now)
	if err != nil {
		return nil, err
	}

	available := stock.Quantity - reserved
	if quantity > available {
		logger.Warn("Reservation rejected: insufficient available stock", map[string]interface{}{
			"variant_id": variantID,
			"requested":  quantity,
			"available":  available,
		})
		return nil, ErrInsufficientStock
	}

	expiresAt := now.Add(s.ttl)
	reservation := &model.StockReservation{
		VariantID: variantID,
		Quantity:  quantity,
		Reference: reference,
		State:     model.ReservationStateActive,
		ExpiresAt: &expiresAt,
	}
	if err := tx.Create(reservation).Error; err != nil {
		logger.Error("Failed to create reservation", err, map[string]interface{}{
			"variant_id": variantID,
			"quantity":   quantity,
		})
		return nil, err
	}

	logger.Debug("Reservation created", map[string]interface{}{
		"reservation_id": reservation.ID,
		"variant_id":     variantID,
		"quantity":       quantity,
		"expires_at":     expiresAt,
	})
	return reservation, nil
}

// Release marks a reservation released. No-op when the reservation is
// missing or already inactive.
func (s *reservationService) Release(tx *gorm.DB, reservationID uint) error {
	var reservation model.StockReservation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&reservation, reservationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if reservation.State != model.ReservationStateActive {
		return nil
	}

	if err := tx.Model(&reservation).Update("state", model.ReservationStateReleased).Error; err != nil {
		logger.Error("Failed to release reservation", err, map[string]interface{}{
			"reservation_id": reservationID,
		})
		return err
	}
	return nil
}

// ReleaseByReference releases every active reservation carrying the
// given reference (one cart's holds).
func (s *reservationService) ReleaseByReference(tx *gorm.DB, reference string) error {
	err := tx.Model(&model.StockReservation{}).
		Where("reference = ? AND state = ?", reference, model.ReservationStateActive).
		Update("state", model.ReservationStateReleased).Error
	if err != nil {
		logger.Error("Failed to release reservations by reference", err, map[string]interface{}{
			"reference": reference,
		})
		return err
	}
	return nil
}

// Available reports the currently reservable quantity for a variant.
func (s *reservationService) Available(tx *gorm.DB, variantID uint) (int, error) {
	stock, err := s.lockStock(tx, variantID)
	if err != nil {
		return 0, err
	}
	reserved, err := s.reservedQuantity(tx, variantID, nil, time.Now())
	if err != nil {
		return 0, err
	}
	return stock.Quantity - reserved, nil
}

// ConvertToOrder turns a cart line's hold into a committed stock
// deduction: the on-hand quantity drops, an outbound movement is
// recorded and the reservation (if any) is marked converted.
//
// The line is re-validated against current stock under the row lock. A
// lapsed reservation no longer shields the line, so the quantity must
// fit in what other carts have left free.
func (s *reservationService) ConvertToOrder(tx *gorm.DB, item *model.CartItem, reference string) error {
	stock, err := s.lockStock(tx, item.VariantID)
	if err != nil {
		return err
	}

	now := time.Now()
	reservedByOthers, err := s.reservedQuantity(tx, item.VariantID, item.ReservationID, now)
	if err != nil {
		return err
	}

	if stock.Quantity-reservedByOthers < item.Quantity {
		logger.Warn("Checkout conversion rejected: stock no longer available", map[string]interface{}{
			"variant_id":         item.VariantID,
			"requested":          item.Quantity,
			"on_hand":            stock.Quantity,
			"reserved_by_others": reservedByOthers,
		})
		return ErrInsufficientStock
	}

	if err := tx.Model(stock).Update("quantity", gorm.Expr("quantity - ?", item.Quantity)).Error; err != nil {
		return err
	}

	movement := &model.StockMovement{
		StockItemID:  stock.ID,
		MovementType: model.MovementTypeOutbound,
		Quantity:     -item.Quantity,
		Reason:       "cart checkout",
		Reference:    reference,
	}
	if err := tx.Create(movement).Error; err != nil {
		return err
	}

	if item.ReservationID != nil {
		err := tx.Model(&model.StockReservation{}).
			Where("id = ? AND state = ?", *item.ReservationID, model.ReservationStateActive).
			Update("state", model.ReservationStateConverted).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// ReclaimExpired flips lapsed active reservations to released. Storage
// hygiene only: availability queries already ignore expired rows.
func (s *reservationService) ReclaimExpired() (int, error) {
	count := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		expired, err := s.inventoryRepo.WithTx(tx).FindExpiredActiveReservations(time.Now())
		if err != nil {
			return err
		}
		for i := range expired {
			err := tx.Model(&expired[i]).
				Update("state", model.ReservationStateReleased).Error
			if err != nil {
				return err
			}
		}
		count = len(expired)
		return nil
	})
	if err != nil {
		logger.Error("Failed to reclaim expired reservations", err, nil)
		return 0, err
	}

	if count > 0 {
		logger.Info("Expired reservations reclaimed", map[string]interface{}{
			"count": count,
		})
	}
	return count, nil
}
