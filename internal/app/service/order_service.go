package service

import (
	"errors"

	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/internal/app/repository"
	"github.com/hanbitlab/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderInvalidState = errors.New("order is not in a state allowing this transition")
)

type OrderService interface {
	GetUserOrders(userID uint) ([]model.Order, error)
	GetOrderByID(userID, orderID uint) (*model.Order, error)
	PayOrder(userID, orderID uint) (*model.Order, error)
	CancelOrder(userID, orderID uint) (*model.Order, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
}

func NewOrderService(orderRepo repository.OrderRepository) OrderService {
	return &orderService{orderRepo: orderRepo}
}

func (s *orderService) GetUserOrders(userID uint) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByUserID(userID)
	if err != nil {
		logger.Error("Failed to fetch user orders", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func (s *orderService) GetOrderByID(userID, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.UserID != userID {
		logger.Warn("Order access denied: ownership mismatch", map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
			"owner_id": order.UserID,
		})
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// PayOrder marks a pending order paid. Paying an already paid order is
// a no-op; paying a cancelled order is rejected.
func (s *orderService) PayOrder(userID, orderID uint) (*model.Order, error) {
	order, err := s.GetOrderByID(userID, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case model.OrderStatusCancelled:
		return nil, ErrOrderInvalidState
	case model.OrderStatusPaid:
		return order, nil
	}

	if err := s.orderRepo.UpdateStatus(orderID, model.OrderStatusPaid); err != nil {
		return nil, err
	}
	prev := order.Status
	order.Status = model.OrderStatusPaid

	logger.Info("Order status changed", map[string]interface{}{
		"order_id":    orderID,
		"user_id":     userID,
		"status_from": prev,
		"status_to":   order.Status,
	})
	return order, nil
}

// CancelOrder cancels a pending order. Cancelling an already cancelled
// order is a no-op; cancelling a paid order is rejected.
func (s *orderService) CancelOrder(userID, orderID uint) (*model.Order, error) {
	order, err := s.GetOrderByID(userID, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case model.OrderStatusPaid:
		return nil, ErrOrderInvalidState
	case model.OrderStatusCancelled:
		return order, nil
	}

	if err := s.orderRepo.UpdateStatus(orderID, model.OrderStatusCancelled); err != nil {
		return nil, err
	}
	prev := order.Status
	order.Status = model.OrderStatusCancelled

	logger.Info("Order status changed", map[string]interface{}{
		"order_id":    orderID,
		"user_id":     userID,
		"status_from": prev,
		"status_to":   order.Status,
	})
	return order, nil
}
