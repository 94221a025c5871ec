package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"campus-marketplace/internal/entity"
	"campus-marketplace/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// EventPublisher announces order lifecycle changes to other services.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, order *entity.Order) error
}

// publish is best effort: the order is already committed when it runs.
func publish(ctx context.Context, p EventPublisher, eventType string, order *entity.Order) {
	if p == nil {
		return
	}
	if err := p.PublishOrderEvent(ctx, eventType, order); err != nil {
		logger.Error().Err(err).Msgf("Error publishing %s event for order %d", eventType, order.ID)
	}
}

// OrderService exposes the order ledger to students and sellers and enforces
// the seller-side status lifecycle.
type OrderService struct {
	orders    OrderStore
	publisher EventPublisher
	now       func() time.Time
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orders OrderStore, publisher EventPublisher) *OrderService {
	return &OrderService{orders: orders, publisher: publisher, now: time.Now}
}

// ListStudentOrders returns the student's orders, newest first.
func (s *OrderService) ListStudentOrders(ctx context.Context, studentID int64) ([]*entity.Order, error) {
	orders, err := s.orders.ListOrders(ctx, repository.OrderFilter{StudentID: studentID})
	if err != nil {
		logger.Error().Err(err).Msgf("Error listing orders of student %d", studentID)
		return nil, err
	}
	return orders, nil
}

func (s *OrderService) GetStudentOrder(ctx context.Context, studentID, orderID int64) (*entity.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, mapNotFound(err, "order %d", orderID)
	}
	if order.StudentID != studentID {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return order, nil
}

// ListSellerOrders returns the seller's orders, newest first, optionally
// narrowed to one status.
func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID int64, status string) ([]*entity.Order, error) {
	filter := repository.OrderFilter{SellerID: sellerID}
	if status != "" {
		st, err := entity.ParseOrderStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
		}
		filter.Status = st
	}

	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		logger.Error().Err(err).Msgf("Error listing orders of seller %d", sellerID)
		return nil, err
	}
	return orders, nil
}

// ListCompletedOrders returns the seller's delivered orders, most recently updated first.
func (s *OrderService) ListCompletedOrders(ctx context.Context, sellerID int64) ([]*entity.Order, error) {
	orders, err := s.orders.ListOrders(ctx, repository.OrderFilter{
		SellerID:  sellerID,
		Status:    entity.OrderStatusDelivered,
		ByUpdated: true,
	})
	if err != nil {
		logger.Error().Err(err).Msgf("Error listing completed orders of seller %d", sellerID)
		return nil, err
	}
	return orders, nil
}

// SetStatus moves a seller's order along the status lifecycle. Regressions and
// moves out of a terminal status are rejected.
func (s *OrderService) SetStatus(ctx context.Context, orderID, sellerID int64, status string) (*entity.Order, error) {
	target, err := entity.ParseOrderStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		err = mapNotFound(err, "order %d", orderID)
		logUnexpected(err, "Error getting order by ID %d", orderID)
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}

	if order.Status == target {
		return order, nil
	}
	if !entity.CanTransition(order.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, sellerID, order.Status, target); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %d changed while updating", ErrConflict, orderID)
		}
		logger.Error().Err(err).Msgf("Error updating status of order %d", orderID)
		return nil, err
	}

	order.Status = target
	order.UpdatedAt = s.now()
	// a seller cancellation releases stock exactly like a student one
	eventType := entity.EventOrderStatusChanged
	if target == entity.OrderStatusCancelled {
		eventType = entity.EventOrderCancelled
	}
	publish(ctx, s.publisher, eventType, order)
	return order, nil
}

// Cancel cancels a student's order while it is still Pending or Processing.
func (s *OrderService) Cancel(ctx context.Context, orderID, studentID int64) (*entity.Order, error) {
	err := s.orders.CancelOrder(ctx, orderID, studentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Error().Err(err).Msgf("Error cancelling order %d", orderID)
		return nil, err
	}
	cancelled := err == nil

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		err = mapNotFound(err, "order %d", orderID)
		logUnexpected(err, "Error getting order by ID %d", orderID)
		return nil, err
	}
	if order.StudentID != studentID {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if !cancelled {
		return nil, fmt.Errorf("%w: order %d is %s", ErrNotCancelable, orderID, order.Status)
	}

	publish(ctx, s.publisher, entity.EventOrderCancelled, order)
	return order, nil
}
