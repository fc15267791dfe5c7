// Package checkout turns carts into orders and walks them through the order
// status machine. No payments: placing an order is the end of the flow.
package checkout

import (
	"fmt"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// Service owns order placement and lifecycle.
type Service struct {
	store *store.Store
}

// New creates a checkout service.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

// PlaceOrder snapshots the user's cart into an order, decrements stock and
// clears the cart in one transaction. An empty cart or insufficient stock
// fails the whole order.
func (s *Service) PlaceOrder(userID string) (*types.Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	o, err := s.store.PlaceOrder(userID)
	if err != nil {
		logging.AuditFailure(logging.AuditOrderPlaced, userID, "", err)
		return nil, err
	}

	logging.Checkout("order %s placed by %s: %d lines, total %d INR", o.ID, userID, len(o.Lines), o.TotalINR)
	logging.AuditSuccess(logging.AuditOrderPlaced, userID, o.ID, fmt.Sprintf("total_inr=%d", o.TotalINR))
	return o, nil
}

// GetOrder returns one of the user's orders with lines. Other users' orders
// are not found.
func (s *Service) GetOrder(userID, orderID string) (*types.Order, error) {
	return s.store.GetOrder(userID, orderID)
}

// ListOrders returns the user's order history, newest first.
func (s *Service) ListOrders(userID string, limit int) ([]*types.Order, error) {
	return s.store.ListOrders(userID, limit)
}

// CancelOrder lets a customer cancel their own order. Only placed or
// confirmed orders can be cancelled; stock is restored.
func (s *Service) CancelOrder(userID, orderID string) (*types.Order, error) {
	// Owner check first so a foreign order ID reads as not found rather
	// than as a transition error.
	if _, err := s.store.GetOrder(userID, orderID); err != nil {
		return nil, err
	}

	o, err := s.store.AdvanceOrderStatus(orderID, types.OrderCancelled)
	if err != nil {
		logging.AuditFailure(logging.AuditOrderCancelled, userID, orderID, err)
		return nil, err
	}
	logging.AuditSuccess(logging.AuditOrderCancelled, userID, orderID, "")
	return o, nil
}

// ListMerchantOrders returns orders containing the merchant's products.
func (s *Service) ListMerchantOrders(merchantID string, limit int) ([]*types.Order, error) {
	return s.store.ListMerchantOrders(merchantID, limit)
}

// AdvanceOrderStatus moves an order along placed -> confirmed -> fulfilled
// (or cancels it) on behalf of a merchant. The merchant must own at least one
// line of the order.
func (s *Service) AdvanceOrderStatus(merchantID, orderID, newStatus string) (*types.Order, error) {
	switch newStatus {
	case types.OrderConfirmed, types.OrderFulfilled, types.OrderCancelled:
	default:
		return nil, fmt.Errorf("unknown order status %q", newStatus)
	}

	ok, err := s.store.MerchantInOrder(merchantID, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotOwner
	}

	o, err := s.store.AdvanceOrderStatus(orderID, newStatus)
	if err != nil {
		logging.AuditFailure(logging.AuditOrderStatus, merchantID, orderID, err)
		return nil, err
	}
	logging.AuditSuccess(logging.AuditOrderStatus, merchantID, orderID, newStatus)
	return o, nil
}
