package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/types"
)

// PlaceOrder snapshots the user's cart into an order, decrements stock and
// clears the cart in a single transaction. Insufficient stock on any line
// fails the whole order.
func (s *Store) PlaceOrder(userID string) (*types.Order, error) {
	timer := logging.StartTimer(logging.CategoryCheckout, "PlaceOrder")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cart, err := s.loadCart(tx, userID, types.OwnerUser)
	if err == ErrNotFound {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	order := &types.Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: types.OrderPlaced,
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	for _, item := range cart.Items {
		var merchantID string
		var stock int64
		var active bool
		err := tx.QueryRow(
			`SELECT merchant_id, stock_qty, active FROM products WHERE id = ?`, item.ProductID,
		).Scan(&merchantID, &stock, &active)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("lookup product: %w", err)
		}
		if !active || stock < item.Quantity {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
		}

		if _, err := tx.Exec(
			`UPDATE products SET stock_qty = stock_qty - ?, updated_at = ? WHERE id = ?`,
			item.Quantity, now, item.ProductID,
		); err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}

		line := types.OrderLine{
			ProductID:    item.ProductID,
			MerchantID:   merchantID,
			Title:        item.Title,
			Quantity:     item.Quantity,
			UnitPriceINR: item.UnitPriceINR,
			LineTotalINR: item.Quantity * item.UnitPriceINR,
		}
		order.Lines = append(order.Lines, line)
		order.TotalINR += line.LineTotalINR
	}

	if _, err := tx.Exec(
		`INSERT INTO orders (id, user_id, status, total_inr, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.Status, order.TotalINR, order.CreatedAt, order.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	for _, line := range order.Lines {
		if _, err := tx.Exec(
			`INSERT INTO order_lines (order_id, product_id, merchant_id, title, quantity, unit_price_inr, line_total_inr)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			order.ID, line.ProductID, line.MerchantID, line.Title, line.Quantity, line.UnitPriceINR, line.LineTotalINR,
		); err != nil {
			return nil, fmt.Errorf("insert order line: %w", err)
		}
	}

	// The cart empties on successful placement.
	if _, err := tx.Exec(`DELETE FROM cart_items WHERE cart_id = ?`, cart.ID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	touchCart(tx, cart.ID)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logging.Checkout("Order %s placed by %s: %d lines, total %d INR", order.ID, userID, len(order.Lines), order.TotalINR)
	return order, nil
}

func (s *Store) loadOrderLines(q queryable, orderID string) ([]types.OrderLine, error) {
	rows, err := q.Query(
		`SELECT product_id, merchant_id, title, quantity, unit_price_inr, line_total_inr
		 FROM order_lines WHERE order_id = ? ORDER BY product_id ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	var lines []types.OrderLine
	for rows.Next() {
		var l types.OrderLine
		if err := rows.Scan(&l.ProductID, &l.MerchantID, &l.Title, &l.Quantity, &l.UnitPriceINR, &l.LineTotalINR); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetOrder loads an order with its lines. Orders are only visible to their
// owner; a mismatched userID reads as not found.
func (s *Store) GetOrder(userID, orderID string) (*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var o types.Order
	err := s.db.QueryRow(
		`SELECT id, user_id, status, total_inr, created_at, updated_at FROM orders WHERE id = ? AND user_id = ?`,
		orderID, userID,
	).Scan(&o.ID, &o.UserID, &o.Status, &o.TotalINR, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	o.Lines, err = s.loadOrderLines(s.db, o.ID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns a user's orders, newest first, without lines.
func (s *Store) ListOrders(userID string, limit int) ([]*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, user_id, status, total_inr, created_at, updated_at
		 FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*types.Order
	for rows.Next() {
		var o types.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalINR, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

// ListMerchantOrders returns orders containing at least one of the merchant's
// products, newest first, with lines attached.
func (s *Store) ListMerchantOrders(merchantID string, limit int) ([]*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT DISTINCT o.id, o.user_id, o.status, o.total_inr, o.created_at, o.updated_at
		 FROM orders o
		 JOIN order_lines l ON l.order_id = o.id
		 WHERE l.merchant_id = ?
		 ORDER BY o.created_at DESC, o.id DESC LIMIT ?`,
		merchantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list merchant orders: %w", err)
	}
	defer rows.Close()

	var orders []*types.Order
	for rows.Next() {
		var o types.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalINR, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, o := range orders {
		lines, err := s.loadOrderLines(s.db, o.ID)
		if err != nil {
			return nil, err
		}
		o.Lines = lines
	}
	return orders, nil
}

// validTransition enforces the order status machine.
func validTransition(from, to string) bool {
	switch from {
	case types.OrderPlaced:
		return to == types.OrderConfirmed || to == types.OrderCancelled
	case types.OrderConfirmed:
		return to == types.OrderFulfilled || to == types.OrderCancelled
	default:
		return false
	}
}

// AdvanceOrderStatus moves an order through the status machine. Cancelling
// restores the stock its lines consumed.
func (s *Store) AdvanceOrderStatus(orderID, newStatus string) (*types.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current, userID string
	err = tx.QueryRow(`SELECT status, user_id FROM orders WHERE id = ?`, orderID).Scan(&current, &userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup order: %w", err)
	}

	if !validTransition(current, newStatus) {
		return nil, fmt.Errorf("%s -> %s: %w", current, newStatus, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	if newStatus == types.OrderCancelled {
		lines, err := s.loadOrderLines(tx, orderID)
		if err != nil {
			return nil, err
		}
		for _, l := range lines {
			if _, err := tx.Exec(
				`UPDATE products SET stock_qty = stock_qty + ?, updated_at = ? WHERE id = ?`,
				l.Quantity, now, l.ProductID,
			); err != nil {
				return nil, fmt.Errorf("restore stock: %w", err)
			}
		}
	}

	if _, err := tx.Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		newStatus, now, orderID,
	); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logging.Checkout("Order %s: %s -> %s", orderID, current, newStatus)

	var o types.Order
	err = s.db.QueryRow(
		`SELECT id, user_id, status, total_inr, created_at, updated_at FROM orders WHERE id = ?`,
		orderID,
	).Scan(&o.ID, &o.UserID, &o.Status, &o.TotalINR, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	o.Lines, err = s.loadOrderLines(s.db, o.ID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// MerchantInOrder reports whether any line of the order belongs to the
// merchant. Used to authorize status changes.
func (s *Store) MerchantInOrder(merchantID, orderID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM order_lines WHERE order_id = ? AND merchant_id = ?`,
		orderID, merchantID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("merchant in order: %w", err)
	}
	return count > 0, nil
}

// =============================================================================
// DASHBOARD QUERIES
// =============================================================================

// CountProducts returns total and active product counts for a merchant.
func (s *Store) CountProducts(merchantID string) (total, active int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN active THEN 1 ELSE 0 END), 0) FROM products WHERE merchant_id = ?`,
		merchantID,
	).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("count products: %w", err)
	}
	return total, active, nil
}

// CountLowStock returns the number of active products below threshold.
func (s *Store) CountLowStock(merchantID string, threshold int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM products WHERE merchant_id = ? AND active = TRUE AND stock_qty < ?`,
		merchantID, threshold,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count low stock: %w", err)
	}
	return count, nil
}

// MerchantOrderStats returns the order count and gross revenue (sum of line
// totals of non-cancelled orders) for a merchant.
func (s *Store) MerchantOrderStats(merchantID string) (orders, revenueINR int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(
		`SELECT COUNT(DISTINCT o.id), COALESCE(SUM(l.line_total_inr), 0)
		 FROM orders o
		 JOIN order_lines l ON l.order_id = o.id
		 WHERE l.merchant_id = ? AND o.status != ?`,
		merchantID, types.OrderCancelled,
	).Scan(&orders, &revenueINR)
	if err != nil {
		return 0, 0, fmt.Errorf("merchant order stats: %w", err)
	}
	return orders, revenueINR, nil
}
