package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/types"
)

// GetCart loads a cart with its items. Returns ErrNotFound when the owner has
// no cart yet.
func (s *Store) GetCart(ownerKey, ownerKind string) (*types.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadCart(s.db, ownerKey, ownerKind)
}

// queryable is satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func (s *Store) loadCart(q queryable, ownerKey, ownerKind string) (*types.Cart, error) {
	var c types.Cart
	err := q.QueryRow(
		`SELECT id, owner_key, owner_kind, created_at, updated_at FROM carts WHERE owner_key = ? AND owner_kind = ?`,
		ownerKey, ownerKind,
	).Scan(&c.ID, &c.OwnerKey, &c.OwnerKind, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	rows, err := q.Query(
		`SELECT i.product_id, p.title, i.quantity, i.unit_price_inr
		 FROM cart_items i
		 JOIN products p ON p.id = i.product_id
		 WHERE i.cart_id = ?
		 ORDER BY i.created_at ASC, i.product_id ASC`,
		c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it types.CartItem
		if err := rows.Scan(&it.ProductID, &it.Title, &it.Quantity, &it.UnitPriceINR); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		c.Items = append(c.Items, it)
	}
	return &c, rows.Err()
}

// ensureCart returns the cart ID for the owner, creating the cart row if
// missing.
func (s *Store) ensureCart(q queryable, ownerKey, ownerKind string) (string, error) {
	var id string
	err := q.QueryRow(
		`SELECT id FROM carts WHERE owner_key = ? AND owner_kind = ?`, ownerKey, ownerKind,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("lookup cart: %w", err)
	}

	id = uuid.NewString()
	now := time.Now().UTC()
	if _, err := q.Exec(
		`INSERT INTO carts (id, owner_key, owner_kind, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, ownerKey, ownerKind, now, now,
	); err != nil {
		return "", fmt.Errorf("create cart: %w", err)
	}
	logging.CartDebug("Created %s cart %s for %s", ownerKind, id, ownerKey)
	return id, nil
}

func touchCart(q queryable, cartID string) {
	q.Exec(`UPDATE carts SET updated_at = ? WHERE id = ?`, time.Now().UTC(), cartID)
}

func clampQty(qty, maxQty, stock int64) int64 {
	if qty > maxQty {
		qty = maxQty
	}
	if qty > stock {
		qty = stock
	}
	return qty
}

// AddCartItem adds qty of a product to the owner's cart, creating the cart if
// needed. Quantities for an existing line are summed and clamped to maxQty and
// available stock. The unit price snapshot from the first add is kept.
func (s *Store) AddCartItem(ownerKey, ownerKind, productID string, qty, maxQty int64) (*types.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var price, stock int64
	var active bool
	err = tx.QueryRow(`SELECT price_inr, stock_qty, active FROM products WHERE id = ?`, productID).
		Scan(&price, &stock, &active)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup product: %w", err)
	}
	if !active {
		return nil, ErrNotFound
	}
	if stock <= 0 {
		return nil, ErrInsufficientStock
	}

	cartID, err := s.ensureCart(tx, ownerKey, ownerKind)
	if err != nil {
		return nil, err
	}

	var existing int64
	err = tx.QueryRow(`SELECT quantity FROM cart_items WHERE cart_id = ? AND product_id = ?`, cartID, productID).
		Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		newQty := clampQty(qty, maxQty, stock)
		if _, err := tx.Exec(
			`INSERT INTO cart_items (cart_id, product_id, quantity, unit_price_inr) VALUES (?, ?, ?, ?)`,
			cartID, productID, newQty, price,
		); err != nil {
			return nil, fmt.Errorf("insert cart item: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("lookup cart item: %w", err)
	default:
		newQty := clampQty(existing+qty, maxQty, stock)
		if _, err := tx.Exec(
			`UPDATE cart_items SET quantity = ? WHERE cart_id = ? AND product_id = ?`,
			newQty, cartID, productID,
		); err != nil {
			return nil, fmt.Errorf("update cart item: %w", err)
		}
	}
	touchCart(tx, cartID)

	cart, err := s.loadCart(tx, ownerKey, ownerKind)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logging.Cart("Added %dx %s to %s cart of %s", qty, productID, ownerKind, ownerKey)
	return cart, nil
}

// UpdateCartItemQuantity sets the quantity of a cart line. Zero removes the
// line. The quantity is clamped to maxQty and available stock.
func (s *Store) UpdateCartItemQuantity(ownerKey, ownerKind, productID string, qty, maxQty int64) (*types.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cart, err := s.loadCart(tx, ownerKey, ownerKind)
	if err != nil {
		return nil, err
	}

	if qty == 0 {
		if _, err := tx.Exec(`DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`, cart.ID, productID); err != nil {
			return nil, fmt.Errorf("delete cart item: %w", err)
		}
	} else {
		var stock int64
		if err := tx.QueryRow(`SELECT stock_qty FROM products WHERE id = ?`, productID).Scan(&stock); err != nil {
			if err == sql.ErrNoRows {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("lookup product: %w", err)
		}
		newQty := clampQty(qty, maxQty, stock)
		res, err := tx.Exec(
			`UPDATE cart_items SET quantity = ? WHERE cart_id = ? AND product_id = ?`,
			newQty, cart.ID, productID,
		)
		if err != nil {
			return nil, fmt.Errorf("update cart item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrNotFound
		}
	}
	touchCart(tx, cart.ID)

	updated, err := s.loadCart(tx, ownerKey, ownerKind)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

// RemoveCartItem deletes a line from the owner's cart.
func (s *Store) RemoveCartItem(ownerKey, ownerKind, productID string) (*types.Cart, error) {
	return s.UpdateCartItemQuantity(ownerKey, ownerKind, productID, 0, 0)
}

// ClearCart removes every line from the owner's cart. Clearing a missing cart
// is a no-op.
func (s *Store) ClearCart(ownerKey, ownerKind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cart, err := s.loadCart(tx, ownerKey, ownerKind)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM cart_items WHERE cart_id = ?`, cart.ID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	touchCart(tx, cart.ID)

	return tx.Commit()
}

// MergeGuestCart folds a guest cart into the user's cart and deletes the
// guest cart. The user cart is authoritative: colliding lines keep the user
// cart's price snapshot and sum quantities (clamped to maxQty and stock).
// Merging an unknown guest token is a no-op returning the user's cart, which
// makes retried merges idempotent.
func (s *Store) MergeGuestCart(guestToken, userID string, maxQty int64) (*types.Cart, error) {
	timer := logging.StartTimer(logging.CategoryCart, "MergeGuestCart")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	guest, err := s.loadCart(tx, guestToken, types.OwnerGuest)
	if err == ErrNotFound {
		// Already merged (or never existed): return the user cart as-is.
		user, uerr := s.loadCart(tx, userID, types.OwnerUser)
		if uerr == ErrNotFound {
			return &types.Cart{OwnerKey: userID, OwnerKind: types.OwnerUser}, nil
		}
		if uerr != nil {
			return nil, uerr
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	userCartID, err := s.ensureCart(tx, userID, types.OwnerUser)
	if err != nil {
		return nil, err
	}

	merged := 0
	skipped := 0
	for _, item := range guest.Items {
		var stock int64
		var active bool
		err := tx.QueryRow(`SELECT stock_qty, active FROM products WHERE id = ?`, item.ProductID).
			Scan(&stock, &active)
		if err == sql.ErrNoRows || (err == nil && !active) {
			// Product vanished or was deactivated while sitting in the
			// guest cart; drop the line.
			skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup product: %w", err)
		}

		var existing int64
		err = tx.QueryRow(
			`SELECT quantity FROM cart_items WHERE cart_id = ? AND product_id = ?`,
			userCartID, item.ProductID,
		).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			newQty := clampQty(item.Quantity, maxQty, stock)
			if newQty <= 0 {
				skipped++
				continue
			}
			if _, err := tx.Exec(
				`INSERT INTO cart_items (cart_id, product_id, quantity, unit_price_inr) VALUES (?, ?, ?, ?)`,
				userCartID, item.ProductID, newQty, item.UnitPriceINR,
			); err != nil {
				return nil, fmt.Errorf("merge insert: %w", err)
			}
		case err != nil:
			return nil, fmt.Errorf("merge lookup: %w", err)
		default:
			// User line exists: sum quantities, keep the user's snapshot price.
			newQty := clampQty(existing+item.Quantity, maxQty, stock)
			if _, err := tx.Exec(
				`UPDATE cart_items SET quantity = ? WHERE cart_id = ? AND product_id = ?`,
				newQty, userCartID, item.ProductID,
			); err != nil {
				return nil, fmt.Errorf("merge update: %w", err)
			}
		}
		merged++
	}

	// The guest cart is cleared after merge; the user cart is authoritative.
	if _, err := tx.Exec(`DELETE FROM cart_items WHERE cart_id = ?`, guest.ID); err != nil {
		return nil, fmt.Errorf("delete guest items: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM carts WHERE id = ?`, guest.ID); err != nil {
		return nil, fmt.Errorf("delete guest cart: %w", err)
	}
	touchCart(tx, userCartID)

	cart, err := s.loadCart(tx, userID, types.OwnerUser)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logging.Cart("Merged guest cart %s into user %s: %d lines merged, %d skipped", guestToken, userID, merged, skipped)
	return cart, nil
}

// PurgeExpiredGuestCarts deletes guest carts idle for longer than ttl.
// Returns the number of carts removed.
func (s *Store) PurgeExpiredGuestCarts(ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-ttl)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE owner_kind = ? AND updated_at < ?)`,
		types.OwnerGuest, cutoff,
	); err != nil {
		return 0, fmt.Errorf("purge guest items: %w", err)
	}

	res, err := tx.Exec(
		`DELETE FROM carts WHERE owner_kind = ? AND updated_at < ?`,
		types.OwnerGuest, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge guest carts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Cart("Purged %d expired guest carts", n)
	}
	return n, nil
}
