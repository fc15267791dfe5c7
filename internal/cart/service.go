// Package cart implements the dual-mode shopping cart. Guests shop under a
// client-held token; signed-in users shop under their user ID. Logging in
// folds the guest cart into the user cart.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// Owner identifies who a cart belongs to.
type Owner struct {
	Key  string
	Kind string
}

// ForUser keys a cart by the authenticated user ID.
func ForUser(userID string) Owner {
	return Owner{Key: userID, Kind: types.OwnerUser}
}

// ForGuest keys a cart by an opaque client-held token.
func ForGuest(token string) Owner {
	return Owner{Key: token, Kind: types.OwnerGuest}
}

// NewGuestToken mints a cart token for an anonymous shopper.
func NewGuestToken() string {
	return uuid.NewString()
}

// Service wraps cart persistence with quantity limits and audit logging.
type Service struct {
	store  *store.Store
	maxQty int64
}

// New creates a cart service. maxQty caps the quantity of any single line.
func New(st *store.Store, maxQty int64) *Service {
	if maxQty <= 0 {
		maxQty = 99
	}
	return &Service{store: st, maxQty: maxQty}
}

// Get returns the owner's cart. An owner with no cart yet gets an empty one
// rather than an error; the row is created lazily on first add.
func (s *Service) Get(owner Owner) (*types.Cart, error) {
	if err := validOwner(owner); err != nil {
		return nil, err
	}
	c, err := s.store.GetCart(owner.Key, owner.Kind)
	if err == store.ErrNotFound {
		return &types.Cart{OwnerKey: owner.Key, OwnerKind: owner.Kind}, nil
	}
	return c, err
}

// AddItem puts qty units of a product into the cart. Repeated adds sum; the
// line keeps the price snapshot from the first add.
func (s *Service) AddItem(owner Owner, productID string, qty int64) (*types.Cart, error) {
	if err := validOwner(owner); err != nil {
		return nil, err
	}
	c, err := s.store.AddCartItem(owner.Key, owner.Kind, productID, qty, s.maxQty)
	if err != nil {
		logging.AuditFailure(logging.AuditCartAdd, owner.Key, productID, err)
		return nil, err
	}
	logging.CartDebug("add %s x%d to %s cart %s", productID, qty, owner.Kind, owner.Key)
	logging.AuditSuccess(logging.AuditCartAdd, owner.Key, productID, fmt.Sprintf("qty=%d", qty))
	return c, nil
}

// UpdateItemQuantity sets a line's quantity. Zero removes the line.
func (s *Service) UpdateItemQuantity(owner Owner, productID string, qty int64) (*types.Cart, error) {
	if err := validOwner(owner); err != nil {
		return nil, err
	}
	c, err := s.store.UpdateCartItemQuantity(owner.Key, owner.Kind, productID, qty, s.maxQty)
	if err != nil {
		return nil, err
	}
	logging.AuditSuccess(logging.AuditCartUpdate, owner.Key, productID, fmt.Sprintf("qty=%d", qty))
	return c, nil
}

// RemoveItem drops a line from the cart.
func (s *Service) RemoveItem(owner Owner, productID string) (*types.Cart, error) {
	return s.UpdateItemQuantity(owner, productID, 0)
}

// Clear empties the cart.
func (s *Service) Clear(owner Owner) error {
	if err := validOwner(owner); err != nil {
		return err
	}
	if err := s.store.ClearCart(owner.Key, owner.Kind); err != nil {
		return err
	}
	logging.AuditSuccess(logging.AuditCartClear, owner.Key, "", "")
	return nil
}

// MergeOnLogin folds the guest cart behind guestToken into the user's cart.
// The user cart is authoritative: colliding lines keep its price snapshot and
// sum quantities, clamped to the line cap and available stock. The guest cart
// is deleted; a retried merge is a no-op returning the user cart.
func (s *Service) MergeOnLogin(guestToken, userID string) (*types.Cart, error) {
	if guestToken == "" || userID == "" {
		return nil, fmt.Errorf("merge requires a guest token and a user id")
	}
	c, err := s.store.MergeGuestCart(guestToken, userID, s.maxQty)
	if err != nil {
		logging.AuditFailure(logging.AuditCartMerge, userID, guestToken, err)
		return nil, err
	}
	logging.Cart("merged guest cart into user %s (%d lines)", userID, len(c.Items))
	logging.AuditSuccess(logging.AuditCartMerge, userID, guestToken, fmt.Sprintf("lines=%d", len(c.Items)))
	return c, nil
}

// RunGuestCartSweep deletes expired guest carts every interval until ctx is
// cancelled. Blocks; run it in its own goroutine.
func (s *Service) RunGuestCartSweep(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.PurgeExpiredGuestCarts(ttl)
			if err != nil {
				logging.Get(logging.CategoryCart).Error("guest cart sweep failed: %v", err)
				continue
			}
			if n > 0 {
				logging.Cart("guest cart sweep removed %d carts", n)
			}
		}
	}
}

func validOwner(o Owner) error {
	if o.Key == "" {
		return fmt.Errorf("cart owner key is required")
	}
	if o.Kind != types.OwnerGuest && o.Kind != types.OwnerUser {
		return fmt.Errorf("unknown cart owner kind %q", o.Kind)
	}
	return nil
}
