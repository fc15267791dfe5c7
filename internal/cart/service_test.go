package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, 99), s
}

func seedProduct(t *testing.T, s *store.Store, price, stock int64) *types.Product {
	t.Helper()
	p := &types.Product{
		ID:         uuid.NewString(),
		MerchantID: "m1",
		Title:      "Alphonso Mango Scoop",
		Category:   types.CategoryIceCream,
		PriceINR:   price,
		StockQty:   stock,
		Active:     true,
	}
	require.NoError(t, s.CreateProduct(p))
	return p
}

func TestGet_EmptyCartForNewOwner(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Get(ForGuest(NewGuestToken()))
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, types.OwnerGuest, c.OwnerKind)
}

func TestGet_InvalidOwner(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(Owner{Key: "", Kind: types.OwnerUser})
	assert.Error(t, err)

	_, err = svc.Get(Owner{Key: "x", Kind: "robot"})
	assert.Error(t, err)
}

func TestAddItem_GuestAndUser(t *testing.T) {
	svc, s := newTestService(t)
	p := seedProduct(t, s, 120, 10)

	guest := ForGuest(NewGuestToken())
	c, err := svc.AddItem(guest, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(2), c.Items[0].Quantity)
	assert.Equal(t, int64(120), c.Items[0].UnitPriceINR)

	user := ForUser("u1")
	c, err = svc.AddItem(user, p.ID, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	// The two carts are independent.
	gc, err := svc.Get(guest)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gc.Items[0].Quantity)
}

func TestAddItem_Validation(t *testing.T) {
	svc, s := newTestService(t)
	p := seedProduct(t, s, 120, 10)

	_, err := svc.AddItem(ForUser("u1"), p.ID, 0)
	assert.Error(t, err)

	_, err = svc.AddItem(ForUser("u1"), uuid.NewString(), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	svc, s := newTestService(t)
	p := seedProduct(t, s, 50, 10)
	user := ForUser("u1")

	_, err := svc.AddItem(user, p.ID, 2)
	require.NoError(t, err)

	c, err := svc.UpdateItemQuantity(user, p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.Items[0].Quantity)

	c, err = svc.RemoveItem(user, p.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestClear(t *testing.T) {
	svc, s := newTestService(t)
	p := seedProduct(t, s, 50, 10)
	user := ForUser("u1")

	_, err := svc.AddItem(user, p.ID, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(user))
	c, err := svc.Get(user)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	// Clearing an owner with no cart is fine.
	require.NoError(t, svc.Clear(ForUser("nobody")))
}

func TestMergeOnLogin(t *testing.T) {
	svc, s := newTestService(t)
	p1 := seedProduct(t, s, 50, 100)
	p2 := seedProduct(t, s, 80, 100)

	token := NewGuestToken()
	_, err := svc.AddItem(ForGuest(token), p1.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ForGuest(token), p2.ID, 1)
	require.NoError(t, err)

	user := ForUser("u1")
	_, err = svc.AddItem(user, p1.ID, 3)
	require.NoError(t, err)

	merged, err := svc.MergeOnLogin(token, "u1")
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)

	byID := map[string]types.CartItem{}
	for _, it := range merged.Items {
		byID[it.ProductID] = it
	}
	assert.Equal(t, int64(5), byID[p1.ID].Quantity)
	assert.Equal(t, int64(1), byID[p2.ID].Quantity)

	// Guest cart is gone; re-merge is a no-op with the same result.
	gc, err := svc.Get(ForGuest(token))
	require.NoError(t, err)
	assert.Empty(t, gc.Items)

	again, err := svc.MergeOnLogin(token, "u1")
	require.NoError(t, err)
	require.Len(t, again.Items, 2)
}

func TestMergeOnLogin_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.MergeOnLogin("", "u1")
	assert.Error(t, err)

	_, err = svc.MergeOnLogin("tok", "")
	assert.Error(t, err)
}

func TestRunGuestCartSweep(t *testing.T) {
	svc, s := newTestService(t)
	p := seedProduct(t, s, 50, 10)

	token := NewGuestToken()
	_, err := svc.AddItem(ForGuest(token), p.ID, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		// TTL 0 expires everything on the first tick.
		svc.RunGuestCartSweep(ctx, 5*time.Millisecond, 0)
	}()

	require.Eventually(t, func() bool {
		c, err := svc.Get(ForGuest(token))
		return err == nil && len(c.Items) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
