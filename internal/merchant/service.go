// Package merchant covers the seller side of the marketplace: shop profile,
// product CRUD, image attachment and the dashboard.
package merchant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// lowStockThreshold marks products the dashboard flags for restocking.
const lowStockThreshold = 5

// Reindexer refreshes a product's search embedding after a write. Satisfied
// by catalog.Service; nil disables reindexing.
type Reindexer interface {
	ReindexProduct(ctx context.Context, productID string) error
}

// Service implements merchant operations.
type Service struct {
	store     *store.Store
	reindexer Reindexer
}

// New creates a merchant service. reindexer may be nil.
func New(st *store.Store, reindexer Reindexer) *Service {
	return &Service{store: st, reindexer: reindexer}
}

// Get returns a merchant's shop record.
func (s *Service) Get(userID string) (*types.Merchant, error) {
	return s.store.GetMerchant(userID)
}

// Upsert saves the shop record, inserting or updating as needed. Verified
// status is platform-managed and cannot be set through this path.
func (s *Service) Upsert(userID string, m *types.Merchant) (*types.Merchant, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	m.UserID = userID
	m.ShopName = strings.TrimSpace(m.ShopName)
	if m.ShopName == "" {
		return nil, fmt.Errorf("shop name is required")
	}

	if err := s.store.UpsertMerchant(m); err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryMerchant).Debug("merchant record saved for %s", userID)
	return s.store.GetMerchant(userID)
}

// CreateProduct adds a product to the merchant's shop and schedules an
// embedding refresh.
func (s *Service) CreateProduct(ctx context.Context, merchantID string, p *types.Product) (*types.Product, error) {
	if merchantID == "" {
		return nil, fmt.Errorf("merchant id is required")
	}
	p.ID = uuid.NewString()
	p.MerchantID = merchantID
	p.Active = true
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.store.CreateProduct(p); err != nil {
		logging.AuditFailure(logging.AuditProductCreate, merchantID, p.Title, err)
		return nil, err
	}
	logging.AuditSuccess(logging.AuditProductCreate, merchantID, p.ID, p.Title)

	s.reindex(ctx, p.ID)
	return s.store.GetProduct(p.ID)
}

// UpdateProduct edits one of the merchant's own products. Editing someone
// else's product fails.
func (s *Service) UpdateProduct(ctx context.Context, merchantID string, p *types.Product) (*types.Product, error) {
	existing, err := s.ownedProduct(merchantID, p.ID)
	if err != nil {
		return nil, err
	}
	p.MerchantID = existing.MerchantID
	p.Active = existing.Active
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProduct(p); err != nil {
		logging.AuditFailure(logging.AuditProductUpdate, merchantID, p.ID, err)
		return nil, err
	}
	logging.AuditSuccess(logging.AuditProductUpdate, merchantID, p.ID, p.Title)

	s.reindex(ctx, p.ID)
	return s.store.GetProduct(p.ID)
}

// DeleteProduct soft-deletes a product: it goes inactive and drops out of
// listings and search, but stays resolvable for order history.
func (s *Service) DeleteProduct(ctx context.Context, merchantID, productID string) error {
	if _, err := s.ownedProduct(merchantID, productID); err != nil {
		return err
	}

	if err := s.store.DeactivateProduct(productID); err != nil {
		logging.AuditFailure(logging.AuditProductDelete, merchantID, productID, err)
		return err
	}
	if err := s.store.DeleteProductEmbedding(productID); err != nil {
		return err
	}
	logging.AuditSuccess(logging.AuditProductDelete, merchantID, productID, "")
	return nil
}

// ListProducts returns everything the merchant sells, inactive included.
func (s *Service) ListProducts(merchantID string) ([]*types.Product, error) {
	return s.store.ListProducts(store.ProductFilter{MerchantID: merchantID})
}

// AttachProductImage adds an image row to one of the merchant's products.
func (s *Service) AttachProductImage(merchantID string, img *types.ProductImage) (*types.ProductImage, error) {
	if _, err := s.ownedProduct(merchantID, img.ProductID); err != nil {
		return nil, err
	}
	if img.ThumbnailURL == "" && img.PrimaryImageURL == "" && len(img.ImageURLs) == 0 {
		return nil, fmt.Errorf("image row needs at least one URL")
	}
	img.ID = uuid.NewString()

	if err := s.store.CreateProductImage(img); err != nil {
		logging.AuditFailure(logging.AuditImageUpload, merchantID, img.ProductID, err)
		return nil, err
	}
	logging.AuditSuccess(logging.AuditImageUpload, merchantID, img.ID, img.ProductID)
	return s.store.GetProductImage(img.ID)
}

// DashboardStats gathers the merchant's storefront health counters. The
// queries are independent, so they fan out concurrently.
func (s *Service) DashboardStats(ctx context.Context, merchantID string) (*types.DashboardStats, error) {
	var stats types.DashboardStats

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, active, err := s.store.CountProducts(merchantID)
		stats.ProductCount, stats.ActiveCount = total, active
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountLowStock(merchantID, lowStockThreshold)
		stats.LowStockCount = n
		return err
	})
	g.Go(func() error {
		orders, revenue, err := s.store.MerchantOrderStats(merchantID)
		stats.OrderCount, stats.GrossRevenueINR = orders, revenue
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Owns loads a product and checks it belongs to the merchant. Exposed for
// handlers that gate cross-cutting actions (analysis, description apply) on
// product ownership.
func (s *Service) Owns(merchantID, productID string) (*types.Product, error) {
	return s.ownedProduct(merchantID, productID)
}

// ownedProduct loads a product and checks it belongs to the merchant.
func (s *Service) ownedProduct(merchantID, productID string) (*types.Product, error) {
	if merchantID == "" {
		return nil, fmt.Errorf("merchant id is required")
	}
	p, err := s.store.GetProduct(productID)
	if err != nil {
		return nil, err
	}
	if p.MerchantID != merchantID {
		return nil, store.ErrNotOwner
	}
	return p, nil
}

// reindex refreshes the product's embedding in the background. Search can
// lag a write; a failed refresh only logs.
func (s *Service) reindex(ctx context.Context, productID string) {
	if s.reindexer == nil {
		return
	}
	go func() {
		if err := s.reindexer.ReindexProduct(context.WithoutCancel(ctx), productID); err != nil {
			logging.Get(logging.CategoryMerchant).Warn("reindex %s failed: %v", productID, err)
		}
	}()
}

func validateProduct(p *types.Product) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return fmt.Errorf("product title is required")
	}
	if !types.ValidCategory(p.Category) {
		return fmt.Errorf("unknown category %q", p.Category)
	}
	if p.PriceINR < 0 {
		return fmt.Errorf("price must be a non-negative integer")
	}
	if p.StockQty < 0 {
		return fmt.Errorf("stock quantity must be non-negative")
	}
	return nil
}
