// Package server is the composition root: it wires the store, services and
// HTTP surface together and owns the listener lifecycle. No business logic
// lives here, only wiring and transport.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/scooply/scooply/internal/ai"
	"github.com/scooply/scooply/internal/auth"
	"github.com/scooply/scooply/internal/cart"
	"github.com/scooply/scooply/internal/catalog"
	"github.com/scooply/scooply/internal/checkout"
	"github.com/scooply/scooply/internal/config"
	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/merchant"
	"github.com/scooply/scooply/internal/profile"
	"github.com/scooply/scooply/internal/storage"
	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// TokenVerifier resolves bearer tokens to identities. Satisfied by
// auth.Verifier; tests inject fakes.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*types.Identity, error)
}

// Deps carries everything the server needs that has its own lifecycle or
// external credentials. Embedder, Generator and Blobs may be nil; the
// endpoints that need them degrade (keyword-only search, 503 on analyze).
type Deps struct {
	Store     *store.Store
	Verifier  TokenVerifier
	Embedder  catalog.Embedder
	Generator ai.ContentGenerator
	Blobs     *storage.BlobStore
}

// Server hosts the storefront REST API.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	verifier TokenVerifier
	blobs    *storage.BlobStore

	catalog   *catalog.Service
	carts     *cart.Service
	checkout  *checkout.Service
	profiles  *profile.Service
	merchants *merchant.Service
	analyzer  *ai.Analyzer

	httpServer *http.Server
}

// New wires the services and routes. This is the single place dependencies
// are resolved.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("server requires a store")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("server requires a token verifier")
	}

	catalogSvc := catalog.New(deps.Store, deps.Embedder)

	s := &Server{
		cfg:       cfg,
		store:     deps.Store,
		verifier:  deps.Verifier,
		blobs:     deps.Blobs,
		catalog:   catalogSvc,
		carts:     cart.New(deps.Store, cfg.Cart.MaxItemQuantity),
		checkout:  checkout.New(deps.Store),
		profiles:  profile.New(deps.Store),
		merchants: merchant.New(deps.Store, catalogSvc),
	}
	if deps.Generator != nil {
		s.analyzer = ai.NewAnalyzer(deps.Store, deps.Generator, cfg.GetDownloadTimeout())
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.withIdentity(logRequests(s.routes())),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}
	return s, nil
}

// Carts exposes the cart service for the serve command's sweep goroutine.
func (s *Server) Carts() *cart.Service {
	return s.carts
}

// Catalog exposes the catalog service for startup reindexing.
func (s *Server) Catalog() *catalog.Service {
	return s.catalog
}

// routes builds the API mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Customer catalog
	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", s.handleGetProduct)
	mux.HandleFunc("GET /api/search", s.handleSearch)

	// Cart (guest via X-Cart-Token, user via bearer token)
	mux.HandleFunc("GET /api/cart", s.handleGetCart)
	mux.HandleFunc("POST /api/cart", s.handleAddCartItem)
	mux.HandleFunc("PATCH /api/cart", s.handleUpdateCartItem)
	mux.HandleFunc("DELETE /api/cart", s.handleClearCart)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", s.handleRemoveCartItem)
	mux.HandleFunc("POST /api/cart/merge", requireUser(s.handleMergeCart))

	// Orders
	mux.HandleFunc("POST /api/orders", requireUser(s.handlePlaceOrder))
	mux.HandleFunc("GET /api/orders", requireUser(s.handleListOrders))
	mux.HandleFunc("GET /api/orders/{id}", requireUser(s.handleGetOrder))
	mux.HandleFunc("POST /api/orders/{id}/cancel", requireUser(s.handleCancelOrder))

	// Profile
	mux.HandleFunc("GET /api/profile", requireUser(s.handleGetProfile))
	mux.HandleFunc("PUT /api/profile", requireUser(s.handleUpsertProfile))

	// Merchant
	mux.HandleFunc("GET /api/merchant", requireMerchant(s.handleGetMerchant))
	mux.HandleFunc("PUT /api/merchant", requireMerchant(s.handleUpsertMerchant))
	mux.HandleFunc("GET /api/merchant/dashboard", requireMerchant(s.handleDashboard))
	mux.HandleFunc("GET /api/merchant/orders", requireMerchant(s.handleMerchantOrders))
	mux.HandleFunc("POST /api/merchant/orders/{id}/status", requireMerchant(s.handleOrderStatus))
	mux.HandleFunc("GET /api/merchant/products", requireMerchant(s.handleMerchantProducts))
	mux.HandleFunc("POST /api/merchant/products", requireMerchant(s.handleCreateProduct))
	mux.HandleFunc("PATCH /api/merchant/products/{id}", requireMerchant(s.handleUpdateProduct))
	mux.HandleFunc("DELETE /api/merchant/products/{id}", requireMerchant(s.handleDeleteProduct))
	mux.HandleFunc("POST /api/merchant/products/{id}/images", requireMerchant(s.handleUploadImage))
	mux.HandleFunc("POST /api/merchant/products/{id}/ai-description", requireMerchant(s.handleApplyDescription))

	// Analyzer (service role or owning merchant)
	mux.HandleFunc("POST /api/analyze", requireUser(s.handleAnalyze))

	// Image blobs
	if s.blobs != nil {
		mux.Handle("GET "+storage.MediaPrefix, http.StripPrefix(storage.MediaPrefix, http.FileServer(http.Dir(s.blobs.Dir()))))
	}

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Boot("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logging.Boot("HTTP server stopped")
	return nil
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"name":    s.cfg.Name,
		"version": s.cfg.Version,
	})
}

var _ TokenVerifier = (*auth.Verifier)(nil)
