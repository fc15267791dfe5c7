package server

import (
	"net/http"

	"github.com/scooply/scooply/internal/types"
)

// cartItemRequest is the POST/PATCH /api/cart body.
type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// mergeRequest is the POST /api/cart/merge body. The guest token may also
// arrive via the X-Cart-Token header.
type mergeRequest struct {
	GuestToken string `json:"guest_token"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "bearer token or X-Cart-Token required")
		return
	}
	c, err := s.carts.Get(owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "bearer token or X-Cart-Token required")
		return
	}

	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	c, err := s.carts.AddItem(owner, req.ProductID, req.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "bearer token or X-Cart-Token required")
		return
	}

	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	c, err := s.carts.UpdateItemQuantity(owner, req.ProductID, req.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "bearer token or X-Cart-Token required")
		return
	}
	c, err := s.carts.RemoveItem(owner, r.PathValue("productID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	owner, ok := cartOwner(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "bearer token or X-Cart-Token required")
		return
	}
	if err := s.carts.Clear(owner); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMergeCart(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	var req mergeRequest
	if err := decodeJSON(r, &req); err == nil && req.GuestToken != "" {
		// body token wins
	} else {
		req.GuestToken = r.Header.Get(cartTokenHeader)
	}
	if req.GuestToken == "" {
		writeError(w, http.StatusBadRequest, "guest_token (body) or X-Cart-Token header required")
		return
	}

	c, err := s.carts.MergeOnLogin(req.GuestToken, id.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

// writeCart serializes a cart with its running total.
func writeCart(w http.ResponseWriter, status int, c *types.Cart) {
	items := c.Items
	if items == nil {
		items = []types.CartItem{}
	}
	writeJSON(w, status, map[string]interface{}{
		"cart":      c,
		"items":     items,
		"total_inr": c.TotalINR(),
	})
}
