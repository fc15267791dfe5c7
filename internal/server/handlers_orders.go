package server

import (
	"net/http"

	"github.com/scooply/scooply/internal/types"
)

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	o, err := s.checkout.PlaceOrder(id.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"order": o})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	orders, err := s.checkout.ListOrders(id.UserID, queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []*types.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	o, err := s.checkout.GetOrder(id.UserID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": o})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	o, err := s.checkout.CancelOrder(id.UserID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": o})
}

// statusRequest is the POST /api/merchant/orders/{id}/status body.
type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleMerchantOrders(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	orders, err := s.checkout.ListMerchantOrders(id.UserID, queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []*types.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	switch req.Status {
	case types.OrderConfirmed, types.OrderFulfilled, types.OrderCancelled:
	default:
		writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	o, err := s.checkout.AdvanceOrderStatus(id.UserID, r.PathValue("id"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"order": o})
}
