package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// doJSON runs a request through the full middleware stack and decodes the
// response body into out (when non-nil).
func doJSON(t *testing.T, srv *Server, method, path string, body interface{}, headers map[string]string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func asCustomer(h map[string]string) map[string]string {
	if h == nil {
		h = map[string]string{}
	}
	h["Authorization"] = "Bearer customer-token"
	return h
}

func asMerchant(h map[string]string) map[string]string {
	if h == nil {
		h = map[string]string{}
	}
	h["Authorization"] = "Bearer merchant-token"
	return h
}

func seedProduct(t *testing.T, s *store.Store, merchantID string, price, stock int64) *types.Product {
	t.Helper()
	p := &types.Product{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		Title:      "Alphonso Mango Scoop",
		Category:   types.CategoryIceCream,
		PriceINR:   price,
		StockQty:   stock,
		Active:     true,
	}
	require.NoError(t, s.CreateProduct(p))
	return p
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	var resp map[string]string
	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil, nil, &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])
}

func TestListAndGetProducts(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProduct(t, st, "m1", 120, 10)
	inactive := seedProduct(t, st, "m1", 90, 5)
	require.NoError(t, st.DeactivateProduct(inactive.ID))

	var list struct {
		Products []*types.Product `json:"products"`
	}
	rec := doJSON(t, srv, http.MethodGet, "/api/products", nil, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list.Products, 1)
	assert.Equal(t, p.ID, list.Products[0].ID)

	var detail productDetail
	rec = doJSON(t, srv, http.MethodGet, "/api/products/"+p.ID, nil, nil, &detail)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, p.ID, detail.Product.ID)
	assert.NotNil(t, detail.Images)

	rec = doJSON(t, srv, http.MethodGet, "/api/products/"+uuid.NewString(), nil, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/products?category=milkshake", nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch(t *testing.T) {
	srv, st := newTestServer(t)
	seedProduct(t, st, "m1", 120, 10)

	var resp struct {
		Products []*types.Product `json:"products"`
	}
	rec := doJSON(t, srv, http.MethodGet, "/api/search?q=mango", nil, nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Products, 1)

	rec = doJSON(t, srv, http.MethodGet, "/api/search", nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type cartResponse struct {
	Items    []types.CartItem `json:"items"`
	TotalINR int64            `json:"total_inr"`
}

func TestGuestCartFlow(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProduct(t, st, "m1", 60, 10)
	guest := map[string]string{cartTokenHeader: uuid.NewString()}

	// No identity at all is a 401.
	rec := doJSON(t, srv, http.MethodGet, "/api/cart", nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var c cartResponse
	rec = doJSON(t, srv, http.MethodPost, "/api/cart", cartItemRequest{ProductID: p.ID, Quantity: 2}, guest, &c)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(120), c.TotalINR)

	rec = doJSON(t, srv, http.MethodPatch, "/api/cart", cartItemRequest{ProductID: p.ID, Quantity: 5}, guest, &c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), c.Items[0].Quantity)

	rec = doJSON(t, srv, http.MethodDelete, "/api/cart/items/"+p.ID, nil, guest, &c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, c.Items)

	rec = doJSON(t, srv, http.MethodPost, "/api/cart", cartItemRequest{ProductID: p.ID, Quantity: 1}, guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodDelete, "/api/cart", nil, guest, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Bad payloads
	rec = doJSON(t, srv, http.MethodPost, "/api/cart", cartItemRequest{ProductID: p.ID, Quantity: 0}, guest, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/cart", cartItemRequest{ProductID: uuid.NewString(), Quantity: 1}, guest, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartMergeOnLogin(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProduct(t, st, "m1", 60, 10)

	token := uuid.NewString()
	guest := map[string]string{cartTokenHeader: token}
	rec := doJSON(t, srv, http.MethodPost, "/api/cart", cartItemRequest{ProductID: p.ID, Quantity: 2}, guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// User already has one unit in their cart.
	rec = doJSON(t, srv, http.MethodPost, "/api/cart", cartItemRequest{ProductID: p.ID, Quantity: 1}, asCustomer(nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var merged cartResponse
	rec = doJSON(t, srv, http.MethodPost, "/api/cart/merge", mergeRequest{GuestToken: token}, asCustomer(nil), &merged)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, merged.Items, 1)
	assert.Equal(t, int64(3), merged.Items[0].Quantity)

	// Merge requires authentication and a token.
	rec = doJSON(t, srv, http.MethodPost, "/api/cart/merge", mergeRequest{GuestToken: token}, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/cart/merge", nil, asCustomer(nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderFlow(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProduct(t, st, "m1", 60, 10)

	rec := doJSON(t, srv, http.MethodPost, "/api/cart", cartItemRequest{ProductID: p.ID, Quantity: 3}, asCustomer(nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var placed struct {
		Order *types.Order `json:"order"`
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/orders", nil, asCustomer(nil), &placed)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(180), placed.Order.TotalINR)

	var list struct {
		Orders []*types.Order `json:"orders"`
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/orders", nil, asCustomer(nil), &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list.Orders, 1)

	var got struct {
		Order *types.Order `json:"order"`
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/orders/"+placed.Order.ID, nil, asCustomer(nil), &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, placed.Order.ID, got.Order.ID)

	// Another customer cannot see it.
	rec = doJSON(t, srv, http.MethodGet, "/api/orders/"+placed.Order.ID, nil,
		map[string]string{"Authorization": "Bearer customer2-token"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Placing from the now-empty cart fails.
	rec = doJSON(t, srv, http.MethodPost, "/api/orders", nil, asCustomer(nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Cancel restores stock.
	rec = doJSON(t, srv, http.MethodPost, "/api/orders/"+placed.Order.ID+"/cancel", nil, asCustomer(nil), &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.OrderCancelled, got.Order.Status)

	// Unauthenticated order access is a 401.
	rec = doJSON(t, srv, http.MethodGet, "/api/orders", nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileUpsert(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/profile", nil, asCustomer(nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Profile *types.Profile `json:"profile"`
	}
	rec = doJSON(t, srv, http.MethodPut, "/api/profile",
		types.Profile{DisplayName: "Asha", City: "Kochi", Pincode: "682001"}, asCustomer(nil), &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "u1", resp.Profile.UserID)

	rec = doJSON(t, srv, http.MethodGet, "/api/profile", nil, asCustomer(nil), &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Asha", resp.Profile.DisplayName)

	rec = doJSON(t, srv, http.MethodPut, "/api/profile", types.Profile{Pincode: "1"}, asCustomer(nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMerchantEndpointsRequireMerchantRole(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/merchant/dashboard", nil, asCustomer(nil), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/merchant/dashboard", nil, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMerchantProductCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	var saved struct {
		Merchant *types.Merchant `json:"merchant"`
	}
	rec := doJSON(t, srv, http.MethodPut, "/api/merchant",
		types.Merchant{ShopName: "Frost & Flake", City: "Pune"}, asMerchant(nil), &saved)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "m1", saved.Merchant.UserID)

	var created struct {
		Product *types.Product `json:"product"`
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/merchant/products", types.Product{
		Title:    "Tender Coconut Ice Cream",
		Category: types.CategoryIceCream,
		PriceINR: 150,
		StockQty: 20,
	}, asMerchant(nil), &created)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "m1", created.Product.MerchantID)

	created.Product.PriceINR = 170
	var updated struct {
		Product *types.Product `json:"product"`
	}
	rec = doJSON(t, srv, http.MethodPatch, "/api/merchant/products/"+created.Product.ID,
		created.Product, asMerchant(nil), &updated)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(170), updated.Product.PriceINR)

	// A rival merchant cannot touch it.
	rec = doJSON(t, srv, http.MethodPatch, "/api/merchant/products/"+created.Product.ID,
		created.Product, map[string]string{"Authorization": "Bearer merchant2-token"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/merchant/products/"+created.Product.ID, nil, asMerchant(nil), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	var list struct {
		Products []*types.Product `json:"products"`
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/merchant/products", nil, asMerchant(nil), &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list.Products, 1)
	assert.False(t, list.Products[0].Active)
}

func TestMerchantDashboard(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProduct(t, st, "m1", 100, 10)

	rec := doJSON(t, srv, http.MethodPost, "/api/cart", cartItemRequest{ProductID: p.ID, Quantity: 2}, asCustomer(nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/api/orders", nil, asCustomer(nil), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Stats *types.DashboardStats `json:"stats"`
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/merchant/dashboard", nil, asMerchant(nil), &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), resp.Stats.ProductCount)
	assert.Equal(t, int64(1), resp.Stats.OrderCount)
	assert.Equal(t, int64(200), resp.Stats.GrossRevenueINR)
}

func TestMerchantOrderStatusFlow(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProduct(t, st, "m1", 100, 10)

	rec := doJSON(t, srv, http.MethodPost, "/api/cart", cartItemRequest{ProductID: p.ID, Quantity: 1}, asCustomer(nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var placed struct {
		Order *types.Order `json:"order"`
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/orders", nil, asCustomer(nil), &placed)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Order *types.Order `json:"order"`
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/merchant/orders/"+placed.Order.ID+"/status",
		statusRequest{Status: types.OrderConfirmed}, asMerchant(nil), &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.OrderConfirmed, resp.Order.Status)

	// Skipping to an invalid transition conflicts.
	rec = doJSON(t, srv, http.MethodPost, "/api/merchant/orders/"+placed.Order.ID+"/status",
		statusRequest{Status: types.OrderConfirmed}, asMerchant(nil), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A merchant with no line in the order is forbidden.
	rec = doJSON(t, srv, http.MethodPost, "/api/merchant/orders/"+placed.Order.ID+"/status",
		statusRequest{Status: types.OrderFulfilled}, map[string]string{"Authorization": "Bearer merchant2-token"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var orders struct {
		Orders []*types.Order `json:"orders"`
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/merchant/orders", nil, asMerchant(nil), &orders)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, orders.Orders, 1)
}

func TestUploadImage(t *testing.T) {
	srv, st := newTestServer(t)
	p := seedProduct(t, st, "m1", 100, 10)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image", "scoop.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/merchant/products/"+p.ID+"/images", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer merchant-token")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// No blob store configured in the default test server.
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInvalidBearerToken(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/products", nil,
		map[string]string{"Authorization": "Bearer nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyzeWithoutGenerator(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/analyze",
		analyzeRequest{ImageURL: "http://example.com/x.jpg"},
		map[string]string{"Authorization": "Bearer service-token"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
