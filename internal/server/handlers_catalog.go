package server

import (
	"net/http"
	"strconv"

	"github.com/scooply/scooply/internal/store"
	"github.com/scooply/scooply/internal/types"
)

// productDetail is the GET /api/products/{id} response.
type productDetail struct {
	Product *types.Product        `json:"product"`
	Images  []*types.ProductImage `json:"images"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProductFilter{
		Category:   q.Get("category"),
		MerchantID: q.Get("merchant"),
		Limit:      queryInt(q.Get("limit")),
		Offset:     queryInt(q.Get("offset")),
	}

	products, err := s.catalog.Browse(filter)
	if err != nil {
		if err == store.ErrNotFound {
			writeServiceError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": emptyIfNil(products)})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, images, err := s.catalog.GetProduct(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if images == nil {
		images = []*types.ProductImage{}
	}
	writeJSON(w, http.StatusOK, productDetail{Product: p, Images: images})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	products, err := s.catalog.Search(r.Context(), query, queryInt(q.Get("limit")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": emptyIfNil(products)})
}

func queryInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

// emptyIfNil keeps list responses as [] instead of null.
func emptyIfNil(products []*types.Product) []*types.Product {
	if products == nil {
		return []*types.Product{}
	}
	return products
}
