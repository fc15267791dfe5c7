package server

import (
	"net/http"

	"github.com/scooply/scooply/internal/types"
)

func (s *Server) handleGetMerchant(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	m, err := s.merchants.Get(id.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"merchant": m})
}

func (s *Server) handleUpsertMerchant(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	var m types.Merchant
	if err := decodeJSON(r, &m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	saved, err := s.merchants.Upsert(id.UserID, &m)
	if err != nil {
		writeValidationOrServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"merchant": saved})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	stats, err := s.merchants.DashboardStats(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (s *Server) handleMerchantProducts(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	products, err := s.merchants.ListProducts(id.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"products": emptyIfNil(products)})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	var p types.Product
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.merchants.CreateProduct(r.Context(), id.UserID, &p)
	if err != nil {
		writeValidationOrServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"product": created})
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	var p types.Product
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = r.PathValue("id")

	updated, err := s.merchants.UpdateProduct(r.Context(), id.UserID, &p)
	if err != nil {
		writeValidationOrServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"product": updated})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	if err := s.merchants.DeleteProduct(r.Context(), id.UserID, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleUploadImage accepts a multipart upload, stores the blob and attaches
// an image row to the product. Field name: "image".
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	if s.blobs == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage not configured")
		return
	}

	if err := r.ParseMultipartForm(s.cfg.Media.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image field")
		return
	}
	defer file.Close()

	url, err := s.blobs.Put(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := s.merchants.AttachProductImage(id.UserID, &types.ProductImage{
		ProductID:    r.PathValue("id"),
		ThumbnailURL: url,
	})
	if err != nil {
		// The blob is orphaned if attach fails; clean it up.
		_ = s.blobs.Delete(url)
		writeValidationOrServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"image": img})
}

// applyDescriptionRequest is the POST .../ai-description body.
type applyDescriptionRequest struct {
	Description string `json:"description"`
}

// handleApplyDescription copies an analyzer-generated description onto one
// of the merchant's products.
func (s *Server) handleApplyDescription(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analyzer not configured")
		return
	}

	var req applyDescriptionRequest
	if err := decodeJSON(r, &req); err != nil || req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	productID := r.PathValue("id")
	if id.Role != types.RoleService {
		if _, err := s.merchants.Owns(id.UserID, productID); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	if err := s.analyzer.ApplyAnalysis(productID, &types.Analysis{Description: req.Description}); err != nil {
		writeValidationOrServiceError(w, err)
		return
	}

	p, _, err := s.catalog.GetProduct(productID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"product": p})
}
