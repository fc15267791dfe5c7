package server

import (
	"net/http"

	"github.com/scooply/scooply/internal/types"
)

// analyzeRequest triggers the image analyzer. Exactly one of the fields is
// needed; with an ID the result is persisted onto the image row.
type analyzeRequest struct {
	ProductImageID string `json:"product_image_id"`
	ImageURL       string `json:"image_url"`
}

// handleAnalyze runs Gemini analysis over a product photo. Allowed for the
// service role, and for merchants on their own product images.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analyzer not configured")
		return
	}

	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProductImageID == "" && req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "product_image_id or image_url required")
		return
	}

	switch id.Role {
	case types.RoleService:
		// internal job, no ownership check
	case types.RoleMerchant:
		if req.ProductImageID != "" {
			if err := s.merchantOwnsImage(id.UserID, req.ProductImageID); err != nil {
				writeServiceError(w, err)
				return
			}
		}
	default:
		writeError(w, http.StatusForbidden, "merchant or service access required")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req.ProductImageID, req.ImageURL)
	if err != nil {
		writeValidationOrServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// merchantOwnsImage checks the image's product belongs to the merchant.
func (s *Server) merchantOwnsImage(merchantID, imageID string) error {
	img, err := s.store.GetProductImage(imageID)
	if err != nil {
		return err
	}
	_, err = s.merchants.Owns(merchantID, img.ProductID)
	return err
}
