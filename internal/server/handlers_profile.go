package server

import (
	"net/http"

	"github.com/scooply/scooply/internal/types"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	p, err := s.profiles.Get(id.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profile": p})
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request, id *types.Identity) {
	var p types.Profile
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	saved, err := s.profiles.Upsert(id.UserID, &p)
	if err != nil {
		writeValidationOrServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profile": saved})
}
