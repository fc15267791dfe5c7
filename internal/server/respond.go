package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scooply/scooply/internal/auth"
	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/store"
)

// errorEnvelope is the JSON body for every non-2xx response.
type errorEnvelope struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryHTTP).Error("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorEnvelope{Error: msg})
}

// writeServiceError maps service and store errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not your resource")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.Get(logging.CategoryHTTP).Error("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeValidationOrServiceError treats sentinel errors as service errors and
// everything else as a caller mistake. Used on write endpoints where the
// service layer validates input with plain errors.
func writeValidationOrServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrNotOwner) ||
		errors.Is(err, store.ErrInsufficientStock) ||
		errors.Is(err, store.ErrInvalidTransition) ||
		errors.Is(err, store.ErrEmptyCart) ||
		errors.Is(err, auth.ErrUnauthorized) {
		writeServiceError(w, err)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// decodeJSON reads a JSON request body into v. Unknown fields are rejected
// so typos surface instead of silently dropping data.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
