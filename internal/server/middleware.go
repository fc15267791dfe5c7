package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/scooply/scooply/internal/cart"
	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/types"
)

// cartTokenHeader carries the guest cart token for anonymous shoppers.
const cartTokenHeader = "X-Cart-Token"

type contextKey string

const identityKey contextKey = "identity"

// identityFrom returns the verified identity stashed by withIdentity, if any.
func identityFrom(ctx context.Context) *types.Identity {
	id, _ := ctx.Value(identityKey).(*types.Identity)
	return id
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// withIdentity resolves the bearer token, when present, and stores the
// identity on the request context. Requests without a token pass through
// anonymously; handlers that need identity use requireUser/requireMerchant.
func (s *Server) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// requireUser wraps a handler that needs any authenticated identity.
func requireUser(next func(w http.ResponseWriter, r *http.Request, id *types.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r.Context())
		if id == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, id)
	}
}

// requireMerchant wraps a handler that needs a merchant identity.
func requireMerchant(next func(w http.ResponseWriter, r *http.Request, id *types.Identity)) http.HandlerFunc {
	return requireUser(func(w http.ResponseWriter, r *http.Request, id *types.Identity) {
		if id.Role != types.RoleMerchant && id.Role != types.RoleService {
			writeError(w, http.StatusForbidden, "merchant account required")
			return
		}
		next(w, r, id)
	})
}

// cartOwner resolves which cart a request addresses: the user's cart when
// authenticated, otherwise the guest cart named by the X-Cart-Token header.
func cartOwner(r *http.Request) (cart.Owner, bool) {
	if id := identityFrom(r.Context()); id != nil {
		return cart.ForUser(id.UserID), true
	}
	if token := r.Header.Get(cartTokenHeader); token != "" {
		return cart.ForGuest(token), true
	}
	return cart.Owner{}, false
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests writes one line per request to the http category log.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logging.HTTP("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
