// Package auth resolves caller identity. Tokens are minted and owned by the
// hosted platform; this package only verifies them and caches the result.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/scooply/scooply/internal/logging"
	"github.com/scooply/scooply/internal/types"
)

// ErrUnauthorized is returned when the platform rejects a token.
var ErrUnauthorized = errors.New("unauthorized")

// ServiceUserID identifies internal callers authenticated by the service
// role key rather than a platform token.
const ServiceUserID = "service"

// platformUser is the platform's /auth/v1/user response shape. Only the
// fields the storefront needs are decoded.
type platformUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Role string `json:"role"`
	} `json:"user_metadata"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

type cacheEntry struct {
	identity types.Identity
	expires  time.Time
}

// Verifier checks bearer tokens against the hosted platform and caches
// resolved identities for a short TTL so hot paths don't round-trip per
// request.
type Verifier struct {
	baseURL    string
	serviceKey string
	ttl        time.Duration
	client     *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewVerifier creates a verifier against the platform at baseURL. serviceKey
// may be empty, which disables the service role bypass.
func NewVerifier(baseURL, serviceKey string, verifyTimeout, cacheTTL time.Duration) *Verifier {
	if verifyTimeout <= 0 {
		verifyTimeout = 10 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Verifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		ttl:        cacheTTL,
		client:     &http.Client{Timeout: verifyTimeout},
		cache:      make(map[string]cacheEntry),
	}
}

// Verify resolves the identity behind a bearer token. The service role key
// short-circuits to a service identity without touching the platform.
func (v *Verifier) Verify(ctx context.Context, token string) (*types.Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	if v.serviceKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(v.serviceKey)) == 1 {
		return &types.Identity{UserID: ServiceUserID, Role: types.RoleService}, nil
	}

	key := cacheKey(token)
	if id, ok := v.cached(key); ok {
		return id, nil
	}

	identity, err := v.verifyRemote(ctx, token)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.cache[key] = cacheEntry{identity: *identity, expires: time.Now().Add(v.ttl)}
	// Opportunistic sweep so stale tokens don't accumulate unbounded.
	if len(v.cache) > 1024 {
		now := time.Now()
		for k, e := range v.cache {
			if now.After(e.expires) {
				delete(v.cache, k)
			}
		}
	}
	v.mu.Unlock()

	return identity, nil
}

// Invalidate drops a token from the cache. Used after logout.
func (v *Verifier) Invalidate(token string) {
	v.mu.Lock()
	delete(v.cache, cacheKey(token))
	v.mu.Unlock()
}

func (v *Verifier) cached(key string) (*types.Identity, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry, ok := v.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	id := entry.identity
	return &id, true
}

func (v *Verifier) verifyRemote(ctx context.Context, token string) (*types.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.serviceKey != "" {
		req.Header.Set("apikey", v.serviceKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		logging.Get(logging.CategoryAuth).Debug("platform rejected token: status %d", resp.StatusCode)
		return nil, ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("verify token: platform returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user platformUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode platform user: %w", err)
	}
	if user.ID == "" {
		return nil, ErrUnauthorized
	}

	role := types.RoleCustomer
	if user.AppMetadata.Role == types.RoleMerchant || user.UserMetadata.Role == types.RoleMerchant {
		role = types.RoleMerchant
	}

	return &types.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   role,
	}, nil
}

// cacheKey hashes the token so raw bearer tokens never sit in the map.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
