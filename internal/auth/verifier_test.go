package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scooply/scooply/internal/types"
)

// platformServer fakes the hosted auth endpoint. Tokens in users resolve;
// everything else gets a 401.
func platformServer(t *testing.T, users map[string]string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Path != "/auth/v1/user" {
			http.NotFound(w, r)
			return
		}
		token := r.Header.Get("Authorization")
		body, ok := users[token]
		if !ok {
			http.Error(w, `{"msg":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerify_Customer(t *testing.T) {
	srv := platformServer(t, map[string]string{
		"Bearer tok-1": `{"id":"u-1","email":"asha@example.com","user_metadata":{},"app_metadata":{}}`,
	}, nil)

	v := NewVerifier(srv.URL, "", 5*time.Second, time.Minute)
	id, err := v.Verify(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, "asha@example.com", id.Email)
	assert.Equal(t, types.RoleCustomer, id.Role)
}

func TestVerify_MerchantRoleFromMetadata(t *testing.T) {
	srv := platformServer(t, map[string]string{
		"Bearer tok-app":  `{"id":"u-2","email":"m@example.com","app_metadata":{"role":"merchant"}}`,
		"Bearer tok-user": `{"id":"u-3","email":"n@example.com","user_metadata":{"role":"merchant"}}`,
	}, nil)

	v := NewVerifier(srv.URL, "", 5*time.Second, time.Minute)

	id, err := v.Verify(context.Background(), "tok-app")
	require.NoError(t, err)
	assert.Equal(t, types.RoleMerchant, id.Role)

	id, err = v.Verify(context.Background(), "tok-user")
	require.NoError(t, err)
	assert.Equal(t, types.RoleMerchant, id.Role)
}

func TestVerify_RejectedToken(t *testing.T) {
	srv := platformServer(t, nil, nil)
	v := NewVerifier(srv.URL, "", 5*time.Second, time.Minute)

	_, err := v.Verify(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerify_CachesIdentity(t *testing.T) {
	var hits atomic.Int64
	srv := platformServer(t, map[string]string{
		"Bearer tok-1": `{"id":"u-1","email":"a@example.com"}`,
	}, &hits)

	v := NewVerifier(srv.URL, "", 5*time.Second, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := v.Verify(context.Background(), "tok-1")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestVerify_CacheExpires(t *testing.T) {
	var hits atomic.Int64
	srv := platformServer(t, map[string]string{
		"Bearer tok-1": `{"id":"u-1","email":"a@example.com"}`,
	}, &hits)

	v := NewVerifier(srv.URL, "", 5*time.Second, 10*time.Millisecond)

	_, err := v.Verify(context.Background(), "tok-1")
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = v.Verify(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestVerify_Invalidate(t *testing.T) {
	var hits atomic.Int64
	srv := platformServer(t, map[string]string{
		"Bearer tok-1": `{"id":"u-1","email":"a@example.com"}`,
	}, &hits)

	v := NewVerifier(srv.URL, "", 5*time.Second, time.Minute)

	_, err := v.Verify(context.Background(), "tok-1")
	require.NoError(t, err)

	v.Invalidate("tok-1")

	_, err = v.Verify(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestVerify_ServiceKeyBypassesPlatform(t *testing.T) {
	var hits atomic.Int64
	srv := platformServer(t, nil, &hits)

	v := NewVerifier(srv.URL, "svc-key", 5*time.Second, time.Minute)

	id, err := v.Verify(context.Background(), "svc-key")
	require.NoError(t, err)
	assert.Equal(t, ServiceUserID, id.UserID)
	assert.Equal(t, types.RoleService, id.Role)
	assert.Equal(t, int64(0), hits.Load())
}

func TestVerify_PlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL, "", 5*time.Second, time.Minute)
	_, err := v.Verify(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
