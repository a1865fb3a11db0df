package mwauth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bypptech/group-wallet-organizer/internal/api/middleware/mwauth"
	"github.com/bypptech/group-wallet-organizer/pkg/idwrap"
	"github.com/bypptech/group-wallet-organizer/pkg/stoken"
)

var secret = []byte("test-secret")

func echoMemberID(t *testing.T, got *idwrap.IDWrap) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := mwauth.GetContextMemberID(r.Context())
		require.NoError(t, err)
		*got = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestValidToken(t *testing.T) {
	memberID := idwrap.NewNow()
	token, err := stoken.New(memberID, secret, time.Hour)
	require.NoError(t, err)

	var got idwrap.IDWrap
	handler := mwauth.New(secret)(echoMemberID(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/v1/vaults", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, got.Compare(memberID))
}

func TestMissingHeader(t *testing.T) {
	handler := mwauth.New(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/vaults", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBadToken(t *testing.T) {
	handler := mwauth.New(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	for _, header := range []string{"Bearer garbage", "garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/vaults", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestLocalMode(t *testing.T) {
	var got idwrap.IDWrap
	handler := mwauth.NewLocal()(echoMemberID(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/v1/vaults", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, got.Compare(mwauth.LocalDummyID))
}
