package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwifi/scan-server/internal/cache"
)

type stubVerifier struct {
	calls atomic.Int32
	info  TokenInfo
	err   error
}

func (s *stubVerifier) Verify(context.Context, string) (TokenInfo, error) {
	s.calls.Add(1)
	return s.info, s.err
}

func TestAuthenticateEmptyTokenIsAnonymous(t *testing.T) {
	v := &stubVerifier{}
	c := NewCache(cache.NewMemory(nil), v, time.Second, zerolog.Nop())

	uid, err := c.Authenticate(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, uid)
	assert.Zero(t, v.calls.Load())
}

func TestAuthenticateCachesDepersonalizedID(t *testing.T) {
	v := &stubVerifier{info: TokenInfo{UserID: "1234567890", ExpiresIn: time.Hour}}
	store := cache.NewMemory(nil)
	c := NewCache(store, v, time.Second, zerolog.Nop())
	ctx := context.Background()

	uid, err := c.Authenticate(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, Digest("1234567890"), uid)
	assert.NotContains(t, uid, "1234567890")

	again, err := c.Authenticate(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, uid, again)
	assert.EqualValues(t, 1, v.calls.Load())

	_, ok, err := store.Get(ctx, "auth:"+Digest("tok"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthenticateHonoursProviderLifetime(t *testing.T) {
	now := time.Unix(0, 0)
	v := &stubVerifier{info: TokenInfo{UserID: "u", ExpiresIn: time.Minute}}
	c := NewCache(cache.NewMemory(func() time.Time { return now }), v, time.Second, zerolog.Nop())
	ctx := context.Background()

	_, err := c.Authenticate(ctx, "tok")
	require.NoError(t, err)
	now = now.Add(time.Minute + time.Second)
	_, err = c.Authenticate(ctx, "tok")
	require.NoError(t, err)
	assert.EqualValues(t, 2, v.calls.Load())
}

func TestAuthenticateSkipsCacheForExpiredTokens(t *testing.T) {
	v := &stubVerifier{info: TokenInfo{UserID: "u", ExpiresIn: 0}}
	store := cache.NewMemory(nil)
	c := NewCache(store, v, time.Second, zerolog.Nop())

	uid, err := c.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, Digest("u"), uid)
	assert.Zero(t, store.Len())
}

func TestAuthenticateFailureIsNotCached(t *testing.T) {
	v := &stubVerifier{err: errors.New("boom")}
	store := cache.NewMemory(nil)
	c := NewCache(store, v, time.Second, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		uid, err := c.Authenticate(ctx, "tok")
		assert.ErrorIs(t, err, ErrVerification)
		assert.Empty(t, uid)
	}
	assert.EqualValues(t, 2, v.calls.Load())
	assert.Zero(t, store.Len())
}

func TestTokenInfoVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"user_id": "42", "expires_in": 3599})
	}))
	t.Cleanup(srv.Close)
	v := NewTokenInfoVerifier(srv.URL, srv.Client())

	info, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, TokenInfo{UserID: "42", ExpiresIn: 3599 * time.Second}, info)

	_, err = v.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrVerification)
}

func TestTokenInfoVerifierTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(release); srv.Close() })

	c := NewCache(cache.NewMemory(nil), NewTokenInfoVerifier(srv.URL, srv.Client()), 50*time.Millisecond, zerolog.Nop())
	uid, err := c.Authenticate(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrVerification)
	assert.NotContains(t, err.Error(), "slow")
	assert.Empty(t, uid)
}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestHMACVerifier(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, err := NewHMACVerifier("s3cret")
	require.NoError(t, err)
	v.now = func() time.Time { return now }

	tok := signHS256(t, "s3cret", jwt.MapClaims{"sub": "user-1", "exp": now.Add(10 * time.Minute).Unix()})
	info, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, TokenInfo{UserID: "user-1", ExpiresIn: 10 * time.Minute}, info)

	tests := map[string]string{
		"wrong secret": signHS256(t, "other", jwt.MapClaims{"sub": "user-1", "exp": now.Add(time.Minute).Unix()}),
		"expired":      signHS256(t, "s3cret", jwt.MapClaims{"sub": "user-1", "exp": now.Add(-time.Minute).Unix()}),
		"no subject":   signHS256(t, "s3cret", jwt.MapClaims{"exp": now.Add(time.Minute).Unix()}),
		"no expiry":    signHS256(t, "s3cret", jwt.MapClaims{"sub": "user-1"}),
		"garbage":      "not.a.jwt",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			assert.ErrorIs(t, err, ErrVerification)
		})
	}
}

func TestNewHMACVerifierRequiresSecret(t *testing.T) {
	_, err := NewHMACVerifier("")
	assert.Error(t, err)
}
