// Package identity resolves bearer tokens to depersonalized user ids.
//
// A token is verified once with its identity provider; the resulting user id
// is cached under a digest of the token for as long as the provider says the
// token lives.  Neither the token nor the provider's user id is ever stored
// or logged in the clear.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openwifi/scan-server/internal/cache"
)

// ErrVerification means the provider rejected the token or could not be
// reached.  The caller is treated as anonymous; the outcome is never cached.
var ErrVerification = errors.New("identity verification failed")

const keyPrefix = "auth:"

// TokenInfo is what a provider reports about a valid token.
type TokenInfo struct {
	UserID    string
	ExpiresIn time.Duration
}

// Verifier checks a token with an identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (TokenInfo, error)
}

// Cache maps tokens to depersonalized user ids.
type Cache struct {
	store    cache.Store
	verifier Verifier
	timeout  time.Duration
	log      zerolog.Logger
}

func NewCache(store cache.Store, v Verifier, timeout time.Duration, log zerolog.Logger) *Cache {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Cache{store: store, verifier: v, timeout: timeout, log: log}
}

// Authenticate returns the depersonalized user id for token.  An empty token
// is anonymous and yields "" without contacting the provider.  A failed
// verification yields "" and an error wrapping ErrVerification.
func (c *Cache) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	key := keyPrefix + Digest(token)

	uid, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Msg("identity cache read failed")
	} else if ok {
		return uid, nil
	}

	vctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	info, err := c.verifier.Verify(vctx, token)
	if err != nil {
		if errors.Is(err, ErrVerification) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if info.UserID == "" {
		return "", fmt.Errorf("%w: provider returned no user id", ErrVerification)
	}

	uid = Digest(info.UserID)
	if info.ExpiresIn > 0 {
		if err := c.store.Set(ctx, key, uid, info.ExpiresIn); err != nil {
			c.log.Warn().Err(err).Msg("identity cache write failed")
		}
	}
	return uid, nil
}
