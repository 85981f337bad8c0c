package identity

import (
	"fmt"
	"net/http"

	"github.com/openwifi/scan-server/internal/config"
)

// NewVerifier builds the verifier selected by cfg.Verifier.
func NewVerifier(cfg config.AuthConfig) (Verifier, error) {
	switch cfg.Verifier {
	case "", "tokeninfo":
		return NewTokenInfoVerifier(cfg.TokenInfoURL, &http.Client{Timeout: cfg.VerifyTimeout}), nil
	case "jwt":
		if len(cfg.JWKSURLs) > 0 {
			return NewJWKSVerifier(cfg.JWKSURLs)
		}
		return NewHMACVerifier(cfg.JWTSecret)
	default:
		return nil, fmt.Errorf("identity: unknown verifier %q", cfg.Verifier)
	}
}
