package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// TokenInfoVerifier asks a tokeninfo endpoint about an OAuth access token.
// The endpoint answers {"user_id": "...", "expires_in": seconds} for live
// tokens and a non-200 status otherwise.
type TokenInfoVerifier struct {
	endpoint string
	client   *http.Client
}

func NewTokenInfoVerifier(endpoint string, client *http.Client) *TokenInfoVerifier {
	if client == nil {
		client = &http.Client{}
	}
	return &TokenInfoVerifier{endpoint: endpoint, client: client}
}

type tokenInfoResponse struct {
	UserID    string `json:"user_id"`
	ExpiresIn int64  `json:"expires_in"`
}

func (v *TokenInfoVerifier) Verify(ctx context.Context, token string) (TokenInfo, error) {
	u, err := url.Parse(v.endpoint)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("tokeninfo url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("tokeninfo request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		// *url.Error embeds the request url, which carries the token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return TokenInfo{}, fmt.Errorf("%w: tokeninfo: %v", ErrVerification, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return TokenInfo{}, fmt.Errorf("%w: tokeninfo status %d", ErrVerification, resp.StatusCode)
	}
	var body tokenInfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: tokeninfo body: %v", ErrVerification, err)
	}
	return TokenInfo{
		UserID:    body.UserID,
		ExpiresIn: time.Duration(body.ExpiresIn) * time.Second,
	}, nil
}
