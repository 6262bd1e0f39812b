// Package authhub implements the Hub side of the federation boundary:
// JWKS exposure and SIA minting for an already-authenticated caller. The
// OAuth/OIDC code-grant flow that would normally produce a Hub access
// token is out of scope (spec Non-goals); this package only covers what
// sits downstream of it.
package authhub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxora/voxora/pkg/kv"
	"github.com/voxora/voxora/pkg/token"
)

const (
	hatPrefix = "hat"
	hrtPrefix = "hrt"
	hacPrefix = "hac"

	atKeyPrefix   = "hub:at:"
	codeKeyPrefix = "hub:code:"

	// AccessTokenTTL is the Hub access token lifetime.
	AccessTokenTTL = 900 * time.Second
	// RefreshTokenTTL is the Hub refresh token lifetime.
	RefreshTokenTTL = 30 * 24 * time.Hour
	// AuthCodeTTL is the Hub authorization code lifetime.
	AuthCodeTTL = 60 * time.Second
)

// AccessTokenData is the KV payload stored for a Hub access token.
type AccessTokenData struct {
	UserID string   `json:"user_id"`
	Scopes []string `json:"scopes"`
}

// AuthCodeData is the KV payload stored for a Hub authorization code.
type AuthCodeData struct {
	UserID              string   `json:"user_id"`
	ClientID            string   `json:"client_id"`
	RedirectURI         string   `json:"redirect_uri"`
	CodeChallenge       string   `json:"code_challenge"`
	Scopes              []string `json:"scopes"`
	Nonce               string   `json:"nonce"`
}

// TokenService issues and consumes the Hub side of the opaque-token
// lifecycle.
type TokenService struct {
	store kv.Store
}

// NewTokenService wraps a KV store with the Hub token lifecycle.
func NewTokenService(store kv.Store) *TokenService {
	return &TokenService{store: store}
}

// IssueAccessToken mints a Hub access token.
func (s *TokenService) IssueAccessToken(ctx context.Context, userID string, scopes []string) (string, error) {
	tok, err := token.Generate(hatPrefix)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(AccessTokenData{UserID: userID, Scopes: scopes})
	if err != nil {
		return "", fmt.Errorf("encoding access token data: %w", err)
	}
	if err := s.store.SetEx(ctx, atKeyPrefix+tok, string(data), AccessTokenTTL); err != nil {
		return "", fmt.Errorf("storing access token: %w", err)
	}
	return tok, nil
}

// LookupAccessToken performs a non-destructive lookup of a Hub access
// token, used to authenticate the caller of POST /sia/mint.
func (s *TokenService) LookupAccessToken(ctx context.Context, tok string) (*AccessTokenData, error) {
	raw, ok, err := s.store.Get(ctx, atKeyPrefix+tok)
	if err != nil {
		return nil, fmt.Errorf("looking up access token: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var data AccessTokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decoding access token data: %w", err)
	}
	return &data, nil
}

// IssueRefreshToken mints a Hub refresh token.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	tok, err := token.Generate(hrtPrefix)
	if err != nil {
		return "", err
	}
	if err := s.store.SetEx(ctx, atKeyPrefix+"rt:"+tok, userID, RefreshTokenTTL); err != nil {
		return "", fmt.Errorf("storing refresh token: %w", err)
	}
	return tok, nil
}

// StoreAuthCode records an authorization code produced by the (out of
// scope) OAuth/OIDC authorization endpoint.
func (s *TokenService) StoreAuthCode(ctx context.Context, data AuthCodeData) (string, error) {
	code, err := token.Generate(hacPrefix)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding auth code data: %w", err)
	}
	if err := s.store.SetEx(ctx, codeKeyPrefix+code, string(raw), AuthCodeTTL); err != nil {
		return "", fmt.Errorf("storing auth code: %w", err)
	}
	return code, nil
}

// ConsumeAuthCode performs a single-use, get-then-delete consumption of
// an authorization code.
func (s *TokenService) ConsumeAuthCode(ctx context.Context, code string) (*AuthCodeData, bool, error) {
	raw, ok, err := kv.Consume(ctx, s.store, codeKeyPrefix+code)
	if err != nil || !ok {
		return nil, false, err
	}
	var data AuthCodeData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false, fmt.Errorf("decoding auth code data: %w", err)
	}
	return &data, true, nil
}
