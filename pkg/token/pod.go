package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxora/voxora/pkg/kv"
)

const (
	patPrefix = "pat"
	prtPrefix = "prt"
	wstPrefix = "wst"

	patKeyPrefix = "pod:pat:"
	rtKeyPrefix  = "pod:rt:"
	wstKeyPrefix = "pod:wst:"

	// AccessTokenTTL is the Pod access token lifetime.
	AccessTokenTTL = 3600 * time.Second
	// RefreshTokenTTL is the Pod refresh token lifetime.
	RefreshTokenTTL = 30 * 24 * time.Hour
	// WSTicketTTL is the WebSocket ticket lifetime.
	WSTicketTTL = 30 * time.Second
)

// PATData is the KV payload stored for a Pod access token.
type PATData struct {
	UserID string `json:"user_id"`
}

// RefreshData is the KV payload stored for a Pod refresh token.
type RefreshData struct {
	UserID string `json:"user_id"`
}

// WSTicketData is the KV payload stored for a WebSocket ticket.
type WSTicketData struct {
	UserID string `json:"user_id"`
}

// PodService issues and consumes the Pod side of the opaque-token
// lifecycle: access tokens, refresh tokens, and WebSocket tickets.
type PodService struct {
	store kv.Store
}

// NewPodService wraps a KV store with the Pod token lifecycle.
func NewPodService(store kv.Store) *PodService {
	return &PodService{store: store}
}

// IssueAccessToken mints a PAT for userID.
func (s *PodService) IssueAccessToken(ctx context.Context, userID string) (string, error) {
	tok, err := Generate(patPrefix)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(PATData{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("encoding PAT data: %w", err)
	}
	if err := s.store.SetEx(ctx, patKeyPrefix+tok, string(data), AccessTokenTTL); err != nil {
		return "", fmt.Errorf("storing PAT: %w", err)
	}
	return tok, nil
}

// LookupAccessToken performs a non-destructive lookup of a PAT.
func (s *PodService) LookupAccessToken(ctx context.Context, tok string) (*PATData, error) {
	raw, ok, err := s.store.Get(ctx, patKeyPrefix+tok)
	if err != nil {
		return nil, fmt.Errorf("looking up PAT: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var data PATData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decoding PAT data: %w", err)
	}
	return &data, nil
}

// IssueRefreshToken mints a PRT for userID.
func (s *PodService) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	tok, err := Generate(prtPrefix)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(RefreshData{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("encoding refresh data: %w", err)
	}
	if err := s.store.SetEx(ctx, rtKeyPrefix+tok, string(data), RefreshTokenTTL); err != nil {
		return "", fmt.Errorf("storing refresh token: %w", err)
	}
	return tok, nil
}

// ConsumeRefreshToken performs a single-use, get-then-delete consumption
// of a PRT. A second call for the same token returns ok=false.
func (s *PodService) ConsumeRefreshToken(ctx context.Context, tok string) (*RefreshData, bool, error) {
	raw, ok, err := kv.Consume(ctx, s.store, rtKeyPrefix+tok)
	if err != nil || !ok {
		return nil, false, err
	}
	var data RefreshData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false, fmt.Errorf("decoding refresh data: %w", err)
	}
	return &data, true, nil
}

// IssueWSTicket mints a single-use WebSocket ticket for userID.
func (s *PodService) IssueWSTicket(ctx context.Context, userID string) (string, error) {
	tok, err := Generate(wstPrefix)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(WSTicketData{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("encoding ws ticket data: %w", err)
	}
	if err := s.store.SetEx(ctx, wstKeyPrefix+tok, string(data), WSTicketTTL); err != nil {
		return "", fmt.Errorf("storing ws ticket: %w", err)
	}
	return tok, nil
}

// ConsumeWSTicket performs a single-use, get-then-delete consumption of
// a WebSocket ticket.
func (s *PodService) ConsumeWSTicket(ctx context.Context, tok string) (*WSTicketData, bool, error) {
	raw, ok, err := kv.Consume(ctx, s.store, wstKeyPrefix+tok)
	if err != nil || !ok {
		return nil, false, err
	}
	var data WSTicketData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false, fmt.Errorf("decoding ws ticket data: %w", err)
	}
	return &data, true, nil
}
