package podauth

import (
	"context"
	"log/slog"

	"github.com/voxora/voxora/internal/httpserver"
	"github.com/voxora/voxora/pkg/kv"
	"github.com/voxora/voxora/pkg/sia"
	"github.com/voxora/voxora/pkg/signing"
	"github.com/voxora/voxora/pkg/token"
)

// LoginResult is the response shape for a successful login or refresh.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	WSTicket     string
	User         *LocalUser
}

// Service implements spec.md §4.D's login and refresh procedures.
type Service struct {
	jwks       *signing.JWKSCache
	store      kv.Store
	users      UserStore
	tokens     *token.PodService
	logger     *slog.Logger
	podID      string
	hubOrigin  string
}

// NewService wires a Service. podID and hubOrigin are the expected
// audience and issuer a presented SIA must carry.
func NewService(jwks *signing.JWKSCache, store kv.Store, users UserStore, tokens *token.PodService, logger *slog.Logger, podID, hubOrigin string) *Service {
	return &Service{jwks: jwks, store: store, users: users, tokens: tokens, logger: logger, podID: podID, hubOrigin: hubOrigin}
}

// Login consumes a SIA per spec.md §4.C, upserts the local user,
// rejects banned users, and mints the full token triple.
func (s *Service) Login(ctx context.Context, rawSIA string) (*LoginResult, error) {
	claims, err := sia.Validate(ctx, s.jwks, s.store, s.logger, rawSIA, s.podID, s.hubOrigin)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Upsert(ctx, claims)
	if err != nil {
		return nil, httpserver.Wrap(err, "upserting local user")
	}

	banned, err := s.users.IsBanned(ctx, user.ID)
	if err != nil {
		return nil, httpserver.Wrap(err, "checking ban status")
	}
	if banned {
		return nil, httpserver.NewError(httpserver.KindForbidden, "User is banned from this pod")
	}

	return s.issueTriple(ctx, user)
}

// Refresh rotates a presented refresh token per spec.md §4.D: a
// consuming read, then a fresh access+refresh pair, and optionally a
// new WebSocket ticket.
func (s *Service) Refresh(ctx context.Context, refreshToken string, includeWSTicket bool) (*LoginResult, error) {
	data, ok, err := s.tokens.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, httpserver.Wrap(err, "consuming refresh token")
	}
	if !ok {
		return nil, httpserver.NewError(httpserver.KindUnauthorized, "Invalid or expired refresh token")
	}

	access, err := s.tokens.IssueAccessToken(ctx, data.UserID)
	if err != nil {
		return nil, httpserver.Wrap(err, "issuing access token")
	}
	refresh, err := s.tokens.IssueRefreshToken(ctx, data.UserID)
	if err != nil {
		return nil, httpserver.Wrap(err, "issuing refresh token")
	}

	result := &LoginResult{AccessToken: access, RefreshToken: refresh, User: &LocalUser{ID: data.UserID}}

	if includeWSTicket {
		ticket, err := s.tokens.IssueWSTicket(ctx, data.UserID)
		if err != nil {
			return nil, httpserver.Wrap(err, "issuing ws ticket")
		}
		result.WSTicket = ticket
	}

	return result, nil
}

func (s *Service) issueTriple(ctx context.Context, user *LocalUser) (*LoginResult, error) {
	access, err := s.tokens.IssueAccessToken(ctx, user.ID)
	if err != nil {
		return nil, httpserver.Wrap(err, "issuing access token")
	}
	refresh, err := s.tokens.IssueRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, httpserver.Wrap(err, "issuing refresh token")
	}
	ticket, err := s.tokens.IssueWSTicket(ctx, user.ID)
	if err != nil {
		return nil, httpserver.Wrap(err, "issuing ws ticket")
	}

	return &LoginResult{AccessToken: access, RefreshToken: refresh, WSTicket: ticket, User: user}, nil
}
