package podauth

import (
	"net/http"

	"github.com/voxora/voxora/internal/httpserver"
	"github.com/voxora/voxora/pkg/token"
)

// Handler serves the Pod's login and refresh endpoints.
type Handler struct {
	svc   *Service
	wsURL string
}

// NewHandler wires a Handler. wsURL is the gateway upgrade URL returned
// to clients alongside a fresh token triple.
func NewHandler(svc *Service, wsURL string) *Handler {
	return &Handler{svc: svc, wsURL: wsURL}
}

// Routes mounts the Pod's auth endpoints on r.
func (h *Handler) Routes(r interface {
	Post(pattern string, fn http.HandlerFunc)
}) {
	r.Post("/api/v1/auth/login", h.handleLogin)
	r.Post("/api/v1/auth/refresh", h.handleRefresh)
}

type loginRequest struct {
	SIA string `json:"sia" validate:"required"`
}

type refreshRequest struct {
	RefreshToken    string `json:"refresh_token" validate:"required"`
	IncludeWSTicket bool   `json:"include_ws_ticket"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	WSTicket     string    `json:"ws_ticket,omitempty"`
	WSURL        string    `json:"ws_url"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	User         *userView `json:"user,omitempty"`
}

type userView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.Login(r.Context(), req.SIA)
	if err != nil {
		respondServiceErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, h.toResponse(result))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.svc.Refresh(r.Context(), req.RefreshToken, req.IncludeWSTicket)
	if err != nil {
		respondServiceErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, h.toResponse(result))
}

func (h *Handler) toResponse(result *LoginResult) tokenResponse {
	resp := tokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		WSTicket:     result.WSTicket,
		WSURL:        h.wsURL,
		TokenType:    "Bearer",
		ExpiresIn:    int(token.AccessTokenTTL.Seconds()),
	}
	if result.User != nil && result.User.Username != "" {
		resp.User = &userView{
			ID:          result.User.ID,
			Username:    result.User.Username,
			DisplayName: result.User.DisplayName,
			AvatarURL:   result.User.AvatarURL,
		}
	}
	return resp
}

func respondServiceErr(w http.ResponseWriter, err error) {
	if herr, ok := err.(*httpserver.Error); ok {
		httpserver.RespondErr(w, herr)
		return
	}
	httpserver.RespondErr(w, httpserver.Wrap(err, "unexpected error"))
}
