package authhub

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/voxora/voxora/internal/httpserver"
	"github.com/voxora/voxora/pkg/sia"
	"github.com/voxora/voxora/pkg/signing"
)

// hubVersion is embedded into every minted SIA's hub_version claim.
const hubVersion = 1

// Handler serves the Hub's federation boundary: JWKS exposure and SIA
// minting for an already Hub-authenticated caller.
type Handler struct {
	tokens   *TokenService
	profiles ProfileStore
	keys     *signing.Keys
	origin   string
	logger   *slog.Logger
}

// NewHandler wires a Handler. origin is the Hub's own issuer string,
// embedded as the SIA's iss claim.
func NewHandler(tokens *TokenService, profiles ProfileStore, keys *signing.Keys, origin string, logger *slog.Logger) *Handler {
	return &Handler{tokens: tokens, profiles: profiles, keys: keys, origin: origin, logger: logger}
}

// Routes mounts the Hub's federation endpoints on r.
func (h *Handler) Routes(r interface {
	Get(pattern string, fn http.HandlerFunc)
	Post(pattern string, fn http.HandlerFunc)
}) {
	r.Get("/oidc/.well-known/jwks.json", h.handleJWKS)
	r.Post("/sia/mint", h.handleMint)
}

func (h *Handler) handleJWKS(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, h.keys.JWKS())
}

type mintRequest struct {
	PodID string `json:"pod_id" validate:"required"`
}

type mintResponse struct {
	SIA string `json:"sia"`
}

func (h *Handler) handleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.authenticate(r)
	if !ok {
		httpserver.RespondErr(w, httpserver.NewError(httpserver.KindUnauthorized, "Missing or invalid access token"))
		return
	}

	var req mintRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	profile, err := h.profiles.GetProfile(ctx, userID)
	if err != nil {
		httpserver.RespondErr(w, httpserver.Wrap(err, "resolving user profile"))
		return
	}

	token, err := sia.Mint(h.keys, h.origin, req.PodID, toSIAProfile(profile, hubVersion))
	if err != nil {
		httpserver.RespondErr(w, httpserver.Wrap(err, "minting SIA"))
		return
	}

	if err := h.profiles.RecordBookmark(ctx, userID, req.PodID); err != nil {
		h.logger.Warn("recording pod bookmark failed", "user_id", userID, "pod_id", req.PodID, "error", err)
	}

	httpserver.Respond(w, http.StatusOK, mintResponse{SIA: token})
}

// authenticate extracts and looks up the Hub access token bearer.
func (h *Handler) authenticate(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	tok := strings.TrimPrefix(authz, prefix)

	data, err := h.tokens.LookupAccessToken(r.Context(), tok)
	if err != nil {
		h.logger.Error("looking up hub access token", "error", err)
		return "", false
	}
	if data == nil {
		return "", false
	}
	return data.UserID, true
}
