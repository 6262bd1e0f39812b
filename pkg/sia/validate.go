package sia

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/voxora/voxora/internal/httpserver"
	"github.com/voxora/voxora/internal/telemetry"
	"github.com/voxora/voxora/pkg/kv"
	"github.com/voxora/voxora/pkg/signing"
)

// errUnauthorized is the single message ever disclosed to a caller on
// SIA validation failure; the specific reason is only ever logged.
const errUnauthorized = "Invalid or expired SIA token"

// jtiKeyPrefix namespaces the replay-guard KV keyspace.
const jtiKeyPrefix = "pod:sia_jti:"

// Validate verifies a SIA per the federation protocol: decode header,
// fetch the decoding key by kid, verify the EdDSA signature, check
// audience/issuer/expiry, and finally guard against replay by jti. The
// jti key is written only after every other check has passed — writing
// it earlier would let a signature-invalid request poison a valid jti.
func Validate(ctx context.Context, cache *signing.JWKSCache, store kv.Store, logger *slog.Logger, token, expectedPodID, expectedIssuer string) (*Claims, error) {
	var header struct {
		Kid string `json:"kid"`
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"EdDSA"}))
	var claims jwt.MapClaims

	parsed, err := parser.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid in header")
		}
		header.Kid = kid
		return cache.Key(kid)
	})
	if err != nil || !parsed.Valid {
		logger.Debug("sia validation failed", "stage", "parse_or_verify", "error", err)
		return nil, httpserver.NewError(httpserver.KindUnauthorized, errUnauthorized)
	}
	claims = parsed.Claims.(jwt.MapClaims)

	aud, _ := claims["aud"].(string)
	if aud != expectedPodID {
		logger.Debug("sia validation failed", "stage", "audience", "got", aud, "want", expectedPodID)
		return nil, httpserver.NewError(httpserver.KindUnauthorized, errUnauthorized)
	}

	iss, _ := claims["iss"].(string)
	if iss != expectedIssuer {
		logger.Debug("sia validation failed", "stage", "issuer", "got", iss, "want", expectedIssuer)
		return nil, httpserver.NewError(httpserver.KindUnauthorized, errUnauthorized)
	}

	exp, _ := claims["exp"].(float64)
	if time.Unix(int64(exp), 0).Before(time.Now()) {
		logger.Debug("sia validation failed", "stage", "expiry")
		return nil, httpserver.NewError(httpserver.KindUnauthorized, errUnauthorized)
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		logger.Debug("sia validation failed", "stage", "jti_missing")
		return nil, httpserver.NewError(httpserver.KindUnauthorized, errUnauthorized)
	}

	jtiKey := jtiKeyPrefix + jti
	if _, used, err := store.Get(ctx, jtiKey); err != nil {
		return nil, httpserver.Wrap(err, "checking replay guard")
	} else if used {
		logger.Debug("sia validation failed", "stage", "replay", "jti", jti)
		telemetry.SiaReplayRejectedTotal.Inc()
		return nil, httpserver.NewError(httpserver.KindUnauthorized, errUnauthorized)
	}

	if err := store.SetEx(ctx, jtiKey, "1", TTL); err != nil {
		return nil, httpserver.Wrap(err, "recording replay guard")
	}

	return claimsFromMap(claims), nil
}

func claimsFromMap(m jwt.MapClaims) *Claims {
	c := &Claims{}
	c.Issuer, _ = m["iss"].(string)
	c.Subject, _ = m["sub"].(string)
	c.Audience, _ = m["aud"].(string)
	if v, ok := m["iat"].(float64); ok {
		c.IssuedAt = int64(v)
	}
	if v, ok := m["exp"].(float64); ok {
		c.ExpiresAt = int64(v)
	}
	c.JTI, _ = m["jti"].(string)
	c.Username, _ = m["username"].(string)
	c.DisplayName, _ = m["display_name"].(string)
	c.AvatarURL, _ = m["avatar_url"].(string)
	c.Email, _ = m["email"].(string)
	c.EmailVerified, _ = m["email_verified"].(bool)
	if flags, ok := m["flags"].([]any); ok {
		for _, f := range flags {
			if s, ok := f.(string); ok {
				c.Flags = append(c.Flags, s)
			}
		}
	}
	if v, ok := m["hub_version"].(float64); ok {
		c.HubVersion = int(v)
	}
	return c
}
