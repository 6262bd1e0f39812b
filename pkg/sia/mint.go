package sia

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/voxora/voxora/pkg/signing"
)

// Mint builds and signs a SIA addressed to podID, asserting the given
// user profile. issuer is the Hub's origin string. The Hub does not
// track issued SIAs — uniqueness is guaranteed by the jti generator.
func Mint(keys *signing.Keys, issuer, podID string, profile UserProfile) (string, error) {
	now := time.Now()
	jti, err := newJTI()
	if err != nil {
		return "", fmt.Errorf("generating jti: %w", err)
	}

	claims := jwt.MapClaims{
		"iss":            issuer,
		"sub":            profile.UserID,
		"aud":            podID,
		"iat":            now.Unix(),
		"exp":            now.Add(TTL).Unix(),
		"jti":            jti,
		"username":       profile.Username,
		"display_name":   profile.DisplayName,
		"email_verified": profile.EmailVerified,
		"flags":          profile.Flags,
		"hub_version":    profile.HubVersion,
	}
	if profile.AvatarURL != "" {
		claims["avatar_url"] = profile.AvatarURL
	}
	if profile.Email != "" {
		claims["email"] = profile.Email
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = keys.Kid()
	token.Header["typ"] = TokenType

	signed, err := token.SignedString(keys.PrivateKey())
	if err != nil {
		return "", fmt.Errorf("signing SIA: %w", err)
	}
	return signed, nil
}

func newJTI() (string, error) {
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
