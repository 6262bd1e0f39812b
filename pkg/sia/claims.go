// Package sia implements the Signed Identity Assertion protocol: the Hub
// mints a short-lived EdDSA JWT addressed to a specific Pod, and the Pod
// validates it against a cached JWKS, enforcing audience/issuer/expiry
// and guarding against replay by jti.
package sia

import "time"

// TTL is the SIA token lifetime.
const TTL = 300 * time.Second

// TokenType is the JWT header "typ" value SIA tokens carry.
const TokenType = "voxora-sia+jwt"

// Claims is the full SIA claim set, as minted by the Hub and parsed by
// the Pod.
type Claims struct {
	Issuer        string   `json:"iss"`
	Subject       string   `json:"sub"`
	Audience      string   `json:"aud"`
	IssuedAt      int64    `json:"iat"`
	ExpiresAt     int64    `json:"exp"`
	JTI           string   `json:"jti"`
	Username      string   `json:"username"`
	DisplayName   string   `json:"display_name"`
	AvatarURL     string   `json:"avatar_url,omitempty"`
	Email         string   `json:"email,omitempty"`
	EmailVerified bool     `json:"email_verified"`
	Flags         []string `json:"flags"`
	HubVersion    int      `json:"hub_version"`
}

// UserProfile is the resolved user data the Hub embeds into a SIA.
type UserProfile struct {
	UserID        string
	Username      string
	DisplayName   string
	AvatarURL     string
	Email         string
	EmailVerified bool
	Flags         []string
	HubVersion    int
}
