package signing

import "encoding/base64"

// JWK is a single JSON Web Key entry for an Ed25519 (OKP) signing key.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	X   string `json:"x"`
}

// JWKSet is a JSON Web Key Set document.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS builds the single-entry JWKS document for this keypair.
func (k *Keys) JWKS() JWKSet {
	return JWKSet{
		Keys: []JWK{
			{
				Kty: "OKP",
				Crv: "Ed25519",
				Kid: k.kid,
				X:   base64.RawURLEncoding.EncodeToString(k.public),
			},
		},
	}
}
