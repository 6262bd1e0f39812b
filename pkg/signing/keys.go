// Package signing derives the Ed25519 signing keypair used to mint and
// verify Signed Identity Assertions, and exposes it as a JWKS document.
package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// pkcs8Ed25519Prefix is the fixed PKCS8 DER envelope preceding a raw
// 32-byte Ed25519 private key: SEQUENCE { version INTEGER 0, AlgorithmIdentifier { OID 1.3.101.112 }, OCTET STRING { OCTET STRING <seed> } }.
var pkcs8Ed25519Prefix = []byte{
	0x30, 0x2e, 0x02, 0x01, 0x00, 0x30, 0x05, 0x06,
	0x03, 0x2b, 0x65, 0x70, 0x04, 0x22, 0x04, 0x20,
}

// Keys holds a process's Ed25519 signing keypair, derived deterministically
// from a seed string so that restarts with the same seed yield the same
// key id.
type Keys struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	kid     string
}

// FromSeed derives an Ed25519 keypair from seed: SHA-256(seed) yields the
// 32-byte secret used to construct the key via ed25519.NewKeyFromSeed.
// Deterministic: the same seed always yields the same keypair and kid.
func FromSeed(seed string) (*Keys, error) {
	sum := sha256.Sum256([]byte(seed))
	priv := ed25519.NewKeyFromSeed(sum[:])
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("deriving public key: unexpected key type")
	}

	pubHash := sha256.Sum256(pub)
	kid := "hub-" + hex.EncodeToString(pubHash[:])[:8]

	return &Keys{private: priv, public: pub, kid: kid}, nil
}

// Kid returns this keypair's JWKS key id: "hub-" followed by the first 8
// hex characters of SHA-256(public key).
func (k *Keys) Kid() string { return k.kid }

// PublicKey returns the raw Ed25519 public key.
func (k *Keys) PublicKey() ed25519.PublicKey { return k.public }

// PrivateKey returns the raw Ed25519 private key, suitable for use as the
// signing key with jwt.SigningMethodEdDSA.
func (k *Keys) PrivateKey() ed25519.PrivateKey { return k.private }

// PKCS8 wraps the 32-byte Ed25519 seed in the fixed PKCS8 DER envelope
// used to hand the key to libraries that expect a PKCS8-encoded private
// key rather than the raw seed.
func (k *Keys) PKCS8() []byte {
	seed := k.private.Seed()
	out := make([]byte, 0, len(pkcs8Ed25519Prefix)+len(seed))
	out = append(out, pkcs8Ed25519Prefix...)
	out = append(out, seed...)
	return out
}
