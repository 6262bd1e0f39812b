package signing

import (
	"encoding/base64"
	"testing"
)

func TestFromSeedIsDeterministic(t *testing.T) {
	k1, err := FromSeed("test-seed")
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	k2, err := FromSeed("test-seed")
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}

	if k1.Kid() != k2.Kid() {
		t.Fatalf("kid not deterministic: %q vs %q", k1.Kid(), k2.Kid())
	}
	if string(k1.PublicKey()) != string(k2.PublicKey()) {
		t.Fatal("public key not deterministic across derivations")
	}
}

func TestKidShapeAndLength(t *testing.T) {
	k, err := FromSeed("test-seed")
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}

	kid := k.Kid()
	if len(kid) != 12 {
		t.Fatalf("kid length = %d, want 12: %q", len(kid), kid)
	}
	if kid[:4] != "hub-" {
		t.Fatalf("kid = %q, want prefix hub-", kid)
	}
}

func TestPublicKeyJWKSRoundTrip(t *testing.T) {
	k, err := FromSeed("test-seed")
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}

	doc := k.JWKS()
	if len(doc.Keys) != 1 {
		t.Fatalf("expected 1 JWKS entry, got %d", len(doc.Keys))
	}

	jwk := doc.Keys[0]
	if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" || jwk.Kid != k.Kid() {
		t.Fatalf("unexpected JWK: %+v", jwk)
	}

	raw, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		t.Fatalf("decoding x: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("decoded public key length = %d, want 32", len(raw))
	}
}

func TestDifferentSeedsYieldDifferentKeys(t *testing.T) {
	k1, _ := FromSeed("seed-a")
	k2, _ := FromSeed("seed-b")

	if k1.Kid() == k2.Kid() {
		t.Fatal("different seeds produced the same kid")
	}
}

func TestPKCS8Envelope(t *testing.T) {
	k, err := FromSeed("test-seed")
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}

	der := k.PKCS8()
	if len(der) != 48 {
		t.Fatalf("PKCS8 envelope length = %d, want 48", len(der))
	}

	wantPrefix := []byte{0x30, 0x2e, 0x02, 0x01, 0x00, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70, 0x04, 0x22, 0x04, 0x20}
	for i, b := range wantPrefix {
		if der[i] != b {
			t.Fatalf("byte %d = %#x, want %#x", i, der[i], b)
		}
	}

	seed := k.PrivateKey().Seed()
	for i, b := range seed {
		if der[16+i] != b {
			t.Fatalf("seed byte %d mismatch", i)
		}
	}
}
