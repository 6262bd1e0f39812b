package signing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJWKSCacheRefreshesOnMiss(t *testing.T) {
	keys, err := FromSeed("test-seed")
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(keys.JWKS())
	}))
	defer srv.Close()

	cache := NewJWKSCache(srv.URL)

	got, err := cache.Key(keys.Kid())
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if string(got) != string(keys.PublicKey()) {
		t.Fatal("cached key does not match the signer's public key")
	}
}

func TestJWKSCacheUnknownKidErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(JWKSet{})
	}))
	defer srv.Close()

	cache := NewJWKSCache(srv.URL)
	if _, err := cache.Key("hub-deadbeef"); err == nil {
		t.Fatal("expected error for unknown kid")
	}
}

func TestStaticJWKSCacheNeverRefreshes(t *testing.T) {
	keys, _ := FromSeed("test-seed")
	cache := NewStaticJWKSCache(keys.Kid(), keys.PublicKey())

	got, err := cache.Key(keys.Kid())
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if string(got) != string(keys.PublicKey()) {
		t.Fatal("static cache returned wrong key")
	}
}
