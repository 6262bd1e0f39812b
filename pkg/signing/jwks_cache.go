package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// jwksCacheTTL is the interval after which a Pod refreshes its cached
// decoding keys from the Hub's JWKS endpoint.
const jwksCacheTTL = time.Hour

// JWKSCache is a Pod-side cache of Hub Ed25519 public keys, keyed by kid.
// A cache miss triggers a synchronous refresh before giving up.
type JWKSCache struct {
	hubURL string
	client *http.Client

	mu        sync.RWMutex
	keys      map[string]ed25519.PublicKey
	fetchedAt time.Time
}

// NewJWKSCache creates a cache that fetches from
// {hubURL}/oidc/.well-known/jwks.json on first use or cache miss.
func NewJWKSCache(hubURL string) *JWKSCache {
	return &JWKSCache{
		hubURL: hubURL,
		client: &http.Client{Timeout: 5 * time.Second},
		keys:   make(map[string]ed25519.PublicKey),
	}
}

// NewStaticJWKSCache creates a cache pre-seeded with a single key and a
// freshness timestamp far in the future, for use in tests that don't
// want to exercise HTTP refresh.
func NewStaticJWKSCache(kid string, key ed25519.PublicKey) *JWKSCache {
	return &JWKSCache{
		keys:      map[string]ed25519.PublicKey{kid: key},
		fetchedAt: time.Now().Add(100 * 365 * 24 * time.Hour),
	}
}

// Key returns the decoding key for kid, refreshing the cache once if it
// is missing or stale.
func (c *JWKSCache) Key(kid string) (ed25519.PublicKey, error) {
	c.mu.RLock()
	fresh := time.Since(c.fetchedAt) < jwksCacheTTL
	key, ok := c.keys[kid]
	c.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	// A static cache has no Hub to refresh from.
	if c.client == nil {
		if ok {
			return key, nil
		}
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}

	if err := c.refresh(); err != nil {
		if ok {
			// Stale cache beats no cache if refresh fails.
			return key, nil
		}
		return nil, fmt.Errorf("refreshing JWKS: %w", err)
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func (c *JWKSCache) refresh() error {
	resp, err := c.client.Get(c.hubURL + "/oidc/.well-known/jwks.json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc JWKSet
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decoding JWKS: %w", err)
	}

	next := make(map[string]ed25519.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" || jwk.Kid == "" || jwk.X == "" {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(jwk.X)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			continue
		}
		next[jwk.Kid] = ed25519.PublicKey(raw)
	}

	c.mu.Lock()
	c.keys = next
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}
