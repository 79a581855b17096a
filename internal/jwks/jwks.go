// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

// Package jwks verifies signed credentials against a remote JSON Web Key Set.
//
// The key set is process-wide state: populated lazily on the first
// verification, replaced atomically as a whole set on refresh, and guarded by
// a singleflight group so simultaneous cache misses collapse into one fetch.
package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	// defaultTTL is the freshness window for a fetched key set.
	defaultTTL = 15 * time.Minute
	// defaultLeeway absorbs clock drift between issuer and verifier.
	defaultLeeway = 30 * time.Second
	// maxDocumentSize caps the key set document read.
	maxDocumentSize = 1 << 20
)

var defaultAllowedAlgs = []string{"RS256", "ES256"}

// ErrKeyNotFound indicates the token's key identifier is absent from the key
// set even after a refresh.
var ErrKeyNotFound = errors.New("signing key not found in key set")

// Config controls token verification.
type Config struct {
	// URL is the HTTPS location of the key set document. Required.
	URL string
	// Audience is the expected aud claim. Required.
	Audience string
	// Leeway is the clock-skew tolerance for time-based claims.
	Leeway time.Duration
	// TTL is how long a fetched key set stays fresh.
	TTL time.Duration
	// AllowedAlgs restricts accepted signing algorithms.
	AllowedAlgs []string
	// HTTPClient overrides the client used to fetch the key set.
	HTTPClient *http.Client
}

// keySet is one immutable snapshot of the remote key set.
type keySet struct {
	keys      map[string]interface{} // kid -> *rsa.PublicKey or *ecdsa.PublicKey
	fetchedAt time.Time
}

// Verifier validates token signatures and standard claims against the cached
// key set.
type Verifier struct {
	cfg    Config
	client *http.Client

	mu      sync.RWMutex
	current *keySet

	group singleflight.Group
}

// New creates a Verifier. The key set is not fetched until the first
// verification attempt.
func New(cfg Config) (*Verifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("jwks: key set URL is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("jwks: expected audience is required")
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = defaultLeeway
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = defaultAllowedAlgs
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{cfg: cfg, client: client}, nil
}

// Verify checks the token signature and standard claims (exp with leeway,
// audience, subject presence is the caller's concern) and returns the claim
// set on success.
func (v *Verifier) Verify(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, errors.New("jwks: empty token")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.cfg.AllowedAlgs),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.Leeway),
	)

	parsed, err := parser.Parse(token, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		return v.key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: token verification failed: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("jwks: unexpected claims type")
	}
	return claims, nil
}

// key resolves a key identifier against the cached set, refreshing when the
// set is stale or the identifier is unknown (key rotation).
func (v *Verifier) key(ctx context.Context, kid string) (interface{}, error) {
	v.mu.RLock()
	set := v.current
	v.mu.RUnlock()

	if set != nil && time.Since(set.fetchedAt) < v.cfg.TTL {
		if key, ok := set.keys[kid]; ok {
			return key, nil
		}
		// Unknown kid in a fresh set: fall through and refetch once.
	}

	set, err := v.refresh(ctx)
	if err != nil {
		return nil, err
	}
	key, ok := set.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}
	return key, nil
}

// refresh fetches the key set and swaps the whole snapshot atomically.
// Concurrent callers share one in-flight fetch.
func (v *Verifier) refresh(ctx context.Context) (*keySet, error) {
	result, err, _ := v.group.Do("refresh", func() (interface{}, error) {
		keys, err := v.fetch(ctx)
		if err != nil {
			return nil, err
		}
		set := &keySet{keys: keys, fetchedAt: time.Now()}
		v.mu.Lock()
		v.current = set
		v.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*keySet), nil
}

// jwksDocument is the wire shape of the key set endpoint response.
type jwksDocument struct {
	Keys []jwkEntry `json:"keys"`
}

// jwkEntry carries the fields needed to reconstruct RSA and EC public keys.
type jwkEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	// RSA
	N string `json:"n"`
	E string `json:"e"`
	// EC
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// fetch retrieves and parses the remote key set document.
func (v *Verifier) fetch(ctx context.Context) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("jwks: building key set request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks: key set fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: key set endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("jwks: reading key set response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("jwks: parsing key set document: %w", err)
	}

	keys := make(map[string]interface{}, len(doc.Keys))
	for _, entry := range doc.Keys {
		if entry.Kid == "" {
			continue
		}
		if entry.Use != "" && entry.Use != "sig" {
			continue
		}
		key, err := parsePublicKey(entry)
		if err != nil {
			// Skip unusable entries rather than rejecting the whole set.
			continue
		}
		keys[entry.Kid] = key
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks: key set document contains no usable keys")
	}
	return keys, nil
}
