// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package jwks

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAudience = "mycastle-admin"

// keyServer serves a swappable JWKS document and counts fetches.
type keyServer struct {
	mu         sync.Mutex
	document   []byte
	fetchCount atomic.Int64
	delay      time.Duration
	server     *httptest.Server
}

func newKeyServer(t *testing.T) *keyServer {
	t.Helper()
	ks := &keyServer{}
	ks.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ks.fetchCount.Add(1)
		if ks.delay > 0 {
			time.Sleep(ks.delay)
		}
		ks.mu.Lock()
		defer ks.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(ks.document)
	}))
	t.Cleanup(ks.server.Close)
	return ks
}

func (ks *keyServer) serve(t *testing.T, keys ...jose.JSONWebKey) {
	t.Helper()
	data, err := json.Marshal(jose.JSONWebKeySet{Keys: keys})
	require.NoError(t, err)
	ks.mu.Lock()
	ks.document = data
	ks.mu.Unlock()
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func publicJWK(key interface{}, kid, alg string) jose.JSONWebKey {
	return jose.JSONWebKey{Key: key, KeyID: kid, Use: "sig", Algorithm: alg}
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  "user-1",
		"aud":  testAudience,
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
}

func TestNewRequiresURLAndAudience(t *testing.T) {
	_, err := New(Config{Audience: testAudience})
	assert.Error(t, err)

	_, err = New(Config{URL: "https://example.test/jwks"})
	assert.Error(t, err)

	v, err := New(Config{URL: "https://example.test/jwks", Audience: testAudience})
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestVerifyValidToken(t *testing.T) {
	key := newRSAKey(t)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&key.PublicKey, "kid-1", "RS256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience})
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), signRS256(t, key, "kid-1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
	assert.Equal(t, "admin", claims["role"])
	assert.EqualValues(t, 1, ks.fetchCount.Load())
}

func TestVerifyES256Token(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&key.PublicKey, "ec-1", "ES256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience})
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodES256, validClaims())
	token.Header["kid"] = "ec-1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	key := newRSAKey(t)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&key.PublicKey, "kid-1", "RS256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience, Leeway: time.Second})
	require.NoError(t, err)

	wrongAud := validClaims()
	wrongAud["aud"] = "someone-else"

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	noExp := validClaims()
	delete(noExp, "exp")

	otherKey := newRSAKey(t)

	testCases := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not.a.token"},
		{name: "wrong audience", token: signRS256(t, key, "kid-1", wrongAud)},
		{name: "expired", token: signRS256(t, key, "kid-1", expired)},
		{name: "missing exp", token: signRS256(t, key, "kid-1", noExp)},
		{name: "wrong signing key", token: signRS256(t, otherKey, "kid-1", validClaims())},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tc.token)
			assert.Error(t, err)
		})
	}
}

func TestVerifyRejectsTokenWithoutKid(t *testing.T) {
	key := newRSAKey(t)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&key.PublicKey, "kid-1", "RS256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience})
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	assert.Error(t, err)
}

func TestVerifyLeewayAbsorbsClockSkew(t *testing.T) {
	key := newRSAKey(t)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&key.PublicKey, "kid-1", "RS256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience, Leeway: time.Minute})
	require.NoError(t, err)

	// Expired ten seconds ago, well inside the leeway.
	claims := validClaims()
	claims["exp"] = time.Now().Add(-10 * time.Second).Unix()

	_, err = v.Verify(context.Background(), signRS256(t, key, "kid-1", claims))
	assert.NoError(t, err)
}

func TestKeyRotationRefetchesOnUnknownKid(t *testing.T) {
	oldKey := newRSAKey(t)
	newKey := newRSAKey(t)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&oldKey.PublicKey, "kid-old", "RS256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signRS256(t, oldKey, "kid-old", validClaims()))
	require.NoError(t, err)
	require.EqualValues(t, 1, ks.fetchCount.Load())

	// Rotate the key set, then present a token signed with the new key.
	ks.serve(t, publicJWK(&newKey.PublicKey, "kid-new", "RS256"))

	claims, err := v.Verify(context.Background(), signRS256(t, newKey, "kid-new", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims["sub"])
	assert.EqualValues(t, 2, ks.fetchCount.Load())
}

func TestUnknownKidAfterRefreshFails(t *testing.T) {
	key := newRSAKey(t)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&key.PublicKey, "kid-1", "RS256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signRS256(t, key, "kid-ghost", validClaims()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestConcurrentColdStartCollapsesToOneFetch(t *testing.T) {
	key := newRSAKey(t)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&key.PublicKey, "kid-1", "RS256"))
	ks.delay = 50 * time.Millisecond

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience})
	require.NoError(t, err)

	token := signRS256(t, key, "kid-1", validClaims())

	var wg sync.WaitGroup
	errCh := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.Verify(context.Background(), token)
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, ks.fetchCount.Load())
}

func TestFreshSetIsNotRefetched(t *testing.T) {
	key := newRSAKey(t)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&key.PublicKey, "kid-1", "RS256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience})
	require.NoError(t, err)

	token := signRS256(t, key, "kid-1", validClaims())
	for i := 0; i < 5; i++ {
		_, err := v.Verify(context.Background(), token)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, ks.fetchCount.Load())
}

func TestStaleSetIsRefreshed(t *testing.T) {
	key := newRSAKey(t)
	ks := newKeyServer(t)
	ks.serve(t, publicJWK(&key.PublicKey, "kid-1", "RS256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience, TTL: 10 * time.Millisecond})
	require.NoError(t, err)

	token := signRS256(t, key, "kid-1", validClaims())
	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ks.fetchCount.Load())
}

func TestUnreachableEndpointFailsVerification(t *testing.T) {
	v, err := New(Config{URL: "http://127.0.0.1:1/jwks", Audience: testAudience})
	require.NoError(t, err)

	key := newRSAKey(t)
	_, err = v.Verify(context.Background(), signRS256(t, key, "kid-1", validClaims()))
	assert.Error(t, err)
}

func TestFetchSkipsUnusableEntries(t *testing.T) {
	key := newRSAKey(t)
	ks := newKeyServer(t)
	// One encryption key, one entry without a kid, one good signing key.
	encKey := publicJWK(&newRSAKey(t).PublicKey, "enc-1", "RS256")
	encKey.Use = "enc"
	noKid := publicJWK(&newRSAKey(t).PublicKey, "", "RS256")
	ks.serve(t, encKey, noKid, publicJWK(&key.PublicKey, "kid-1", "RS256"))

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signRS256(t, key, "kid-1", validClaims()))
	assert.NoError(t, err)
}

func TestEmptyKeySetIsAnError(t *testing.T) {
	ks := newKeyServer(t)
	ks.serve(t)

	v, err := New(Config{URL: ks.server.URL, Audience: testAudience})
	require.NoError(t, err)

	key := newRSAKey(t)
	_, err = v.Verify(context.Background(), signRS256(t, key, "kid-1", validClaims()))
	assert.Error(t, err)
}
