// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"context"
	"fmt"
	"strings"
)

// TokenVerifier validates a signed credential and returns its claim set.
// The production implementation is internal/jwks.Verifier, configured with
// the key set location and expected audience.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (map[string]interface{}, error)
}

// ActorResolver turns raw credential material into an actor context.
type ActorResolver interface {
	Resolve(ctx context.Context, authorization string) (*Actor, error)
}

// AuthError is the single authentication error kind crossing the
// authenticator boundary. Message is the client-visible text; the original
// cause is preserved for diagnostics via Unwrap but never sent to clients.
type AuthError struct {
	Message string
	cause   error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.cause }

// Client-visible authentication failure messages. Missing and malformed
// headers stay distinct so clients can tell "not logged in" from "corrupt
// client"; everything behind the verifier collapses into one generic text.
const (
	authMsgMissingHeader   = "missing authorization header"
	authMsgMalformedHeader = "malformed authorization header: expected Bearer scheme"
	authMsgNotConfigured   = "authentication is not configured"
	authMsgInvalidToken    = "invalid or expired credential"
)

// Authenticator resolves bearer credentials into actor contexts. It owns the
// claim-to-actor mapping; signature and standard-claim verification is
// delegated to the TokenVerifier.
type Authenticator struct {
	verifier TokenVerifier
	logger   Logger
}

// NewAuthenticator creates an Authenticator. A nil verifier is allowed at
// construction but every resolution will fail: a missing key-set
// configuration is a hard authentication failure, never silently skipped.
func NewAuthenticator(verifier TokenVerifier, logger Logger) *Authenticator {
	if logger == nil {
		logger = GetDefaultLogger()
	}
	return &Authenticator{verifier: verifier, logger: logger}
}

// Resolve extracts the bearer token from an Authorization header value,
// verifies it and builds the immutable actor context for this request.
func (a *Authenticator) Resolve(ctx context.Context, authorization string) (*Actor, error) {
	token, err := extractBearerToken(authorization)
	if err != nil {
		return nil, err
	}

	if a.verifier == nil {
		return nil, &AuthError{Message: authMsgNotConfigured}
	}

	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, &AuthError{Message: authMsgInvalidToken, cause: err}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, &AuthError{Message: authMsgInvalidToken, cause: fmt.Errorf("token has no subject")}
	}

	rawRole, _ := claims["role"].(string)
	role, err := ParseRole(rawRole)
	if err != nil {
		return nil, &AuthError{Message: authMsgInvalidToken, cause: err}
	}

	tenantID, _ := claims["tenant_id"].(string)

	scopes := a.normalizeScopes(claims)
	if len(scopes) == 0 {
		scopes = DefaultScopesForRole(role)
	}

	return NewActor(sub, tenantID, role, scopes, token), nil
}

// extractBearerToken parses a "Bearer <token>" header value. Absence, a wrong
// scheme and an empty token each produce a distinct failure.
func extractBearerToken(authorization string) (string, error) {
	if authorization == "" {
		return "", &AuthError{Message: authMsgMissingHeader}
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", &AuthError{Message: authMsgMalformedHeader}
	}
	return strings.TrimSpace(parts[1]), nil
}

// normalizeScopes reads the scopes claim, accepting either an array of
// strings or a single space-delimited string. An absent claim normalizes to
// an empty set. Strings outside the closed scope set are dropped.
func (a *Authenticator) normalizeScopes(claims map[string]interface{}) []Scope {
	raw, ok := claims["scope"]
	if !ok {
		raw, ok = claims["scopes"]
	}
	if !ok || raw == nil {
		return nil
	}

	var candidates []string
	switch v := raw.(type) {
	case string:
		candidates = strings.Fields(v)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				candidates = append(candidates, s)
			}
		}
	case []string:
		candidates = v
	}

	scopes := make([]Scope, 0, len(candidates))
	for _, c := range candidates {
		scope, err := ParseScope(c)
		if err != nil {
			a.logger.Debugf("dropping unrecognized scope %q from credential", c)
			continue
		}
		scopes = append(scopes, scope)
	}
	return scopes
}
