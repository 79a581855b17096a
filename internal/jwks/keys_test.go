// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package jwks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePublicKeyRejectsBadEntries(t *testing.T) {
	testCases := []struct {
		name  string
		entry jwkEntry
	}{
		{name: "unsupported kty", entry: jwkEntry{Kty: "oct", Kid: "k"}},
		{name: "rsa missing modulus", entry: jwkEntry{Kty: "RSA", Kid: "k", E: "AQAB"}},
		{name: "rsa bad base64", entry: jwkEntry{Kty: "RSA", Kid: "k", N: "!!!", E: "AQAB"}},
		{name: "ec unsupported curve", entry: jwkEntry{Kty: "EC", Kid: "k", Crv: "P-192", X: "AA", Y: "AA"}},
		{name: "ec bad coordinate", entry: jwkEntry{Kty: "EC", Kid: "k", Crv: "P-256", X: "!!!", Y: "AA"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parsePublicKey(tc.entry)
			assert.Error(t, err)
		})
	}
}
