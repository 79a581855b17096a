// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasScope(t *testing.T) {
	testCases := []struct {
		name   string
		scopes []Scope
		check  Scope
		want   bool
	}{
		{name: "direct grant", scopes: []Scope{ScopeReadUser}, check: ScopeReadUser, want: true},
		{name: "missing scope", scopes: []Scope{ScopeReadUser}, check: ScopeWriteUser, want: false},
		{name: "super admin grants everything", scopes: []Scope{ScopeSuperAdmin}, check: ScopeWriteFinance, want: true},
		{name: "super admin grants pii", scopes: []Scope{ScopeSuperAdmin}, check: ScopeWritePII, want: true},
		{name: "empty scope set", scopes: nil, check: ScopeReadUser, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actor := NewActor("a", "", RoleAdmin, tc.scopes, "tok")
			assert.Equal(t, tc.want, actor.HasScope(tc.check))
		})
	}
}

func TestHasAnyAndAllScopes(t *testing.T) {
	actor := NewActor("a", "", RoleAdmin, []Scope{ScopeReadUser, ScopeReadFinance}, "tok")

	assert.True(t, actor.HasAnyScope(ScopeWriteUser, ScopeReadFinance))
	assert.False(t, actor.HasAnyScope(ScopeWriteUser, ScopeWriteFinance))
	assert.True(t, actor.HasAllScopes(ScopeReadUser, ScopeReadFinance))
	assert.False(t, actor.HasAllScopes(ScopeReadUser, ScopeWriteFinance))
	assert.True(t, actor.HasAllScopes(), "empty requirement is always satisfied")
}

func TestIsSuperAdminIsLiteralMembership(t *testing.T) {
	super := NewActor("s", "", RoleSuperAdmin, []Scope{ScopeSuperAdmin}, "tok")
	assert.True(t, super.IsSuperAdmin())

	// Holding every concrete scope does not make an actor a super admin.
	broad := NewActor("b", "", RoleAdmin, []Scope{
		ScopeReadUser, ScopeWriteUser, ScopeReadPII, ScopeWritePII,
		ScopeReadAttendance, ScopeWriteAttendance, ScopeReadFinance,
		ScopeWriteFinance, ScopeReadAcademic, ScopeWriteAcademic, ScopeReadReport,
	}, "tok")
	assert.False(t, broad.IsSuperAdmin())
}

func TestPIIChecks(t *testing.T) {
	plain := NewActor("p", "", RoleAdmin, []Scope{ScopeReadUser, ScopeWriteUser}, "tok")
	assert.False(t, plain.CanReadPII())
	assert.False(t, plain.CanWritePII())

	pii := NewActor("q", "", RoleAdmin, []Scope{ScopeReadPII, ScopeWritePII}, "tok")
	assert.True(t, pii.CanReadPII())
	assert.True(t, pii.CanWritePII())

	super := NewActor("s", "", RoleSuperAdmin, []Scope{ScopeSuperAdmin}, "tok")
	assert.True(t, super.CanReadPII())
	assert.True(t, super.CanWritePII())
}

func TestRequireScopeError(t *testing.T) {
	actor := NewActor("actor-7", "", RoleTeacher, []Scope{ScopeReadAttendance}, "tok")

	require.NoError(t, RequireScope(actor, ScopeReadAttendance))

	err := RequireScope(actor, ScopeWriteFinance)
	require.Error(t, err)
	scopeErr, ok := err.(*ScopeError)
	require.True(t, ok)
	assert.Equal(t, "actor-7", scopeErr.ActorID)
	assert.Equal(t, ScopeWriteFinance, scopeErr.MissingScope)
	assert.Contains(t, err.Error(), "actor-7")
	assert.Contains(t, err.Error(), string(ScopeWriteFinance))
}

func TestRequireAllScopesNamesFirstMissing(t *testing.T) {
	actor := NewActor("a", "", RoleAdmin, []Scope{ScopeWriteUser}, "tok")

	err := RequireAllScopes(actor, ScopeWriteUser, ScopeWritePII)
	require.Error(t, err)
	scopeErr, ok := err.(*ScopeError)
	require.True(t, ok)
	assert.Equal(t, ScopeWritePII, scopeErr.MissingScope)
}

func TestParseScope(t *testing.T) {
	scope, err := ParseScope("admin.read.finance")
	require.NoError(t, err)
	assert.Equal(t, ScopeReadFinance, scope)

	_, err = ParseScope("finance:read")
	assert.Error(t, err)

	_, err = ParseScope("")
	assert.Error(t, err)
}

func TestAllScopesIsClosed(t *testing.T) {
	assert.Len(t, AllScopes(), 12)
}

func TestDefaultScopesForRole(t *testing.T) {
	assert.Equal(t, []Scope{ScopeSuperAdmin}, DefaultScopesForRole(RoleSuperAdmin))
	assert.Contains(t, DefaultScopesForRole(RoleAdmin), ScopeWriteFinance)
	assert.NotContains(t, DefaultScopesForRole(RoleAdmin), ScopeSuperAdmin)
	assert.NotContains(t, DefaultScopesForRole(RoleAdmin), ScopeWritePII)
	assert.Empty(t, DefaultScopesForRole(RoleStudent))
	assert.Empty(t, DefaultScopesForRole(Role("made_up")))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("admin_dos")
	require.NoError(t, err)
	assert.Equal(t, RoleAdminDOS, role)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}
