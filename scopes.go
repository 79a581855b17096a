// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"fmt"
)

// Scope is a dot-delimited permission string of the form domain.action.resource.
// The set is closed; ScopeSuperAdmin is the only wildcard and grants every
// other scope unconditionally.
type Scope string

const (
	ScopeSuperAdmin Scope = "admin.super"

	ScopeReadUser  Scope = "admin.read.user"
	ScopeWriteUser Scope = "admin.write.user"

	ScopeReadPII  Scope = "admin.read.pii"
	ScopeWritePII Scope = "admin.write.pii"

	ScopeReadAttendance  Scope = "admin.read.attendance"
	ScopeWriteAttendance Scope = "admin.write.attendance"

	ScopeReadFinance  Scope = "admin.read.finance"
	ScopeWriteFinance Scope = "admin.write.finance"

	ScopeReadAcademic  Scope = "admin.read.academic"
	ScopeWriteAcademic Scope = "admin.write.academic"

	ScopeReadReport Scope = "admin.read.report"
)

var knownScopes = map[Scope]struct{}{
	ScopeSuperAdmin:      {},
	ScopeReadUser:        {},
	ScopeWriteUser:       {},
	ScopeReadPII:         {},
	ScopeWritePII:        {},
	ScopeReadAttendance:  {},
	ScopeWriteAttendance: {},
	ScopeReadFinance:     {},
	ScopeWriteFinance:    {},
	ScopeReadAcademic:    {},
	ScopeWriteAcademic:   {},
	ScopeReadReport:      {},
}

// AllScopes returns the closed scope enumeration.
func AllScopes() []Scope {
	out := make([]Scope, 0, len(knownScopes))
	for s := range knownScopes {
		out = append(out, s)
	}
	return out
}

// ParseScope validates a raw scope string against the closed set.
func ParseScope(raw string) (Scope, error) {
	scope := Scope(raw)
	if _, ok := knownScopes[scope]; !ok {
		return "", fmt.Errorf("unknown scope %q", raw)
	}
	return scope, nil
}

// defaultRoleScopes maps a role to the scopes granted when the credential
// carries no explicit scopes claim.
var defaultRoleScopes = map[Role][]Scope{
	RoleSuperAdmin: {ScopeSuperAdmin},
	RoleAdmin: {
		ScopeReadUser, ScopeWriteUser,
		ScopeReadAttendance, ScopeWriteAttendance,
		ScopeReadFinance, ScopeWriteFinance,
		ScopeReadAcademic, ScopeWriteAcademic,
		ScopeReadReport,
	},
	RoleAdminDOS:       {ScopeReadAcademic, ScopeWriteAcademic, ScopeReadReport},
	RoleAdminReception: {ScopeReadUser, ScopeReadAttendance, ScopeWriteAttendance},
	RoleAdminSales:     {ScopeReadFinance, ScopeWriteFinance},
	RoleTeacher:        {ScopeReadAttendance, ScopeWriteAttendance, ScopeReadAcademic},
	RoleStudent:        {},
	RoleGuest:          {},
}

// DefaultScopesForRole returns the scopes implied by a role when the token
// carries no scopes claim. Unknown roles get nothing.
func DefaultScopesForRole(role Role) []Scope {
	scopes := defaultRoleScopes[role]
	out := make([]Scope, len(scopes))
	copy(out, scopes)
	return out
}

// ScopeError reports a failed scope requirement. The message carries both the
// missing scope and the actor identifier so audit trails are self-explanatory.
type ScopeError struct {
	ActorID      string
	MissingScope Scope
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("actor %s is missing required scope %s", e.ActorID, e.MissingScope)
}

// HasScope reports whether the actor holds the scope. ScopeSuperAdmin
// satisfies every check; this is the single source of truth for the bypass.
func (a *Actor) HasScope(scope Scope) bool {
	if _, ok := a.scopes[ScopeSuperAdmin]; ok {
		return true
	}
	_, ok := a.scopes[scope]
	return ok
}

// HasAnyScope reports whether at least one of the scopes is satisfied.
func (a *Actor) HasAnyScope(scopes ...Scope) bool {
	for _, s := range scopes {
		if a.HasScope(s) {
			return true
		}
	}
	return false
}

// HasAllScopes reports whether every scope is individually satisfied.
func (a *Actor) HasAllScopes(scopes ...Scope) bool {
	for _, s := range scopes {
		if !a.HasScope(s) {
			return false
		}
	}
	return true
}

// IsSuperAdmin reports literal membership of ScopeSuperAdmin. It exists for
// UI and reporting; enforcement always re-derives the bypass through HasScope.
func (a *Actor) IsSuperAdmin() bool {
	_, ok := a.scopes[ScopeSuperAdmin]
	return ok
}

// CanReadPII is the composite check gating read access to personally
// identifiable information, audited separately from ordinary read scopes.
func (a *Actor) CanReadPII() bool { return a.HasScope(ScopeReadPII) }

// CanWritePII is the composite check gating writes to personally identifiable
// information.
func (a *Actor) CanWritePII() bool { return a.HasScope(ScopeWritePII) }

// RequireScope is the enforcing variant of HasScope.
func RequireScope(actor *Actor, scope Scope) error {
	if actor.HasScope(scope) {
		return nil
	}
	return &ScopeError{ActorID: actor.ID(), MissingScope: scope}
}

// RequireAnyScope fails unless at least one scope is satisfied. The error
// names the first requirement for diagnostics.
func RequireAnyScope(actor *Actor, scopes ...Scope) error {
	if actor.HasAnyScope(scopes...) {
		return nil
	}
	return &ScopeError{ActorID: actor.ID(), MissingScope: scopes[0]}
}

// RequireAllScopes fails on the first unsatisfied scope.
func RequireAllScopes(actor *Actor, scopes ...Scope) error {
	for _, s := range scopes {
		if !actor.HasScope(s) {
			return &ScopeError{ActorID: actor.ID(), MissingScope: s}
		}
	}
	return nil
}
