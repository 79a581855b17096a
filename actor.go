// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"fmt"
)

// Role is the closed enumeration of actor roles. Raw role strings from
// credentials are validated once at the authentication boundary; everything
// downstream operates on the typed value.
type Role string

const (
	RoleSuperAdmin     Role = "super_admin"
	RoleAdmin          Role = "admin"
	RoleAdminDOS       Role = "admin_dos"
	RoleAdminReception Role = "admin_reception"
	RoleAdminSales     Role = "admin_sales"
	RoleTeacher        Role = "teacher"
	RoleStudent        Role = "student"
	RoleGuest          Role = "guest"
)

var knownRoles = map[Role]struct{}{
	RoleSuperAdmin:     {},
	RoleAdmin:          {},
	RoleAdminDOS:       {},
	RoleAdminReception: {},
	RoleAdminSales:     {},
	RoleTeacher:        {},
	RoleStudent:        {},
	RoleGuest:          {},
}

// ParseRole validates a raw role string against the closed enumeration.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if _, ok := knownRoles[role]; !ok {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}

// Actor is the authenticated identity attached to one in-flight request.
// It is created by the Authenticator, read-only afterwards, and discarded at
// request completion; it is never cached across requests.
type Actor struct {
	id         string
	tenantID   string
	role       Role
	scopes     map[Scope]struct{}
	credential string
}

// NewActor builds an immutable actor context. The credential is the original
// signed token, carried through unchanged so downstream collaborators can
// apply their own row-level checks.
func NewActor(id, tenantID string, role Role, scopes []Scope, credential string) *Actor {
	set := make(map[Scope]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return &Actor{
		id:         id,
		tenantID:   tenantID,
		role:       role,
		scopes:     set,
		credential: credential,
	}
}

// ID returns the actor identifier (the token subject).
func (a *Actor) ID() string { return a.id }

// TenantID returns the tenant the actor belongs to; empty if the credential
// carried none.
func (a *Actor) TenantID() string { return a.tenantID }

// Role returns the actor role.
func (a *Actor) Role() Role { return a.role }

// Credential returns the original signed credential, unmodified.
func (a *Actor) Credential() string { return a.credential }

// Scopes returns a copy of the actor's scope set.
func (a *Actor) Scopes() []Scope {
	out := make([]Scope, 0, len(a.scopes))
	for s := range a.scopes {
		out = append(out, s)
	}
	return out
}
