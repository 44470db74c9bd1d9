// internal/app/system/authz/authz.go

// Package authz models caller identity and the role predicates the stores
// check before their first write.
//
// Roles are a closed enumeration rather than free strings so a typo'd role
// name fails at parse time instead of silently granting nothing (or being
// compared against the wrong literal at a call site).
package authz

import (
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a closed set of caller roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleConductor Role = "conductor"
	RoleTeacher   Role = "teacher"
	RoleStudent   Role = "student"
)

// ParseRole normalizes a role string. ok is false for anything outside the
// closed set.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleConductor:
		return RoleConductor, true
	case RoleTeacher:
		return RoleTeacher, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// ParseRoles parses a list, dropping unknown entries.
func ParseRoles(ss []string) []Role {
	roles := make([]Role, 0, len(ss))
	for _, s := range ss {
		if r, ok := ParseRole(s); ok {
			roles = append(roles, r)
		}
	}
	return roles
}

// Caller is the inbound call contract established by the upstream auth
// layer. The core never infers IsAdmin or TenantID itself.
type Caller struct {
	ID       primitive.ObjectID
	TenantID string
	IsAdmin  bool
	Roles    []Role
}

// HasRole reports whether the caller carries r.
func (c Caller) HasRole(r Role) bool {
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// CanEditOrchestra decides roster/conductor mutations on one orchestra
// instance: admins may always act; conductor-role callers only when they
// are the assigned conductor of that exact orchestra.
func CanEditOrchestra(c Caller, conductorID primitive.ObjectID) bool {
	if c.IsAdmin {
		return true
	}
	return c.HasRole(RoleConductor) && !conductorID.IsZero() && c.ID == conductorID
}

// Header names set by the upstream auth proxy. Trust boundary: these are
// only readable behind that proxy, never from the open internet.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderCallerID = "X-Caller-ID"
	HeaderRoles    = "X-Caller-Roles"
	HeaderAdmin    = "X-Caller-Admin"
)

// FromRequest extracts the caller contract from request headers. A
// malformed caller id yields a zero ID; handlers treat that as
// unauthenticated and fail closed.
func FromRequest(r *http.Request) Caller {
	c := Caller{
		TenantID: strings.TrimSpace(r.Header.Get(HeaderTenantID)),
		IsAdmin:  strings.EqualFold(r.Header.Get(HeaderAdmin), "true"),
	}
	if id, err := primitive.ObjectIDFromHex(strings.TrimSpace(r.Header.Get(HeaderCallerID))); err == nil {
		c.ID = id
	}
	if raw := r.Header.Get(HeaderRoles); raw != "" {
		c.Roles = ParseRoles(strings.Split(raw, ","))
	}
	return c
}
