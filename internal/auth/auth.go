package auth

import (
	"crypto/subtle"
	"strings"
)

// Role is the caller's role for a request
type Role string

const (
	RoleAnonymous      Role = "anonymous"
	RoleContainerAdmin Role = "containerAdmin"
	RoleAdmin          Role = "admin"
)

// Actor is whoever is performing an operation
type Actor struct {
	Role Role
}

// Anonymous is the actor used for unauthenticated citizen requests
var Anonymous = Actor{Role: RoleAnonymous}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManageContainers reports whether the actor may edit container records
func (a Actor) CanManageContainers() bool {
	return a.Role == RoleAdmin || a.Role == RoleContainerAdmin
}

// Resolver maps bearer tokens to actors
type Resolver struct {
	adminToken          string
	containerAdminToken string
}

// NewResolver creates a resolver; empty tokens disable the corresponding role
func NewResolver(adminToken, containerAdminToken string) *Resolver {
	return &Resolver{adminToken: adminToken, containerAdminToken: containerAdminToken}
}

// FromAuthorization resolves an Authorization header value.
// Unknown or missing tokens resolve to the anonymous actor.
func (r *Resolver) FromAuthorization(header string) Actor {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok {
		return Anonymous
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Anonymous
	}
	if tokenMatches(token, r.adminToken) {
		return Actor{Role: RoleAdmin}
	}
	if tokenMatches(token, r.containerAdminToken) {
		return Actor{Role: RoleContainerAdmin}
	}
	return Anonymous
}

func tokenMatches(given, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}
