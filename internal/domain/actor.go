package domain

import (
	"slices"
	"strings"
)

// Role is the profile an actor holds inside its unit.
type Role string

// Role values.
const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleChief   Role = "CHIEF"
	RoleServer  Role = "SERVER"
)

var validRoles = []Role{RoleAdmin, RoleManager, RoleChief, RoleServer}

// Actor is the person performing a workflow operation, scoped to one unit.
type Actor struct {
	ID     string
	UnitID string
	Role   Role
}

// NewActor validates an actor.
func NewActor(id, unitID string, role Role) (Actor, error) {
	id = strings.TrimSpace(id)
	unitID = strings.TrimSpace(unitID)
	role = Role(strings.ToUpper(strings.TrimSpace(string(role))))
	if id == "" || unitID == "" {
		return Actor{}, ErrInvalidID
	}
	if !slices.Contains(validRoles, role) {
		return Actor{}, ErrInvalidRole
	}
	return Actor{ID: id, UnitID: unitID, Role: role}, nil
}

// IsAdmin reports whether the actor holds the administrator profile.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsChiefOf reports whether the actor heads the given unit.
func (a Actor) IsChiefOf(unitID string) bool {
	return a.Role == RoleChief && a.UnitID == unitID
}

// ActsFor reports whether the actor may review on behalf of the given unit.
func (a Actor) ActsFor(unitID string) bool {
	if a.UnitID != unitID {
		return false
	}
	switch a.Role {
	case RoleChief, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}
