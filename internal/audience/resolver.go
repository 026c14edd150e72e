// Package audience decides which circle members may see a shareable record.
package audience

import "github.com/Kerhoff/carecircle/internal/models"

// RoleLookup answers which role a user holds in a circle, if any.
// *membership.Registry satisfies it.
type RoleLookup interface {
	RoleOf(circleID, userID int64) (models.Role, bool)
}

var scopeRoles = map[models.AudienceScope]map[models.Role]bool{
	models.ScopeFamily: {
		models.RoleOwner: true, models.RoleFamily: true, models.RoleChild: true,
	},
	models.ScopeRelatives: {
		models.RoleOwner: true, models.RoleFamily: true, models.RoleChild: true, models.RoleRelative: true,
	},
	models.ScopeCaregivers: {
		models.RoleOwner: true, models.RoleCaregiver: true,
	},
}

// Resolver is the single authority on record visibility
type Resolver struct {
	roles RoleLookup
}

// NewResolver creates a resolver backed by the given membership lookup
func NewResolver(roles RoleLookup) *Resolver {
	return &Resolver{roles: roles}
}

// CanView reports whether viewerID may see a record of circleID carrying
// aud. Non-members are always denied; so is any unknown scope.
func (r *Resolver) CanView(viewerID, circleID int64, aud *models.Audience) bool {
	role, ok := r.roles.RoleOf(circleID, viewerID)
	if !ok {
		return false
	}
	if aud == nil {
		return true
	}
	if aud.Scope == models.ScopeCustom {
		return aud.Includes(viewerID)
	}
	return scopeRoles[aud.Scope][role]
}
