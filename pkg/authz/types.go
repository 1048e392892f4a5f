// Package authz answers project-membership and role questions for the NCR
// engine. It supports a GORM-backed membership store for production and an
// allow-all mode for development and tests.
package authz

import (
	"context"
	"errors"
)

// Role names a project role. Roles are assigned per project membership, not
// globally.
type Role string

const (
	RoleQualityManager Role = "quality_manager"
	RoleProjectManager Role = "project_manager"
	RoleAdmin          Role = "admin"
	RoleOwner          Role = "owner"
	RoleSiteManager    Role = "site_manager"
	RoleSiteEngineer   Role = "site_engineer"
	RoleSubcontractor  Role = "subcontractor"
)

// Role subsets used to gate NCR transitions.
var (
	// ReviewerRoles may accept or bounce an NCR response.
	ReviewerRoles = []Role{RoleQualityManager, RoleProjectManager, RoleAdmin}

	// RejecterRoles may reject a submitted rectification.
	RejecterRoles = []Role{RoleQualityManager, RoleProjectManager, RoleAdmin, RoleSiteManager}

	// ClientNotifyRoles may dispatch the client notification package.
	ClientNotifyRoles = []Role{RoleQualityManager, RoleProjectManager, RoleAdmin, RoleOwner}

	// HeadContractorRoles receive fan-out when a subcontractor raises an NCR.
	HeadContractorRoles = []Role{RoleQualityManager, RoleProjectManager, RoleAdmin, RoleSiteManager}
)

// ErrForbidden is returned by callers when an authorization check fails.
var ErrForbidden = errors.New("forbidden")

// Authorizer answers membership and role questions for a user on a project.
type Authorizer interface {
	// HasProjectAccess reports whether the user is a member of the project
	// in any role.
	HasProjectAccess(ctx context.Context, userID, projectID string) (bool, error)

	// HasRole reports whether the user holds at least one of the given
	// roles on the project.
	HasRole(ctx context.Context, userID, projectID string, roles ...Role) (bool, error)

	// MembersWithRoles returns the user IDs of all project members holding
	// at least one of the given roles. Used for notification fan-out.
	MembersWithRoles(ctx context.Context, projectID string, roles ...Role) ([]string, error)
}
