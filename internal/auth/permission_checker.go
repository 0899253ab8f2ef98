package auth

import (
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
)

// Capability is a role-level privilege. Ownership rules live in ABACPolicy.
type Capability string

const (
	CapManageUsers      Capability = "manage_users"
	CapChangeRoles      Capability = "change_roles"
	CapGrantAdmin       Capability = "grant_admin"
	CapEditAnyFinding   Capability = "edit_any_finding"
	CapDeleteAnyFinding Capability = "delete_any_finding"
	CapDeleteAnyReport  Capability = "delete_any_report"
	CapDeleteAnyUpload  Capability = "delete_any_attachment"
	CapModerateMessages Capability = "moderate_messages"
	CapTestDirectory    Capability = "test_directory"
)

type PermissionChecker interface {
	Can(role coreuser.Role, capability Capability) bool
	HasAnyRole(role coreuser.Role, roles ...coreuser.Role) bool
}

type DefaultPermissionChecker struct {
	grants map[coreuser.Role]map[Capability]bool
}

func NewPermissionChecker() *DefaultPermissionChecker {
	lead := []Capability{
		CapChangeRoles,
		CapEditAnyFinding,
		CapDeleteAnyFinding,
		CapDeleteAnyReport,
		CapDeleteAnyUpload,
	}
	admin := append([]Capability{
		CapManageUsers,
		CapGrantAdmin,
		CapModerateMessages,
		CapTestDirectory,
	}, lead...)

	return &DefaultPermissionChecker{
		grants: map[coreuser.Role]map[Capability]bool{
			coreuser.RoleAdmin:    toSet(admin),
			coreuser.RoleTeamLead: toSet(lead),
			coreuser.RoleAnalyst:  {},
		},
	}
}

func toSet(caps []Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

func (c *DefaultPermissionChecker) Can(role coreuser.Role, capability Capability) bool {
	return c.grants[role][capability]
}

func (c *DefaultPermissionChecker) HasAnyRole(role coreuser.Role, roles ...coreuser.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
