package user

import (
	"strings"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleTeamLead Role = "team_lead"
	RoleAnalyst  Role = "analyst"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

type AuthSource string

const (
	SourceLocal     AuthSource = "local"
	SourceLDAP      AuthSource = "ldap"
	SourceFederated AuthSource = "federated"
)

// ParseRole accepts canonical names plus the legacy "lead" alias.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "team_lead", "lead", "team-lead":
		return RoleTeamLead, true
	case "analyst":
		return RoleAnalyst, true
	}
	return "", false
}

// ParseStatus accepts canonical names plus the legacy "approved" alias.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, true
	case "active", "approved":
		return StatusActive, true
	case "suspended":
		return StatusSuspended, true
	}
	return "", false
}

func ParseAuthSource(s string) (AuthSource, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "":
		return SourceLocal, true
	case "ldap", "ad":
		return SourceLDAP, true
	case "federated":
		return SourceFederated, true
	}
	return "", false
}

// NormalizeRole maps stored values onto the canonical set, falling back
// to the lowest privilege.
func NormalizeRole(s string) Role {
	if r, ok := ParseRole(s); ok {
		return r
	}
	return RoleAnalyst
}

// NormalizeStatus maps stored values onto the canonical set. Unknown
// values are treated as suspended so they never pass the gate.
func NormalizeStatus(s string) Status {
	if st, ok := ParseStatus(s); ok {
		return st
	}
	return StatusSuspended
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

// IsLeadOrAbove covers admin and team_lead.
func (r Role) IsLeadOrAbove() bool { return r == RoleAdmin || r == RoleTeamLead }

func (s Status) IsActive() bool { return s == StatusActive }

func (s AuthSource) HasLocalPassword() bool { return s == SourceLocal }

// DisplayName joins the name parts and falls back to the username.
func DisplayName(firstName, lastName, username string) string {
	switch {
	case firstName != "" && lastName != "":
		return firstName + " " + lastName
	case firstName != "":
		return firstName
	case lastName != "":
		return lastName
	}
	return username
}

// DisplayNameOf is DisplayName over nullable join columns. Removed
// accounts read as "Unknown user".
func DisplayNameOf(firstName, lastName, username *string) string {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	if name := DisplayName(deref(firstName), deref(lastName), deref(username)); name != "" {
		return name
	}
	return "Unknown user"
}
