package auth

import (
	"github.com/frahmantamala/redteam-collab/internal"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
)

// ABACPolicy decides per-resource access from the caller's role and their
// relation to the resource. Every method returns nil or internal.ErrForbidden.
type ABACPolicy struct {
	checker PermissionChecker
}

func NewABACPolicy(checker PermissionChecker) *ABACPolicy {
	if checker == nil {
		checker = NewPermissionChecker()
	}
	return &ABACPolicy{checker: checker}
}

func (p *ABACPolicy) allow(ok bool) error {
	if ok {
		return nil
	}
	return internal.ErrForbidden
}

func (p *ABACPolicy) can(u *User, c Capability) bool {
	return u != nil && p.checker.Can(u.Role, c)
}

// CanEditFinding: lead or above, the reporter, or an assignee.
func (p *ABACPolicy) CanEditFinding(u *User, reporterID string, assignees []string) error {
	if u == nil {
		return internal.ErrUnauthenticated
	}
	if p.can(u, CapEditAnyFinding) || u.ID == reporterID {
		return nil
	}
	for _, id := range assignees {
		if id == u.ID {
			return nil
		}
	}
	return internal.ErrForbidden
}

// CanDeleteFinding: lead or above, or the reporter.
func (p *ABACPolicy) CanDeleteFinding(u *User, reporterID string) error {
	if u == nil {
		return internal.ErrUnauthenticated
	}
	return p.allow(p.can(u, CapDeleteAnyFinding) || u.ID == reporterID)
}

func (p *ABACPolicy) CanDeleteReport(u *User, creatorID string) error {
	if u == nil {
		return internal.ErrUnauthenticated
	}
	return p.allow(p.can(u, CapDeleteAnyReport) || u.ID == creatorID)
}

func (p *ABACPolicy) CanDeleteAttachment(u *User, uploaderID string) error {
	if u == nil {
		return internal.ErrUnauthenticated
	}
	return p.allow(p.can(u, CapDeleteAnyUpload) || u.ID == uploaderID)
}

// CanModifyMessage covers edit and delete: the author or an admin.
func (p *ABACPolicy) CanModifyMessage(u *User, authorID string) error {
	if u == nil {
		return internal.ErrUnauthenticated
	}
	return p.allow(p.can(u, CapModerateMessages) || u.ID == authorID)
}

// CanUpdateProfile: the user themselves or an admin.
func (p *ABACPolicy) CanUpdateProfile(u *User, targetID string) error {
	if u == nil {
		return internal.ErrUnauthenticated
	}
	return p.allow(p.can(u, CapManageUsers) || u.ID == targetID)
}

// CanAssignRole checks a role change on a target currently holding
// targetRole. Leads may change roles but neither grant admin nor touch an
// admin.
func (p *ABACPolicy) CanAssignRole(u *User, targetRole, newRole coreuser.Role) error {
	if u == nil {
		return internal.ErrUnauthenticated
	}
	if !p.can(u, CapChangeRoles) {
		return internal.ErrForbidden
	}
	if (newRole == coreuser.RoleAdmin || targetRole == coreuser.RoleAdmin) && !p.can(u, CapGrantAdmin) {
		return internal.ErrForbidden
	}
	return nil
}
