package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/redteam-collab/internal"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/frahmantamala/redteam-collab/internal/transport"
)

// RBACAuthorization layers role guards on top of the gate.
type RBACAuthorization struct {
	*transport.BaseHandler
	checker PermissionChecker
	logger  *slog.Logger
}

func NewRBACAuthorization(checker PermissionChecker, logger *slog.Logger) *RBACAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		checker:     checker,
		logger:      logger,
	}
}

func (ra *RBACAuthorization) guard(next http.Handler, allowed func(*User) bool, rule string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			ra.logger.Warn("authorization check failed: user not found in context")
			ra.WriteAppError(w, internal.ErrUnauthenticated)
			return
		}

		if !allowed(user) {
			ra.logger.WarnContext(r.Context(), "access denied",
				"user_id", user.ID,
				"role", user.Role,
				"rule", rule)
			ra.WriteAppError(w, internal.ErrForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireRoles admits any of roles.
func (ra *RBACAuthorization) RequireRoles(roles ...coreuser.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.guard(next, func(u *User) bool {
			return ra.checker.HasAnyRole(u.Role, roles...)
		}, "role")
	}
}

func (ra *RBACAuthorization) RequireCapability(capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.guard(next, func(u *User) bool {
			return ra.checker.Can(u.Role, capability)
		}, string(capability))
	}
}

func (ra *RBACAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.RequireRoles(coreuser.RoleAdmin)
}

func (ra *RBACAuthorization) RequireLeadOrAdmin() func(http.Handler) http.Handler {
	return ra.RequireRoles(coreuser.RoleAdmin, coreuser.RoleTeamLead)
}
