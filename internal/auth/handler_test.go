package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/redteam-collab/internal"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type errorEnvelope struct {
	Error struct {
		Type    string            `json:"type"`
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decodeError(rec *httptest.ResponseRecorder) errorEnvelope {
	var env errorEnvelope
	gomega.ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), &env)).To(gomega.Succeed())
	return env
}

var _ = ginkgo.Describe("Handler", func() {
	var (
		repo     *memoryRepository
		sessions *MemoryStore
		handler  *Handler
		guarded  http.Handler
	)

	ginkgo.BeforeEach(func() {
		repo = newMemoryRepository()
		sessions = NewMemoryStore(time.Hour, testLogger)
		service := NewService(repo, NewLocalStrategy(repo, testHasher, testLogger), nil, sessions, testHasher, testLogger)
		handler = NewHandler(service, NewCookieCodec("redteam.sid", "0123456789abcdef0123456789abcdef", false))
		guarded = handler.Gate(http.HandlerFunc(handler.CurrentUser))
	})

	login := func(username, password string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(LoginDTO{Username: username, Password: password})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		return rec
	}

	sessionCookie := func(rec *httptest.ResponseRecorder) *http.Cookie {
		for _, c := range rec.Result().Cookies() {
			if c.Name == "redteam.sid" {
				return c
			}
		}
		return nil
	}

	ginkgo.Describe("Login", func() {
		ginkgo.It("sets a session cookie and returns the user summary", func() {
			repo.addLocal("u-1", "bob", "correct horse", coreuser.RoleAnalyst, coreuser.StatusActive)

			rec := login("bob", "correct horse")

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(sessionCookie(rec)).NotTo(gomega.BeNil())
			var resp struct {
				User map[string]interface{} `json:"user"`
			}
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.User).To(gomega.HaveKeyWithValue("username", "bob"))
			gomega.Expect(resp.User).To(gomega.HaveKeyWithValue("role", "analyst"))
			gomega.Expect(resp.User).NotTo(gomega.HaveKey("password"))
		})

		ginkgo.It("answers 401 for bad credentials", func() {
			rec := login("bob", "nope")
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(decodeError(rec).Error.Code).To(gomega.Equal(string(internal.ErrCodeInvalidCredentials)))
			gomega.Expect(sessionCookie(rec)).To(gomega.BeNil())
		})

		ginkgo.It("answers 403 with the status for pending accounts", func() {
			repo.addLocal("u-1", "alice", "correct horse", coreuser.RoleAnalyst, coreuser.StatusPending)

			rec := login("alice", "correct horse")
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			env := decodeError(rec)
			gomega.Expect(env.Error.Code).To(gomega.Equal(string(internal.ErrCodePendingApproval)))
			gomega.Expect(env.Error.Details).To(gomega.HaveKeyWithValue("status", "pending"))
		})

		ginkgo.It("answers 400 for a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString("{"))
			rec := httptest.NewRecorder()
			handler.Login(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("Register", func() {
		ginkgo.It("creates a pending account without a cookie", func() {
			body := bytes.NewBufferString(`{"username":"alice","password":"wonderland-42"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
			rec := httptest.NewRecorder()

			handler.Register(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"status":"pending"`))
			gomega.Expect(sessionCookie(rec)).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("Gate", func() {
		ginkgo.It("rejects requests without a session cookie", func() {
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/user", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(decodeError(rec).Error.Code).To(gomega.Equal(string(internal.ErrCodeUnauthenticated)))
		})

		ginkgo.It("rejects a forged cookie", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/user", nil)
			req.AddCookie(&http.Cookie{Name: "redteam.sid", Value: "forged"})
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("admits an active user and exposes the identity", func() {
			repo.addLocal("u-1", "bob", "correct horse", coreuser.RoleTeamLead, coreuser.StatusActive)
			ck := sessionCookie(login("bob", "correct horse"))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/user", nil)
			req.AddCookie(ck)
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"id":"u-1"`))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"role":"team_lead"`))
		})

		ginkgo.DescribeTable("rejects a non-active user whatever the role",
			func(role coreuser.Role, status coreuser.Status, code internal.ErrorCode) {
				repo.addLocal("u-1", "bob", "correct horse", role, coreuser.StatusActive)
				ck := sessionCookie(login("bob", "correct horse"))
				repo.setStatus("u-1", status)

				req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/user", nil)
				req.AddCookie(ck)
				rec := httptest.NewRecorder()
				guarded.ServeHTTP(rec, req)

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
				env := decodeError(rec)
				gomega.Expect(env.Error.Code).To(gomega.Equal(string(code)))
				gomega.Expect(env.Error.Details).To(gomega.HaveKeyWithValue("status", string(status)))
			},
			ginkgo.Entry("pending admin", coreuser.RoleAdmin, coreuser.StatusPending, internal.ErrCodePendingApproval),
			ginkgo.Entry("suspended admin", coreuser.RoleAdmin, coreuser.StatusSuspended, internal.ErrCodeAccountInactive),
			ginkgo.Entry("suspended analyst", coreuser.RoleAnalyst, coreuser.StatusSuspended, internal.ErrCodeAccountInactive),
		)

		ginkgo.It("rejects the cookie after logout", func() {
			repo.addLocal("u-1", "bob", "correct horse", coreuser.RoleAnalyst, coreuser.StatusActive)
			ck := sessionCookie(login("bob", "correct horse"))

			out := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
			out.AddCookie(ck)
			outRec := httptest.NewRecorder()
			handler.Logout(outRec, out)
			gomega.Expect(outRec.Code).To(gomega.Equal(http.StatusOK))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/user", nil)
			req.AddCookie(ck)
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})

var _ = ginkgo.Describe("RBACAuthorization", func() {
	rbac := NewRBACAuthorization(NewPermissionChecker(), testLogger)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	serve := func(mw func(http.Handler) http.Handler, u *User) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if u != nil {
			req = req.WithContext(ContextWithUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		mw(ok).ServeHTTP(rec, req)
		return rec.Code
	}

	ginkgo.DescribeTable("guards",
		func(mw func(http.Handler) http.Handler, role coreuser.Role, expected int) {
			gomega.Expect(serve(mw, &User{ID: "u", Role: role, Status: coreuser.StatusActive})).To(gomega.Equal(expected))
		},
		ginkgo.Entry("admin route, admin", rbac.RequireAdmin(), coreuser.RoleAdmin, http.StatusNoContent),
		ginkgo.Entry("admin route, lead", rbac.RequireAdmin(), coreuser.RoleTeamLead, http.StatusForbidden),
		ginkgo.Entry("lead route, lead", rbac.RequireLeadOrAdmin(), coreuser.RoleTeamLead, http.StatusNoContent),
		ginkgo.Entry("lead route, analyst", rbac.RequireLeadOrAdmin(), coreuser.RoleAnalyst, http.StatusForbidden),
		ginkgo.Entry("directory test, lead", rbac.RequireCapability(CapTestDirectory), coreuser.RoleTeamLead, http.StatusForbidden),
	)

	ginkgo.It("answers 401 when no user is attached", func() {
		gomega.Expect(serve(rbac.RequireAdmin(), nil)).To(gomega.Equal(http.StatusUnauthorized))
	})
})

var _ = ginkgo.Describe("ABACPolicy", func() {
	policy := NewABACPolicy(nil)
	admin := &User{ID: "admin", Role: coreuser.RoleAdmin}
	lead := &User{ID: "lead", Role: coreuser.RoleTeamLead}
	analyst := &User{ID: "analyst", Role: coreuser.RoleAnalyst}

	ginkgo.It("lets reporters, assignees and leads edit findings", func() {
		gomega.Expect(policy.CanEditFinding(analyst, "analyst", nil)).To(gomega.Succeed())
		gomega.Expect(policy.CanEditFinding(analyst, "someone", []string{"analyst"})).To(gomega.Succeed())
		gomega.Expect(policy.CanEditFinding(lead, "someone", nil)).To(gomega.Succeed())
		gomega.Expect(policy.CanEditFinding(analyst, "someone", []string{"other"})).To(gomega.MatchError(internal.ErrForbidden))
	})

	ginkgo.It("does not let assignees delete findings", func() {
		gomega.Expect(policy.CanDeleteFinding(analyst, "someone")).To(gomega.MatchError(internal.ErrForbidden))
		gomega.Expect(policy.CanDeleteFinding(analyst, "analyst")).To(gomega.Succeed())
		gomega.Expect(policy.CanDeleteFinding(admin, "someone")).To(gomega.Succeed())
	})

	ginkgo.It("limits message moderation to admins", func() {
		gomega.Expect(policy.CanModifyMessage(lead, "someone")).To(gomega.MatchError(internal.ErrForbidden))
		gomega.Expect(policy.CanModifyMessage(admin, "someone")).To(gomega.Succeed())
	})

	ginkgo.It("stops leads from granting or removing admin", func() {
		gomega.Expect(policy.CanAssignRole(lead, coreuser.RoleAnalyst, coreuser.RoleTeamLead)).To(gomega.Succeed())
		gomega.Expect(policy.CanAssignRole(lead, coreuser.RoleAnalyst, coreuser.RoleAdmin)).To(gomega.MatchError(internal.ErrForbidden))
		gomega.Expect(policy.CanAssignRole(lead, coreuser.RoleAdmin, coreuser.RoleAnalyst)).To(gomega.MatchError(internal.ErrForbidden))
		gomega.Expect(policy.CanAssignRole(admin, coreuser.RoleAnalyst, coreuser.RoleAdmin)).To(gomega.Succeed())
		gomega.Expect(policy.CanAssignRole(analyst, coreuser.RoleAnalyst, coreuser.RoleTeamLead)).To(gomega.MatchError(internal.ErrForbidden))
	})
})
