package user_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/redteam-collab/internal/auth"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/frahmantamala/redteam-collab/internal/transport"
	"github.com/frahmantamala/redteam-collab/internal/user"
	userPostgres "github.com/frahmantamala/redteam-collab/internal/user/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("User Handler Integration", func() {
	var (
		router http.Handler
		actor  *auth.User
	)

	BeforeEach(func() {
		db := openTestDB()
		repo := userPostgres.NewUserRepository(db)
		for _, seed := range []struct {
			id, name string
			status   coreuser.Status
		}{
			{"admin-1", "admin", coreuser.StatusActive},
			{"p-1", "newbie", coreuser.StatusPending},
		} {
			name := seed.name
			Expect(repo.Create(context.Background(), &userdm.User{
				ID: seed.id, Username: &name, Role: "analyst", Status: string(seed.status), AuthSource: "local",
			})).To(Succeed())
		}

		svc := user.NewService(repo, auth.NewMemoryStore(time.Hour, testLogger), testHasher, auth.NewABACPolicy(nil), nil, testLogger)
		handler := user.NewHandler(transport.NewBaseHandler(testLogger), svc)
		actor = &auth.User{ID: "admin-1", Role: coreuser.RoleAdmin, Status: coreuser.StatusActive}

		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.ContextWithUser(req.Context(), actor)))
			})
		})
		r.Get("/users", handler.ListProfiles)
		r.Get("/admin/pending-users", handler.ListPending)
		r.Post("/admin/users/{id}/approve", handler.Approve)
		r.Patch("/admin/users/{id}/status", handler.UpdateStatus)
		router = r
	})

	It("lists only active profiles", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body user.ProfilesResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Users).To(HaveLen(1))
		Expect(body.Users[0].Username).To(Equal("admin"))
	})

	It("approves a pending user", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/users/p-1/approve", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/pending-users", nil))
		var body user.UsersResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Users).To(BeEmpty())
	})

	It("answers self-protection violations with 400", func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/admin/users/admin-1/status", strings.NewReader(`{"status":"suspended"}`))
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring("SELF_PROTECTION"))
	})

	It("answers unknown users with 404", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/users/ghost/approve", nil))
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})
