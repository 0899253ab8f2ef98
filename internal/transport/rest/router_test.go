package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/attachment"
	attachmentPostgres "github.com/frahmantamala/redteam-collab/internal/attachment/postgres"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	authPostgres "github.com/frahmantamala/redteam-collab/internal/auth/postgres"
	"github.com/frahmantamala/redteam-collab/internal/comment"
	commentPostgres "github.com/frahmantamala/redteam-collab/internal/comment/postgres"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	"github.com/frahmantamala/redteam-collab/internal/finding"
	findingPostgres "github.com/frahmantamala/redteam-collab/internal/finding/postgres"
	"github.com/frahmantamala/redteam-collab/internal/livedata"
	"github.com/frahmantamala/redteam-collab/internal/message"
	messagePostgres "github.com/frahmantamala/redteam-collab/internal/message/postgres"
	"github.com/frahmantamala/redteam-collab/internal/report"
	reportPostgres "github.com/frahmantamala/redteam-collab/internal/report/postgres"
	"github.com/frahmantamala/redteam-collab/internal/storage"
	"github.com/frahmantamala/redteam-collab/internal/transport"
	"github.com/frahmantamala/redteam-collab/internal/transport/rest"
	"github.com/frahmantamala/redteam-collab/internal/transport/swagger"
	"github.com/frahmantamala/redteam-collab/internal/user"
	userPostgres "github.com/frahmantamala/redteam-collab/internal/user/postgres"
	"github.com/frahmantamala/redteam-collab/pkg/cryptox"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var _ = Describe("Router", func() {
	var (
		router *chi.Mux
		gdb    *gorm.DB
		hasher *cryptox.ScryptHasher
	)

	BeforeEach(func() {
		var err error
		gdb, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := gdb.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(gdb.AutoMigrate(datamodel.Models()...)).To(Succeed())
		db := sqlx.NewDb(sqlDB, "sqlite3")

		cfg := &internal.Config{Security: internal.SecurityConfig{SessionSecret: "0123456789abcdef0123456789abcdef"}}
		cfg.ApplyDefaults()

		blobs, err := storage.NewLocalStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		hasher = cryptox.NewScryptHasher(cryptox.ScryptParams{N: 1024})
		sessions := auth.NewMemoryStore(cfg.Security.SessionTTL, testLogger)
		checker := auth.NewPermissionChecker()
		policy := auth.NewABACPolicy(checker)

		authRepo := authPostgres.NewRepository(gdb)
		authService := auth.NewService(authRepo, auth.NewLocalStrategy(authRepo, hasher, testLogger), nil, sessions, hasher, testLogger)

		userRepo := userPostgres.NewUserRepository(gdb)
		findingRepo := findingPostgres.NewFindingRepository(gdb)
		base := transport.NewBaseHandler(testLogger)

		doc, err := swagger.Load(context.Background(), filepath.Join("..", "..", "..", "api", "openapi.yml"))
		Expect(err).NotTo(HaveOccurred())

		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, cfg, rest.Handlers{
			Auth:       auth.NewHandler(authService, auth.NewCookieCodec(cfg.Security.CookieName, cfg.Security.SessionSecret, false)),
			RBAC:       auth.NewRBACAuthorization(checker, testLogger),
			User:       user.NewHandler(base, user.NewService(userRepo, sessions, hasher, policy, nil, testLogger)),
			Finding:    finding.NewHandler(base, finding.NewService(findingRepo, findingPostgres.NewStatsRepository(db), blobs, policy, nil, testLogger)),
			Comment:    comment.NewHandler(base, comment.NewService(commentPostgres.NewCommentRepository(gdb), findingRepo, nil, testLogger)),
			Attachment: attachment.NewHandler(base, attachment.NewService(attachmentPostgres.NewAttachmentRepository(gdb), findingRepo, blobs, policy, testLogger)),
			Report:     report.NewHandler(base, report.NewService(reportPostgres.NewReportRepository(gdb), findingRepo, userRepo, blobs, nil, policy, nil, testLogger)),
			Message:    message.NewHandler(base, message.NewService(messagePostgres.NewMessageRepository(gdb), policy, testLogger)),
			LiveData:   livedata.NewHandler(base, livedata.NewService(livedata.NewStore(), livedata.SimulatedScanner{}, nil, nil, nil, testLogger)),
			Health:     rest.NewHealthHandler(db, "sqlite", testLogger),
			APIDoc:     doc,
		}, testLogger)
	})

	seedUser := func(id, username, password, role, status string) {
		hash, err := hasher.Hash(password)
		Expect(err).NotTo(HaveOccurred())
		Expect(gdb.Create(&userdm.User{
			ID:           id,
			Username:     &username,
			PasswordHash: &hash,
			Role:         role,
			Status:       status,
			AuthSource:   "local",
		}).Error).To(Succeed())
	}

	do := func(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		var rdr io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			rdr = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, path, rdr)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	login := func(username, password string) *http.Cookie {
		rec := do(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": username, "password": password})
		Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())
		for _, c := range rec.Result().Cookies() {
			if c.Name == internal.DefaultCookieName {
				return c
			}
		}
		Fail("no session cookie issued")
		return nil
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), &env)).To(Succeed())
		return env.Error.Code
	}

	Context("open endpoints", func() {
		It("answers health checks and serves the API document", func() {
			Expect(do(http.MethodGet, "/api/v1/ping", nil).Code).To(Equal(http.StatusOK))
			Expect(do(http.MethodGet, "/api/v1/health", nil).Code).To(Equal(http.StatusOK))

			rec := do(http.MethodGet, "/openapi.yml", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("RedTeam Collab API"))
		})

		It("answers unknown routes with a JSON 404", func() {
			rec := do(http.MethodGet, "/api/v1/nope", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
		})

		It("tags every response with a request id", func() {
			rec := do(http.MethodGet, "/api/v1/ping", nil)
			Expect(rec.Header().Get("X-Request-ID")).NotTo(BeEmpty())
		})
	})

	Context("gated endpoints", func() {
		It("rejects requests without a session", func() {
			rec := do(http.MethodGet, "/api/v1/findings", nil)
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(rec)).To(Equal("UNAUTHENTICATED"))
		})

		It("keeps analysts out of administration", func() {
			seedUser("u-analyst", "alice", "Sup3rSecret!", "analyst", "active")
			ck := login("alice", "Sup3rSecret!")

			rec := do(http.MethodGet, "/api/v1/admin/users", nil, ck)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("lets an admin list users", func() {
			seedUser("u-admin", "root", "Sup3rSecret!", "admin", "active")
			ck := login("root", "Sup3rSecret!")

			rec := do(http.MethodGet, "/api/v1/admin/users", nil, ck)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("creates and reads back a finding", func() {
			seedUser("u-analyst", "alice", "Sup3rSecret!", "analyst", "active")
			ck := login("alice", "Sup3rSecret!")

			rec := do(http.MethodPost, "/api/v1/findings", map[string]string{
				"title": "SQL injection in login", "description": "boolean based", "severity": "high",
			}, ck)
			Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())

			var created struct {
				ID int64 `json:"id"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())

			rec = do(http.MethodGet, fmt.Sprintf("/api/v1/findings/%d", created.ID), nil, ck)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("SQL injection in login"))

			rec = do(http.MethodGet, "/api/v1/stats", nil, ck)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("routes channel reads and message edits on the same prefix", func() {
			seedUser("u-analyst", "alice", "Sup3rSecret!", "analyst", "active")
			ck := login("alice", "Sup3rSecret!")

			rec := do(http.MethodPost, "/api/v1/messages", map[string]string{"content": "scope confirmed", "channel": "general"}, ck)
			Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())
			var m struct {
				ID int64 `json:"id"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &m)).To(Succeed())

			rec = do(http.MethodGet, "/api/v1/messages/general", nil, ck)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("scope confirmed"))

			rec = do(http.MethodPatch, fmt.Sprintf("/api/v1/messages/%d", m.ID), map[string]string{"content": "scope confirmed, prod excluded"}, ck)
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())
		})

		It("serves the live network picture only to signed in users", func() {
			Expect(do(http.MethodGet, "/api/v1/live/network-nodes", nil).Code).To(Equal(http.StatusUnauthorized))

			seedUser("u-analyst", "alice", "Sup3rSecret!", "analyst", "active")
			ck := login("alice", "Sup3rSecret!")

			rec := do(http.MethodPost, "/api/v1/live/scan-network", map[string]string{"subnet": "10.20.30.0/24"}, ck)
			Expect(rec.Code).To(Equal(http.StatusOK), rec.Body.String())

			rec = do(http.MethodGet, "/api/v1/live/network-nodes", nil, ck)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("10.20.30.1"))

			rec = do(http.MethodPost, "/api/v1/live/scan-vulnerabilities", map[string]string{"targets": "10.20.30.1"}, ck)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			rec = do(http.MethodGet, "/api/v1/live/openvas-status", nil, ck)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"connected":false`))
		})
	})

	Context("login throttling", func() {
		It("returns 429 once the per-client budget is spent", func() {
			var last *httptest.ResponseRecorder
			for i := 0; i < 6; i++ {
				last = do(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "ghost", "password": "wrong-password"})
			}
			Expect(last.Code).To(Equal(http.StatusTooManyRequests))
		})
	})
})
