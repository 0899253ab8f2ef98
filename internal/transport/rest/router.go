package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/attachment"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	"github.com/frahmantamala/redteam-collab/internal/comment"
	"github.com/frahmantamala/redteam-collab/internal/finding"
	"github.com/frahmantamala/redteam-collab/internal/livedata"
	"github.com/frahmantamala/redteam-collab/internal/message"
	"github.com/frahmantamala/redteam-collab/internal/report"
	"github.com/frahmantamala/redteam-collab/internal/transport/middleware"
	"github.com/frahmantamala/redteam-collab/internal/transport/swagger"
	"github.com/frahmantamala/redteam-collab/internal/user"
	"github.com/go-chi/chi"
)

// Handlers groups every HTTP surface the router mounts. Nil handlers are
// skipped.
type Handlers struct {
	Auth       *auth.Handler
	RBAC       *auth.RBACAuthorization
	User       *user.Handler
	Finding    *finding.Handler
	Comment    *comment.Handler
	Attachment *attachment.Handler
	Report     *report.Handler
	Message    *message.Handler
	LiveData   *livedata.Handler
	Health     *HealthHandler
	APIDoc     *swagger.Document
}

func RegisterAllRoutes(router *chi.Mux, cfg *internal.Config, h Handlers, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	if h.APIDoc != nil {
		router.Get("/openapi.yml", h.APIDoc.ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler())
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Warn("ignoring trusted proxies", "error", err)
	}
	loginLimit := middleware.NewRateLimiter(cfg.Security.LoginRateRequests, cfg.Security.LoginRateWindow, proxies)

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.With(loginLimit.Handler).Post("/login", h.Auth.Login)
			ar.With(loginLimit.Handler).Post("/register", h.Auth.Register)
			ar.Post("/logout", h.Auth.Logout)
			ar.With(h.Auth.Gate).Get("/user", h.Auth.CurrentUser)

			if cfg.Directory.Enabled {
				ar.With(loginLimit.Handler).Post("/directory/login", h.Auth.DirectoryLogin)
				ar.With(h.Auth.Gate, h.RBAC.RequireCapability(auth.CapTestDirectory)).Get("/directory/test", h.Auth.DirectoryTest)
			}
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.Gate)

			if h.User != nil {
				pr.Get("/users", h.User.ListProfiles)
				pr.Patch("/users/{id}", h.User.UpdateProfile)
				pr.Patch("/users/{id}/password", h.User.ChangePassword)

				pr.Route("/admin", func(adm chi.Router) {
					adm.With(h.RBAC.RequireCapability(auth.CapChangeRoles)).Patch("/users/{id}/role", h.User.UpdateRole)

					adm.Group(func(ar chi.Router) {
						ar.Use(h.RBAC.RequireAdmin())
						ar.Get("/users", h.User.List)
						ar.Get("/pending-users", h.User.ListPending)
						ar.Post("/users", h.User.Create)
						ar.Post("/users/{id}/approve", h.User.Approve)
						ar.Patch("/users/{id}/status", h.User.UpdateStatus)
						ar.Patch("/users/{id}/reset-password", h.User.ResetPassword)
						ar.Delete("/users/{id}", h.User.Delete)
					})
				})
			}

			if h.Finding != nil {
				pr.Route("/findings", func(fr chi.Router) {
					fr.Post("/", h.Finding.Create)
					fr.Get("/", h.Finding.List)
					fr.Get("/{id}", h.Finding.Get)
					fr.Patch("/{id}", h.Finding.Update)
					fr.Delete("/{id}", h.Finding.Delete)

					if h.Comment != nil {
						fr.Get("/{id}/comments", h.Comment.List)
						fr.Post("/{id}/comments", h.Comment.Create)
					}
					if h.Attachment != nil {
						fr.Get("/{id}/attachments", h.Attachment.List)
						fr.Post("/{id}/attachments", h.Attachment.Upload)
					}
				})
				pr.Get("/stats", h.Finding.Stats)
			}

			if h.Attachment != nil {
				pr.Get("/attachments/{id}/download", h.Attachment.Download)
				pr.Delete("/attachments/{id}", h.Attachment.Delete)
			}

			if h.Report != nil {
				pr.Route("/reports", func(rr chi.Router) {
					rr.Post("/", h.Report.Create)
					rr.Get("/", h.Report.List)
					rr.Get("/{id}", h.Report.Get)
					rr.Get("/{id}/download", h.Report.Download)
					rr.Delete("/{id}", h.Report.Delete)
				})
			}

			if h.Message != nil {
				pr.Get("/channels", h.Message.Channels)
				pr.Post("/messages", h.Message.Create)
				pr.Get("/messages/{channel}", h.Message.List)
				pr.Patch("/messages/{id}", h.Message.Update)
				pr.Delete("/messages/{id}", h.Message.Delete)
			}

			if h.LiveData != nil {
				pr.Route("/live", func(lr chi.Router) {
					lr.Get("/network-nodes", h.LiveData.NetworkNodes)
					lr.Get("/network-connections", h.LiveData.NetworkConnections)
					lr.Get("/security-events", h.LiveData.SecurityEvents)
					lr.Get("/openvas-status", h.LiveData.OpenVASStatus)
					lr.Post("/scan-network", h.LiveData.ScanNetwork)
					lr.Post("/scan-vulnerabilities", h.LiveData.ScanVulnerabilities)
					lr.Post("/fetch-security-events", h.LiveData.FetchSecurityEvents)
				})
			}
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		status, body := internal.NewNotFoundError("Route not found", internal.ErrCodeNotFound).ToHTTPResponse()
		writeJSON(w, status, body)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
