package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/attachment"
	attachmentPostgres "github.com/frahmantamala/redteam-collab/internal/attachment/postgres"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	authPostgres "github.com/frahmantamala/redteam-collab/internal/auth/postgres"
	"github.com/frahmantamala/redteam-collab/internal/comment"
	commentPostgres "github.com/frahmantamala/redteam-collab/internal/comment/postgres"
	"github.com/frahmantamala/redteam-collab/internal/core/events"
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
	"github.com/frahmantamala/redteam-collab/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Router   *chi.Mux
	Logger   *slog.Logger
	Bus      *events.EventBus
	Sessions *auth.MemoryStore
	Renders  *report.Pool
}

func startHTTPServer() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go deps.Sessions.Run(janitorCtx, deps.Config.Security.SessionPurgeInterval)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", addr, "driver", deps.Config.Database.Driver)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("received signal, shutting down")
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stopJanitor()
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	stopJanitor()
	if deps.Renders != nil {
		deps.Renders.Shutdown()
	}
	if err := deps.Bus.Wait(shutdownCtx); err != nil {
		log.Warn("event handlers still running at shutdown", "error", err)
	}
	if err := deps.DB.Close(); err != nil {
		log.Error("database close error", "error", err)
	}

	log.Info("server stopped")
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.Env, cfg.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	db, gdb, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		if err := autoMigrate(ctx, gdb, log); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	blobs, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	bus := events.NewEventBus(log)
	events.SubscribeActivityLog(bus, log)

	hasher := cryptox.NewScryptHasher(cryptox.ScryptParams{N: cfg.Security.ScryptCost})
	sessions := auth.NewMemoryStore(cfg.Security.SessionTTL, log)

	checker := auth.NewPermissionChecker()
	policy := auth.NewABACPolicy(checker)
	rbac := auth.NewRBACAuthorization(checker, log)

	authRepo := authPostgres.NewRepository(gdb)
	local := auth.NewLocalStrategy(authRepo, hasher, log)
	var directory *auth.DirectoryStrategy
	if cfg.Directory.Enabled {
		dialer := auth.NewLDAPDialer(cfg.Directory.URL, cfg.Directory.Timeout)
		directory = auth.NewDirectoryStrategy(cfg.Directory, dialer, authRepo, log)
	}
	strategy, err := auth.SelectStrategy(cfg.Security.LoginStrategy, local, directory)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to select login strategy: %w", err)
	}
	authService := auth.NewService(authRepo, strategy, directory, sessions, hasher, log)
	cookies := auth.NewCookieCodec(cfg.Security.CookieName, cfg.Security.SessionSecret, cfg.Security.SecureCookie)

	renders := newRenderPool(cfg.Report, log)
	var renderer report.Renderer
	if renders != nil {
		renderer = renders
	}

	userRepo := userPostgres.NewUserRepository(gdb)
	findingRepo := findingPostgres.NewFindingRepository(gdb)

	userService := user.NewService(userRepo, sessions, hasher, policy, bus, log)
	findingService := finding.NewService(findingRepo, findingPostgres.NewStatsRepository(db), blobs, policy, bus, log)
	commentService := comment.NewService(commentPostgres.NewCommentRepository(gdb), findingRepo, bus, log)
	attachmentService := attachment.NewService(attachmentPostgres.NewAttachmentRepository(gdb), findingRepo, blobs, policy, log)
	reportService := report.NewService(reportPostgres.NewReportRepository(gdb), findingRepo, userRepo, blobs, renderer, policy, bus, log)
	messageService := message.NewService(messagePostgres.NewMessageRepository(gdb), policy, log)
	liveService := livedata.NewService(livedata.NewStore(), livedata.SimulatedScanner{}, livedata.NoEvents{},
		livedata.BinaryProber{Binary: cfg.LiveData.OpenVASBinary}, bus, log)

	base := transport.NewBaseHandler(log)

	var apiDoc *swagger.Document
	if doc, err := swagger.Load(ctx, cfg.Server.OpenAPIPath); err != nil {
		log.Warn("openapi document not served", "path", cfg.Server.OpenAPIPath, "error", err)
	} else {
		apiDoc = doc
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, cfg, rest.Handlers{
		Auth:       auth.NewHandler(authService, cookies),
		RBAC:       rbac,
		User:       user.NewHandler(base, userService),
		Finding:    finding.NewHandler(base, findingService),
		Comment:    comment.NewHandler(base, commentService),
		Attachment: attachment.NewHandler(base, attachmentService),
		Report:     report.NewHandler(base, reportService),
		Message:    message.NewHandler(base, messageService),
		LiveData:   livedata.NewHandler(base, liveService),
		Health:     rest.NewHealthHandler(db, cfg.Database.Driver, log),
		APIDoc:     apiDoc,
	}, log)

	return &Dependencies{
		Config:   cfg,
		DB:       db,
		Gorm:     gdb,
		Router:   router,
		Logger:   log,
		Bus:      bus,
		Sessions: sessions,
		Renders:  renders,
	}, nil
}

// newRenderPool returns nil when no Chromium binary is found; reports then
// fall back to HTML.
func newRenderPool(cfg internal.ReportConfig, log *slog.Logger) *report.Pool {
	execPath, err := report.FindChromium(cfg.ChromiumPath)
	if err != nil {
		log.Warn("pdf rendering disabled", "error", err)
		return nil
	}
	log.Info("pdf rendering enabled", "chromium", execPath, "workers", cfg.MaxConcurrentRenders)
	chrome := report.NewChromeRenderer(execPath, cfg.RenderTimeout, log)
	return report.NewPool(chrome, cfg.MaxConcurrentRenders, cfg.QueueSize, log)
}
