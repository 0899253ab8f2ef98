package report_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	authPostgres "github.com/frahmantamala/redteam-collab/internal/auth/postgres"
	"github.com/frahmantamala/redteam-collab/internal/core/datamodel"
	findingdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
	userdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/user"
	"github.com/frahmantamala/redteam-collab/internal/core/events"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	findingPostgres "github.com/frahmantamala/redteam-collab/internal/finding/postgres"
	"github.com/frahmantamala/redteam-collab/internal/report"
	reportPostgres "github.com/frahmantamala/redteam-collab/internal/report/postgres"
	"github.com/frahmantamala/redteam-collab/internal/storage"
	"github.com/frahmantamala/redteam-collab/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

var _ = Describe("Report Service", func() {
	var (
		ctx       context.Context
		db        *gorm.DB
		store     *storage.LocalStore
		renderer  *stubRenderer
		publisher *recordingPublisher
		service   *report.Service
		critical  *findingdm.Finding
		low       *findingdm.Finding

		author = &auth.User{ID: "u-1", FirstName: "Grace", LastName: "Hopper", Role: coreuser.RoleAnalyst}
		other  = &auth.User{ID: "u-2", Role: coreuser.RoleAnalyst}
		lead   = &auth.User{ID: "u-3", Role: coreuser.RoleTeamLead}
	)

	newService := func(r report.Renderer) *report.Service {
		return report.NewService(
			reportPostgres.NewReportRepository(db),
			findingPostgres.NewFindingRepository(db),
			authPostgres.NewRepository(db),
			store,
			r,
			auth.NewABACPolicy(nil),
			publisher,
			testLogger,
		)
	}

	readBlob := func(key string) string {
		rc, err := store.Open(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()
		body, err := io.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())
		return string(body)
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, _ := db.DB()
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(datamodel.Models()...)).To(Succeed())

		store, err = storage.NewLocalStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		username := "ghopper"
		Expect(db.Create(&userdm.User{ID: "u-1", Username: &username, FirstName: "Grace", LastName: "Hopper", Status: "active"}).Error).To(Succeed())

		critical = &findingdm.Finding{Title: "SQL injection", Description: "login form", Severity: "critical", Status: "open", ReportedByID: "u-1"}
		low = &findingdm.Finding{Title: "Verbose banner", Description: "server header", Severity: "low", Status: "open", ReportedByID: "u-9"}
		Expect(db.Create(critical).Error).To(Succeed())
		Expect(db.Create(low).Error).To(Succeed())

		renderer = &stubRenderer{pdf: []byte("%PDF-1.4 fake")}
		publisher = &recordingPublisher{}
		service = newService(renderer)
	})

	It("stores a pdf when the renderer succeeds", func() {
		rep, err := service.Generate(ctx, author, report.CreateReportDTO{
			Title:    "Q1 Review",
			Findings: []int64{critical.ID, low.ID},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(rep.Format).To(Equal(report.FormatPDF))
		Expect(rep.Filename).To(MatchRegexp(`^q1_review_\d+\.pdf$`))
		Expect(rep.Key()).To(HavePrefix("reports/"))
		Expect(rep.Key()).To(HaveSuffix(".pdf"))
		Expect(rep.GeneratedBy).To(Equal("u-1"))
		Expect(rep.Findings).To(Equal([]int64{critical.ID, low.ID}))
		Expect(readBlob(rep.Key())).To(Equal("%PDF-1.4 fake"))
		Expect(publisher.Types()).To(Equal([]string{events.EventTypeReportGenerated}))
	})

	It("falls back to html when the renderer fails", func() {
		renderer.err = errBrowserCrashed

		rep, err := service.Generate(ctx, author, report.CreateReportDTO{
			Title:    "Q1 Review",
			Format:   "PDF",
			Findings: []int64{critical.ID},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(rep.Format).To(Equal(report.FormatHTML))
		Expect(rep.Filename).To(HaveSuffix(".html"))
		body := readBlob(rep.Key())
		Expect(body).To(HavePrefix("<!DOCTYPE html>"))
		Expect(body).To(ContainSubstring(">HTML<"))
		Expect(body).To(ContainSubstring("SQL injection"))
		Expect(body).To(ContainSubstring("Grace Hopper"))
	})

	It("falls back to html when no renderer is configured", func() {
		service = newService(nil)

		rep, err := service.Generate(ctx, author, report.CreateReportDTO{Title: "Nightly", Findings: []int64{low.ID}})
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Format).To(Equal(report.FormatHTML))
		Expect(readBlob(rep.Key())).To(ContainSubstring("Unknown user"))
	})

	It("skips the renderer for html requests", func() {
		rep, err := service.Generate(ctx, author, report.CreateReportDTO{Title: "Plain", Format: "html"})
		Expect(err).NotTo(HaveOccurred())
		Expect(rep.Format).To(Equal(report.FormatHTML))
		Expect(renderer.Calls()).To(Equal(0))
	})

	It("renders zero counts when every requested finding is missing", func() {
		rep, err := service.Generate(ctx, author, report.CreateReportDTO{Title: "Empty", Format: "html", Findings: []int64{404, 404, 405}})
		Expect(err).NotTo(HaveOccurred())

		Expect(rep.Findings).To(Equal([]int64{404, 405}))
		body := readBlob(rep.Key())
		Expect(body).To(ContainSubstring(`id="total-findings">0</div>`))
		Expect(body).To(ContainSubstring(`id="summary-critical">0</div>`))
		Expect(body).To(ContainSubstring(`id="summary-low">0</div>`))
	})

	It("rejects unknown formats and blank titles", func() {
		_, err := service.Generate(ctx, author, report.CreateReportDTO{Title: "x", Format: "docx"})
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))

		_, err = service.Generate(ctx, author, report.CreateReportDTO{Title: "   "})
		Expect(err).To(HaveOccurred())
	})

	It("lets the creator or a lead delete and removes the document", func() {
		rep, err := service.Generate(ctx, author, report.CreateReportDTO{Title: "Temp"})
		Expect(err).NotTo(HaveOccurred())

		err = service.Delete(ctx, other, rep.ID)
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeForbidden))

		Expect(service.Delete(ctx, lead, rep.ID)).To(Succeed())
		_, err = store.Open(ctx, rep.Key())
		Expect(err).To(MatchError(storage.ErrNotFound))

		_, err = service.GetByID(ctx, rep.ID)
		Expect(err).To(MatchError(internal.ErrReportNotFound))
	})

	It("reports a missing document as file not found", func() {
		rep, err := service.Generate(ctx, author, report.CreateReportDTO{Title: "Gone"})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Delete(ctx, rep.Key())).To(Succeed())

		_, _, err = service.Open(ctx, rep.ID)
		Expect(err).To(MatchError(internal.ErrReportFileNotFound))
	})

	It("serves downloads with the format's content type", func() {
		rep, err := service.Generate(ctx, author, report.CreateReportDTO{Title: "Q2 Review"})
		Expect(err).NotTo(HaveOccurred())

		handler := report.NewHandler(transport.NewBaseHandler(testLogger), service)
		r := chi.NewRouter()
		r.Get("/reports/{id}/download", handler.Download)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/"+strconv.FormatInt(rep.ID, 10)+"/download", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/pdf"))
		Expect(rec.Header().Get("Content-Disposition")).To(Equal("attachment; filename=" + rep.Filename))
		Expect(rec.Body.String()).To(Equal("%PDF-1.4 fake"))
	})

	It("lists newest first", func() {
		first, err := service.Generate(ctx, author, report.CreateReportDTO{Title: "First"})
		Expect(err).NotTo(HaveOccurred())
		second, err := service.Generate(ctx, author, report.CreateReportDTO{Title: "Second"})
		Expect(err).NotTo(HaveOccurred())

		reports, err := service.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(reports).To(HaveLen(2))
		Expect(reports[0].ID).To(Equal(second.ID))
		Expect(reports[1].ID).To(Equal(first.ID))
	})
})
