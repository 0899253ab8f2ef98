package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	findingdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
	reportdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/report"
	"github.com/frahmantamala/redteam-collab/internal/core/events"
	coreuser "github.com/frahmantamala/redteam-collab/internal/core/user"
	"github.com/frahmantamala/redteam-collab/internal/storage"
	"github.com/frahmantamala/redteam-collab/pkg/idx"
)

const (
	keyPrefix       = "reports"
	rollbackTimeout = 10 * time.Second
)

// BlobStore is satisfied by storage.Store.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type ServiceAPI interface {
	Generate(ctx context.Context, actor *auth.User, dto CreateReportDTO) (*Report, error)
	List(ctx context.Context) ([]*Report, error)
	GetByID(ctx context.Context, id int64) (*Report, error)
	Open(ctx context.Context, id int64) (*Report, io.ReadCloser, error)
	Delete(ctx context.Context, actor *auth.User, id int64) error
}

type Service struct {
	repo     Repository
	findings FindingReader
	users    UserReader
	blobs    BlobStore
	renderer Renderer
	policy   *auth.ABACPolicy
	events   events.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires report generation. A nil renderer makes every PDF request
// fall back to HTML.
func NewService(repo Repository, findings FindingReader, users UserReader, blobs BlobStore, renderer Renderer, policy *auth.ABACPolicy, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:     repo,
		findings: findings,
		users:    users,
		blobs:    blobs,
		renderer: renderer,
		policy:   policy,
		events:   publisher,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate renders the selected findings, stores the document and records it.
// A failed PDF render degrades to HTML; the stored format and file extension
// reflect what was actually produced.
func (s *Service) Generate(ctx context.Context, actor *auth.User, dto CreateReportDTO) (*Report, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	findings, err := s.findings.GetByIDs(ctx, dto.Findings)
	if err != nil {
		s.logger.Error("failed to load report findings", "error", err, "user_id", actor.ID)
		return nil, internal.NewInternalError("failed to load findings", err)
	}
	if skipped := len(dto.Findings) - len(findings); skipped > 0 {
		s.logger.Info("report skips missing findings", "requested", len(dto.Findings), "skipped", skipped)
	}

	now := s.now()
	reporters := s.reporterNames(ctx, findings)
	build := func(format string) ([]byte, error) {
		doc := NewDocument(dto.Title, dto.Description, actor.DisplayName(), format, findings, reporters, now)
		return RenderHTML(doc)
	}

	format := dto.Format
	body, err := build(format)
	if err != nil {
		return nil, internal.NewInternalError("failed to render report", err)
	}
	if format == FormatPDF {
		if pdf, renderErr := s.renderPDF(ctx, body); renderErr == nil {
			body = pdf
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("pdf rendering failed, falling back to html", "error", renderErr, "user_id", actor.ID)
			format = FormatHTML
			if body, err = build(format); err != nil {
				return nil, internal.NewInternalError("failed to render report", err)
			}
		}
	}

	key := idx.StorageKey(keyPrefix, "."+format)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(body), int64(len(body)), ContentType(format)); err != nil {
		s.logger.Error("failed to store report", "error", err, "key", key)
		return nil, internal.NewInternalError("failed to store report", err)
	}

	row := &reportdm.Report{
		Title:         dto.Title,
		Description:   dto.Description,
		Findings:      dto.Findings,
		GeneratedByID: actor.ID,
		Format:        format,
		Filename:      Filename(dto.Title, format, now),
		FilePath:      key,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		cleanupCtx, cancel := internal.Detached(ctx, rollbackTimeout)
		defer cancel()
		if delErr := s.blobs.Delete(cleanupCtx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned report blob", "key", key, "error", delErr)
		}
		s.logger.Error("failed to save report", "error", err, "user_id", actor.ID)
		return nil, internal.NewInternalError("failed to save report", err)
	}

	s.publish(ctx, events.NewReportGeneratedEvent(actor.ID, strconv.FormatInt(row.ID, 10), format, len(findings)))
	s.logger.Info("report generated",
		"report_id", row.ID,
		"format", format,
		"requested_format", dto.Format,
		"findings", len(findings),
		"bytes", len(body),
		"user_id", actor.ID)
	return FromDataModel(row), nil
}

func (s *Service) renderPDF(ctx context.Context, html []byte) ([]byte, error) {
	if s.renderer == nil {
		return nil, ErrRendererUnavailable
	}
	return s.renderer.RenderPDF(ctx, html)
}

// reporterNames resolves display names for every distinct reporter.
// Lookup failures render as the unknown user label.
func (s *Service) reporterNames(ctx context.Context, findings []*findingdm.Finding) map[string]string {
	names := make(map[string]string)
	for _, f := range findings {
		if _, ok := names[f.ReportedByID]; ok {
			continue
		}
		u, err := s.users.GetByID(ctx, f.ReportedByID)
		if err != nil {
			if !errors.Is(err, internal.ErrUserNotFound) {
				s.logger.Warn("failed to resolve reporter", "user_id", f.ReportedByID, "error", err)
			}
			names[f.ReportedByID] = coreuser.DisplayNameOf(nil, nil, nil)
			continue
		}
		names[f.ReportedByID] = coreuser.DisplayNameOf(&u.FirstName, &u.LastName, u.Username)
	}
	return names
}

func (s *Service) List(ctx context.Context) ([]*Report, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list reports", "error", err)
		return nil, internal.NewInternalError("failed to list reports", err)
	}
	out := make([]*Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Report, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrReportNotFound) {
			return nil, internal.ErrReportNotFound
		}
		return nil, internal.NewInternalError("failed to load report", err)
	}
	return FromDataModel(row), nil
}

// Open returns the report and its document. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id int64) (*Report, io.ReadCloser, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if r.key == "" || r.Filename == "" {
		return nil, nil, internal.ErrReportFileNotFound
	}
	rc, err := s.blobs.Open(ctx, r.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("report blob missing", "report_id", id, "key", r.key)
			return nil, nil, internal.ErrReportFileNotFound
		}
		return nil, nil, internal.NewInternalError("failed to open report", err)
	}
	return r, rc, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.User, id int64) error {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanDeleteReport(actor, r.GeneratedBy); err != nil {
		s.logger.Warn("report delete denied", "report_id", id, "user_id", actor.ID)
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, internal.ErrReportNotFound) {
			return internal.ErrReportNotFound
		}
		s.logger.Error("failed to delete report", "error", err, "report_id", id)
		return internal.NewInternalError("failed to delete report", err)
	}
	if r.key != "" {
		if err := s.blobs.Delete(ctx, r.key); err != nil {
			s.logger.Warn("failed to remove report blob", "report_id", id, "key", r.key, "error", err)
		}
	}

	s.logger.Info("report deleted", "report_id", id, "user_id", actor.ID)
	return nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event", "event_type", e.EventType(), "error", err)
	}
}
