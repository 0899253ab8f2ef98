package finding

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	"github.com/frahmantamala/redteam-collab/internal/core/events"
)

const blobCleanupTimeout = 30 * time.Second

type ServiceAPI interface {
	Create(ctx context.Context, actor *auth.User, dto CreateFindingDTO) (*Finding, error)
	List(ctx context.Context, filter Filter) ([]*Finding, error)
	GetByID(ctx context.Context, id int64) (*Finding, error)
	Update(ctx context.Context, actor *auth.User, id int64, dto UpdateFindingDTO) (*Finding, error)
	Delete(ctx context.Context, actor *auth.User, id int64) error
	Stats(ctx context.Context) (*Stats, error)
}

type Service struct {
	repo   Repository
	stats  StatsRepository
	blobs  BlobRemover
	policy *auth.ABACPolicy
	events events.Publisher
	logger *slog.Logger
}

func NewService(repo Repository, stats StatsRepository, blobs BlobRemover, policy *auth.ABACPolicy, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:   repo,
		stats:  stats,
		blobs:  blobs,
		policy: policy,
		events: publisher,
		logger: logger,
	}
}

func (s *Service) Create(ctx context.Context, actor *auth.User, dto CreateFindingDTO) (*Finding, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	status := dto.Status
	if status == "" {
		status = StatusOpen
	}
	f := &Finding{
		Title:            dto.Title,
		Description:      dto.Description,
		Severity:         dto.Severity,
		Category:         dto.Category,
		Status:           status,
		CVSSScore:        dto.CVSSScore,
		AffectedURL:      dto.AffectedURL,
		Payload:          dto.Payload,
		Evidence:         dto.Evidence,
		NetworkTopology:  dto.NetworkTopology,
		ExploitationFlow: dto.ExploitationFlow,
		MitreAttack:      dto.MitreAttack,
		ReportedBy:       actor.ID,
		AssignedTo:       dto.AssignedTo,
	}

	row := ToDataModel(f)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create finding", "error", err, "user_id", actor.ID)
		return nil, internal.NewInternalError("failed to create finding", err)
	}

	created := FromDataModel(row)
	s.publish(ctx, events.NewFindingCreatedEvent(actor.ID, strconv.FormatInt(created.ID, 10), created.Title, created.Severity))
	s.logger.Info("finding created", "finding_id", created.ID, "severity", created.Severity, "user_id", actor.ID)
	return created, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]*Finding, error) {
	for _, sev := range filter.Severities {
		if !slices.Contains(Severities, sev) {
			return nil, internal.NewValidationFieldError("severity", "unknown severity "+strconv.Quote(sev), internal.ErrCodeInvalidSeverity)
		}
	}
	if filter.Status != "" && !slices.Contains(Statuses, filter.Status) {
		return nil, internal.NewValidationFieldError("status", "unknown status "+strconv.Quote(filter.Status), internal.ErrCodeInvalidStatus)
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list findings", "error", err)
		return nil, internal.NewInternalError("failed to list findings", err)
	}
	findings := make([]*Finding, 0, len(rows))
	for _, row := range rows {
		findings = append(findings, FromDataModel(row))
	}
	return findings, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Finding, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrFindingNotFound) {
			return nil, internal.ErrFindingNotFound
		}
		return nil, internal.NewInternalError("failed to load finding", err)
	}
	return FromDataModel(row), nil
}

func (s *Service) Update(ctx context.Context, actor *auth.User, id int64, dto UpdateFindingDTO) (*Finding, error) {
	f, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanEditFinding(actor, f.ReportedBy, f.AssignedTo); err != nil {
		s.logger.Warn("finding edit denied", "finding_id", id, "user_id", actor.ID)
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	dto.apply(f)
	row := ToDataModel(f)
	if err := s.repo.Update(ctx, row); err != nil {
		s.logger.Error("failed to update finding", "error", err, "finding_id", id)
		return nil, internal.NewInternalError("failed to update finding", err)
	}

	s.publish(ctx, events.NewFindingUpdatedEvent(actor.ID, strconv.FormatInt(id, 10), dto.Fields()))
	return FromDataModel(row), nil
}

// Delete cascades to comments and attachments. Blob removal is best effort.
func (s *Service) Delete(ctx context.Context, actor *auth.User, id int64) error {
	f, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanDeleteFinding(actor, f.ReportedBy); err != nil {
		s.logger.Warn("finding delete denied", "finding_id", id, "user_id", actor.ID)
		return err
	}

	keys, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrFindingNotFound) {
			return internal.ErrFindingNotFound
		}
		s.logger.Error("failed to delete finding", "error", err, "finding_id", id)
		return internal.NewInternalError("failed to delete finding", err)
	}

	s.removeBlobs(ctx, id, keys)
	s.publish(ctx, events.NewFindingDeletedEvent(actor.ID, strconv.FormatInt(id, 10)))
	s.logger.Info("finding deleted", "finding_id", id, "attachments", len(keys), "user_id", actor.ID)
	return nil
}

func (s *Service) removeBlobs(ctx context.Context, findingID int64, keys []string) {
	if s.blobs == nil || len(keys) == 0 {
		return
	}
	cleanupCtx, cancel := internal.Detached(ctx, blobCleanupTimeout)
	defer cancel()
	for _, key := range keys {
		if err := s.blobs.Delete(cleanupCtx, key); err != nil {
			s.logger.Warn("failed to remove attachment blob", "finding_id", findingID, "key", key, "error", err)
		}
	}
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.stats.Stats(ctx)
	if err != nil {
		s.logger.Error("failed to compute stats", "error", err)
		return nil, internal.NewInternalError("failed to compute stats", err)
	}
	return st, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event", "event_type", e.EventType(), "error", err)
	}
}
