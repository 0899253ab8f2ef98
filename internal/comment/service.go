package comment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	commentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/comment"
	"github.com/frahmantamala/redteam-collab/internal/core/events"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor *auth.User, findingID int64, dto CreateCommentDTO) (*Comment, error)
	ListByFinding(ctx context.Context, findingID int64) ([]*Comment, error)
}

type Service struct {
	repo     Repository
	findings FindingReader
	events   events.Publisher
	logger   *slog.Logger
}

func NewService(repo Repository, findings FindingReader, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:     repo,
		findings: findings,
		events:   publisher,
		logger:   logger,
	}
}

func (s *Service) ensureFinding(ctx context.Context, findingID int64) error {
	if _, err := s.findings.GetByID(ctx, findingID); err != nil {
		if errors.Is(err, internal.ErrFindingNotFound) {
			return internal.ErrFindingNotFound
		}
		return internal.NewInternalError("failed to load finding", err)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actor *auth.User, findingID int64, dto CreateCommentDTO) (*Comment, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureFinding(ctx, findingID); err != nil {
		return nil, err
	}

	row := &commentdm.Comment{
		FindingID: findingID,
		UserID:    actor.ID,
		Content:   dto.Content,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create comment", "error", err, "finding_id", findingID)
		return nil, internal.NewInternalError("failed to create comment", err)
	}

	if err := s.events.Publish(ctx, events.NewCommentCreatedEvent(actor.ID, strconv.FormatInt(row.ID, 10), strconv.FormatInt(findingID, 10))); err != nil {
		s.logger.Warn("failed to publish comment event", "error", err)
	}

	return &Comment{
		ID:         row.ID,
		FindingID:  row.FindingID,
		UserID:     row.UserID,
		AuthorName: actor.DisplayName(),
		Content:    row.Content,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func (s *Service) ListByFinding(ctx context.Context, findingID int64) ([]*Comment, error) {
	if err := s.ensureFinding(ctx, findingID); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListByFinding(ctx, findingID)
	if err != nil {
		s.logger.Error("failed to list comments", "error", err, "finding_id", findingID)
		return nil, internal.NewInternalError("failed to list comments", err)
	}
	comments := make([]*Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, FromRow(r))
	}
	return comments, nil
}
