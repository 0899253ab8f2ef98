package message

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	messagedm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/message"
)

type ServiceAPI interface {
	List(ctx context.Context, channel string, limit, offset int) ([]*Message, error)
	Channels(ctx context.Context) ([]string, error)
	Create(ctx context.Context, actor *auth.User, dto CreateMessageDTO) (*Message, error)
	Update(ctx context.Context, actor *auth.User, id int64, dto UpdateMessageDTO) (*Message, error)
	Delete(ctx context.Context, actor *auth.User, id int64) error
}

type Service struct {
	repo   Repository
	policy *auth.ABACPolicy
	logger *slog.Logger
}

func NewService(repo Repository, policy *auth.ABACPolicy, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: policy,
		logger: logger,
	}
}

func (s *Service) List(ctx context.Context, channel string, limit, offset int) ([]*Message, error) {
	channel = NormalizeChannel(channel)
	if appErr := channelValidator(channel); appErr != nil {
		return nil, appErr
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.repo.ListByChannel(ctx, channel, limit, offset)
	if err != nil {
		s.logger.Error("failed to list messages", "error", err, "channel", channel)
		return nil, internal.NewInternalError("failed to list messages", err)
	}
	out := make([]*Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromRow(r))
	}
	return out, nil
}

// Channels always includes the default channel first.
func (s *Service) Channels(ctx context.Context) ([]string, error) {
	names, err := s.repo.Channels(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list channels", err)
	}
	out := []string{DefaultChannel}
	for _, n := range names {
		if n != DefaultChannel {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, actor *auth.User, dto CreateMessageDTO) (*Message, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if dto.ReplyTo != nil {
		parent, err := s.load(ctx, *dto.ReplyTo)
		if err != nil {
			return nil, err
		}
		if parent.Channel != dto.Channel {
			return nil, internal.NewValidationFieldError("replyTo", "reply must stay in the parent's channel", internal.ErrCodeValidationFailed)
		}
	}

	row := &messagedm.Message{
		Content: dto.Content,
		UserID:  actor.ID,
		Channel: dto.Channel,
		ReplyTo: dto.ReplyTo,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create message", "error", err, "channel", dto.Channel)
		return nil, internal.NewInternalError("failed to create message", err)
	}

	m := fromDataModel(row)
	m.AuthorName = actor.DisplayName()
	return m, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Row, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrMessageNotFound) {
			return nil, internal.ErrMessageNotFound
		}
		return nil, internal.NewInternalError("failed to load message", err)
	}
	return row, nil
}

func (s *Service) Update(ctx context.Context, actor *auth.User, id int64, dto UpdateMessageDTO) (*Message, error) {
	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanModifyMessage(actor, row.UserID); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	row.Content = dto.Content
	row.Edited = true
	if err := s.repo.Update(ctx, &row.Message); err != nil {
		return nil, internal.NewInternalError("failed to update message", err)
	}
	return FromRow(row), nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.User, id int64) error {
	row, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanModifyMessage(actor, row.UserID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, internal.ErrMessageNotFound) {
			return internal.ErrMessageNotFound
		}
		return internal.NewInternalError("failed to delete message", err)
	}
	s.logger.Info("message deleted", "message_id", id, "user_id", actor.ID)
	return nil
}
