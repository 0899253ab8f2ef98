package attachment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/frahmantamala/redteam-collab/internal"
	"github.com/frahmantamala/redteam-collab/internal/auth"
	"github.com/frahmantamala/redteam-collab/internal/core/common/validation"
	attachmentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/attachment"
	"github.com/frahmantamala/redteam-collab/internal/storage"
	"github.com/frahmantamala/redteam-collab/pkg/idx"
)

const (
	MaxUploadSize   = 10 << 20
	keyPrefix       = "attachments"
	fallbackMime    = "application/octet-stream"
	rollbackTimeout = 10 * time.Second
)

type ServiceAPI interface {
	Create(ctx context.Context, actor *auth.User, findingID int64, up Upload) (*Attachment, error)
	ListByFinding(ctx context.Context, findingID int64) ([]*Attachment, error)
	Open(ctx context.Context, id int64) (*Attachment, io.ReadCloser, error)
	Delete(ctx context.Context, actor *auth.User, id int64) error
}

type Service struct {
	repo     Repository
	findings FindingReader
	blobs    BlobStore
	policy   *auth.ABACPolicy
	logger   *slog.Logger
}

func NewService(repo Repository, findings FindingReader, blobs BlobStore, policy *auth.ABACPolicy, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		findings: findings,
		blobs:    blobs,
		policy:   policy,
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

// Create stores the blob first and the row second; a failed insert removes
// the blob again.
func (s *Service) Create(ctx context.Context, actor *auth.User, findingID int64, up Upload) (*Attachment, error) {
	if actor == nil {
		return nil, internal.ErrUnauthenticated
	}
	name := filepath.Base(strings.TrimSpace(up.OriginalName))
	if err := validation.NewValidator().
		Field("originalName", name).Required().MaxLength(255).
		Field("size", up.Size).MinInt(1, internal.ErrCodeValidationFailed).MaxInt(MaxUploadSize, internal.ErrCodeValidationFailed).
		Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureFinding(ctx, findingID); err != nil {
		return nil, err
	}

	mimeType := up.MimeType
	if mimeType == "" {
		mimeType = fallbackMime
	}
	key := idx.StorageKey(keyPrefix, strings.ToLower(filepath.Ext(name)))
	if err := s.blobs.Put(ctx, key, io.LimitReader(up.Body, up.Size), up.Size, mimeType); err != nil {
		s.logger.Error("failed to store attachment", "error", err, "finding_id", findingID)
		return nil, internal.NewInternalError("failed to store attachment", err)
	}

	row := &attachmentdm.Attachment{
		FindingID:    findingID,
		Filename:     filepath.Base(key),
		OriginalName: name,
		FilePath:     key,
		FileSize:     up.Size,
		MimeType:     mimeType,
		UploadedByID: actor.ID,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		cleanupCtx, cancel := internal.Detached(ctx, rollbackTimeout)
		defer cancel()
		if delErr := s.blobs.Delete(cleanupCtx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned attachment blob", "key", key, "error", delErr)
		}
		return nil, internal.NewInternalError("failed to save attachment", err)
	}

	s.logger.Info("attachment stored", "attachment_id", row.ID, "finding_id", findingID, "size", up.Size)
	return FromDataModel(row), nil
}

func (s *Service) ListByFinding(ctx context.Context, findingID int64) ([]*Attachment, error) {
	if err := s.ensureFinding(ctx, findingID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByFinding(ctx, findingID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list attachments", err)
	}
	out := make([]*Attachment, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, id int64) (*Attachment, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrAttachmentNotFound) {
			return nil, internal.ErrAttachmentNotFound
		}
		return nil, internal.NewInternalError("failed to load attachment", err)
	}
	return FromDataModel(row), nil
}

// Open returns the metadata and the blob. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id int64) (*Attachment, io.ReadCloser, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, a.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("attachment blob missing", "attachment_id", id, "key", a.key)
			return nil, nil, internal.ErrAttachmentNotFound
		}
		return nil, nil, internal.NewInternalError("failed to open attachment", err)
	}
	return a, rc, nil
}

func (s *Service) Delete(ctx context.Context, actor *auth.User, id int64) error {
	a, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.CanDeleteAttachment(actor, a.UploadedBy); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, internal.ErrAttachmentNotFound) {
			return internal.ErrAttachmentNotFound
		}
		return internal.NewInternalError("failed to delete attachment", err)
	}
	if err := s.blobs.Delete(ctx, a.key); err != nil {
		s.logger.Warn("failed to remove attachment blob", "attachment_id", id, "key", a.key, "error", err)
	}

	s.logger.Info("attachment deleted", "attachment_id", id, "user_id", actor.ID)
	return nil
}
