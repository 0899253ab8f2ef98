package attachment

import (
	"context"
	"io"
	"time"

	attachmentdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/attachment"
	findingdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
)

type Attachment struct {
	ID           int64     `json:"id"`
	FindingID    int64     `json:"findingId"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	FileSize     int64     `json:"fileSize"`
	MimeType     string    `json:"mimeType"`
	UploadedBy   string    `json:"uploadedBy"`
	CreatedAt    time.Time `json:"createdAt"`

	key string
}

// Key is the blob storage key.
func (a *Attachment) Key() string { return a.key }

func FromDataModel(m *attachmentdm.Attachment) *Attachment {
	return &Attachment{
		ID:           m.ID,
		FindingID:    m.FindingID,
		Filename:     m.Filename,
		OriginalName: m.OriginalName,
		FileSize:     m.FileSize,
		MimeType:     m.MimeType,
		UploadedBy:   m.UploadedByID,
		CreatedAt:    m.CreatedAt,
		key:          m.FilePath,
	}
}

// Upload is an already-received file.
type Upload struct {
	OriginalName string
	MimeType     string
	Size         int64
	Body         io.Reader
}

type Repository interface {
	ListByFinding(ctx context.Context, findingID int64) ([]*attachmentdm.Attachment, error)
	GetByID(ctx context.Context, id int64) (*attachmentdm.Attachment, error)
	Create(ctx context.Context, a *attachmentdm.Attachment) error
	Delete(ctx context.Context, id int64) error
}

type FindingReader interface {
	GetByID(ctx context.Context, id int64) (*findingdm.Finding, error)
}

// BlobStore is satisfied by storage.Store.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
